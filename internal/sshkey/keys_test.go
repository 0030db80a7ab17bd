package sshkey

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGenerateWritesKeypair(t *testing.T) {
	dir := t.TempDir()
	priv := filepath.Join(dir, "id_ed25519")

	pub, err := Generate(priv)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasPrefix(pub, "ssh-ed25519 ") {
		t.Fatalf("unexpected public key: %q", pub)
	}

	info, err := os.Stat(priv)
	if err != nil {
		t.Fatalf("private key not written: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("private key mode %v, want 0600", info.Mode().Perm())
	}
	if _, err := os.Stat(priv + ".pub"); err != nil {
		t.Fatalf("public key not written: %v", err)
	}
}

func TestGenerateCreatesMissingKeyDir(t *testing.T) {
	priv := filepath.Join(t.TempDir(), "ssh", "id_ed25519")

	pub, err := Generate(priv)
	if err != nil {
		t.Fatalf("generate into missing dir: %v", err)
	}
	if !strings.HasPrefix(pub, "ssh-ed25519 ") {
		t.Fatalf("unexpected public key: %q", pub)
	}
	info, err := os.Stat(filepath.Dir(priv))
	if err != nil {
		t.Fatalf("key dir not created: %v", err)
	}
	if info.Mode().Perm() != 0o700 {
		t.Fatalf("key dir mode %v, want 0700", info.Mode().Perm())
	}
}

func TestReadPublicKeyRoundtrip(t *testing.T) {
	dir := t.TempDir()
	priv := filepath.Join(dir, "id_ed25519")
	want, err := Generate(priv)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	got, err := ReadPublicKey(priv + ".pub")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestReadPublicKeyRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.pub")
	if err := os.WriteFile(path, []byte("not a key"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadPublicKey(path); err == nil {
		t.Fatal("expected parse error")
	}
}
