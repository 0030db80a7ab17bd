// Package sshkey generates and reads local SSH keypairs for registration
// with the cloud account.
package sshkey

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	xssh "golang.org/x/crypto/ssh"
)

// Generate creates an ed25519 keypair, writes the private key in OpenSSH
// format to privateKeyPath (0600) and the public key next to it with a .pub
// suffix, and returns the authorized_keys line.
func Generate(privateKeyPath string) (string, error) {
	if dir := filepath.Dir(privateKeyPath); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return "", fmt.Errorf("create key dir: %w", err)
		}
	}
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	block, err := xssh.MarshalPrivateKey(priv, "")
	if err != nil {
		return "", fmt.Errorf("marshal private key: %w", err)
	}
	if err := os.WriteFile(privateKeyPath, pem.EncodeToMemory(block), 0o600); err != nil {
		return "", fmt.Errorf("write private key: %w", err)
	}

	sshPub, err := xssh.NewPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("public key: %w", err)
	}
	authorized := xssh.MarshalAuthorizedKey(sshPub)
	if err := os.WriteFile(privateKeyPath+".pub", authorized, 0o644); err != nil {
		return "", fmt.Errorf("write public key: %w", err)
	}
	return strings.TrimSpace(string(authorized)), nil
}

// ReadPublicKey loads an authorized_keys-format public key file and returns
// the validated key line.
func ReadPublicKey(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read public key: %w", err)
	}
	key, _, _, _, err := xssh.ParseAuthorizedKey(data)
	if err != nil {
		return "", fmt.Errorf("parse public key: %w", err)
	}
	return strings.TrimSpace(string(xssh.MarshalAuthorizedKey(key))), nil
}
