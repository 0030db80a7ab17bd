package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// apiKeyFromSecrets pulls LAMBDA_API_KEY out of
// $XDG_CONFIG_HOME/gpulaunch/secrets.env (or ~/.config/gpulaunch/secrets.env),
// so the key can stay out of the YAML config. Lines are KEY=VALUE; # starts a
// comment. Returns "" when the file or the key is absent.
func apiKeyFromSecrets(path string) string {
	if path == "" {
		path = filepath.Join(configDir(), "secrets.env")
	}
	f, err := os.Open(path)
	if err != nil {
		return "" // not fatal if missing
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		i := strings.IndexByte(line, '=')
		if i < 0 {
			continue
		}
		if strings.TrimSpace(line[:i]) != "LAMBDA_API_KEY" {
			continue
		}
		return strings.TrimSpace(line[i+1:])
	}
	return ""
}
