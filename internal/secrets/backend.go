package secrets

import (
	"fmt"
	"os"
	"strings"

	"github.com/lexicon-labs/lexicon-cli/internal/config"
)

// KeyringBackendInfo records which backend was chosen and where it came from.
type KeyringBackendInfo struct {
	Value  string
	Source string
}

const (
	sourceEnv     = "env"
	sourceConfig  = "config"
	sourceDefault = "default"
)

// ResolveKeyringBackendInfo reads the backend from the environment, then
// the config file, defaulting to auto.
func ResolveKeyringBackendInfo() (KeyringBackendInfo, error) {
	if v := strings.TrimSpace(os.Getenv(EnvKeyringBackend)); v != "" {
		return normalizeBackend(v, sourceEnv)
	}

	cfg, err := config.ReadConfig()
	if err == nil && strings.TrimSpace(cfg.KeyringBackend) != "" {
		return normalizeBackend(cfg.KeyringBackend, sourceConfig)
	}

	return KeyringBackendInfo{Value: "auto", Source: sourceDefault}, nil
}

func normalizeBackend(v, source string) (KeyringBackendInfo, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case "auto", "keychain", "file":
		return KeyringBackendInfo{Value: v, Source: source}, nil
	}
	return KeyringBackendInfo{}, fmt.Errorf("invalid keyring backend %q (from %s): expected auto, keychain or file", v, source)
}

// shouldForceFileBackend is true on linux in auto mode with no D-Bus session,
// where the secret service cannot be reached.
func shouldForceFileBackend(goos string, info KeyringBackendInfo, dbusAddr string) bool {
	return goos == "linux" && info.Value == "auto" && strings.TrimSpace(dbusAddr) == ""
}

// shouldUseKeyringTimeout is true when opening may block on a secret service.
func shouldUseKeyringTimeout(goos string, info KeyringBackendInfo, dbusAddr string) bool {
	return goos == "linux" && info.Value == "auto" && strings.TrimSpace(dbusAddr) != ""
}
