package secrets

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/99designs/keyring"

	"github.com/lexicon-labs/lexicon-cli/internal/config"
)

const (
	// EnvKeyringBackend selects the keyring backend: auto, keychain or file.
	EnvKeyringBackend = "LEXICON_KEYRING_BACKEND"
	// EnvKeyringPassword unlocks the file backend without a prompt.
	EnvKeyringPassword = "LEXICON_KEYRING_PASSWORD"

	keyPrefix          = "token:"
	keyringOpenTimeout = 5 * time.Second
)

// ErrNotFound is returned when no token is stored for a profile.
var ErrNotFound = errors.New("token not found")

var errKeyringTimeout = errors.New("timed out opening keyring")

// keyringOpenFunc is swapped in tests.
var keyringOpenFunc = keyring.Open

// Token is a stored API token.
type Token struct {
	Profile   string    `json:"profile"`
	APIToken  string    `json:"api_token"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists tokens per profile.
type Store interface {
	GetToken(profile string) (Token, error)
	SetToken(profile string, tok Token) error
	DeleteToken(profile string) error
	Keys() ([]string, error)
}

// KeyringStore is a Store on the system keyring.
type KeyringStore struct {
	ring keyring.Keyring
}

// NewKeyringStore wraps an open keyring.
func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring}
}

// OpenDefault opens the keyring selected by the environment and config.
func OpenDefault() (Store, error) {
	info, err := ResolveKeyringBackendInfo()
	if err != nil {
		return nil, err
	}

	dbusAddr := os.Getenv("DBUS_SESSION_BUS_ADDRESS")
	if shouldForceFileBackend(runtime.GOOS, info, dbusAddr) {
		info.Value = "file"
	}

	cfg, err := keyringConfig(info)
	if err != nil {
		return nil, err
	}

	var ring keyring.Keyring
	if shouldUseKeyringTimeout(runtime.GOOS, info, dbusAddr) {
		ring, err = openKeyringWithTimeout(cfg, keyringOpenTimeout)
	} else {
		ring, err = keyringOpenFunc(cfg)
	}
	if err != nil {
		return nil, wrapKeychainError(err)
	}
	return NewKeyringStore(ring), nil
}

func keyringConfig(info KeyringBackendInfo) (keyring.Config, error) {
	cfg := keyring.Config{
		ServiceName:              config.AppName,
		KeychainTrustApplication: true,
	}

	switch info.Value {
	case "file":
		dir, err := config.EnsureKeyringDir()
		if err != nil {
			return cfg, err
		}
		cfg.AllowedBackends = []keyring.BackendType{keyring.FileBackend}
		cfg.FileDir = dir
		cfg.FilePasswordFunc = filePassword
	case "keychain":
		cfg.AllowedBackends = []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
		}
	}
	return cfg, nil
}

func filePassword(prompt string) (string, error) {
	if pw, ok := os.LookupEnv(EnvKeyringPassword); ok {
		return pw, nil
	}
	return keyring.TerminalPrompt(prompt)
}

// openKeyringWithTimeout guards against secret services that never answer.
func openKeyringWithTimeout(cfg keyring.Config, timeout time.Duration) (keyring.Keyring, error) {
	type result struct {
		ring keyring.Keyring
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		ring, err := keyringOpenFunc(cfg)
		ch <- result{ring: ring, err: err}
	}()

	select {
	case res := <-ch:
		return res.ring, res.err
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w after %s; set %s=file to use the encrypted file backend",
			errKeyringTimeout, timeout, EnvKeyringBackend)
	}
}

// wrapKeychainError adds recovery steps to locked-keychain errors.
func wrapKeychainError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "errSecInteractionNotAllowed") || strings.Contains(msg, "-25308") {
		return fmt.Errorf("%w\n\nThe keychain is locked. Unlock it with:\n  security unlock-keychain ~/Library/Keychains/login.keychain-db\nor set %s=file", err, EnvKeyringBackend)
	}
	return err
}

// GetToken returns the token stored for profile.
func (s *KeyringStore) GetToken(profile string) (Token, error) {
	item, err := s.ring.Get(keyPrefix + profile)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return Token{}, ErrNotFound
		}
		return Token{}, wrapKeychainError(err)
	}

	var tok Token
	if err := json.Unmarshal(item.Data, &tok); err != nil {
		return Token{}, fmt.Errorf("decoding stored token: %w", err)
	}
	return tok, nil
}

// SetToken stores tok under profile.
func (s *KeyringStore) SetToken(profile string, tok Token) error {
	if strings.TrimSpace(profile) == "" {
		return errors.New("profile is required")
	}
	if tok.Profile == "" {
		tok.Profile = profile
	}
	if tok.CreatedAt.IsZero() {
		tok.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	return wrapKeychainError(s.ring.Set(keyring.Item{
		Key:         keyPrefix + profile,
		Data:        data,
		Label:       config.AppName + " API token (" + profile + ")",
		Description: "API token",
	}))
}

// DeleteToken removes the token for profile.
func (s *KeyringStore) DeleteToken(profile string) error {
	err := s.ring.Remove(keyPrefix + profile)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return ErrNotFound
	}
	return wrapKeychainError(err)
}

// Keys lists the profiles with stored tokens.
func (s *KeyringStore) Keys() ([]string, error) {
	keys, err := s.ring.Keys()
	if err != nil {
		return nil, wrapKeychainError(err)
	}
	var profiles []string
	for _, k := range keys {
		if strings.HasPrefix(k, keyPrefix) {
			profiles = append(profiles, strings.TrimPrefix(k, keyPrefix))
		}
	}
	sort.Strings(profiles)
	return profiles, nil
}
