package cmd

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexicon-labs/lexicon-cli/internal/api"
	"github.com/lexicon-labs/lexicon-cli/internal/config"
	"github.com/lexicon-labs/lexicon-cli/internal/secrets"
)

func TestFlagChanged_NilCmd(t *testing.T) {
	if flagChanged(nil, "output") {
		t.Error("expected false for nil cmd")
	}
}

func TestFlagChanged_UnsetFlag(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().String("output", "text", "")

	if flagChanged(cmd, "output") {
		t.Error("expected false for unset flag")
	}
}

func TestFlagChanged_SetFlag(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().String("output", "text", "")
	if err := cmd.Flags().Set("output", "json"); err != nil {
		t.Fatalf("failed to set flag: %v", err)
	}

	if !flagChanged(cmd, "output") {
		t.Error("expected true for set flag")
	}
}

func TestFlagChanged_InheritedFlag(t *testing.T) {
	parent := &cobra.Command{}
	parent.PersistentFlags().String("format", "text", "")

	child := &cobra.Command{}
	parent.AddCommand(child)

	// Inherit flags
	if err := parent.PersistentFlags().Set("format", "json"); err != nil {
		t.Fatalf("failed to set flag: %v", err)
	}

	if !flagChanged(child, "format") {
		t.Error("expected true for inherited flag")
	}
}
func TestFormatConfigLoadError(t *testing.T) {
	if err := formatConfigLoadError(nil); err != nil {
		t.Errorf("expected nil for nil input, got %v", err)
	}

	err := formatConfigLoadError(errors.New("file not found"))
	if err == nil || err.Error() != "load config: file not found" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestClientOptionsFromConfig(t *testing.T) {
	if got := len(clientOptionsFromConfig(nil)); got != 1 {
		t.Errorf("expected logger option only, got %d options", got)
	}
	if got := len(clientOptionsFromConfig(&config.Config{})); got != 1 {
		t.Errorf("expected logger option only for empty config, got %d options", got)
	}
	if got := len(clientOptionsFromConfig(&config.Config{Timeout: "5s"})); got != 2 {
		t.Errorf("expected logger and timeout options, got %d options", got)
	}
}

func TestCacheTTL(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.Config
		want time.Duration
	}{
		{name: "nil config", want: api.DefaultCacheTTL},
		{name: "unset", cfg: &config.Config{}, want: api.DefaultCacheTTL},
		{name: "explicit zero", cfg: &config.Config{CacheTTL: "0s"}, want: 0},
		{name: "configured", cfg: &config.Config{CacheTTL: "2m"}, want: 2 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cacheTTL(tt.cfg); got != tt.want {
				t.Errorf("cacheTTL() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewAPIClient_CacheToggle(t *testing.T) {
	prevNew := newClientFunc
	prevNoCache := noCache
	t.Cleanup(func() {
		newClientFunc = prevNew
		noCache = prevNoCache
	})

	fake := &fakeClient{}
	newClientFunc = func(string, string, ...api.ClientOption) api.LexiconAPI { return fake }

	noCache = false
	if _, ok := newAPIClient("http://x", "tok", nil).(*api.CachedClient); !ok {
		t.Error("expected a cached client by default")
	}

	noCache = true
	if got := newAPIClient("http://x", "tok", nil); got != api.LexiconAPI(fake) {
		t.Errorf("expected the bare client with --no-cache, got %T", got)
	}
}

func TestPreviewLength(t *testing.T) {
	prev := treePreviewLength
	t.Cleanup(func() { treePreviewLength = prev })

	cmd := &cobra.Command{}
	cmd.Flags().IntVar(&treePreviewLength, "preview-length", 25, "")

	if got := previewLength(cmd, nil); got != 25 {
		t.Errorf("default previewLength = %d, want 25", got)
	}

	n := 40
	cfg := &config.Config{PreviewLength: &n}
	if got := previewLength(cmd, cfg); got != 40 {
		t.Errorf("config previewLength = %d, want 40", got)
	}

	if err := cmd.Flags().Set("preview-length", "10"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	if got := previewLength(cmd, cfg); got != 10 {
		t.Errorf("flag previewLength = %d, want 10", got)
	}
}

type mockSecretsStore struct {
	tokens map[string]secrets.Token
	err    error
}

func (m *mockSecretsStore) GetToken(profile string) (secrets.Token, error) {
	if m.err != nil {
		return secrets.Token{}, m.err
	}
	tok, ok := m.tokens[profile]
	if !ok {
		return secrets.Token{}, secrets.ErrNotFound
	}
	return tok, nil
}

func (m *mockSecretsStore) SetToken(profile string, tok secrets.Token) error {
	if m.err != nil {
		return m.err
	}
	if m.tokens == nil {
		m.tokens = map[string]secrets.Token{}
	}
	m.tokens[profile] = tok
	return nil
}

func (m *mockSecretsStore) DeleteToken(profile string) error {
	if _, ok := m.tokens[profile]; !ok {
		return secrets.ErrNotFound
	}
	delete(m.tokens, profile)
	return nil
}

func (m *mockSecretsStore) Keys() ([]string, error) {
	keys := make([]string, 0, len(m.tokens))
	for k := range m.tokens {
		keys = append(keys, k)
	}
	return keys, nil
}

func TestResolveCredentials_Precedence(t *testing.T) {
	tests := []struct {
		name      string
		flagURL   string
		flagToken string
		env       map[string]string
		keyring   string
		cfg       *config.Config
		wantURL   string
		wantToken string
	}{
		{
			name:      "nothing configured",
			wantURL:   api.DefaultBaseURL,
			wantToken: "",
		},
		{
			name:      "config only",
			cfg:       &config.Config{APIURL: "http://config:8000", Token: "config-token"},
			wantURL:   "http://config:8000",
			wantToken: "config-token",
		},
		{
			name:      "keyring beats config token",
			keyring:   "keyring-token",
			cfg:       &config.Config{APIURL: "http://config:8000", Token: "config-token"},
			wantURL:   "http://config:8000",
			wantToken: "keyring-token",
		},
		{
			name:      "env beats keyring and config",
			env:       map[string]string{envAPIURL: "http://env:8000", envAPIToken: "env-token"},
			keyring:   "keyring-token",
			cfg:       &config.Config{APIURL: "http://config:8000", Token: "config-token"},
			wantURL:   "http://env:8000",
			wantToken: "env-token",
		},
		{
			name:      "flags beat everything",
			flagURL:   "http://flag:8000",
			flagToken: "flag-token",
			env:       map[string]string{envAPIURL: "http://env:8000", envAPIToken: "env-token"},
			keyring:   "keyring-token",
			cfg:       &config.Config{APIURL: "http://config:8000", Token: "config-token"},
			wantURL:   "http://flag:8000",
			wantToken: "flag-token",
		},
		{
			name:      "values are trimmed",
			env:       map[string]string{envAPIToken: "  padded  "},
			wantURL:   api.DefaultBaseURL,
			wantToken: "padded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prevURL, prevToken := apiURL, apiToken
			prevEnv, prevOpen := envGet, openSecretsStore
			t.Cleanup(func() {
				apiURL, apiToken = prevURL, prevToken
				envGet, openSecretsStore = prevEnv, prevOpen
			})

			envGet = func(key string) string { return tt.env[key] }
			openSecretsStore = func() (secrets.Store, error) {
				store := &mockSecretsStore{}
				if tt.keyring != "" {
					store.tokens = map[string]secrets.Token{defaultProfile: {APIToken: tt.keyring}}
				}
				return store, nil
			}

			cmd := &cobra.Command{}
			cmd.Flags().StringVar(&apiURL, "api-url", "", "")
			cmd.Flags().StringVar(&apiToken, "token", "", "")
			if tt.flagURL != "" {
				if err := cmd.Flags().Set("api-url", tt.flagURL); err != nil {
					t.Fatalf("set api-url: %v", err)
				}
			}
			if tt.flagToken != "" {
				if err := cmd.Flags().Set("token", tt.flagToken); err != nil {
					t.Fatalf("set token: %v", err)
				}
			}

			gotURL, gotToken := resolveCredentials(cmd, tt.cfg)
			if gotURL != tt.wantURL {
				t.Errorf("baseURL = %q, want %q", gotURL, tt.wantURL)
			}
			if gotToken != tt.wantToken {
				t.Errorf("token = %q, want %q", gotToken, tt.wantToken)
			}
		})
	}
}

func TestResolveCredentials_KeyringUnavailable(t *testing.T) {
	prevEnv, prevOpen, prevLogger := envGet, openSecretsStore, logger
	t.Cleanup(func() {
		envGet, openSecretsStore, logger = prevEnv, prevOpen, prevLogger
	})

	envGet = func(string) string { return "" }
	openSecretsStore = func() (secrets.Store, error) { return nil, errors.New("no keyring") }
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	cmd := &cobra.Command{}
	_, token := resolveCredentials(cmd, &config.Config{Token: "config-token"})
	if token != "config-token" {
		t.Errorf("expected config token when keyring is unavailable, got %q", token)
	}
}
