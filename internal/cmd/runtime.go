package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexicon-labs/lexicon-cli/internal/api"
	"github.com/lexicon-labs/lexicon-cli/internal/config"
	"github.com/lexicon-labs/lexicon-cli/internal/secrets"
	"github.com/lexicon-labs/lexicon-cli/internal/sections"
)

const (
	envAPIURL   = "LEXICON_API_URL"
	envAPIToken = "LEXICON_API_TOKEN"
)

// loadConfigFromFlag loads config from --config if provided, otherwise from default path.
func loadConfigFromFlag() (*config.Config, error) {
	if strings.TrimSpace(configFile) != "" {
		return config.Load(configFile)
	}
	return config.ReadConfig()
}

func flagChanged(cmd *cobra.Command, name string) bool {
	if cmd == nil {
		return false
	}
	if cmd.Flags().Changed(name) {
		return true
	}
	return cmd.InheritedFlags().Changed(name)
}

// resolveCredentials resolves the API URL and token with precedence:
// flags > env > keyring > config > default. The keyring only holds tokens.
func resolveCredentials(cmd *cobra.Command, cfg *config.Config) (string, string) {
	baseURL := ""
	token := ""

	// Flags (only if explicitly set)
	if flagChanged(cmd, "api-url") {
		baseURL = strings.TrimSpace(apiURL)
	}
	if flagChanged(cmd, "token") {
		token = strings.TrimSpace(apiToken)
	}

	// Environment
	if baseURL == "" {
		baseURL = strings.TrimSpace(envGet(envAPIURL))
	}
	if token == "" {
		token = strings.TrimSpace(envGet(envAPIToken))
	}

	// Keyring (only if still missing)
	if token == "" {
		if store, err := openSecretsStore(); err == nil {
			if tok, err := store.GetToken(defaultProfile); err == nil {
				token = strings.TrimSpace(tok.APIToken)
			}
		} else {
			logger.Debug("keyring unavailable", "error", err)
		}
	}

	// Config fallback
	if cfg != nil {
		if baseURL == "" {
			baseURL = strings.TrimSpace(cfg.APIURL)
		}
		if token == "" {
			token = strings.TrimSpace(cfg.Token)
		}
	}

	if baseURL == "" {
		baseURL = api.DefaultBaseURL
	}
	return baseURL, token
}

// clientOptionsFromConfig builds API client options from config.
func clientOptionsFromConfig(cfg *config.Config) []api.ClientOption {
	opts := []api.ClientOption{api.WithLogger(logger)}
	if cfg == nil {
		return opts
	}
	if timeout := cfg.TimeoutDuration(); timeout > 0 {
		opts = append(opts, api.WithTimeout(timeout))
	}
	return opts
}

// cacheTTL returns the configured cache lifetime. An explicit zero keeps
// entries until the process exits.
func cacheTTL(cfg *config.Config) time.Duration {
	if cfg == nil || strings.TrimSpace(cfg.CacheTTL) == "" {
		return api.DefaultCacheTTL
	}
	return cfg.CacheTTLDuration()
}

// newAPIClient builds the client commands talk to, wrapped in the query
// cache unless --no-cache is set.
func newAPIClient(baseURL, token string, cfg *config.Config) api.LexiconAPI {
	c := newClientFunc(baseURL, token, clientOptionsFromConfig(cfg)...)
	if noCache {
		return c
	}
	return api.NewCachedClient(c, cacheTTL(cfg))
}

// previewLength resolves the tree label budget: flag > config > default.
func previewLength(cmd *cobra.Command, cfg *config.Config) int {
	if flagChanged(cmd, "preview-length") {
		return treePreviewLength
	}
	if cfg != nil && cfg.PreviewLength != nil && *cfg.PreviewLength > 0 {
		return *cfg.PreviewLength
	}
	return sections.DefaultPreviewLength
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func formatConfigLoadError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("load config: %w", err)
}

// tokenStore opens the keyring, wrapping failures for display.
func tokenStore() (secrets.Store, error) {
	store, err := openSecretsStore()
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}
	return store, nil
}
