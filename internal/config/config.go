package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppName is the application name used for keyring and config.
const AppName = "lexicon"

// OutputFormats lists the values accepted for output_format.
var OutputFormats = []string{"text", "json", "ndjson", "table", "yaml"}

// Config holds CLI configuration.
type Config struct {
	APIURL         string `yaml:"api_url,omitempty"`
	Token          string `yaml:"token,omitempty"`
	KeyringBackend string `yaml:"keyring_backend,omitempty"` // auto, keychain, file
	OutputFormat   string `yaml:"output_format,omitempty"`   // text, json, ndjson, table, yaml
	PreviewLength  *int   `yaml:"preview_length,omitempty"`
	CacheTTL       string `yaml:"cache_ttl,omitempty"` // Go duration, e.g. 30s
	Timeout        string `yaml:"timeout,omitempty"`   // Go duration, e.g. 60s
}

// ConfigDir returns the config directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", AppName), nil
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// EnsureKeyringDir ensures the keyring directory exists and returns its path.
func EnsureKeyringDir() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	keyringDir := filepath.Join(dir, "keyring")
	if err := os.MkdirAll(keyringDir, 0o700); err != nil {
		return "", fmt.Errorf("creating keyring directory: %w", err)
	}
	return keyringDir, nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// ReadConfig reads the config file from the default location.
func ReadConfig() (*Config, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// Load loads config from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return &cfg, nil
}

// Save saves config to the given path.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// Validate checks every set field.
func (c Config) Validate() error {
	formats := make([]interface{}, len(OutputFormats))
	for i, f := range OutputFormats {
		formats[i] = f
	}

	return validation.ValidateStruct(&c,
		validation.Field(&c.APIURL, validation.By(httpURL)),
		validation.Field(&c.KeyringBackend, validation.In("auto", "keychain", "file")),
		validation.Field(&c.OutputFormat, validation.In(formats...)),
		validation.Field(&c.PreviewLength, validation.Min(0)),
		validation.Field(&c.CacheTTL, validation.By(duration)),
		validation.Field(&c.Timeout, validation.By(duration)),
	)
}

// CacheTTLDuration parses cache_ttl; zero when unset.
func (c Config) CacheTTLDuration() time.Duration {
	d, _ := time.ParseDuration(strings.TrimSpace(c.CacheTTL))
	return d
}

// TimeoutDuration parses timeout; zero when unset.
func (c Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(strings.TrimSpace(c.Timeout))
	return d
}

func httpURL(value interface{}) error {
	s, _ := value.(string)
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return validation.NewError("validation_http_url", "must be an http or https URL")
	}
	return nil
}

func duration(value interface{}) error {
	s, _ := value.(string)
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return validation.NewError("validation_duration", "must be a duration such as 30s or 2m")
	}
	if d < 0 {
		return validation.NewError("validation_duration", "must not be negative")
	}
	return nil
}
