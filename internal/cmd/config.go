package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lexicon-labs/lexicon-cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long: `Manage CLI configuration stored in ~/.config/lexicon/config.yaml.

You can view, set, or unset config keys such as api_url, token,
keyring_backend, output_format, preview_length, cache_ttl and timeout.
Values are validated before the file is written.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfigFromFlag()
		if err != nil {
			return formatConfigLoadError(err)
		}
		if structuredOutputRequested() {
			return printResult(cmd.Context(), configOutput(cfg))
		}

		out := stdoutFromContext(cmd.Context())
		fmt.Fprintln(out, "Config:")
		for _, key := range supportedConfigKeys() {
			fmt.Fprintf(out, "  %s: %s\n", key, configValue(cfg, key))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Unset a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigUnset,
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List supported configuration keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		keys := supportedConfigKeys()
		sort.Strings(keys)

		if structuredOutputRequested() {
			return printResult(cmd.Context(), keys)
		}

		out := stdoutFromContext(cmd.Context())
		fmt.Fprintln(out, "Supported keys:")
		for _, key := range keys {
			fmt.Fprintf(out, "  %s\n", key)
		}
		return nil
	},
}

func configPath() (string, error) {
	if strings.TrimSpace(configFile) != "" {
		return configFile, nil
	}
	return config.DefaultConfigPath()
}

func supportedConfigKeys() []string {
	return []string{
		"api_url",
		"token",
		"keyring_backend",
		"output_format",
		"preview_length",
		"cache_ttl",
		"timeout",
	}
}

func applyConfigValue(cfg *config.Config, key, value string) error {
	switch key {
	case "api_url":
		cfg.APIURL = value
	case "token":
		cfg.Token = value
	case "keyring_backend":
		cfg.KeyringBackend = strings.ToLower(value)
	case "output_format":
		cfg.OutputFormat = strings.ToLower(value)
	case "preview_length":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("preview_length must be an integer: %w", err)
		}
		cfg.PreviewLength = &n
	case "cache_ttl":
		cfg.CacheTTL = value
	case "timeout":
		cfg.Timeout = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func clearConfigValue(cfg *config.Config, key string) error {
	switch key {
	case "api_url":
		cfg.APIURL = ""
	case "token":
		cfg.Token = ""
	case "keyring_backend":
		cfg.KeyringBackend = ""
	case "output_format":
		cfg.OutputFormat = ""
	case "preview_length":
		cfg.PreviewLength = nil
	case "cache_ttl":
		cfg.CacheTTL = ""
	case "timeout":
		cfg.Timeout = ""
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func configValue(cfg *config.Config, key string) string {
	switch key {
	case "api_url":
		return cfg.APIURL
	case "token":
		if cfg.Token == "" {
			return ""
		}
		return maskToken(cfg.Token)
	case "keyring_backend":
		return cfg.KeyringBackend
	case "output_format":
		return cfg.OutputFormat
	case "preview_length":
		if cfg.PreviewLength == nil {
			return ""
		}
		return strconv.Itoa(*cfg.PreviewLength)
	case "cache_ttl":
		return cfg.CacheTTL
	case "timeout":
		return cfg.Timeout
	}
	return ""
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
	configCmd.AddCommand(configKeysCmd)

	rootCmd.AddCommand(configCmd)
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := strings.ToLower(strings.TrimSpace(args[0]))
	value := strings.TrimSpace(args[1])

	cfg, err := loadConfigFromFlag()
	if err != nil {
		return formatConfigLoadError(err)
	}

	if err := applyConfigValue(cfg, key, value); err != nil {
		return err
	}

	path, err := configPath()
	if err != nil {
		return err
	}
	if err := cfg.Save(path); err != nil {
		return err
	}

	if key == "token" {
		value = maskToken(value)
	}
	return printStatus(cmd.Context(), map[string]string{
		"status": "updated",
		"key":    key,
		"value":  value,
	}, "Updated %s", key)
}

func runConfigUnset(cmd *cobra.Command, args []string) error {
	key := strings.ToLower(strings.TrimSpace(args[0]))

	cfg, err := loadConfigFromFlag()
	if err != nil {
		return formatConfigLoadError(err)
	}

	if err := clearConfigValue(cfg, key); err != nil {
		return err
	}

	path, err := configPath()
	if err != nil {
		return err
	}
	if err := cfg.Save(path); err != nil {
		return err
	}

	return printStatus(cmd.Context(), map[string]string{
		"status": "unset",
		"key":    key,
	}, "Unset %s", key)
}

func configOutput(cfg *config.Config) map[string]interface{} {
	out := map[string]interface{}{
		"token_set": cfg.Token != "",
	}
	for _, key := range supportedConfigKeys() {
		out[key] = configValue(cfg, key)
	}
	if cfg.PreviewLength != nil {
		out["preview_length"] = *cfg.PreviewLength
	}
	return out
}
