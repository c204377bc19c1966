package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/lexicon-labs/lexicon-cli/internal/api"
	"github.com/lexicon-labs/lexicon-cli/internal/config"
	"github.com/lexicon-labs/lexicon-cli/internal/output"
)

var (
	// Version is set at build time
	version = "dev"
	// Commit is set at build time
	commit = "none"
	// Date is set at build time
	date = "unknown"
)

// SetVersionInfo sets the version information from build flags.
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = v
	rootCmd.SetVersionTemplate(versionTemplate())
}

// Global flags.
var (
	apiURL      string
	apiToken    string
	outputFmt   string
	outputType  output.Format
	debug       bool
	configFile  string
	queryExpr   string
	queryFile   string
	errorFmt    string
	quietFlag   bool
	yesFlag     bool
	resultLimit int
	resultSort  string
	resultDesc  bool
	noCache     bool
	noColor     bool
)

var (
	// client is the shared API client
	client api.LexiconAPI
	// activeConfig is the config loaded for the running command
	activeConfig *config.Config
	logger       = slog.New(slog.NewTextHandler(io.Discard, nil))
)

var rootCmd = &cobra.Command{
	Use:   "lexicon",
	Short: "CLI for the legal document Q&A service",
	Long: `lexicon is a command-line interface for a legal document question
answering service.

Browse the section hierarchy of the legal corpus, ask one-off questions,
and hold conversations whose answers cite the sections they rely on.

Environment Variables:
  LEXICON_API_URL           Service base URL (default http://localhost:8000)
  LEXICON_API_TOKEN         API token for authentication
  LEXICON_KEYRING_BACKEND   Keyring backend (auto|keychain|file)
  LEXICON_KEYRING_PASSWORD  Password for the file keyring backend

A .env file in the working directory is loaded first and never overrides
variables already set.`,
	Version:       version,
	SilenceErrors: true,
}

func rootPersistentPreRunE(cmd *cobra.Command, args []string) error {
	cmd.SilenceErrors = true

	if err := loadDotEnv(""); err != nil {
		return err
	}

	skipConfigLoad := cmd.Name() == "config" || (cmd.Parent() != nil && cmd.Parent().Name() == "config")
	var cfg *config.Config
	if !skipConfigLoad {
		loadedCfg, err := loadConfigFromFlag()
		if err != nil {
			return formatConfigLoadError(err)
		}
		cfg = loadedCfg
	}
	activeConfig = cfg

	// Output format selection: --output > config > non-tty json > text
	formatStr := outputFmt
	if !flagChanged(cmd, "output") && !flagChanged(cmd, "format") && cfg != nil && strings.TrimSpace(cfg.OutputFormat) != "" {
		formatStr = strings.TrimSpace(cfg.OutputFormat)
	}
	if !flagChanged(cmd, "output") && !flagChanged(cmd, "format") && !isTerminal(cmd.OutOrStdout()) {
		formatStr = "json"
	}
	format, err := output.ParseFormat(formatStr)
	if err != nil {
		return err
	}
	outputType = format
	outputFmt = string(format)

	// jq query
	if queryExpr != "" && queryFile != "" {
		return fmt.Errorf("use only one of --query or --query-file")
	}
	if queryFile != "" {
		loaded, err := readInputSource(queryFile, cmd.InOrStdin())
		if err != nil {
			return err
		}
		queryExpr = loaded
	}

	// Default quiet mode for non-interactive structured output
	if !flagChanged(cmd, "quiet") && !isTerminal(cmd.OutOrStdout()) && output.IsStructured(outputType) {
		quietFlag = true
	}

	logger = newLogger(cmd.ErrOrStderr(), debug)

	ctx := cmd.Context()
	ctx = withIO(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx = output.WithFormat(ctx, outputType)
	ctx = output.WithQuery(ctx, queryExpr)
	ctx = output.WithYes(ctx, yesFlag)
	ctx = output.WithLimit(ctx, resultLimit)
	ctx = output.WithSort(ctx, resultSort, resultDesc)
	ctx = output.WithQuiet(ctx, quietFlag)
	ctx = WithErrorFormat(ctx, errorFmt)
	cmd.SetContext(ctx)
	rootCmd.SetContext(ctx)

	if err := validateErrorFormat(errorFmt); err != nil {
		return err
	}
	if effectiveErrorFormat(ctx) != "text" {
		cmd.SilenceUsage = true
	}

	// Skip client initialization for auth/config/help/completion commands.
	if cmd.Name() == "login" || cmd.Name() == "logout" || cmd.Name() == "status" ||
		cmd.Name() == "config" || cmd.Name() == "completion" || cmd.Name() == "help" ||
		cmd.Parent() != nil && cmd.Parent().Name() == "config" {
		return nil
	}

	baseURL, token := resolveCredentials(cmd, cfg)
	apiURL = baseURL
	apiToken = token
	logger.Debug("resolved service", "url", baseURL, "token_set", token != "", "cache", !noCache)

	client = newAPIClient(baseURL, token, cfg)
	return nil
}

// Execute runs the root command.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx, which is cancelled on
// interrupt by main.
func ExecuteContext(ctx context.Context) error {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printCommandError(rootCmd.Context(), err)
		return err
	}
	return nil
}

// GetClient returns the initialized API client.
func GetClient() api.LexiconAPI {
	return client
}

// GetOutputFormat returns the configured output format.
func GetOutputFormat() output.Format {
	if outputType != "" {
		return outputType
	}
	parsed, err := output.ParseFormat(outputFmt)
	if err != nil {
		return output.FormatText
	}
	return parsed
}

// GetOutputFormatString returns the output format as a string.
func GetOutputFormatString() string {
	if outputType != "" {
		return string(outputType)
	}
	return outputFmt
}

func versionTemplate() string {
	return fmt.Sprintf("lexicon version %s (commit: %s, built: %s)\n", version, commit, date)
}

func init() {
	rootCmd.PersistentPreRunE = rootPersistentPreRunE
	rootCmd.SetVersionTemplate(versionTemplate())

	// Global flags
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Service base URL (env: LEXICON_API_URL)")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", "", "API token (env: LEXICON_API_TOKEN)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "text", "Output format (text|json|ndjson|table|yaml)")
	rootCmd.PersistentFlags().StringVar(&outputFmt, "format", "text", "Alias for --output")
	rootCmd.PersistentFlags().StringVar(&queryExpr, "query", "", "jq expression to filter JSON output")
	rootCmd.PersistentFlags().StringVar(&queryFile, "query-file", "", "Read jq expression from file (use - for stdin)")
	rootCmd.PersistentFlags().StringVar(&errorFmt, "error-format", "auto", "Error output format (auto|text|json|yaml)")
	rootCmd.PersistentFlags().BoolVar(&quietFlag, "quiet", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().BoolVarP(&yesFlag, "yes", "y", false, "Skip confirmation prompts (for automation)")
	rootCmd.PersistentFlags().IntVar(&resultLimit, "result-limit", 0, "Limit number of results in output (0 = unlimited)")
	rootCmd.PersistentFlags().StringVar(&resultSort, "result-sort-by", "", "Sort output results by field")
	rootCmd.PersistentFlags().BoolVar(&resultDesc, "result-desc", false, "Sort output results in descending order")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Log requests to stderr")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: ~/.config/lexicon/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "Bypass the in-memory query cache")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

// plainOutput reports whether text output should skip ANSI styling.
func plainOutput(w io.Writer) bool {
	return noColor || envGet("NO_COLOR") != "" || !isTerminal(w)
}
