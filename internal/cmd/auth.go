package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/lexicon-labs/lexicon-cli/internal/api"
	"github.com/lexicon-labs/lexicon-cli/internal/auth"
	"github.com/lexicon-labs/lexicon-cli/internal/secrets"
)

// defaultProfile is the profile name used for credentials.
const defaultProfile = "default"

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage authentication credentials",
	Long: `Manage the API token used to talk to the service.

The token is stored in your system keychain (macOS Keychain, Windows
Credential Manager, Secret Service, or an encrypted file on Linux).

Examples:
  lexicon auth login --token YOUR_API_TOKEN
  lexicon auth login  # Prompt for the token
  lexicon auth login --browser
  lexicon auth status --verify
  lexicon auth logout`,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the API token",
	Long: `Store the API token in the system keychain.

The token is taken from --token, then LEXICON_API_TOKEN, then an
interactive prompt. It is checked against the service before it is
stored; an authentication failure aborts the login.

With --browser a local page is opened where the service URL and token
can be entered and tested.

Examples:
  lexicon auth login
  lexicon auth login --browser
  lexicon auth login --token TOKEN --api-url https://lexicon.example.com`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored token",
	RunE:  runLogout,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current authentication status",
	Long: `Display whether a token is stored and, with --verify, whether the
service accepts it.

Examples:
  lexicon auth status
  lexicon auth status --verify`,
	RunE: runStatus,
}

var (
	verifyAuth   bool
	loginBrowser bool
)

func init() {
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(statusCmd)

	rootCmd.AddCommand(authCmd)

	loginCmd.Flags().BoolVar(&loginBrowser, "browser", false, "Enter credentials in a local browser page")
	statusCmd.Flags().BoolVar(&verifyAuth, "verify", false, "Verify the token with the service")
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := tokenStore()
	if err != nil {
		return err
	}

	if loginBrowser {
		return runBrowserLogin(cmd, store)
	}

	structured := structuredOutputRequested()
	errOut := stderrFromContext(ctx)

	token := ""
	if flagChanged(cmd, "token") {
		token = strings.TrimSpace(apiToken)
	}
	if token == "" {
		token = strings.TrimSpace(envGet(envAPIToken))
	}
	if token == "" {
		token, err = promptSecret(ctx, "Enter API token: ")
		if err != nil {
			return fmt.Errorf("failed to read token: %w", err)
		}
	}
	if token == "" {
		return api.ValidationError{Message: "API token is required"}
	}

	baseURL, _ := resolveCredentials(cmd, activeConfig)

	if !structured {
		fmt.Fprintln(errOut, "Verifying token...")
	}
	verified, err := verifyToken(ctx, baseURL, token)
	if err != nil {
		var authErr api.AuthenticationError
		if errors.As(err, &authErr) {
			return fmt.Errorf("authentication failed: %w", err)
		}
		if !structured {
			fmt.Fprintf(errOut, "Warning: could not verify token: %v\n", err)
			fmt.Fprintln(errOut, "Storing it anyway.")
		}
	}

	tok := secrets.Token{
		Profile:   defaultProfile,
		APIToken:  token,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.SetToken(defaultProfile, tok); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	if structured {
		return printResult(ctx, map[string]interface{}{
			"status":   "authenticated",
			"api_url":  baseURL,
			"verified": verified,
		})
	}

	out := stdoutFromContext(ctx)
	fmt.Fprintln(out, "Authenticated successfully!")
	fmt.Fprintf(out, "Service: %s\n", baseURL)
	fmt.Fprintln(out, "You can now use lexicon commands without --token.")
	return nil
}

func runBrowserLogin(cmd *cobra.Command, store secrets.Store) error {
	ctx := cmd.Context()
	baseURL, _ := resolveCredentials(cmd, activeConfig)

	server, err := auth.NewSetupServer(defaultProfile,
		auth.WithDefaultURL(baseURL),
		auth.WithOutput(stderrFromContext(ctx)),
		auth.WithBrowserOpener(openBrowser),
		auth.WithVerifyFunc(func(ctx context.Context, baseURL, token string) error {
			_, err := verifyToken(ctx, baseURL, token)
			return err
		}),
		auth.WithSaveFunc(store.SetToken),
	)
	if err != nil {
		return err
	}

	result, err := server.Start(ctx)
	if err != nil {
		return err
	}

	if result.APIURL != baseURL {
		if err := saveAPIURL(result.APIURL); err != nil {
			return fmt.Errorf("token stored but saving api_url failed: %w", err)
		}
	}
	return printStatus(ctx, map[string]string{
		"status":  "authenticated",
		"api_url": result.APIURL,
	}, "Authenticated successfully against %s", result.APIURL)
}

// saveAPIURL records the service URL chosen in the browser so later
// commands reach the same service.
func saveAPIURL(baseURL string) error {
	cfg := activeConfig
	if cfg == nil {
		loaded, err := loadConfigFromFlag()
		if err != nil {
			return formatConfigLoadError(err)
		}
		cfg = loaded
	}
	cfg.APIURL = baseURL

	path, err := configPath()
	if err != nil {
		return err
	}
	return cfg.Save(path)
}

// verifyToken makes an authenticated request with a fresh, uncached client.
func verifyToken(ctx context.Context, baseURL, token string) (bool, error) {
	testClient := newClientFunc(baseURL, token, clientOptionsFromConfig(activeConfig)...)
	if _, err := testClient.ListConversations(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	store, err := tokenStore()
	if err != nil {
		return err
	}

	if err := store.DeleteToken(defaultProfile); err != nil && !errors.Is(err, secrets.ErrNotFound) {
		return fmt.Errorf("failed to remove credentials: %w", err)
	}

	return printStatus(cmd.Context(), map[string]string{"status": "logged_out"},
		"Logged out. The token has been removed from the system keychain.")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := tokenStore()
	if err != nil {
		return err
	}

	structured := structuredOutputRequested()
	out := stdoutFromContext(ctx)

	tok, err := store.GetToken(defaultProfile)
	if err != nil {
		if !errors.Is(err, secrets.ErrNotFound) {
			return fmt.Errorf("failed to read credentials: %w", err)
		}
		if structured {
			return printResult(ctx, map[string]interface{}{"authenticated": false})
		}
		fmt.Fprintln(out, "Status: Not authenticated")
		fmt.Fprintln(out, "\nRun 'lexicon auth login' to authenticate.")
		return nil
	}

	result := map[string]interface{}{
		"authenticated": true,
		"profile":       tok.Profile,
		"token_preview": maskToken(tok.APIToken),
	}
	if !tok.CreatedAt.IsZero() {
		result["authenticated_at"] = tok.CreatedAt.Format(time.RFC3339)
	}

	if verifyAuth {
		baseURL, _ := resolveCredentials(cmd, activeConfig)
		result["api_url"] = baseURL

		verified, verifyErr := verifyToken(ctx, baseURL, tok.APIToken)
		result["verified"] = verified
		if verifyErr != nil {
			result["verify_error"] = verifyErr.Error()
		}
	}

	if structured {
		return printResult(ctx, result)
	}

	fmt.Fprintln(out, "Status: Authenticated")
	fmt.Fprintf(out, "Profile: %s\n", tok.Profile)
	if at, ok := result["authenticated_at"]; ok {
		fmt.Fprintf(out, "Authenticated at: %s\n", at)
	}
	fmt.Fprintf(out, "Token: %s\n", maskToken(tok.APIToken))
	if verifyAuth {
		if msg, failed := result["verify_error"]; failed {
			fmt.Fprintf(out, "Verification: FAILED - %s\n", msg)
		} else {
			fmt.Fprintln(out, "Verification: OK - Token is valid")
		}
	}
	return nil
}

// promptSecret prompts for a secret input (no echo).
func promptSecret(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(stderrFromContext(ctx), prompt)

	in := stdinFromContext(ctx)
	if file, ok := in.(*os.File); ok {
		if term.IsTerminal(int(file.Fd())) {
			password, err := term.ReadPassword(int(file.Fd()))
			fmt.Fprintln(stderrFromContext(ctx))
			if err != nil {
				return "", err
			}
			return strings.TrimSpace(string(password)), nil
		}
	}

	// Piped input
	reader := bufio.NewReader(in)
	input, err := reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && input != "") {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// maskToken masks a token for display, showing only first and last 4 characters.
func maskToken(token string) string {
	if len(token) <= 12 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
