package auth

import (
	"context"
	"crypto/rand"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/lexicon-labs/lexicon-cli/internal/api"
	"github.com/lexicon-labs/lexicon-cli/internal/secrets"
)

//go:embed templates/setup.html
var setupPageTemplate string

//go:embed templates/setup_success.html
var setupSuccessTemplate string

var (
	setupPage   = template.Must(template.New("setup").Parse(setupPageTemplate))
	successPage = template.Must(template.New("success").Parse(setupSuccessTemplate))
)

// ErrSetupCanceled is returned when the browser flow ends without saved credentials.
var ErrSetupCanceled = errors.New("setup canceled")

// SetupResult contains the result of a browser-based setup.
type SetupResult struct {
	APIURL string
	Token  string
}

// VerifyFunc checks a service URL and token pair.
type VerifyFunc func(ctx context.Context, baseURL, token string) error

// SetupServer handles the browser-based authentication setup flow.
type SetupServer struct {
	mu            sync.Mutex
	pendingResult *SetupResult
	shutdown      chan struct{}
	closeOnce     sync.Once

	csrfToken  string
	profile    string
	defaultURL string
	out        io.Writer
	open       func(string) error
	verify     VerifyFunc
	saveFunc   func(profile string, token secrets.Token) error
}

// SetupServerOption configures the setup server.
type SetupServerOption func(*SetupServer)

// WithSaveFunc sets the function that persists the token.
func WithSaveFunc(fn func(profile string, token secrets.Token) error) SetupServerOption {
	return func(s *SetupServer) {
		s.saveFunc = fn
	}
}

// WithVerifyFunc replaces the default token check.
func WithVerifyFunc(fn VerifyFunc) SetupServerOption {
	return func(s *SetupServer) {
		s.verify = fn
	}
}

// WithDefaultURL pre-fills the service URL field.
func WithDefaultURL(baseURL string) SetupServerOption {
	return func(s *SetupServer) {
		s.defaultURL = baseURL
	}
}

// WithOutput sets where instructions are printed.
func WithOutput(w io.Writer) SetupServerOption {
	return func(s *SetupServer) {
		s.out = w
	}
}

// WithBrowserOpener replaces OpenBrowser.
func WithBrowserOpener(fn func(string) error) SetupServerOption {
	return func(s *SetupServer) {
		s.open = fn
	}
}

// NewSetupServer creates a new setup server.
func NewSetupServer(profile string, opts ...SetupServerOption) (*SetupServer, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, fmt.Errorf("failed to generate CSRF token: %w", err)
	}

	s := &SetupServer{
		shutdown:   make(chan struct{}),
		csrfToken:  hex.EncodeToString(tokenBytes),
		profile:    profile,
		defaultURL: api.DefaultBaseURL,
		out:        io.Discard,
		open:       OpenBrowser,
		verify:     verifyWithClient,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func verifyWithClient(ctx context.Context, baseURL, token string) error {
	_, err := api.NewClient(baseURL, token).ListConversations(ctx)
	return err
}

// Handler returns the setup routes.
func (s *SetupServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleSetup)
	mux.HandleFunc("/validate", s.handleValidate)
	mux.HandleFunc("/submit", s.handleSubmit)
	mux.HandleFunc("/success", s.handleSuccess)
	mux.HandleFunc("/complete", s.handleComplete)
	return mux
}

// Start serves the setup page on a loopback port, opens the browser and
// waits until the page reports completion or ctx is done.
func (s *SetupServer) Start(ctx context.Context) (*SetupResult, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to start server: %w", err)
	}

	port := listener.Addr().(*net.TCPAddr).Port
	pageURL := fmt.Sprintf("http://127.0.0.1:%d", port)

	server := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		_ = server.Serve(listener)
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
		}
	}()

	fmt.Fprintf(s.out, "Open this URL in your browser to authenticate:\n  %s\n", pageURL)
	if err := s.open(pageURL); err != nil {
		fmt.Fprintf(s.out, "Could not open browser automatically: %v\n", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.shutdown:
		if result := s.result(); result != nil {
			return result, nil
		}
		return nil, ErrSetupCanceled
	}
}

func (s *SetupServer) result() *SetupResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingResult
}

func (s *SetupServer) handleSetup(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = setupPage.Execute(w, map[string]string{
		"CSRFToken":  s.csrfToken,
		"DefaultURL": s.defaultURL,
	})
}

type credentialsRequest struct {
	APIURL   string `json:"api_url"`
	APIToken string `json:"api_token"`
}

// readCredentials enforces POST and the CSRF header, then decodes and
// normalizes the submitted form. It writes the failure response itself.
func (s *SetupServer) readCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	var req credentialsRequest
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return req, false
	}
	if r.Header.Get("X-CSRF-Token") != s.csrfToken {
		http.Error(w, "Invalid CSRF token", http.StatusForbidden)
		return req, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeSetupJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "Invalid request body",
		})
		return req, false
	}

	req.APIURL = strings.TrimRight(strings.TrimSpace(req.APIURL), "/")
	if req.APIURL == "" {
		req.APIURL = s.defaultURL
	}
	req.APIToken = strings.TrimSpace(req.APIToken)
	if req.APIToken == "" {
		writeSetupJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"error":   "API token is required",
		})
		return req, false
	}
	return req, true
}

func (s *SetupServer) checkConnection(w http.ResponseWriter, r *http.Request, req credentialsRequest) bool {
	if err := s.verify(r.Context(), req.APIURL, req.APIToken); err != nil {
		writeSetupJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"error":   fmt.Sprintf("Connection failed: %v", err),
		})
		return false
	}
	return true
}

// handleValidate tests credentials without saving.
func (s *SetupServer) handleValidate(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readCredentials(w, r)
	if !ok || !s.checkConnection(w, r, req) {
		return
	}

	writeSetupJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Connection successful!",
		"api_url": req.APIURL,
	})
}

// handleSubmit saves credentials after validation.
func (s *SetupServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readCredentials(w, r)
	if !ok || !s.checkConnection(w, r, req) {
		return
	}

	if s.saveFunc != nil {
		tok := secrets.Token{
			Profile:   s.profile,
			APIToken:  req.APIToken,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.saveFunc(s.profile, tok); err != nil {
			writeSetupJSON(w, http.StatusOK, map[string]any{
				"success": false,
				"error":   fmt.Sprintf("Failed to save credentials: %v", err),
			})
			return
		}
	}

	s.mu.Lock()
	s.pendingResult = &SetupResult{APIURL: req.APIURL, Token: req.APIToken}
	s.mu.Unlock()

	writeSetupJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"api_url": req.APIURL,
	})
}

func (s *SetupServer) handleSuccess(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = successPage.Execute(w, map[string]string{
		"APIURL":    r.URL.Query().Get("api_url"),
		"CSRFToken": s.csrfToken,
	})
}

// handleComplete signals that setup is done.
func (s *SetupServer) handleComplete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.Header.Get("X-CSRF-Token") != s.csrfToken {
		http.Error(w, "Invalid CSRF token", http.StatusForbidden)
		return
	}

	s.closeOnce.Do(func() { close(s.shutdown) })
	writeSetupJSON(w, http.StatusOK, map[string]any{"success": true})
}

func writeSetupJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
