package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultBaseURL is where the service listens in a local setup.
	DefaultBaseURL = "http://localhost:8000"
	// DefaultTimeout is the default HTTP client timeout.
	DefaultTimeout = 60 * time.Second
	// MaxRetries for rate limit and gateway errors on reads.
	MaxRetries = 3
	// InitialBackoff for read retries.
	InitialBackoff = 500 * time.Millisecond

	requestIDHeader = "X-Request-ID"
)

// Client is the HTTP client for the legal Q&A service.
type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
	logger     *slog.Logger
	maxRetries int
	backoff    time.Duration
	requestID  func() string
}

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets a custom timeout for the HTTP client.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRetry sets the retry budget for reads. A negative count disables retries.
func WithRetry(maxRetries int, initialBackoff time.Duration) ClientOption {
	return func(c *Client) {
		if maxRetries < 0 {
			maxRetries = 0
		}
		c.maxRetries = maxRetries
		if initialBackoff > 0 {
			c.backoff = initialBackoff
		}
	}
}

// NewClient creates a client for the service at baseURL. The token is
// optional; when empty no Authorization header is sent.
func NewClient(baseURL, apiToken string, opts ...ClientOption) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    baseURL,
		apiToken:   strings.TrimSpace(apiToken),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxRetries: MaxRetries,
		backoff:    InitialBackoff,
		requestID:  uuid.NewString,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the service URL the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do performs a single request and decodes a JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	requestID := c.requestID()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed",
			"method", method,
			"path", path,
			"request_id", requestID,
			"error", err,
		)
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("api request",
		"method", method,
		"path", path,
		"request_id", requestID,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFromResponse(resp.StatusCode, respBody)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// get performs a GET with retry on rate limits and gateway errors.
func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	backoff := c.backoff

	var err error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		err = c.do(ctx, http.MethodGet, path, query, nil, out)
		if err == nil || !retryable(err) {
			return err
		}

		if attempt == c.maxRetries {
			break
		}
		c.logger.Warn("retrying request",
			"path", path,
			"attempt", attempt+1,
			"backoff", backoff,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	var rateErr RateLimitError
	if errors.As(err, &rateErr) {
		return RateLimitError{Message: "rate limit exceeded after retries"}
	}
	return err
}

func retryable(err error) bool {
	var rateErr RateLimitError
	if errors.As(err, &rateErr) {
		return true
	}
	var apiErr APIError
	return errors.As(err, &apiErr) && apiErr.Temporary()
}

func segment(s string) string {
	return url.PathEscape(strings.TrimSpace(s))
}

func requireID(kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return ValidationError{Message: fmt.Sprintf("%s is required", kind)}
	}
	return nil
}

// Health reports service status.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.get(ctx, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListDocuments returns every section summary.
func (c *Client) ListDocuments(ctx context.Context) (*DocumentListResponse, error) {
	var out DocumentListResponse
	if err := c.get(ctx, "/documents", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetDocument returns a document by id.
func (c *Client) GetDocument(ctx context.Context, id string) (*DocumentDetail, error) {
	if err := requireID("document id", id); err != nil {
		return nil, err
	}
	var out DocumentDetail
	if err := c.get(ctx, "/documents/"+segment(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetDocumentBySection returns a document by its dot-key.
func (c *Client) GetDocumentBySection(ctx context.Context, sectionNumber string) (*DocumentDetail, error) {
	if err := requireID("section number", sectionNumber); err != nil {
		return nil, err
	}
	var out DocumentDetail
	if err := c.get(ctx, "/documents/section/"+segment(sectionNumber), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Query asks a one-off question.
func (c *Client) Query(ctx context.Context, q string) (*QueryOutput, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, ValidationError{Message: "query cannot be empty"}
	}
	var out QueryOutput
	if err := c.get(ctx, "/query", url.Values{"q": {q}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListConversations returns all conversations.
func (c *Client) ListConversations(ctx context.Context) (*ConversationList, error) {
	var out ConversationList
	if err := c.get(ctx, "/conversations", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateConversation starts a new conversation.
func (c *Client) CreateConversation(ctx context.Context, title string) (*Conversation, error) {
	req := CreateConversationRequest{Title: strings.TrimSpace(title)}
	if req.Title == "" {
		req.Title = DefaultConversationTitle
	}
	if err := req.Validate(); err != nil {
		return nil, ValidationError{Message: err.Error()}
	}
	var out Conversation
	if err := c.do(ctx, http.MethodPost, "/conversations", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetConversation returns a conversation with its messages.
func (c *Client) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	if err := requireID("conversation id", id); err != nil {
		return nil, err
	}
	var out Conversation
	if err := c.get(ctx, "/conversations/"+segment(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendMessage posts a user message and returns the assistant reply.
func (c *Client) SendMessage(ctx context.Context, conversationID, message string) (*Message, error) {
	if err := requireID("conversation id", conversationID); err != nil {
		return nil, err
	}
	req := SendMessageRequest{Message: message}
	if err := req.Validate(); err != nil {
		return nil, ValidationError{Message: err.Error()}
	}
	var out Message
	path := "/conversations/" + segment(conversationID) + "/messages"
	if err := c.do(ctx, http.MethodPost, path, nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteConversation removes a conversation.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	if err := requireID("conversation id", id); err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, "/conversations/"+segment(id), nil, nil, nil)
}

// RenameConversation changes a conversation's title.
func (c *Client) RenameConversation(ctx context.Context, id, title string) (*Conversation, error) {
	if err := requireID("conversation id", id); err != nil {
		return nil, err
	}
	req := CreateConversationRequest{Title: strings.TrimSpace(title)}
	if err := req.Validate(); err != nil {
		return nil, ValidationError{Message: err.Error()}
	}
	var out Conversation
	path := "/conversations/" + segment(id) + "/title"
	if err := c.do(ctx, http.MethodPatch, path, url.Values{"title": {req.Title}}, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ensure Client implements LexiconAPI at compile time.
var _ LexiconAPI = (*Client)(nil)
