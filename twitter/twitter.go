package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dghubble/oauth1"
	"github.com/mattn/go-runewidth"
)

const defaultBaseURL = "https://api.twitter.com"

// Receipt identifies a published post.
type Receipt struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// URL returns a permalink for the post.
func (r *Receipt) URL() string {
	return "https://x.com/i/web/status/" + r.ID
}

// Credentials are the OAuth 1.0a user-context keys of the posting account.
type Credentials struct {
	APIKey            string
	APISecret         string
	AccessToken       string
	AccessTokenSecret string
}

// Client publishes posts through the X API v2.
type Client struct {
	config     *oauth1.Config
	token      *oauth1.Token
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a publisher signing requests with creds.
func NewClient(creds Credentials, opts ...Option) *Client {
	c := &Client{
		config:     oauth1.NewConfig(creds.APIKey, creds.APISecret),
		token:      oauth1.NewToken(creds.AccessToken, creds.AccessTokenSecret),
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Publish posts text and returns the created post.
func (c *Client) Publish(ctx context.Context, text string) (*Receipt, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/2/tweets", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// The signing client only inherits the transport, so carry the timeout over.
	signed := c.config.Client(context.WithValue(ctx, oauth1.HTTPClient, c.httpClient), c.token)
	signed.Timeout = c.httpClient.Timeout
	resp, err := signed.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, decodeError(resp)
	}

	var created struct {
		Data Receipt `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if created.Data.ID == "" {
		return nil, fmt.Errorf("response carries no post id")
	}

	c.logger.Info("published post", "post_id", created.Data.ID, "preview", runewidth.Truncate(text, 60, "..."))
	return &created.Data, nil
}

// APIError is a non-201 answer from the X API.
type APIError struct {
	StatusCode int
	Title      string `json:"title"`
	Detail     string `json:"detail"`
}

func (e *APIError) Error() string {
	switch {
	case e.Detail != "":
		return fmt.Sprintf("twitter: status %d: %s", e.StatusCode, e.Detail)
	case e.Title != "":
		return fmt.Sprintf("twitter: status %d: %s", e.StatusCode, e.Title)
	}
	return fmt.Sprintf("twitter: unexpected status %d", e.StatusCode)
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	json.Unmarshal(data, apiErr)
	return apiErr
}

// DryRun logs posts instead of publishing them.
type DryRun struct {
	logger *slog.Logger
}

// NewDryRun creates a publisher that never reaches the network.
func NewDryRun(logger *slog.Logger) *DryRun {
	if logger == nil {
		logger = slog.Default()
	}
	return &DryRun{logger: logger}
}

// Publish logs text and returns a synthetic receipt.
func (d *DryRun) Publish(ctx context.Context, text string) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.logger.Info("dry run: post not published", "text", text, "display_width", runewidth.StringWidth(text))
	return &Receipt{ID: "dry-run", Text: text}, nil
}
