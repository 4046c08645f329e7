package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultBaseURL    = "https://api.notion.com"
	defaultAPIVersion = "2022-06-28"
	pageSize          = 100
)

// Client provides access to the Notion API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	apiVersion string
	expander   Expander
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

// WithAPIVersion sets the Notion-Version header.
func WithAPIVersion(v string) Option {
	return func(c *Client) {
		c.apiVersion = v
	}
}

// WithExpander enables inlining the text behind bookmark blocks.
func WithExpander(e Expander) Option {
	return func(c *Client) {
		c.expander = e
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a new Notion API client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		apiVersion: defaultAPIVersion,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Query selects the pages of a database eligible for posting.
type Query struct {
	DatabaseID string
	// FilterProperty is a checkbox property that must be ticked.
	FilterProperty string
	// SortProperty is the created-time property used for ascending order.
	SortProperty string
	Since        time.Time
}

// QueryDatabase returns every page matching q, following pagination.
func (c *Client) QueryDatabase(ctx context.Context, q Query) ([]Page, error) {
	body := queryRequest{
		Filter: filter{
			And: []condition{
				{Property: q.FilterProperty, Checkbox: &checkboxCondition{Equals: true}},
				{Timestamp: "created_time", CreatedTime: &dateCondition{OnOrAfter: q.Since.UTC().Format(time.RFC3339)}},
			},
		},
		PageSize: pageSize,
	}
	if q.SortProperty != "" {
		body.Sorts = []sortSpec{{Property: q.SortProperty, Direction: "ascending"}}
	}

	endpoint := fmt.Sprintf("%s/v1/databases/%s/query", c.baseURL, q.DatabaseID)

	var pages []Page
	for {
		var resp queryResponse
		if err := c.do(ctx, http.MethodPost, endpoint, body, &resp); err != nil {
			return nil, fmt.Errorf("query database: %w", err)
		}
		pages = append(pages, resp.Results...)

		if !resp.HasMore || resp.NextCursor == "" {
			break
		}
		body.StartCursor = resp.NextCursor
	}

	c.logger.Info("queried database", "database_id", q.DatabaseID, "pages", len(pages))
	return pages, nil
}

// blockChildren returns every direct child of a block.
func (c *Client) blockChildren(ctx context.Context, blockID string) ([]Block, error) {
	var blocks []Block
	cursor := ""
	for {
		endpoint := fmt.Sprintf("%s/v1/blocks/%s/children?page_size=%d", c.baseURL, blockID, pageSize)
		if cursor != "" {
			endpoint += "&start_cursor=" + url.QueryEscape(cursor)
		}

		var resp childrenResponse
		if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
			return nil, fmt.Errorf("fetch children of %s: %w", blockID, err)
		}
		blocks = append(blocks, resp.Results...)

		if !resp.HasMore || resp.NextCursor == "" {
			return blocks, nil
		}
		cursor = resp.NextCursor
	}
}

func (c *Client) do(ctx context.Context, method, endpoint string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Notion-Version", c.apiVersion)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(apiErr)
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// APIError is an error answer from the Notion API.
type APIError struct {
	StatusCode int    `json:"status"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("notion: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("notion: %s (status %d): %s", e.Code, e.StatusCode, e.Message)
}
