package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"text/template"
	"time"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/time/rate"
)

const (
	defaultModel       = "gemini-2.0-flash"
	defaultBaseURL     = "https://generativelanguage.googleapis.com"
	defaultTemperature = 0.5
)

// Client completes prompt templates with the Gemini API.
type Client struct {
	apiKey      string
	model       string
	temperature float64
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithModel sets the Gemini model to use.
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *Client) {
		c.temperature = t
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRequestsPerMinute paces requests. Zero or less disables pacing.
func WithRequestsPerMinute(n int) Option {
	return func(c *Client) {
		if n <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a Gemini client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:      apiKey,
		model:       defaultModel,
		temperature: defaultTemperature,
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		limiter:     rate.NewLimiter(rate.Inf, 1),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete renders the template with vars and returns the model's answer.
func (c *Client) Complete(ctx context.Context, tmpl string, vars map[string]any) (string, error) {
	prompt, err := render(tmpl, vars)
	if err != nil {
		return "", err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("wait for rate limiter: %w", err)
	}

	reqBody := generateRequest{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: prompt}}},
		},
		GenerationConfig: &generationConfig{Temperature: &c.temperature},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	text, err := genResp.text()
	if err != nil {
		return "", err
	}

	c.logger.Debug("gemini completion",
		"model", c.model,
		"prompt_len", len(prompt),
		"output_len", len(text),
		"elapsed", time.Since(start))

	return norm.NFC.String(strings.TrimSpace(text)), nil
}

func render(tmpl string, vars map[string]any) (string, error) {
	t, err := template.New("prompt").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse prompt template: %w", err)
	}
	var sb strings.Builder
	if err := t.Execute(&sb, vars); err != nil {
		return "", fmt.Errorf("render prompt template: %w", err)
	}
	return sb.String(), nil
}

// APIError is a non-200 answer from the Gemini API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("gemini: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("gemini: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Gemini API types

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	Temperature *float64 `json:"temperature,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

func (r *generateResponse) text() (string, error) {
	if len(r.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	c := r.Candidates[0]
	if len(c.Content.Parts) == 0 {
		return "", fmt.Errorf("no parts in candidate (finish reason %q)", c.FinishReason)
	}

	var sb strings.Builder
	for _, p := range c.Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}
