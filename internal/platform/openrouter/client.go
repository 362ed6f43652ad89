package openrouter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/archvision/archvision-backend/internal/platform/ctxutil"
	"github.com/archvision/archvision-backend/internal/platform/envutil"
	"github.com/archvision/archvision-backend/internal/platform/httpx"
	"github.com/archvision/archvision-backend/internal/platform/logger"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"

	// OpenRouter uses the referer/title pair for app attribution.
	refererHeader = "https://archvision.local"
	titleHeader   = "ArchVision Visual Search"
)

// ImageInput is the multimodal image part of a chat message. ImageURL may be
// an https URL or a data:<mime>;base64,... URL.
type ImageInput struct {
	ImageURL string
	Detail   string // "low" | "high"
}

// Client is a chat-completions client against the OpenRouter API.
type Client interface {
	// CompleteWithImage sends one user turn containing prompt text plus an
	// image and returns the model's text reply.
	CompleteWithImage(ctx context.Context, model string, prompt string, image ImageInput) (string, error)
}

type Config struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

func ConfigFromEnv() Config {
	timeout := time.Duration(envutil.Int("OPENROUTER_TIMEOUT_SECONDS", 30)) * time.Second
	return Config{
		APIKey:  envutil.Str("OPENROUTER_API_KEY", ""),
		BaseURL: envutil.Str("OPENROUTER_BASE_URL", defaultBaseURL),
		Timeout: timeout,
		// Failed calls are not retried against the same model by default;
		// model-list fallback is the caller's job.
		MaxRetries: envutil.Int("OPENROUTER_MAX_RETRIES", 0),
	}
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
}

func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("missing OpenRouter API key")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &client{
		log:        log.With("service", "OpenRouterClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: cfg.MaxRetries,
	}, nil
}

// DataURL encodes image bytes as a base64 data URL suitable for ImageInput.
func DataURL(mimeType string, data []byte) string {
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// HTTPError is a non-2xx reply from the API.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("openrouter http %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// IsNotFound reports whether err is an HTTP 404, which for chat completions
// means the requested model identifier no longer exists upstream.
func IsNotFound(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.StatusCode == http.StatusNotFound
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *client) CompleteWithImage(ctx context.Context, model string, prompt string, image ImageInput) (string, error) {
	if strings.TrimSpace(model) == "" {
		return "", fmt.Errorf("model required")
	}
	imageURL := strings.TrimSpace(image.ImageURL)
	if imageURL == "" {
		return "", fmt.Errorf("image required")
	}

	imagePart := map[string]any{"url": imageURL}
	if strings.TrimSpace(image.Detail) != "" {
		imagePart["detail"] = strings.TrimSpace(image.Detail)
	}
	content := []map[string]any{
		{"type": "text", "text": prompt},
		{"type": "image_url", "image_url": imagePart},
	}

	req := chatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: content}},
		MaxTokens:   1000,
		Temperature: 0.1,
	}

	var resp chatResponse
	if err := c.do(ctx, "POST", "/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in completion response")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("empty completion content")
	}
	return text, nil
}

func (c *client) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("HTTP-Referer", refererHeader)
	req.Header.Set("X-Title", titleHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *client) do(ctx context.Context, method, path string, body any, out any) error {
	ctx = ctxutil.Default(ctx)
	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("openrouter decode error: %w; raw=%s", uErr, string(raw))
			}
			return nil
		}

		if attempt == c.maxRetries || !httpx.IsRetryableError(err) {
			return err
		}

		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		c.log.Warn("OpenRouter request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		time.Sleep(sleepFor)
		backoff *= 2
	}

	return fmt.Errorf("unreachable retry loop")
}
