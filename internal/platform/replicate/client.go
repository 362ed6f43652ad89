package replicate

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
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

const defaultBaseURL = "https://api.replicate.com/v1"

// DepthToImageVersion is the pinned ControlNet depth-to-image model. The
// model's first output is a depth-map visualization, not a render; callers
// are expected to discard it.
const DepthToImageVersion = "jagilley/controlnet-depth2img:922c7bb67b87ec32cbc2fd11b1d5f94f0ba4f5519c4dbd02856376444127cc60"

// PredictionInput is the input block for a depth-conditioned generation run.
type PredictionInput struct {
	Image             string `json:"image"` // data:<mime>;base64,... URL
	Prompt            string `json:"prompt"`
	NegativePrompt    string `json:"negative_prompt,omitempty"`
	NumInferenceSteps int    `json:"num_inference_steps,omitempty"`
}

// Client creates predictions and blocks until they reach a terminal state.
type Client interface {
	RunDepthToImage(ctx context.Context, input PredictionInput) ([]string, error)
}

type Config struct {
	APIToken string
	BaseURL  string
	// Timeout bounds the whole prediction, creation plus polling.
	Timeout      time.Duration
	PollInterval time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		APIToken:     envutil.Str("REPLICATE_API_TOKEN", ""),
		BaseURL:      envutil.Str("REPLICATE_BASE_URL", defaultBaseURL),
		Timeout:      time.Duration(envutil.Int("REPLICATE_TIMEOUT_SECONDS", 120)) * time.Second,
		PollInterval: time.Duration(envutil.Int("REPLICATE_POLL_INTERVAL_SECONDS", 2)) * time.Second,
	}
}

type client struct {
	log          *logger.Logger
	baseURL      string
	apiToken     string
	httpClient   *http.Client
	timeout      time.Duration
	pollInterval time.Duration
}

func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	token := strings.TrimSpace(cfg.APIToken)
	if token == "" {
		return nil, fmt.Errorf("missing Replicate API token")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &client{
		log:          log.With("service", "ReplicateClient"),
		baseURL:      baseURL,
		apiToken:     token,
		httpClient:   &http.Client{Timeout: 90 * time.Second},
		timeout:      timeout,
		pollInterval: pollInterval,
	}, nil
}

// DataURL encodes image bytes for the prediction input.
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
	return fmt.Sprintf("replicate http %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error"`
}

func (p prediction) terminal() bool {
	switch p.Status {
	case "succeeded", "failed", "canceled":
		return true
	default:
		return false
	}
}

func (c *client) RunDepthToImage(ctx context.Context, input PredictionInput) ([]string, error) {
	ctx = ctxutil.Default(ctx)
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body := map[string]any{
		"version": strings.SplitN(DepthToImageVersion, ":", 2)[1],
		"input":   input,
	}

	// Prefer: wait holds the connection open until the prediction finishes
	// or the server gives up, in which case we fall back to polling.
	var pred prediction
	if err := c.do(ctx, "POST", "/predictions", body, map[string]string{"Prefer": "wait=60"}, &pred); err != nil {
		return nil, err
	}

	for !pred.terminal() {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("prediction %s timed out: %w", pred.ID, ctx.Err())
		case <-time.After(c.pollInterval):
		}
		if err := c.do(ctx, "GET", "/predictions/"+pred.ID, nil, nil, &pred); err != nil {
			return nil, err
		}
	}

	switch pred.Status {
	case "succeeded":
		return decodeOutput(pred.Output)
	case "canceled":
		return nil, fmt.Errorf("prediction %s canceled", pred.ID)
	default:
		msg := strings.TrimSpace(pred.Error)
		if msg == "" {
			msg = "unknown model error"
		}
		return nil, fmt.Errorf("prediction %s failed: %s", pred.ID, msg)
	}
}

// decodeOutput tolerates both a list of URLs and a single URL string.
func decodeOutput(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return []string{}, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if strings.TrimSpace(single) == "" {
			return []string{}, nil
		}
		return []string{single}, nil
	}
	return nil, fmt.Errorf("unexpected prediction output shape: %s", string(raw))
}

func (c *client) doOnce(ctx context.Context, method, path string, body any, headers map[string]string) (*http.Response, []byte, error) {
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
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

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

func (c *client) do(ctx context.Context, method, path string, body any, headers map[string]string, out any) error {
	const maxAttempts = 3
	backoff := 1 * time.Second

	for attempt := 1; ; attempt++ {
		resp, raw, err := c.doOnce(ctx, method, path, body, headers)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("replicate decode error: %w; raw=%s", uErr, string(raw))
			}
			return nil
		}

		// Creation is never retried so a slow model run cannot be started
		// twice; only status polls retry on transient failures.
		if method != "GET" || attempt == maxAttempts || !httpx.IsRetryableError(err) || ctx.Err() != nil {
			return err
		}

		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		c.log.Warn("Replicate poll retrying",
			"path", path,
			"attempt", attempt,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		time.Sleep(sleepFor)
		backoff *= 2
	}
}
