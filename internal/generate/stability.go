package generate

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StabilityClient implements Client using the Stability AI text-to-image
// API. Stability returns raw image bytes, so the client writes each image
// into a local directory that the server exposes under /images/.
type StabilityClient struct {
	apiKey     string
	baseURL    string
	engine     string
	imageDir   string
	httpClient *http.Client
}

// StabilityOption configures the Stability client.
type StabilityOption func(*StabilityClient)

// WithStabilityEngine sets the engine id (default: stable-diffusion-xl-1024-v1-0).
func WithStabilityEngine(engine string) StabilityOption {
	return func(c *StabilityClient) { c.engine = engine }
}

// WithStabilityBaseURL overrides the API endpoint (default: https://api.stability.ai).
func WithStabilityBaseURL(url string) StabilityOption {
	return func(c *StabilityClient) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithStabilityTimeout bounds a single generation call (default: 60s).
func WithStabilityTimeout(d time.Duration) StabilityOption {
	return func(c *StabilityClient) { c.httpClient.Timeout = d }
}

// NewStabilityClient creates a Stability AI image-generation client that
// stores generated images under imageDir.
func NewStabilityClient(apiKey, imageDir string, opts ...StabilityOption) *StabilityClient {
	c := &StabilityClient{
		apiKey:   apiKey,
		baseURL:  "https://api.stability.ai",
		engine:   "stable-diffusion-xl-1024-v1-0",
		imageDir: imageDir,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type stabilityRequest struct {
	TextPrompts []stabilityPrompt `json:"text_prompts"`
	CfgScale    float64           `json:"cfg_scale"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	Samples     int               `json:"samples"`
}

type stabilityPrompt struct {
	Text string `json:"text"`
}

type stabilityResponse struct {
	Artifacts []struct {
		Base64       string `json:"base64"`
		FinishReason string `json:"finishReason"`
	} `json:"artifacts"`
	Message string `json:"message,omitempty"`
}

// apiError represents an HTTP-level provider error that may or may not be
// retryable.
type apiError struct {
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// isRetryable returns true for transient errors (rate limit, server errors).
func (e *apiError) isRetryable() bool {
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

// Generate requests a single 1024x1024 image. It retries once with backoff
// on transient failures; any terminal failure is returned as *Error.
func (c *StabilityClient) Generate(ctx context.Context, canonicalPrompt string) (*Result, error) {
	reqBody := stabilityRequest{
		TextPrompts: []stabilityPrompt{{Text: canonicalPrompt}},
		CfgScale:    7,
		Width:       1024,
		Height:      1024,
		Samples:     1,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &Error{Provider: "stability", Message: "marshal request: " + err.Error()}
	}

	const maxAttempts = 2
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		result, err := c.doRequest(ctx, body)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var ae *apiError
		if errors.As(err, &ae) && !ae.isRetryable() {
			return nil, &Error{Provider: "stability", Message: err.Error()}
		}

		if attempt < maxAttempts-1 {
			backoff := time.Duration(attempt+1) * 2 * time.Second
			select {
			case <-ctx.Done():
				return nil, &Error{Provider: "stability", Message: ctx.Err().Error()}
			case <-time.After(backoff):
			}
		}
	}
	return nil, &Error{Provider: "stability", Message: lastErr.Error()}
}

func (c *StabilityClient) doRequest(ctx context.Context, body []byte) (*Result, error) {
	url := fmt.Sprintf("%s/v1/generation/%s/text-to-image", c.baseURL, c.engine)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &apiError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var stabResp stabilityResponse
	if err := json.Unmarshal(respBody, &stabResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(stabResp.Artifacts) == 0 {
		return nil, fmt.Errorf("no artifacts in response")
	}

	imgURL, err := c.saveImage(stabResp.Artifacts[0].Base64)
	if err != nil {
		return nil, err
	}
	return &Result{ImageURL: imgURL}, nil
}

// saveImage decodes the artifact bytes into the image directory and returns
// the path the server exposes it under.
func (c *StabilityClient) saveImage(b64 string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	if err := os.MkdirAll(c.imageDir, 0o755); err != nil {
		return "", fmt.Errorf("create image dir: %w", err)
	}
	name := uuid.New().String() + ".png"
	if err := os.WriteFile(filepath.Join(c.imageDir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return "/images/" + name, nil
}
