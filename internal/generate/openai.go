package generate

import (
	"context"
	"errors"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClient implements Client using the OpenAI Images API (DALL·E).
type OpenAIClient struct {
	client *openai.Client
	model  openai.ImageModel
}

// OpenAIOption configures the OpenAI client.
type OpenAIOption func(*openAIConfig)

type openAIConfig struct {
	model   openai.ImageModel
	baseURL string
	timeout time.Duration
}

// WithOpenAIModel sets the image model (default: dall-e-3).
func WithOpenAIModel(model string) OpenAIOption {
	return func(c *openAIConfig) { c.model = openai.ImageModel(model) }
}

// WithOpenAIBaseURL overrides the API endpoint, for OpenAI-compatible
// services and for tests.
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(c *openAIConfig) { c.baseURL = url }
}

// WithOpenAITimeout bounds a single generation call.
func WithOpenAITimeout(d time.Duration) OpenAIOption {
	return func(c *openAIConfig) { c.timeout = d }
}

// NewOpenAIClient creates an image-generation client for the OpenAI API.
func NewOpenAIClient(apiKey string, opts ...OpenAIOption) *OpenAIClient {
	cfg := &openAIConfig{model: openai.ImageModelDallE3}
	for _, opt := range opts {
		opt(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(cfg.timeout))
	}
	client := openai.NewClient(reqOpts...)

	return &OpenAIClient{client: &client, model: cfg.model}
}

// Generate requests a single 1024x1024 image for the canonical prompt and
// returns its URL together with the provider's revised prompt.
func (c *OpenAIClient) Generate(ctx context.Context, canonicalPrompt string) (*Result, error) {
	resp, err := c.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         canonicalPrompt,
		Model:          c.model,
		N:              openai.Int(1),
		Size:           openai.ImageGenerateParamsSize1024x1024,
		ResponseFormat: openai.ImageGenerateParamsResponseFormatURL,
	})
	if err != nil {
		var apierr *openai.Error
		if errors.As(err, &apierr) {
			return nil, &Error{Provider: "openai", Message: apierr.Message}
		}
		return nil, &Error{Provider: "openai", Message: err.Error()}
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return nil, &Error{Provider: "openai", Message: "no image in response"}
	}

	img := resp.Data[0]
	return &Result{ImageURL: img.URL, Description: img.RevisedPrompt}, nil
}
