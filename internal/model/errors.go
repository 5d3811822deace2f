package model

import "errors"

// Errors that are rejected before any side effect is performed.
var (
	// ErrEmptyPrompt is returned when the request carries no usable text.
	ErrEmptyPrompt = errors.New("user_prompt must not be empty")

	// ErrServiceUnavailable is returned when no generation backend is configured.
	ErrServiceUnavailable = errors.New("image generation backend is not configured")
)
