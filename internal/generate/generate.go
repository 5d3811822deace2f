// Package generate adapts external image-generation backends. A call can
// take multiple seconds; callers treat it as a blocking, cancellable unit of
// work and never retry a terminal failure (transient retries live inside the
// provider clients).
package generate

import "context"

// Result is the outcome of one successful generation call: exactly one
// artifact per request. Description carries the provider's revised or echoed
// prompt when the backend supplies one.
type Result struct {
	ImageURL    string
	Description string
}

// Client abstracts the image-generation backend.
type Client interface {
	Generate(ctx context.Context, canonicalPrompt string) (*Result, error)
}

// Error is a terminal generation failure carrying the upstream provider's
// message for logging and for the client-facing error detail.
type Error struct {
	Provider string
	Message  string
}

func (e *Error) Error() string {
	return e.Provider + ": " + e.Message
}
