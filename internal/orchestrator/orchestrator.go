// Package orchestrator composes the end-to-end request flow: prompt
// engineering, cache lookup, the external generation call, cache population,
// and scheduling of the background history writes.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/inkgen/inkgen/internal/cache"
	"github.com/inkgen/inkgen/internal/generate"
	"github.com/inkgen/inkgen/internal/history"
	"github.com/inkgen/inkgen/internal/model"
	"github.com/inkgen/inkgen/internal/persist"
	"github.com/inkgen/inkgen/internal/prompt"
)

// defaultCacheTTL is how long a successful generation is served from cache.
const defaultCacheTTL = 24 * time.Hour

// cachedMarker prefixes the logged text of assistant turns served from
// cache, so history distinguishes cache-derived answers from fresh ones.
// The client-facing payload is unaffected.
const cachedMarker = "[served from cache] "

// Orchestrator handles each request as an independent unit of work. It holds
// no per-request mutable state; the cache and the history log are the only
// shared resources. Two concurrent identical misses may both call the
// generation backend — that wastes cost but corrupts nothing, and avoiding
// it would need a single-flight layer this workload does not justify.
type Orchestrator struct {
	gen     generate.Client
	cache   cache.Store
	history history.Log
	queue   *persist.Queue

	cacheTTL        time.Duration
	asyncCacheWrite bool
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithCacheTTL overrides the cache entry lifetime (default: 24h).
func WithCacheTTL(ttl time.Duration) Option {
	return func(o *Orchestrator) { o.cacheTTL = ttl }
}

// WithAsyncCacheWrite defers cache population to the persistence queue
// instead of writing before the response. The default is the synchronous
// pre-response write: it is cheap and keeps the hit/miss race window small.
func WithAsyncCacheWrite(async bool) Option {
	return func(o *Orchestrator) { o.asyncCacheWrite = async }
}

// New creates an orchestrator with the given collaborators.
func New(gen generate.Client, c cache.Store, h history.Log, q *persist.Queue, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gen:      gen,
		cache:    c,
		history:  h,
		queue:    q,
		cacheTTL: defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Result is the client-facing outcome of one request.
type Result struct {
	Text             string
	ImageURL         string
	EngineeredPrompt string
	Cached           bool
}

// Handle runs one request through the pipeline.
//
// Cache hits return immediately and log their assistant turn in the
// background. On a miss, the user's turn is recorded synchronously before
// the long external call, so a crash mid-call still leaves a coherent
// partial history: a user turn with no matching assistant turn is a valid
// state, an orphaned assistant turn is not.
func (o *Orchestrator) Handle(ctx context.Context, userPrompt string) (*Result, error) {
	raw := strings.TrimSpace(userPrompt)
	if raw == "" {
		return nil, model.ErrEmptyPrompt
	}
	if o.gen == nil {
		return nil, model.ErrServiceUnavailable
	}

	canonical := prompt.Engineer(raw)
	key := prompt.Fingerprint(canonical)

	if entry, ok := o.cache.Lookup(ctx, key); ok {
		imageURL := entry.ImageURL
		o.appendAssistantAsync("history append (cache hit)", cachedMarker+entry.Text, &imageURL, canonical)
		return &Result{
			Text:             entry.Text,
			ImageURL:         entry.ImageURL,
			EngineeredPrompt: canonical,
			Cached:           true,
		}, nil
	}

	// Persistence failures never abort the request; the miss path continues
	// even if the user turn could not be recorded.
	if _, err := o.history.Append(ctx, model.NewUserTurn(raw)); err != nil {
		slog.Warn("user turn append failed", "error", err)
	}

	genResult, err := o.gen.Generate(ctx, canonical)
	if err != nil {
		// Record the failure synchronously: a failed turn must not be lost
		// to a background task the process might not live long enough to run.
		failed := model.NewAssistantTurn("Image generation failed: "+err.Error(), nil, canonical)
		if _, aerr := o.history.Append(ctx, failed); aerr != nil {
			slog.Warn("failed assistant turn append failed", "error", aerr)
		}
		return nil, err
	}

	text := genResult.Description
	if text == "" {
		text = fmt.Sprintf("Here is your custom tattoo design for %q.", raw)
	}

	entry := cache.Entry{Text: text, ImageURL: genResult.ImageURL}
	if o.asyncCacheWrite {
		ttl := o.cacheTTL
		o.queue.Enqueue("cache write", func(ctx context.Context) error {
			return o.cache.Put(ctx, key, entry, ttl)
		})
	} else if err := o.cache.Put(ctx, key, entry, o.cacheTTL); err != nil {
		// Best-effort: the result was already computed.
		slog.Warn("cache write failed", "key", key, "error", err)
	}

	imageURL := genResult.ImageURL
	o.appendAssistantAsync("history append (generated)", text, &imageURL, canonical)

	return &Result{
		Text:             text,
		ImageURL:         genResult.ImageURL,
		EngineeredPrompt: canonical,
	}, nil
}

func (o *Orchestrator) appendAssistantAsync(name, text string, imageURL *string, canonical string) {
	turn := model.NewAssistantTurn(text, imageURL, canonical)
	o.queue.Enqueue(name, func(ctx context.Context) error {
		_, err := o.history.Append(ctx, turn)
		return err
	})
}
