package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/inkgen/inkgen/internal/cache"
	"github.com/inkgen/inkgen/internal/generate"
	"github.com/inkgen/inkgen/internal/model"
	"github.com/inkgen/inkgen/internal/persist"
)

// fakeCache is an in-memory cache.Store with switchable failure modes.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]cache.Entry
	puts    int
	putErr  error
	down    bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]cache.Entry{}}
}

func (f *fakeCache) Lookup(_ context.Context, key string) (*cache.Entry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, false
	}
	e, ok := f.entries[key]
	if !ok {
		return nil, false
	}
	return &e, true
}

func (f *fakeCache) Put(_ context.Context, key string, e cache.Entry, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	if f.putErr != nil {
		return f.putErr
	}
	f.entries[key] = e
	return nil
}

// fakeLog records appended turns, assigning IDs and strictly increasing
// timestamps.
type fakeLog struct {
	mu    sync.Mutex
	turns []model.ConversationTurn
	clock time.Time
}

func newFakeLog() *fakeLog {
	return &fakeLog{clock: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeLog) Append(_ context.Context, turn model.ConversationTurn) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clock = f.clock.Add(time.Millisecond)
	turn.ID = int64(len(f.turns) + 1)
	turn.Timestamp = f.clock.Format(time.RFC3339Nano)
	f.turns = append(f.turns, turn)
	return turn.ID, nil
}

func (f *fakeLog) ListAll(_ context.Context) ([]model.ConversationTurn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.ConversationTurn, len(f.turns))
	copy(out, f.turns)
	return out, nil
}

// fakeGen counts calls and returns a fixed result or error.
type fakeGen struct {
	mu     sync.Mutex
	calls  int
	result generate.Result
	err    error
}

func (f *fakeGen) Generate(_ context.Context, _ string) (*generate.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	r := f.result
	return &r, nil
}

func (f *fakeGen) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func drain(t *testing.T, q *persist.Queue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	q.Drain(ctx)
}

func TestHandle_EmptyPromptRejectedBeforeSideEffects(t *testing.T) {
	c := newFakeCache()
	l := newFakeLog()
	g := &fakeGen{}
	q := persist.NewQueue(1, 16)
	o := New(g, c, l, q)

	for _, input := range []string{"", "   ", "\n\t"} {
		_, err := o.Handle(context.Background(), input)
		if !errors.Is(err, model.ErrEmptyPrompt) {
			t.Errorf("input %q: err = %v, want ErrEmptyPrompt", input, err)
		}
	}
	drain(t, q)

	if g.callCount() != 0 {
		t.Errorf("generator calls = %d, want 0", g.callCount())
	}
	if len(l.turns) != 0 {
		t.Errorf("turns = %d, want 0", len(l.turns))
	}
	if c.puts != 0 {
		t.Errorf("cache writes = %d, want 0", c.puts)
	}
}

func TestHandle_NoBackendConfigured(t *testing.T) {
	q := persist.NewQueue(1, 16)
	o := New(nil, newFakeCache(), newFakeLog(), q)

	_, err := o.Handle(context.Background(), "a wolf")
	if !errors.Is(err, model.ErrServiceUnavailable) {
		t.Errorf("err = %v, want ErrServiceUnavailable", err)
	}
	drain(t, q)
}

func TestHandle_MissThenHit(t *testing.T) {
	c := newFakeCache()
	l := newFakeLog()
	g := &fakeGen{result: generate.Result{ImageURL: "https://img.example/wolf.png"}}
	q := persist.NewQueue(1, 16)
	o := New(g, c, l, q)
	ctx := context.Background()

	first, err := o.Handle(ctx, "a wolf")
	if err != nil {
		t.Fatalf("first Handle: %v", err)
	}
	if first.Cached {
		t.Error("first request should be a miss")
	}
	if !strings.Contains(first.EngineeredPrompt, "wolf") {
		t.Errorf("engineered prompt %q should contain the subject", first.EngineeredPrompt)
	}
	if g.callCount() != 1 {
		t.Fatalf("generator calls after miss = %d, want 1", g.callCount())
	}
	if c.puts != 1 {
		t.Errorf("cache writes = %d, want 1", c.puts)
	}

	second, err := o.Handle(ctx, "a wolf")
	if err != nil {
		t.Fatalf("second Handle: %v", err)
	}
	if !second.Cached {
		t.Error("second identical request should be a hit")
	}
	if second.ImageURL != first.ImageURL {
		t.Errorf("hit ImageURL = %q, want %q", second.ImageURL, first.ImageURL)
	}
	if g.callCount() != 1 {
		t.Errorf("generator calls after hit = %d, want 1 (hit must not invoke generator)", g.callCount())
	}

	drain(t, q)

	// user, fresh assistant, cache-derived assistant.
	if len(l.turns) != 3 {
		t.Fatalf("turns = %d, want 3", len(l.turns))
	}
	cached := l.turns[2]
	if cached.Role != model.RoleAssistant {
		t.Errorf("role = %q, want assistant", cached.Role)
	}
	if !strings.HasPrefix(cached.Text, cachedMarker) {
		t.Errorf("cache-hit turn text %q should carry the cache marker", cached.Text)
	}
	if strings.HasPrefix(second.Text, cachedMarker) {
		t.Error("the marker must not leak into the client payload")
	}
}

func TestHandle_GenerationFailure(t *testing.T) {
	c := newFakeCache()
	l := newFakeLog()
	g := &fakeGen{err: &generate.Error{Provider: "stability", Message: "model overloaded"}}
	q := persist.NewQueue(1, 16)
	o := New(g, c, l, q)

	_, err := o.Handle(context.Background(), "a wolf")
	if err == nil {
		t.Fatal("expected error")
	}
	var genErr *generate.Error
	if !errors.As(err, &genErr) {
		t.Fatalf("err is %T, want *generate.Error", err)
	}
	if genErr.Message != "model overloaded" {
		t.Errorf("message = %q, want upstream detail", genErr.Message)
	}

	drain(t, q)

	if c.puts != 0 {
		t.Errorf("cache writes after failure = %d, want 0", c.puts)
	}
	if len(l.turns) != 2 {
		t.Fatalf("turns = %d, want 2 (user + failed assistant)", len(l.turns))
	}
	user, assistant := l.turns[0], l.turns[1]
	if user.Role != model.RoleUser || assistant.Role != model.RoleAssistant {
		t.Errorf("roles = %q, %q", user.Role, assistant.Role)
	}
	if assistant.ImageURL != nil {
		t.Error("failed assistant turn must not carry an image URL")
	}
	if assistant.EngineeredPrompt == nil {
		t.Error("failed assistant turn must carry the engineered prompt")
	}
	if !strings.Contains(assistant.Text, "model overloaded") {
		t.Errorf("failure turn text %q should carry the failure reason", assistant.Text)
	}
}

func TestHandle_FailedAssistantTurnIsSynchronous(t *testing.T) {
	l := newFakeLog()
	g := &fakeGen{err: &generate.Error{Provider: "stub", Message: "boom"}}
	// A full, never-drained queue: anything scheduled on it would be lost.
	q := persist.NewQueue(1, 1)
	o := New(g, newFakeCache(), l, q)

	o.Handle(context.Background(), "a wolf")

	// Both turns must be present without draining the queue.
	if len(l.turns) != 2 {
		t.Errorf("turns = %d, want 2 recorded synchronously", len(l.turns))
	}
	drain(t, q)
}

func TestHandle_CacheUnavailableStillSucceeds(t *testing.T) {
	c := newFakeCache()
	c.down = true
	c.putErr = errors.New("cache backend unreachable")
	l := newFakeLog()
	g := &fakeGen{result: generate.Result{ImageURL: "https://img.example/fox.png"}}
	q := persist.NewQueue(1, 16)
	o := New(g, c, l, q)

	res, err := o.Handle(context.Background(), "a fox")
	if err != nil {
		t.Fatalf("Handle with unavailable cache: %v", err)
	}
	if res.ImageURL != "https://img.example/fox.png" {
		t.Errorf("ImageURL = %q, want the freshly generated artifact", res.ImageURL)
	}
	drain(t, q)
}

func TestHandle_UserTurnPrecedesAssistantTurn(t *testing.T) {
	l := newFakeLog()
	g := &fakeGen{result: generate.Result{ImageURL: "https://img.example/a.png"}}
	q := persist.NewQueue(1, 16)
	o := New(g, newFakeCache(), l, q)

	if _, err := o.Handle(context.Background(), "a raven"); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	drain(t, q)

	if len(l.turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(l.turns))
	}
	userTS, _ := time.Parse(time.RFC3339Nano, l.turns[0].Timestamp)
	asstTS, _ := time.Parse(time.RFC3339Nano, l.turns[1].Timestamp)
	if l.turns[0].Role != model.RoleUser {
		t.Errorf("first turn role = %q, want user", l.turns[0].Role)
	}
	if !userTS.Before(asstTS) {
		t.Errorf("user turn %s does not precede assistant turn %s", l.turns[0].Timestamp, l.turns[1].Timestamp)
	}
}

func TestHandle_AsyncCacheWrite(t *testing.T) {
	c := newFakeCache()
	g := &fakeGen{result: generate.Result{ImageURL: "https://img.example/a.png"}}
	q := persist.NewQueue(1, 16)
	o := New(g, c, newFakeLog(), q, WithAsyncCacheWrite(true))

	if _, err := o.Handle(context.Background(), "a raven"); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	drain(t, q)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.puts != 1 {
		t.Errorf("cache writes after drain = %d, want 1", c.puts)
	}
}

func TestHandle_CustomTTLPassedToCache(t *testing.T) {
	var gotTTL time.Duration
	c := &ttlRecordingCache{fakeCache: newFakeCache(), ttl: &gotTTL}
	g := &fakeGen{result: generate.Result{ImageURL: "u"}}
	q := persist.NewQueue(1, 16)
	o := New(g, c, newFakeLog(), q, WithCacheTTL(42*time.Minute))

	if _, err := o.Handle(context.Background(), "a koi"); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	drain(t, q)

	if gotTTL != 42*time.Minute {
		t.Errorf("ttl = %v, want 42m", gotTTL)
	}
}

type ttlRecordingCache struct {
	*fakeCache
	ttl *time.Duration
}

func (c *ttlRecordingCache) Put(ctx context.Context, key string, e cache.Entry, ttl time.Duration) error {
	*c.ttl = ttl
	return c.fakeCache.Put(ctx, key, e, ttl)
}
