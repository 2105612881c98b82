package sweep

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/tagsweep/pkg/resource"
)

// fakeSource is a plugin.Source with canned locators and tags.
type fakeSource struct {
	kind     resource.Kind
	locators []resource.Locator
	tags     map[string][]resource.Tag // by Locator.Raw
	tagErrs  map[string]error
	listErr  error
	panics   bool
}

func (f *fakeSource) Kind() resource.Kind { return f.kind }

func (f *fakeSource) List(_ context.Context) ([]resource.Locator, error) {
	if f.panics {
		panic("boom")
	}
	return f.locators, f.listErr
}

func (f *fakeSource) Tags(_ context.Context, loc resource.Locator) ([]resource.Tag, error) {
	if err := f.tagErrs[loc.Raw]; err != nil {
		return nil, err
	}
	return f.tags[loc.Raw], nil
}

// cancellingSource cancels the sweep context on its first tag lookup.
type cancellingSource struct {
	*fakeSource
	cancel context.CancelFunc
}

func (c *cancellingSource) Tags(ctx context.Context, loc resource.Locator) ([]resource.Tag, error) {
	c.cancel()
	return c.fakeSource.Tags(ctx, loc)
}

// fakeStore records upserts keyed by identity.
type fakeStore struct {
	mu      sync.Mutex
	records map[string]resource.Record
	calls   int
	failIDs map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]resource.Record), failIDs: make(map[string]bool)}
}

func (s *fakeStore) Upsert(_ context.Context, r resource.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failIDs[r.ResourceID] {
		return errors.New("connection reset")
	}
	s.records[r.Key()] = r
	return nil
}

func (s *fakeStore) get(alias, id, typ string) (resource.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[alias+"|"+id+"|"+typ]
	return r, ok
}

// countingRecorder counts outcomes by name.
type countingRecorder struct {
	mu       sync.Mutex
	kinds    []string
	kindErrs int
	outcomes map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{outcomes: make(map[string]int)}
}

func (c *countingRecorder) StartSpan(ctx context.Context, _ string) (context.Context, trace.Span) {
	return ctx, trace.SpanFromContext(ctx)
}

func (c *countingRecorder) RecordKind(_ context.Context, _, kind string, _ time.Duration, _ int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kinds = append(c.kinds, kind)
	if err != nil {
		c.kindErrs++
	}
}

func (c *countingRecorder) RecordOutcome(_ context.Context, _, _, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes[outcome]++
}

func testLogger() (zerolog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return zerolog.New(&buf), &buf
}

func tags(kv ...string) []resource.Tag {
	out := make([]resource.Tag, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, resource.Tag{Key: kv[i], Value: kv[i+1]})
	}
	return out
}
