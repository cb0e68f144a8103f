package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ikkim/udonggeum-cartsync/pkg/logger"
)

var errBoom = errors.New("boom")

// fakeRemote is an in-memory backend that only supports add/remove, like the real one.
type fakeRemote struct {
	mu      sync.Mutex
	lines   []RemoteLine
	catalog map[string]Product
	calls   []string

	failFetch  error
	failAdd    error
	failRemove error

	fetchStarted chan struct{}
	fetchGate    chan struct{}
}

func newFakeRemote(products ...Product) *fakeRemote {
	r := &fakeRemote{catalog: make(map[string]Product)}
	for _, p := range products {
		r.catalog[p.ID] = p
	}
	return r
}

func (r *fakeRemote) seed(lines ...RemoteLine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append([]RemoteLine(nil), lines...)
	for _, l := range lines {
		if _, ok := r.catalog[l.ID]; !ok {
			r.catalog[l.ID] = l.Product
		}
	}
}

func (r *fakeRemote) FetchCart(ctx context.Context) ([]RemoteLine, error) {
	r.mu.Lock()
	r.calls = append(r.calls, "fetch")
	started, gate := r.fetchStarted, r.fetchGate
	r.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFetch != nil {
		return nil, r.failFetch
	}
	return append([]RemoteLine(nil), r.lines...), nil
}

func (r *fakeRemote) AddLine(_ context.Context, itemID string, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf("add:%s:%d", itemID, quantity))
	if r.failAdd != nil {
		return r.failAdd
	}
	for i := range r.lines {
		if r.lines[i].ID == itemID {
			r.lines[i].Quantity += quantity
			return nil
		}
	}
	p, ok := r.catalog[itemID]
	if !ok {
		p = Product{ID: itemID}
	}
	r.lines = append(r.lines, RemoteLine{Product: p, Quantity: quantity})
	return nil
}

func (r *fakeRemote) RemoveLine(_ context.Context, itemID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "remove:"+itemID)
	if r.failRemove != nil {
		return r.failRemove
	}
	kept := r.lines[:0]
	for _, l := range r.lines {
		if l.ID != itemID {
			kept = append(kept, l)
		}
	}
	r.lines = kept
	return nil
}

func (r *fakeRemote) setFailures(fetch, add, remove error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failFetch, r.failAdd, r.failRemove = fetch, add, remove
}

func (r *fakeRemote) callLog() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *fakeRemote) resetCalls() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

func (r *fakeRemote) count(call string) int {
	n := 0
	for _, c := range r.callLog() {
		if c == call {
			n++
		}
	}
	return n
}

func (r *fakeRemote) mutations() []string {
	var out []string
	for _, c := range r.callLog() {
		if c != "fetch" {
			out = append(out, c)
		}
	}
	return out
}

type fakeSession struct {
	mu       sync.Mutex
	active   bool
	prompted int
}

func (s *fakeSession) HasActiveSession(context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *fakeSession) RequireSession(context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		s.prompted++
	}
	return s.active
}

func (s *fakeSession) prompts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prompted
}

type memoryStore struct {
	mu    sync.Mutex
	saved map[string][]Line
	err   error
}

func (m *memoryStore) Save(_ context.Context, key string, lines []Line) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.saved == nil {
		m.saved = make(map[string][]Line)
	}
	m.saved[key] = cloneLines(lines)
	return nil
}

func (m *memoryStore) Load(_ context.Context, key string) ([]Line, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return cloneLines(m.saved[key]), nil
}

type countingRecorder struct {
	mu        sync.Mutex
	rollbacks map[string]int
	debounced int
	loadErrs  int
}

func (c *countingRecorder) Operation(string, error) {}

func (c *countingRecorder) Rollback(op string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rollbacks == nil {
		c.rollbacks = make(map[string]int)
	}
	c.rollbacks[op]++
}

func (c *countingRecorder) DebouncedWrite(error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debounced++
}

func (c *countingRecorder) Load(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.loadErrs++
	}
}

func (c *countingRecorder) PendingWrites(int) {}

const testWindow = 30 * time.Millisecond

func newTestSynchronizer(t *testing.T, remote Remote, session SessionGuard, opts ...Option) *Synchronizer {
	t.Helper()
	opts = append([]Option{
		WithLogger(logger.Nop()),
		WithDebounceWindow(testWindow),
	}, opts...)
	s := NewSynchronizer(remote, session, opts...)
	t.Cleanup(s.Close)
	return s
}

func assertTotalsConsistent(t *testing.T, snap Snapshot) {
	t.Helper()
	var total int64
	var count int
	seen := make(map[string]bool)
	for _, l := range snap.Lines {
		if seen[l.ItemID] {
			t.Errorf("duplicate line for item %s", l.ItemID)
		}
		seen[l.ItemID] = true
		if l.Quantity < 1 {
			t.Errorf("line %s has quantity %d", l.ItemID, l.Quantity)
		}
		total += l.UnitPrice * int64(l.Quantity)
		count += l.Quantity
	}
	if total != snap.Total || count != snap.Count {
		t.Errorf("derived totals out of sync: got total=%d count=%d, want total=%d count=%d",
			snap.Total, snap.Count, total, count)
	}
}

// content drops the version so snapshots taken at different times compare by cart contents.
func content(snap Snapshot) Snapshot {
	snap.Version = 0
	return snap
}
