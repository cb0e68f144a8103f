package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ikkim/udonggeum-cartsync/pkg/logger"
)

// DefaultDebounceWindow is the quiescence window for SetQuantity writes.
const DefaultDebounceWindow = 500 * time.Millisecond

const (
	opLoad        = "load"
	opAdd         = "add"
	opRemove      = "remove"
	opSetQuantity = "set_quantity"
	opClear       = "clear"
)

// Synchronizer owns the local cart replica and reconciles it with Remote.
//
// Mutations apply optimistically before the remote call returns. Add and
// remove roll back to the pre-call snapshot on failure; debounced quantity
// writes and clear resync from the server instead. The last load to
// complete overwrites the snapshot.
type Synchronizer struct {
	remote   Remote
	session  SessionGuard
	store    SnapshotStore
	storeKey string
	recorder Recorder
	log      *logger.Logger
	window   time.Duration

	mu       sync.Mutex
	lines    []Line
	total    int64
	count    int
	loading  int
	pending  map[string]*pendingWrite
	inflight int
	settled  *sync.Cond
	subs     map[int]func(Snapshot)
	nextSub  int
	version  uint64

	// publishMu serializes delivery; published is the last version handed out.
	publishMu sync.Mutex
	published uint64

	ctx    context.Context
	cancel context.CancelFunc
}

type Option func(*Synchronizer)

func WithDebounceWindow(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.window = d
		}
	}
}

// WithSnapshotStore persists every authoritative load under key.
func WithSnapshotStore(store SnapshotStore, key string) Option {
	return func(s *Synchronizer) {
		s.store = store
		s.storeKey = key
	}
}

func WithRecorder(r Recorder) Option {
	return func(s *Synchronizer) {
		if r != nil {
			s.recorder = r
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Synchronizer) {
		if l != nil {
			s.log = l
		}
	}
}

func NewSynchronizer(remote Remote, session SessionGuard, opts ...Option) *Synchronizer {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Synchronizer{
		remote:   remote,
		session:  session,
		recorder: nopRecorder{},
		window:   DefaultDebounceWindow,
		pending:  make(map[string]*pendingWrite),
		subs:     make(map[int]func(Snapshot)),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.settled = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.WithContext(logger.Fields{"component": "cart_sync"})
	}
	return s
}

// Snapshot returns a copy of the current cart.
func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Synchronizer) Lines() []Line { return s.Snapshot().Lines }

func (s *Synchronizer) Total() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *Synchronizer) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func (s *Synchronizer) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading > 0
}

// Subscribe registers fn to receive every new snapshot. Snapshots arrive in
// version order and a snapshot older than one already delivered is dropped.
// fn must not mutate the cart synchronously. The returned func removes the
// subscription.
func (s *Synchronizer) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Load replaces the snapshot with the server's cart. Guests get an empty
// cart. Fetch failures are logged and leave the snapshot untouched; only a
// cancelled ctx is returned. silent suppresses the loading flag.
func (s *Synchronizer) Load(ctx context.Context, silent bool) error {
	if !s.session.HasActiveSession(ctx) {
		s.replace(nil)
		return nil
	}

	if !silent {
		s.setLoading(1)
		defer s.setLoading(-1)
	}

	remote, err := s.remote.FetchCart(ctx)
	s.recorder.Load(err)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		s.log.Warn("Cart reload failed, keeping current snapshot", logger.Fields{
			"silent": silent,
			"error":  err.Error(),
		})
		return nil
	}

	lines := FromRemote(remote)
	s.replace(lines)
	s.persist(ctx, lines)

	s.log.Debug("Cart reloaded from remote", logger.Fields{
		"silent": silent,
		"lines":  len(lines),
	})
	return nil
}

// Hydrate restores the last persisted snapshot when nothing has been loaded yet.
func (s *Synchronizer) Hydrate(ctx context.Context) error {
	if s.store == nil {
		return nil
	}

	lines, err := s.store.Load(ctx, s.storeKey)
	if err != nil {
		return fmt.Errorf("load persisted snapshot: %w", err)
	}

	lines = normalize(lines)
	s.mu.Lock()
	if len(s.lines) > 0 {
		s.mu.Unlock()
		return nil
	}
	s.setLinesLocked(lines)
	snap, subs := s.snapshotLocked(), s.subscribersLocked()
	s.mu.Unlock()
	s.publish(subs, snap)

	s.log.Info("Cart hydrated from local snapshot", logger.Fields{
		"lines": len(lines),
	})
	return nil
}

// AddItem adds quantity of an item known only by id. The line appears
// locally only if it is already in the cart; otherwise the reconciling load
// brings it in.
func (s *Synchronizer) AddItem(ctx context.Context, itemID string, quantity int) error {
	return s.add(ctx, itemID, nil, quantity)
}

// AddProduct adds quantity of p, synthesizing a local line when p is new.
func (s *Synchronizer) AddProduct(ctx context.Context, p Product, quantity int) error {
	return s.add(ctx, p.ID, &p, quantity)
}

func (s *Synchronizer) add(ctx context.Context, itemID string, p *Product, quantity int) error {
	if !s.session.RequireSession(ctx) {
		return ErrUnauthenticated
	}
	if itemID == "" {
		return ErrInvalidItem
	}
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	before := s.mutate(func(lines []Line) []Line {
		if i := indexOf(lines, itemID); i >= 0 {
			lines[i].Quantity += quantity
			return lines
		}
		if p != nil {
			return append(lines, p.Line(quantity))
		}
		return lines
	})

	s.log.Debug("Optimistic add applied", logger.Fields{
		"item_id":  itemID,
		"quantity": quantity,
	})

	if err := s.remote.AddLine(ctx, itemID, quantity); err != nil {
		s.rollback(opAdd, before)
		s.recorder.Operation(opAdd, err)
		s.log.Error("Add to cart failed, rolled back", err, logger.Fields{
			"item_id":  itemID,
			"quantity": quantity,
		})
		return fmt.Errorf("%w: add %s: %w", ErrSyncFailed, itemID, err)
	}

	s.recorder.Operation(opAdd, nil)
	s.reconcile(ctx)
	return nil
}

// RemoveItem drops the line locally, cancels any pending quantity write for
// it and removes it remotely, rolling back on failure.
func (s *Synchronizer) RemoveItem(ctx context.Context, itemID string) error {
	if !s.session.RequireSession(ctx) {
		return ErrUnauthenticated
	}
	if itemID == "" {
		return ErrInvalidItem
	}

	before := s.mutate(func(lines []Line) []Line {
		s.cancelPendingLocked(itemID)
		return without(lines, itemID)
	})

	if err := s.remote.RemoveLine(ctx, itemID); err != nil {
		s.rollback(opRemove, before)
		s.recorder.Operation(opRemove, err)
		s.log.Error("Remove from cart failed, rolled back", err, logger.Fields{
			"item_id": itemID,
		})
		return fmt.Errorf("%w: remove %s: %w", ErrSyncFailed, itemID, err)
	}

	s.recorder.Operation(opRemove, nil)
	s.reconcile(ctx)
	return nil
}

// Clear empties the cart locally, then removes every line the server knows
// about, including ones added elsewhere, and resyncs. Remote failures are
// absorbed by the resync.
func (s *Synchronizer) Clear(ctx context.Context) error {
	if !s.session.RequireSession(ctx) {
		return ErrUnauthenticated
	}

	s.mutate(func([]Line) []Line {
		s.cancelAllPendingLocked()
		return nil
	})

	remote, err := s.remote.FetchCart(ctx)
	if err != nil {
		s.recorder.Operation(opClear, err)
		s.log.Warn("Clear could not fetch remote cart, resyncing", logger.Fields{
			"error": err.Error(),
		})
		s.reconcile(ctx)
		return nil
	}

	var failed int
	seen := make(map[string]bool, len(remote))
	for _, r := range remote {
		if r.ID == "" || seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		if err := s.remote.RemoveLine(ctx, r.ID); err != nil {
			failed++
			s.log.Warn("Clear could not remove remote line", logger.Fields{
				"item_id": r.ID,
				"error":   err.Error(),
			})
		}
	}

	var opErr error
	if failed > 0 {
		opErr = fmt.Errorf("%d of %d removals failed", failed, len(seen))
	}
	s.recorder.Operation(opClear, opErr)
	s.log.Info("Cart cleared", logger.Fields{
		"remote_lines": len(seen),
		"failed":       failed,
	})

	s.reconcile(ctx)
	return nil
}

// Reset empties the local cart without touching the server. Used on logout
// and after checkout completes.
func (s *Synchronizer) Reset() {
	s.mutate(func([]Line) []Line {
		s.cancelAllPendingLocked()
		return nil
	})
}

// Close cancels pending writes and stops any in-flight debounced write.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	s.cancelAllPendingLocked()
	s.mu.Unlock()
	s.cancel()
}

func (s *Synchronizer) reconcile(ctx context.Context) {
	if err := s.Load(ctx, true); err != nil {
		s.log.Debug("Reconciling load interrupted", logger.Fields{
			"error": err.Error(),
		})
	}
}

func (s *Synchronizer) persist(ctx context.Context, lines []Line) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(ctx, s.storeKey, lines); err != nil {
		s.log.Warn("Failed to persist cart snapshot", logger.Fields{
			"key":   s.storeKey,
			"error": err.Error(),
		})
	}
}

// mutate applies fn to a private copy of the lines and installs the result.
// It returns the lines as they were before, for rollback.
func (s *Synchronizer) mutate(fn func([]Line) []Line) []Line {
	s.mu.Lock()
	before := s.lines
	s.setLinesLocked(fn(cloneLines(before)))
	snap, subs := s.snapshotLocked(), s.subscribersLocked()
	s.mu.Unlock()

	s.publish(subs, snap)
	return before
}

func (s *Synchronizer) replace(lines []Line) {
	s.mutate(func([]Line) []Line { return lines })
}

func (s *Synchronizer) rollback(op string, before []Line) {
	s.replace(cloneLines(before))
	s.recorder.Rollback(op)
}

func (s *Synchronizer) setLoading(delta int) {
	s.mu.Lock()
	s.loading += delta
	s.version++
	snap, subs := s.snapshotLocked(), s.subscribersLocked()
	s.mu.Unlock()
	s.publish(subs, snap)
}

func (s *Synchronizer) setLinesLocked(lines []Line) {
	s.lines = lines
	s.version++
	s.total, s.count = totals(lines)
}

func (s *Synchronizer) snapshotLocked() Snapshot {
	lines := cloneLines(s.lines)
	if lines == nil {
		lines = []Line{}
	}
	return Snapshot{
		Lines:   lines,
		Total:   s.total,
		Count:   s.count,
		Loading: s.loading > 0,
		Version: s.version,
	}
}

func (s *Synchronizer) subscribersLocked() []func(Snapshot) {
	if len(s.subs) == 0 {
		return nil
	}
	out := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}

func (s *Synchronizer) publish(subs []func(Snapshot), snap Snapshot) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	if snap.Version <= s.published {
		return
	}
	s.published = snap.Version
	for _, fn := range subs {
		fn(snap)
	}
}
