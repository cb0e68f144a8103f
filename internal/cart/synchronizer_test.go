package cart

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynchronizer_AddProduct_EmptyCart(t *testing.T) {
	remote := newFakeRemote()
	session := &fakeSession{active: true}
	s := newTestSynchronizer(t, remote, session)

	err := s.AddProduct(context.Background(), Product{ID: "A", Price: Float(100)}, 1)
	require.NoError(t, err)

	snap := s.Snapshot()
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, "A", snap.Lines[0].ItemID)
	assert.Equal(t, 1, snap.Lines[0].Quantity)
	assert.Equal(t, int64(100), snap.Total)
	assert.Equal(t, 1, snap.Count)
	assert.Equal(t, []string{"add:A:1", "fetch"}, remote.callLog())
}

func TestSynchronizer_AddProduct_IncrementsExistingLine(t *testing.T) {
	remote := newFakeRemote()
	remote.seed(RemoteLine{Product: Product{ID: "A", Price: Float(30)}, Quantity: 2})
	s := newTestSynchronizer(t, remote, &fakeSession{active: true})
	require.NoError(t, s.Load(context.Background(), false))

	require.NoError(t, s.AddProduct(context.Background(), Product{ID: "A", Price: Float(30)}, 3))

	snap := s.Snapshot()
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, 5, snap.Lines[0].Quantity)
	assert.Equal(t, int64(150), snap.Total)
	assertTotalsConsistent(t, snap)
}

func TestSynchronizer_AddItem_OptimisticBeforeRemoteReturns(t *testing.T) {
	remote := newFakeRemote()
	remote.seed(RemoteLine{Product: Product{ID: "A", Price: Float(10)}, Quantity: 1})
	s := newTestSynchronizer(t, remote, &fakeSession{active: true})
	require.NoError(t, s.Load(context.Background(), true))

	blocking := &blockingAddRemote{fakeRemote: remote, entered: make(chan struct{}), release: make(chan struct{})}
	s.remote = blocking

	done := make(chan error, 1)
	go func() { done <- s.AddItem(context.Background(), "A", 2) }()

	<-blocking.entered
	l, ok := s.Snapshot().Line("A")
	require.True(t, ok)
	assert.Equal(t, 3, l.Quantity, "optimistic increment visible while the remote call is in flight")

	close(blocking.release)
	require.NoError(t, <-done)
}

type blockingAddRemote struct {
	*fakeRemote
	entered chan struct{}
	release chan struct{}
}

func (b *blockingAddRemote) AddLine(ctx context.Context, itemID string, quantity int) error {
	close(b.entered)
	<-b.release
	return b.fakeRemote.AddLine(ctx, itemID, quantity)
}

func TestSynchronizer_AddItem_UnknownIDAppearsAfterReconcile(t *testing.T) {
	remote := newFakeRemote(Product{ID: "B", Name: "Denim jacket", Price: Float(70)})
	s := newTestSynchronizer(t, remote, &fakeSession{active: true})

	require.NoError(t, s.AddItem(context.Background(), "B", 1))

	l, ok := s.Snapshot().Line("B")
	require.True(t, ok)
	assert.Equal(t, "Denim jacket", l.Name)
	assert.Equal(t, int64(70), s.Total())
}

func TestSynchronizer_AddItem_FailureRollsBack(t *testing.T) {
	remote := newFakeRemote()
	remote.seed(RemoteLine{Product: Product{ID: "A", Price: Float(50)}, Quantity: 2})
	recorder := &countingRecorder{}
	s := newTestSynchronizer(t, remote, &fakeSession{active: true}, WithRecorder(recorder))
	require.NoError(t, s.Load(context.Background(), true))
	before := s.Snapshot()

	remote.setFailures(nil, errBoom, nil)

	err := s.AddProduct(context.Background(), Product{ID: "C", Price: Float(5)}, 4)
	assert.ErrorIs(t, err, ErrSyncFailed)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, content(before), content(s.Snapshot()))

	err = s.AddItem(context.Background(), "A", 1)
	assert.ErrorIs(t, err, ErrSyncFailed)
	assert.Equal(t, content(before), content(s.Snapshot()))
	assertTotalsConsistent(t, s.Snapshot())

	assert.Equal(t, 2, recorder.rollbacks[opAdd])
}

func TestSynchronizer_AddItem_InvalidInput(t *testing.T) {
	remote := newFakeRemote()
	s := newTestSynchronizer(t, remote, &fakeSession{active: true})

	assert.ErrorIs(t, s.AddItem(context.Background(), "A", 0), ErrInvalidQuantity)
	assert.ErrorIs(t, s.AddItem(context.Background(), "", 1), ErrInvalidItem)
	assert.Empty(t, remote.callLog())
	assert.Empty(t, s.Lines())
}

func TestSynchronizer_RemoveItem_Success(t *testing.T) {
	remote := newFakeRemote()
	remote.seed(
		RemoteLine{Product: Product{ID: "A", Price: Float(10)}, Quantity: 1},
		RemoteLine{Product: Product{ID: "B", Price: Float(20)}, Quantity: 2},
	)
	s := newTestSynchronizer(t, remote, &fakeSession{active: true})
	require.NoError(t, s.Load(context.Background(), true))

	require.NoError(t, s.RemoveItem(context.Background(), "A"))

	snap := s.Snapshot()
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, "B", snap.Lines[0].ItemID)
	assert.Equal(t, int64(40), snap.Total)
	assert.False(t, snap.Loading)
}

func TestSynchronizer_RemoveItem_FailureRestoresLine(t *testing.T) {
	remote := newFakeRemote()
	remote.seed(RemoteLine{Product: Product{ID: "A", Price: Float(10)}, Quantity: 1})
	s := newTestSynchronizer(t, remote, &fakeSession{active: true})
	require.NoError(t, s.Load(context.Background(), true))
	before := s.Snapshot()

	remote.setFailures(nil, nil, errBoom)

	err := s.RemoveItem(context.Background(), "A")
	assert.ErrorIs(t, err, ErrSyncFailed)

	after := s.Snapshot()
	assert.Equal(t, before, after)
	l, ok := after.Line("A")
	require.True(t, ok)
	assert.Equal(t, 1, l.Quantity)
	assertTotalsConsistent(t, after)
}

func TestSynchronizer_GuestGuard(t *testing.T) {
	remote := newFakeRemote()
	session := &fakeSession{active: false}
	s := newTestSynchronizer(t, remote, session)
	ctx := context.Background()

	assert.ErrorIs(t, s.AddProduct(ctx, Product{ID: "B"}, 1), ErrUnauthenticated)
	assert.ErrorIs(t, s.AddItem(ctx, "B", 1), ErrUnauthenticated)
	assert.ErrorIs(t, s.RemoveItem(ctx, "B"), ErrUnauthenticated)
	assert.ErrorIs(t, s.SetQuantity(ctx, "B", 3), ErrUnauthenticated)
	assert.ErrorIs(t, s.SetQuantity(ctx, "B", 0), ErrUnauthenticated)
	assert.ErrorIs(t, s.Clear(ctx), ErrUnauthenticated)
	s.Wait()

	assert.Empty(t, s.Lines())
	assert.Equal(t, int64(0), s.Total())
	assert.Empty(t, remote.callLog())
	assert.Equal(t, 6, session.prompts())
	assert.Zero(t, s.PendingWrites())
}

func TestSynchronizer_Load_GuestForcesEmpty(t *testing.T) {
	remote := newFakeRemote()
	remote.seed(RemoteLine{Product: Product{ID: "A", Price: Float(10)}, Quantity: 1})
	session := &fakeSession{active: true}
	s := newTestSynchronizer(t, remote, session)
	require.NoError(t, s.Load(context.Background(), false))
	require.Len(t, s.Lines(), 1)

	session.active = false
	require.NoError(t, s.Load(context.Background(), false))

	assert.Empty(t, s.Lines())
	assert.Equal(t, 0, s.Count())
	assert.Equal(t, 1, remote.count("fetch"))
	assert.Zero(t, session.prompts(), "load does not prompt")
}

func TestSynchronizer_Load_Idempotent(t *testing.T) {
	remote := newFakeRemote()
	remote.seed(
		RemoteLine{Product: Product{ID: "A", Price: Float(10)}, Quantity: 1},
		RemoteLine{Product: Product{ID: "B", ReferencePrice: Float(100), DiscountPercent: Float(10)}, Quantity: 3},
	)
	s := newTestSynchronizer(t, remote, &fakeSession{active: true})

	require.NoError(t, s.Load(context.Background(), false))
	first := s.Snapshot()
	require.NoError(t, s.Load(context.Background(), false))

	assert.Equal(t, content(first), content(s.Snapshot()))
	assert.Equal(t, int64(280), first.Total)
	assert.Equal(t, 4, first.Count)
}

func TestSynchronizer_Load_FailureKeepsSnapshot(t *testing.T) {
	remote := newFakeRemote()
	remote.seed(RemoteLine{Product: Product{ID: "A", Price: Float(10)}, Quantity: 1})
	recorder := &countingRecorder{}
	s := newTestSynchronizer(t, remote, &fakeSession{active: true}, WithRecorder(recorder))
	require.NoError(t, s.Load(context.Background(), false))
	before := s.Snapshot()

	remote.setFailures(errBoom, nil, nil)
	assert.NoError(t, s.Load(context.Background(), false))

	assert.Equal(t, content(before), content(s.Snapshot()))
	assert.False(t, s.Loading())
	assert.Equal(t, 1, recorder.loadErrs)
}

func TestSynchronizer_Load_CancelledContext(t *testing.T) {
	remote := newFakeRemote()
	remote.fetchGate = make(chan struct{})
	s := newTestSynchronizer(t, remote, &fakeSession{active: true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Load(ctx, false), context.Canceled)
	assert.False(t, s.Loading())
}

func TestSynchronizer_Load_LoadingFlag(t *testing.T) {
	remote := newFakeRemote()
	remote.fetchStarted = make(chan struct{}, 1)
	remote.fetchGate = make(chan struct{})
	s := newTestSynchronizer(t, remote, &fakeSession{active: true})

	done := make(chan error, 1)
	go func() { done <- s.Load(context.Background(), false) }()
	<-remote.fetchStarted
	assert.True(t, s.Loading(), "user-initiated load shows the busy flag")
	remote.fetchGate <- struct{}{}
	require.NoError(t, <-done)
	assert.False(t, s.Loading())

	go func() { done <- s.Load(context.Background(), true) }()
	<-remote.fetchStarted
	assert.False(t, s.Loading(), "silent load keeps the busy flag off")
	remote.fetchGate <- struct{}{}
	require.NoError(t, <-done)
}

func TestSynchronizer_LastLoadWins(t *testing.T) {
	remote := newFakeRemote()
	remote.seed(RemoteLine{Product: Product{ID: "A", Price: Float(10)}, Quantity: 1})
	remote.fetchStarted = make(chan struct{}, 2)
	remote.fetchGate = make(chan struct{})
	s := newTestSynchronizer(t, remote, &fakeSession{active: true})

	first := make(chan error, 1)
	go func() { first <- s.Load(context.Background(), true) }()
	<-remote.fetchStarted

	// Both fetches are parked at the gate; whichever is released last sees
	// the newer server state.
	second := make(chan error, 1)
	go func() { second <- s.Load(context.Background(), true) }()
	<-remote.fetchStarted

	remote.fetchGate <- struct{}{}
	require.NoError(t, <-waitFirst(first, second))
	remote.seed(RemoteLine{Product: Product{ID: "Z", Price: Float(1)}, Quantity: 9})
	remote.fetchGate <- struct{}{}
	require.NoError(t, <-waitFirst(first, second))

	l, ok := s.Snapshot().Line("Z")
	require.True(t, ok, "the later-resolving load determines the final state")
	assert.Equal(t, 9, l.Quantity)
}

func waitFirst(a, b chan error) chan error {
	out := make(chan error, 1)
	select {
	case err := <-a:
		out <- err
	case err := <-b:
		out <- err
	}
	return out
}

func TestSynchronizer_Clear_RemovesEveryRemoteLine(t *testing.T) {
	remote := newFakeRemote()
	remote.seed(RemoteLine{Product: Product{ID: "D", Price: Float(5)}, Quantity: 1})
	s := newTestSynchronizer(t, remote, &fakeSession{active: true})
	require.NoError(t, s.Load(context.Background(), true))

	// Another device replaced the cart; the local replica only knows D.
	remote.seed(
		RemoteLine{Product: Product{ID: "A", Price: Float(10)}, Quantity: 1},
		RemoteLine{Product: Product{ID: "B", Price: Float(20)}, Quantity: 1},
		RemoteLine{Product: Product{ID: "C", Price: Float(30)}, Quantity: 1},
	)
	remote.resetCalls()

	require.NoError(t, s.Clear(context.Background()))

	assert.Equal(t, []string{"fetch", "remove:A", "remove:B", "remove:C", "fetch"}, remote.callLog())
	assert.Empty(t, s.Lines())
	assert.Equal(t, int64(0), s.Total())
}

func TestSynchronizer_Clear_FetchFailureStillResyncs(t *testing.T) {
	remote := newFakeRemote()
	remote.seed(RemoteLine{Product: Product{ID: "A", Price: Float(10)}, Quantity: 1})
	s := newTestSynchronizer(t, remote, &fakeSession{active: true})
	require.NoError(t, s.Load(context.Background(), true))

	remote.setFailures(errBoom, nil, nil)
	remote.resetCalls()

	assert.NoError(t, s.Clear(context.Background()))
	assert.Equal(t, []string{"fetch", "fetch"}, remote.callLog())
	assert.Empty(t, s.Lines(), "optimistic clear is not rolled back")
}

func TestSynchronizer_Clear_PartialRemovalFailureResyncs(t *testing.T) {
	remote := newFakeRemote()
	remote.seed(RemoteLine{Product: Product{ID: "A", Price: Float(10)}, Quantity: 1})
	s := newTestSynchronizer(t, remote, &fakeSession{active: true})
	require.NoError(t, s.Load(context.Background(), true))

	remote.setFailures(nil, nil, errBoom)

	assert.NoError(t, s.Clear(context.Background()))
	l, ok := s.Snapshot().Line("A")
	require.True(t, ok, "resync brings back what the server still holds")
	assert.Equal(t, 1, l.Quantity)
}

func TestSynchronizer_Reset(t *testing.T) {
	remote := newFakeRemote()
	remote.seed(RemoteLine{Product: Product{ID: "A", Price: Float(10)}, Quantity: 1})
	s := newTestSynchronizer(t, remote, &fakeSession{active: true})
	require.NoError(t, s.Load(context.Background(), true))
	require.NoError(t, s.SetQuantity(context.Background(), "A", 4))
	remote.resetCalls()

	s.Reset()
	s.Wait()

	assert.Empty(t, s.Lines())
	assert.Zero(t, s.PendingWrites())
	assert.Empty(t, remote.callLog())
}

func TestSynchronizer_Subscribe(t *testing.T) {
	remote := newFakeRemote()
	s := newTestSynchronizer(t, remote, &fakeSession{active: true})

	var mu sync.Mutex
	var seen []Snapshot
	unsubscribe := s.Subscribe(func(snap Snapshot) {
		mu.Lock()
		seen = append(seen, snap)
		mu.Unlock()
	})

	require.NoError(t, s.AddProduct(context.Background(), Product{ID: "A", Price: Float(10)}, 1))
	unsubscribe()
	s.Reset()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	assert.Equal(t, 1, seen[0].Count, "first notification is the optimistic add")
	for _, snap := range seen {
		assert.NotEmpty(t, snap.Lines, "no notifications after unsubscribe")
	}
}

func TestSynchronizer_PersistAndHydrate(t *testing.T) {
	remote := newFakeRemote()
	remote.seed(RemoteLine{Product: Product{ID: "A", Name: "Tee", Price: Float(10)}, Quantity: 2})
	store := &memoryStore{}

	first := newTestSynchronizer(t, remote, &fakeSession{active: true}, WithSnapshotStore(store, "user-1"))
	require.NoError(t, first.Load(context.Background(), true))

	remote.setFailures(errBoom, nil, nil)
	second := newTestSynchronizer(t, remote, &fakeSession{active: true}, WithSnapshotStore(store, "user-1"))
	require.NoError(t, second.Hydrate(context.Background()))
	require.NoError(t, second.Load(context.Background(), true))

	assert.Equal(t, content(first.Snapshot()), content(second.Snapshot()))
	assert.Equal(t, int64(20), second.Total())
}

func TestSynchronizer_Hydrate_DoesNotOverrideLoadedCart(t *testing.T) {
	remote := newFakeRemote()
	remote.seed(RemoteLine{Product: Product{ID: "A", Price: Float(10)}, Quantity: 1})
	store := &memoryStore{saved: map[string][]Line{
		"k": {{ItemID: "OLD", UnitPrice: 1, Quantity: 1}},
	}}
	s := newTestSynchronizer(t, remote, &fakeSession{active: true}, WithSnapshotStore(store, "other"))
	require.NoError(t, s.Load(context.Background(), true))

	s.storeKey = "k"
	require.NoError(t, s.Hydrate(context.Background()))

	_, ok := s.Snapshot().Line("OLD")
	assert.False(t, ok)
}

func TestSynchronizer_Hydrate_StoreError(t *testing.T) {
	store := &memoryStore{err: errBoom}
	s := newTestSynchronizer(t, newFakeRemote(), &fakeSession{active: true}, WithSnapshotStore(store, "k"))

	assert.ErrorIs(t, s.Hydrate(context.Background()), errBoom)
	assert.NoError(t, newTestSynchronizer(t, newFakeRemote(), &fakeSession{}).Hydrate(context.Background()))
}

func TestSynchronizer_InvariantsUnderMixedOperations(t *testing.T) {
	remote := newFakeRemote(
		Product{ID: "A", Price: Float(10)},
		Product{ID: "B", Price: Float(25)},
	)
	s := newTestSynchronizer(t, remote, &fakeSession{active: true})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.AddProduct(ctx, Product{ID: "A", Price: Float(10)}, 1)
			_ = s.SetQuantity(ctx, "B", i+1)
			if i%3 == 0 {
				_ = s.RemoveItem(ctx, "A")
			}
			assertTotalsConsistent(t, s.Snapshot())
		}(i)
	}
	wg.Wait()
	s.Wait()

	require.NoError(t, s.Load(ctx, true))
	assertTotalsConsistent(t, s.Snapshot())
}

func TestSynchronizer_CloseStopsPendingWrites(t *testing.T) {
	remote := newFakeRemote()
	remote.seed(RemoteLine{Product: Product{ID: "A", Price: Float(10)}, Quantity: 1})
	s := newTestSynchronizer(t, remote, &fakeSession{active: true}, WithDebounceWindow(time.Hour))
	require.NoError(t, s.SetQuantity(context.Background(), "A", 3))
	require.Equal(t, 1, s.PendingWrites())

	s.Close()
	s.Wait()

	assert.Zero(t, s.PendingWrites())
	assert.Empty(t, remote.mutations())
}

func TestSynchronizer_Subscribe_ConcurrentMutationsArriveInOrder(t *testing.T) {
	remote := newFakeRemote()
	remote.seed(RemoteLine{Product: Product{ID: "A", Price: Float(10)}, Quantity: 1})
	s := newTestSynchronizer(t, remote, &fakeSession{active: true}, WithDebounceWindow(time.Hour))
	require.NoError(t, s.Load(context.Background(), true))

	started := make(chan struct{})
	gate := make(chan struct{})
	var once sync.Once
	var mu sync.Mutex
	var versions []uint64
	var last Snapshot
	s.Subscribe(func(snap Snapshot) {
		once.Do(func() {
			close(started)
			<-gate
		})
		mu.Lock()
		versions = append(versions, snap.Version)
		last = snap
		mu.Unlock()
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, s.SetQuantity(context.Background(), "A", 2))
	}()
	<-started
	go func() {
		defer wg.Done()
		assert.NoError(t, s.SetQuantity(context.Background(), "A", 3))
	}()

	// the second mutation is applied while the first delivery is still blocked
	assert.Eventually(t, func() bool { return s.Count() == 3 }, time.Second, 5*time.Millisecond)
	close(gate)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, last.Count, "subscriber ends on the latest cart")
	assert.Equal(t, s.Snapshot().Version, last.Version)
	for i := 1; i < len(versions); i++ {
		assert.Greater(t, versions[i], versions[i-1])
	}
}

func TestSynchronizer_SnapshotVersionGrows(t *testing.T) {
	remote := newFakeRemote()
	remote.seed(RemoteLine{Product: Product{ID: "A", Price: Float(10)}, Quantity: 1})
	s := newTestSynchronizer(t, remote, &fakeSession{active: true}, WithDebounceWindow(time.Hour))
	require.NoError(t, s.Load(context.Background(), true))

	before := s.Snapshot().Version
	require.NoError(t, s.SetQuantity(context.Background(), "A", 4))
	after := s.Snapshot().Version

	assert.Greater(t, after, before)
	assert.Equal(t, after, s.Snapshot().Version, "reads do not bump the version")
}
