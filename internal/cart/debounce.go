package cart

import (
	"context"
	"time"

	"github.com/ikkim/udonggeum-cartsync/pkg/logger"
)

// pendingWrite is the latest target quantity for one item, waiting for the
// debounce window to pass.
type pendingWrite struct {
	quantity int
	timer    *time.Timer
}

// SetQuantity sets the item's quantity locally at once and schedules a
// single remote write after the debounce window. A newer call for the same
// item replaces the scheduled one. Quantities below one remove the item.
//
// The remote write is remove-then-add at the target quantity, followed by a
// silent load whatever the outcome. It is never rolled back: by the time it
// fires the local state may have moved on several times.
func (s *Synchronizer) SetQuantity(ctx context.Context, itemID string, quantity int) error {
	if quantity < 1 {
		return s.RemoveItem(ctx, itemID)
	}
	if !s.session.RequireSession(ctx) {
		return ErrUnauthenticated
	}
	if itemID == "" {
		return ErrInvalidItem
	}

	s.mutate(func(lines []Line) []Line {
		if i := indexOf(lines, itemID); i >= 0 {
			lines[i].Quantity = quantity
		}
		s.scheduleLocked(itemID, quantity)
		return lines
	})

	s.log.Debug("Quantity change scheduled", logger.Fields{
		"item_id":  itemID,
		"quantity": quantity,
		"window":   s.window.String(),
	})
	return nil
}

// Wait blocks until every scheduled quantity write has fired or been cancelled.
func (s *Synchronizer) Wait() {
	s.mu.Lock()
	for s.inflight > 0 {
		s.settled.Wait()
	}
	s.mu.Unlock()
}

// Flush runs all pending quantity writes now instead of waiting out the
// window, then waits for every write in flight.
func (s *Synchronizer) Flush(ctx context.Context) error {
	type due struct {
		itemID string
		write  *pendingWrite
	}

	s.mu.Lock()
	var now []due
	for id, pw := range s.pending {
		if pw.timer.Stop() {
			now = append(now, due{itemID: id, write: pw})
			delete(s.pending, id)
		}
	}
	s.recorder.PendingWrites(len(s.pending))
	s.mu.Unlock()

	for _, d := range now {
		s.writeQuantity(ctx, d.itemID, d.write.quantity)
		s.settle()
	}

	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PendingWrites reports how many items have a quantity write scheduled.
func (s *Synchronizer) PendingWrites() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Synchronizer) scheduleLocked(itemID string, quantity int) {
	s.cancelPendingLocked(itemID)

	pw := &pendingWrite{quantity: quantity}
	s.inflight++
	s.pending[itemID] = pw
	pw.timer = time.AfterFunc(s.window, func() { s.fire(itemID, pw) })
	s.recorder.PendingWrites(len(s.pending))
}

// cancelPendingLocked stops the item's scheduled write. If the timer already
// fired, fire sees it was superseded and skips the write.
func (s *Synchronizer) cancelPendingLocked(itemID string) {
	pw, ok := s.pending[itemID]
	if !ok {
		return
	}
	delete(s.pending, itemID)
	if pw.timer != nil && pw.timer.Stop() {
		s.settleLocked()
	}
	s.recorder.PendingWrites(len(s.pending))
}

func (s *Synchronizer) cancelAllPendingLocked() {
	for id := range s.pending {
		s.cancelPendingLocked(id)
	}
}

func (s *Synchronizer) fire(itemID string, pw *pendingWrite) {
	defer s.settle()

	s.mu.Lock()
	if cur, ok := s.pending[itemID]; !ok || cur != pw {
		s.mu.Unlock()
		return
	}
	delete(s.pending, itemID)
	s.recorder.PendingWrites(len(s.pending))
	s.mu.Unlock()

	s.writeQuantity(s.ctx, itemID, pw.quantity)
}

// writeQuantity performs the debounced write for the backend's
// increment/decrement-only API, then resyncs.
func (s *Synchronizer) writeQuantity(ctx context.Context, itemID string, quantity int) {
	err := s.remote.RemoveLine(ctx, itemID)
	if err == nil {
		err = s.remote.AddLine(ctx, itemID, quantity)
	}

	s.recorder.DebouncedWrite(err)
	s.recorder.Operation(opSetQuantity, err)
	if err != nil {
		s.log.Warn("Debounced quantity write failed, resyncing", logger.Fields{
			"item_id":  itemID,
			"quantity": quantity,
			"error":    err.Error(),
		})
	} else {
		s.log.Debug("Debounced quantity write applied", logger.Fields{
			"item_id":  itemID,
			"quantity": quantity,
		})
	}

	s.reconcile(ctx)
}

func (s *Synchronizer) settle() {
	s.mu.Lock()
	s.settleLocked()
	s.mu.Unlock()
}

func (s *Synchronizer) settleLocked() {
	s.inflight--
	if s.inflight <= 0 {
		s.inflight = 0
		s.settled.Broadcast()
	}
}
