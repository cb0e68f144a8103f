package cart

import "context"

// Remote is the server-authoritative cart. Transport, auth headers and
// timeouts are its concern.
type Remote interface {
	FetchCart(ctx context.Context) ([]RemoteLine, error)
	AddLine(ctx context.Context, itemID string, quantity int) error
	RemoveLine(ctx context.Context, itemID string) error
}

// SessionGuard reports whether the user is signed in. RequireSession also
// prompts for sign-in when it returns false.
type SessionGuard interface {
	HasActiveSession(ctx context.Context) bool
	RequireSession(ctx context.Context) bool
}

// SnapshotStore keeps the last authoritative cart across restarts.
type SnapshotStore interface {
	Save(ctx context.Context, key string, lines []Line) error
	Load(ctx context.Context, key string) ([]Line, error)
}

// Recorder receives sync outcomes, typically for metrics.
type Recorder interface {
	Operation(op string, err error)
	Rollback(op string)
	DebouncedWrite(err error)
	Load(err error)
	PendingWrites(n int)
}

type nopRecorder struct{}

func (nopRecorder) Operation(string, error) {}
func (nopRecorder) Rollback(string)         {}
func (nopRecorder) DebouncedWrite(error)    {}
func (nopRecorder) Load(error)              {}
func (nopRecorder) PendingWrites(int)       {}
