// Package store persists the last authoritative cart snapshot between runs.
package store

import (
	"context"
	"fmt"

	"github.com/ikkim/udonggeum-cartsync/config"
	"github.com/ikkim/udonggeum-cartsync/internal/app/repository"
	"github.com/ikkim/udonggeum-cartsync/internal/cart"
	"github.com/ikkim/udonggeum-cartsync/internal/db"
	"github.com/ikkim/udonggeum-cartsync/pkg/logger"
	pkgredis "github.com/ikkim/udonggeum-cartsync/pkg/redis"
)

// Open builds the store selected by cfg.Store.Driver. It returns a nil store
// for "none". The returned close func releases the underlying connection.
func Open(cfg *config.Config) (cart.SnapshotStore, func() error, error) {
	switch cfg.Store.Driver {
	case "", "none":
		return nil, func() error { return nil }, nil

	case "redis":
		if err := pkgredis.Init(&cfg.Redis); err != nil {
			return nil, nil, err
		}
		return NewRedisStore(pkgredis.GetClient(), 0), pkgredis.Close, nil

	case "postgres":
		if err := db.Initialize(&cfg.Database); err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, nil, err
		}
		return NewGormStore(repository.NewSnapshotRepository(db.GetDB())), db.Close, nil
	}
	return nil, nil, fmt.Errorf("unsupported snapshot store %q", cfg.Store.Driver)
}

// Scoped keeps one snapshot per signed-in user by suffixing the key with
// the current subject. Guests share the bare key.
type Scoped struct {
	inner   cart.SnapshotStore
	subject func() string
}

var _ cart.SnapshotStore = (*Scoped)(nil)

func NewScoped(inner cart.SnapshotStore, subject func() string) *Scoped {
	return &Scoped{inner: inner, subject: subject}
}

func (s *Scoped) Save(ctx context.Context, key string, lines []cart.Line) error {
	return s.inner.Save(ctx, s.key(key), lines)
}

func (s *Scoped) Load(ctx context.Context, key string) ([]cart.Line, error) {
	scoped := s.key(key)
	lines, err := s.inner.Load(ctx, scoped)
	if err != nil {
		return nil, err
	}
	logger.Debug("Snapshot loaded from store", logger.Fields{
		"key":   scoped,
		"lines": len(lines),
	})
	return lines, nil
}

func (s *Scoped) key(key string) string {
	if s.subject == nil {
		return key
	}
	if sub := s.subject(); sub != "" {
		return key + ":" + sub
	}
	return key
}
