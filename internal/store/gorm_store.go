package store

import (
	"context"
	"fmt"

	"github.com/ikkim/udonggeum-cartsync/internal/app/model"
	"github.com/ikkim/udonggeum-cartsync/internal/app/repository"
	"github.com/ikkim/udonggeum-cartsync/internal/cart"
)

// GormStore persists snapshots in the cart_snapshot_lines table.
type GormStore struct {
	repo repository.SnapshotRepository
}

var _ cart.SnapshotStore = (*GormStore)(nil)

func NewGormStore(repo repository.SnapshotRepository) *GormStore {
	return &GormStore{repo: repo}
}

func (s *GormStore) Save(_ context.Context, key string, lines []cart.Line) error {
	rows := make([]model.SnapshotLine, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, model.SnapshotLine{
			ItemID:         l.ItemID,
			Name:           l.Name,
			ImageURL:       l.ImageURL,
			UnitPrice:      l.UnitPrice,
			ReferencePrice: l.ReferencePrice,
			Quantity:       l.Quantity,
			Material:       l.Material,
			Color:          l.Color,
			Brand:          l.Brand,
		})
	}
	if err := s.repo.Replace(key, rows); err != nil {
		return fmt.Errorf("save snapshot %s: %w", key, err)
	}
	return nil
}

func (s *GormStore) Load(_ context.Context, key string) ([]cart.Line, error) {
	rows, err := s.repo.FindByKey(key)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", key, err)
	}

	lines := make([]cart.Line, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, cart.Line{
			ItemID:         r.ItemID,
			Name:           r.Name,
			ImageURL:       r.ImageURL,
			UnitPrice:      r.UnitPrice,
			ReferencePrice: r.ReferencePrice,
			Quantity:       r.Quantity,
			Material:       r.Material,
			Color:          r.Color,
			Brand:          r.Brand,
		})
	}
	return lines, nil
}
