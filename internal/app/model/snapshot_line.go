package model

import (
	"time"
)

// SnapshotLine is one line of the last authoritative cart, persisted so the
// client can show something on a cold start before the backend answers.
type SnapshotLine struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	SnapshotKey    string    `gorm:"size:128;not null;index:idx_snapshot_key_position,priority:1" json:"snapshot_key"`
	Position       int       `gorm:"not null;index:idx_snapshot_key_position,priority:2" json:"position"`
	ItemID         string    `gorm:"size:128;not null" json:"item_id"`
	Name           string    `gorm:"size:255" json:"name"`
	ImageURL       string    `gorm:"size:1024" json:"image_url"`
	UnitPrice      int64     `gorm:"not null;default:0" json:"unit_price"`
	ReferencePrice int64     `gorm:"not null;default:0" json:"reference_price"`
	Quantity       int       `gorm:"not null;default:1" json:"quantity"`
	Material       string    `gorm:"size:64" json:"material,omitempty"`
	Color          string    `gorm:"size:64" json:"color,omitempty"`
	Brand          string    `gorm:"size:128" json:"brand,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (SnapshotLine) TableName() string {
	return "cart_snapshot_lines"
}
