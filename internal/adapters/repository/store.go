// Package repository indexes tracking rows by (game, play, frame) so a
// tackle event can be joined to the snapshot it happened in.
package repository

import (
	"context"

	"github.com/okian/tackle/internal/domain/model"
)

// Store provides read/write access to the snapshot index.
type Store interface {
	// Add appends rows to the group of their composite key.
	Add(ctx context.Context, rows ...model.PlayerRow) error

	// Group returns every row recorded for key, in insertion order.
	// Returns ErrGroupNotFound if no row has that key.
	Group(ctx context.Context, key model.Key) ([]model.PlayerRow, error)

	// Count returns the number of distinct groups.
	Count(ctx context.Context) int

	// Rows returns the number of indexed rows.
	Rows(ctx context.Context) int
}
