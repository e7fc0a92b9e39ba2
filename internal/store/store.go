// Package store archives completed orders. The simulation keeps only a short
// in-memory history; an Archive keeps everything that ever completed.
package store

import (
	"context"
	"errors"

	"foodsim/internal/model"
)

// Archive is the persistence interface for completed orders.
type Archive interface {
	// Save stores a completed order. Saving the same id twice keeps the latest copy.
	Save(ctx context.Context, o model.Order) error
	Get(ctx context.Context, id model.OrderID) (model.Order, error)
	// Recent lists up to limit orders, most recently completed first.
	Recent(ctx context.Context, limit int) ([]model.Order, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

var ErrNotFound = errors.New("not found")

const (
	defaultLimit = 50
	maxLimit     = 500
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return min(limit, maxLimit)
}
