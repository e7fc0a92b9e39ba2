package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"foodsim/internal/model"
)

// Memory is a simple in-memory archive used when no database is configured.
type Memory struct {
	mu     sync.Mutex
	orders map[model.OrderID]model.Order
	seq    map[model.OrderID]int // save order, breaks completion-time ties
	next   int
}

func NewMemory() *Memory {
	return &Memory{orders: map[model.OrderID]model.Order{}, seq: map[model.OrderID]int{}}
}

func (m *Memory) Save(_ context.Context, o model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o.Clone()
	m.next++
	m.seq[o.ID] = m.next
	return nil
}

func (m *Memory) Get(_ context.Context, id model.OrderID) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return model.Order{}, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	return o.Clone(), nil
}

func (m *Memory) Recent(_ context.Context, limit int) ([]model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, o.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Completed.Equal(b.Completed) {
			return a.Completed.After(b.Completed)
		}
		return m.seq[a.ID] > m.seq[b.ID]
	})
	if limit = clampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders), nil
}

func (m *Memory) Close() error { return nil }
