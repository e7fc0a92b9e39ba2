package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"foodsim/internal/model"
)

func completedOrder(id model.OrderID, completed time.Time) model.Order {
	created := completed.Add(-40 * time.Minute)
	return model.Order{
		ID:          id,
		Destination: 3,
		Created:     created,
		Completed:   completed,
		Food:        []model.Food{{Name: "Hawaiian", Qty: 2, Status: model.FoodDone}, {Name: "Cola", Qty: 1, Status: model.FoodDone}},
		Status:      model.StatusCompleted,
		Paid:        true,
		History: []model.StatusChange{
			{Status: model.StatusAccepted, At: created},
			{Status: model.StatusCompleted, At: completed},
		},
	}
}

// testArchive runs the behaviour every Archive implementation shares.
func testArchive(t *testing.T, a Archive) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []model.OrderID{1, 2, 3} {
		if err := a.Save(ctx, completedOrder(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("save %d: %v", id, err)
		}
	}
	// saving again replaces the row
	if err := a.Save(ctx, completedOrder(1, base.Add(10*time.Minute))); err != nil {
		t.Fatalf("resave: %v", err)
	}

	n, err := a.Count(ctx)
	if err != nil || n != 3 {
		t.Fatalf("count = %d, %v", n, err)
	}
	got, err := a.Get(ctx, 2)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := completedOrder(2, base.Add(time.Minute))
	if got.Status != model.StatusCompleted || !got.Paid || got.Destination != 3 {
		t.Fatalf("get = %+v", got)
	}
	if !got.Completed.Equal(want.Completed) || !got.Created.Equal(want.Created) {
		t.Fatalf("timestamps = %v %v", got.Created, got.Completed)
	}
	if len(got.Food) != 2 || got.Food[0].Name != "Hawaiian" || got.Food[0].Qty != 2 || got.Food[0].Status != model.FoodDone {
		t.Fatalf("food = %+v", got.Food)
	}
	if len(got.History) != 2 || got.History[1].Status != model.StatusCompleted {
		t.Fatalf("history = %+v", got.History)
	}
	if _, err := a.Get(ctx, 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing order: %v", err)
	}

	recent, err := a.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != 1 || recent[1].ID != 3 {
		t.Fatalf("recent = %v", ids(recent))
	}
}

func ids(orders []model.Order) []model.OrderID {
	out := make([]model.OrderID, len(orders))
	for i, o := range orders {
		out[i] = o.ID
	}
	return out
}

func TestMemoryArchive(t *testing.T) {
	testArchive(t, NewMemory())
}

func TestSQLiteArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.db")
	a, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	testArchive(t, a)

	// the schema survives reopening
	a.Close()
	b, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer b.Close()
	if n, err := b.Count(context.Background()); err != nil || n != 3 {
		t.Fatalf("count after reopen = %d, %v", n, err)
	}
}

func TestRebind(t *testing.T) {
	got := Rebind(`SELECT * FROM t WHERE a = ? AND b = ?`)
	if got != `SELECT * FROM t WHERE a = $1 AND b = $2` {
		t.Fatalf("rebind = %q", got)
	}
}

type flaky struct {
	Archive
	fails int
}

func (f *flaky) Save(ctx context.Context, o model.Order) error {
	if f.fails > 0 {
		f.fails--
		return errors.New("database unavailable")
	}
	return f.Archive.Save(ctx, o)
}

func TestWriterSavesQueuedOrders(t *testing.T) {
	mem := NewMemory()
	w := NewWriter(mem, 8)
	w.Start()
	now := time.Now()
	for id := model.OrderID(1); id <= 3; id++ {
		if !w.Enqueue(completedOrder(id, now)) {
			t.Fatalf("enqueue %d dropped", id)
		}
	}
	w.Close()
	if n, _ := mem.Count(context.Background()); n != 3 {
		t.Fatalf("saved %d orders", n)
	}
}

func TestWriterGivesUp(t *testing.T) {
	mem := NewMemory()
	w := NewWriter(&flaky{Archive: mem, fails: 1}, 1)
	w.MaxAttempts = 1
	w.Start()
	w.Enqueue(completedOrder(1, time.Now()))
	w.Close()
	if n, _ := mem.Count(context.Background()); n != 0 {
		t.Fatalf("saved %d orders", n)
	}
}

func TestWriterDropsWhenFull(t *testing.T) {
	w := NewWriter(NewMemory(), 1)
	if !w.Enqueue(completedOrder(1, time.Now())) {
		t.Fatalf("first enqueue dropped")
	}
	if w.Enqueue(completedOrder(2, time.Now())) {
		t.Fatalf("second enqueue accepted by a full, unstarted writer")
	}
}

func TestNextBackoff(t *testing.T) {
	if got := nextBackoff(1); got != 2*time.Second {
		t.Fatalf("backoff(1) = %s", got)
	}
	if got := nextBackoff(20); got != time.Minute {
		t.Fatalf("backoff(20) = %s", got)
	}
}
