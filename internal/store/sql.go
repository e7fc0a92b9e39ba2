package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"foodsim/internal/graph"
	"foodsim/internal/model"
)

// SQL archives orders in PostgreSQL or SQLite.
type SQL struct {
	db      *sql.DB
	dialect Dialect
}

// OpenPostgres connects with a pgx DSN and creates the schema if needed.
func OpenPostgres(dsn string) (*SQL, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return open(db, postgresDialect{})
}

// OpenSQLite opens or creates the database file at path.
func OpenSQLite(path string) (*SQL, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return open(db, sqliteDialect{})
}

func open(db *sql.DB, d Dialect) (*SQL, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.Name(), err)
	}
	s := &SQL{db: db, dialect: d}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", d.Name(), err)
	}
	return s, nil
}

func (s *SQL) migrate(ctx context.Context) error {
	d := s.dialect
	schema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS completed_orders (
	id           BIGINT PRIMARY KEY,
	destination  INTEGER NOT NULL,
	status       TEXT NOT NULL,
	paid         %s NOT NULL,
	created_at   %s NOT NULL,
	completed_at %s NOT NULL,
	completed_ns BIGINT NOT NULL,
	food         %s NOT NULL,
	history      %s NOT NULL
)`, d.BoolType(), d.TimestampType(), d.TimestampType(), d.JSONType(), d.JSONType())
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_completed_orders_ns ON completed_orders (completed_ns)`)
	return err
}

// q rewrites placeholders for the active dialect.
func (s *SQL) q(query string) string {
	if s.dialect.Name() == "postgres" {
		return Rebind(query)
	}
	return query
}

var _ Archive = (*SQL)(nil)

func (s *SQL) Dialect() Dialect { return s.dialect }

func (s *SQL) Save(ctx context.Context, o model.Order) error {
	food, err := json.Marshal(o.Food)
	if err != nil {
		return err
	}
	history, err := json.Marshal(o.History)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.q(`INSERT INTO completed_orders
	(id, destination, status, paid, created_at, completed_at, completed_ns, food, history)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
	destination = excluded.destination, status = excluded.status, paid = excluded.paid,
	created_at = excluded.created_at, completed_at = excluded.completed_at,
	completed_ns = excluded.completed_ns, food = excluded.food, history = excluded.history`),
		int64(o.ID), int(o.Destination), o.Status.String(), o.Paid,
		stamp(o.Created), stamp(o.Completed), o.Completed.UnixNano(),
		string(food), string(history))
	if err != nil {
		return fmt.Errorf("save order %d: %w", o.ID, err)
	}
	return nil
}

const selectOrder = `SELECT id, destination, status, paid, created_at, completed_at, food, history FROM completed_orders`

func (s *SQL) Get(ctx context.Context, id model.OrderID) (model.Order, error) {
	row := s.db.QueryRowContext(ctx, s.q(selectOrder+` WHERE id = ?`), int64(id))
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Order{}, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	return o, err
}

func (s *SQL) Recent(ctx context.Context, limit int) ([]model.Order, error) {
	rows, err := s.db.QueryContext(ctx, s.q(selectOrder+` ORDER BY completed_ns DESC, id DESC LIMIT ?`), clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *SQL) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM completed_orders`).Scan(&n)
	return n, err
}

func (s *SQL) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQL) Close() error { return s.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(sc scanner) (model.Order, error) {
	var (
		o                  model.Order
		id                 int64
		dest               int
		status             string
		created, completed any
		food, history      []byte
	)
	if err := sc.Scan(&id, &dest, &status, &o.Paid, &created, &completed, &food, &history); err != nil {
		return model.Order{}, err
	}
	st, err := model.ParseStatus(status)
	if err != nil {
		return model.Order{}, err
	}
	o.ID, o.Destination, o.Status = model.OrderID(id), graph.VertexID(dest), st
	o.Created, o.Completed = parseTime(created), parseTime(completed)
	if err := json.Unmarshal(food, &o.Food); err != nil {
		return model.Order{}, fmt.Errorf("order %d food: %w", id, err)
	}
	if err := json.Unmarshal(history, &o.History); err != nil {
		return model.Order{}, fmt.Errorf("order %d history: %w", id, err)
	}
	return o, nil
}

func stamp(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

// parseTime converts a scanned timestamp. SQLite returns the stored text,
// PostgreSQL a time.Time.
func parseTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case []byte:
		return parseTime(string(t))
	case string:
		if p, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return p
		}
	}
	return time.Time{}
}
