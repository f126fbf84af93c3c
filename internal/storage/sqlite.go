package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"localhaven-cms/internal/database"
	"localhaven-cms/internal/event"
	"localhaven-cms/internal/model"
)

// SQLiteStore persists records and pending mutations in a SQLite file.
type SQLiteStore struct {
	notifier

	db      *database.DB
	writeMu sync.Mutex
	closed  atomic.Bool
}

func OpenSQLite(ctx context.Context, name, dsn string, opts ...Option) (*SQLiteStore, error) {
	db, err := database.Open(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", name, err)
	}

	o := newOptions(opts)
	return &SQLiteStore{
		notifier: notifier{name: name, bus: o.bus, clock: o.clock, logger: o.logger},
		db:       db,
	}, nil
}

func (s *SQLiteStore) Name() string { return s.name }

func (s *SQLiteStore) Read(ctx context.Context, fn func(ctx context.Context, tx ReadTx) error) error {
	if s.closed.Load() {
		return model.ErrStoreClosed
	}

	return s.db.WithTx(ctx, func(ctx context.Context, q database.DBTX) error {
		return fn(ctx, &sqliteTx{q: q})
	})
}

func (s *SQLiteStore) Mutate(ctx context.Context, name string, args any, fn func(ctx context.Context, tx WriteTx) error) error {
	keys, err := s.commit(ctx, name, args, fn)
	if err != nil {
		return err
	}

	s.publish(name, keys)
	return nil
}

func (s *SQLiteStore) commit(ctx context.Context, name string, args any, fn func(ctx context.Context, tx WriteTx) error) ([]string, error) {
	if s.closed.Load() {
		return nil, model.ErrStoreClosed
	}

	now := s.clock()
	mutation, err := newMutation(name, args, now)
	if err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var keys []string
	err = s.db.WithTx(ctx, func(ctx context.Context, q database.DBTX) error {
		tx := &sqliteTx{q: q, writable: true, now: now}
		if err := fn(ctx, tx); err != nil {
			return err
		}

		_, err := q.ExecContext(ctx,
			`INSERT INTO mutations (id, name, args, created_at) VALUES (?, ?, ?, ?)`,
			mutation.ID, mutation.Name, []byte(mutation.Args), mutation.CreatedAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("record mutation %s: %w", name, err)
		}

		keys = tx.changed.sorted()
		return nil
	})
	if err != nil {
		return nil, err
	}

	return keys, nil
}

func (s *SQLiteStore) Watch(fn func(event.Event)) func() {
	return s.bus.Subscribe(fn)
}

func (s *SQLiteStore) Pending(ctx context.Context) ([]model.Mutation, error) {
	if s.closed.Load() {
		return nil, model.ErrStoreClosed
	}

	rows, err := s.db.SQL.QueryContext(ctx, `SELECT id, name, args, created_at FROM mutations ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list pending mutations: %w", err)
	}
	defer rows.Close()

	out := make([]model.Mutation, 0)
	for rows.Next() {
		var (
			m         model.Mutation
			args      []byte
			createdAt string
		)
		if err := rows.Scan(&m.ID, &m.Name, &args, &createdAt); err != nil {
			return nil, fmt.Errorf("scan pending mutation: %w", err)
		}
		m.Args = json.RawMessage(args)
		m.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse mutation time: %w", err)
		}
		out = append(out, m)
	}

	return out, rows.Err()
}

func (s *SQLiteStore) Ack(ctx context.Context, ids ...string) error {
	if s.closed.Load() {
		return model.ErrStoreClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.db.WithTx(ctx, func(ctx context.Context, q database.DBTX) error {
		for _, id := range ids {
			if _, err := q.ExecContext(ctx, `DELETE FROM mutations WHERE id = ?`, id); err != nil {
				return fmt.Errorf("ack mutation %s: %w", id, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

type sqliteTx struct {
	q        database.DBTX
	writable bool
	now      time.Time
	changed  touched
}

func (tx *sqliteTx) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	var raw []byte
	err := tx.q.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %q: %w", key, err)
	}
	return json.RawMessage(raw), true, nil
}

func (tx *sqliteTx) Has(ctx context.Context, key string) (bool, error) {
	var n int
	if err := tx.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM kv WHERE key = ?`, key).Scan(&n); err != nil {
		return false, fmt.Errorf("has %q: %w", key, err)
	}
	return n > 0, nil
}

func (tx *sqliteTx) Scan(ctx context.Context, prefix string) ([]Entry, error) {
	rows, err := tx.q.QueryContext(ctx,
		`SELECT key, value FROM kv WHERE instr(key, ?) = 1 ORDER BY key`, prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("scan %q: %w", prefix, err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var (
			key string
			raw []byte
		)
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("scan %q: %w", prefix, err)
		}
		entries = append(entries, Entry{Key: key, Value: json.RawMessage(raw)})
	}

	return entries, rows.Err()
}

func (tx *sqliteTx) Set(ctx context.Context, key string, value any) error {
	if !tx.writable {
		return fmt.Errorf("set %q: read-only transaction", key)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}

	_, err = tx.q.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, raw, tx.now.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}

	tx.changed.add(key)
	return nil
}

func (tx *sqliteTx) Delete(ctx context.Context, key string) (bool, error) {
	if !tx.writable {
		return false, fmt.Errorf("delete %q: read-only transaction", key)
	}

	res, err := tx.q.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	if err != nil {
		return false, fmt.Errorf("delete %q: %w", key, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete %q: %w", key, err)
	}
	if n == 0 {
		return false, nil
	}

	tx.changed.add(key)
	return true, nil
}
