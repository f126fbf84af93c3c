// Package storage is the client's local store: a transactional key-value
// space holding JSON records, with commit notifications and a queue of
// pending mutations for the sync engine.
//
// Mutate runs its function as one atomic unit. Writers are serialized; a
// function that returns an error leaves the store untouched and publishes
// nothing. The transaction handles passed to Read and Mutate must not escape
// the callback, and the callback must not call back into the same store.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"localhaven-cms/internal/event"
	"localhaven-cms/internal/model"
)

type Entry struct {
	Key   string
	Value json.RawMessage
}

type ReadTx interface {
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	Has(ctx context.Context, key string) (bool, error)
	// Scan returns every entry whose key starts with prefix, ordered by key.
	Scan(ctx context.Context, prefix string) ([]Entry, error)
}

type WriteTx interface {
	ReadTx
	// Set stores value JSON-encoded under key.
	Set(ctx context.Context, key string, value any) error
	// Delete removes key and reports whether it existed. A missing key is not an error.
	Delete(ctx context.Context, key string) (bool, error)
}

type Store interface {
	Name() string
	Read(ctx context.Context, fn func(ctx context.Context, tx ReadTx) error) error
	// Mutate applies fn atomically and records it as the named mutation with args.
	Mutate(ctx context.Context, name string, args any, fn func(ctx context.Context, tx WriteTx) error) error
	// Watch registers fn for every commit that changed at least one key.
	Watch(fn func(event.Event)) (unsubscribe func())
	// Pending lists committed mutations not yet acknowledged, oldest first.
	Pending(ctx context.Context) ([]model.Mutation, error)
	// Ack drops the given mutations from the pending queue.
	Ack(ctx context.Context, ids ...string) error
	Close() error
}

type Option func(*options)

type options struct {
	clock  func() time.Time
	logger *slog.Logger
	bus    *event.InMemoryBus
}

func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func newOptions(opts []Option) options {
	o := options{
		clock:  func() time.Time { return time.Now().UTC() },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.bus == nil {
		o.bus = event.NewBus()
	}
	return o
}

// notifier publishes commit events for one named store.
type notifier struct {
	name   string
	bus    *event.InMemoryBus
	clock  func() time.Time
	logger *slog.Logger
}

func (n notifier) publish(mutation string, keys []string) {
	if len(keys) == 0 {
		return
	}

	n.logger.Debug("local store commit", "store", n.name, "mutation", mutation, "keys", keys)
	n.bus.Publish(event.Event{
		ID:        uuid.NewString(),
		Type:      event.TypeCommitted,
		Store:     n.name,
		Mutation:  mutation,
		Keys:      keys,
		Timestamp: n.clock(),
	})
}

func newMutation(name string, args any, now time.Time) (model.Mutation, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return model.Mutation{}, fmt.Errorf("encode %s args: %w", name, err)
	}

	return model.Mutation{
		ID:        uuid.NewString(),
		Name:      name,
		Args:      raw,
		CreatedAt: now,
	}, nil
}

// touched tracks the keys a write transaction changed, first-touch order.
type touched struct {
	seen map[string]struct{}
	keys []string
}

func (t *touched) add(key string) {
	if t.seen == nil {
		t.seen = map[string]struct{}{}
	}
	if _, ok := t.seen[key]; ok {
		return
	}
	t.seen[key] = struct{}{}
	t.keys = append(t.keys, key)
}

func (t *touched) sorted() []string {
	out := append([]string(nil), t.keys...)
	sort.Strings(out)
	return out
}

// GetJSON decodes the record at key. The bool is false when the key is absent.
func GetJSON[T any](ctx context.Context, tx ReadTx, key string) (T, bool, error) {
	var out T

	raw, ok, err := tx.Get(ctx, key)
	if err != nil || !ok {
		return out, false, err
	}

	if err := json.Unmarshal(raw, &out); err != nil {
		return out, false, fmt.Errorf("decode %q: %w", key, err)
	}

	return out, true, nil
}

// ScanJSON decodes every record under prefix in key order.
func ScanJSON[T any](ctx context.Context, tx ReadTx, prefix string) ([]T, error) {
	entries, err := tx.Scan(ctx, prefix)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(entries))
	for _, entry := range entries {
		var v T
		if err := json.Unmarshal(entry.Value, &v); err != nil {
			return nil, fmt.Errorf("decode %q: %w", entry.Key, err)
		}
		out = append(out, v)
	}

	return out, nil
}
