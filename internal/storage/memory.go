package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"localhaven-cms/internal/event"
	"localhaven-cms/internal/model"
)

// MemoryStore keeps everything in process memory. Nothing survives Close.
type MemoryStore struct {
	notifier

	mu      sync.RWMutex
	data    map[string][]byte
	pending []model.Mutation
	closed  bool
}

func NewMemoryStore(name string, opts ...Option) *MemoryStore {
	o := newOptions(opts)
	return &MemoryStore{
		notifier: notifier{name: name, bus: o.bus, clock: o.clock, logger: o.logger},
		data:     make(map[string][]byte),
	}
}

func (s *MemoryStore) Name() string { return s.name }

func (s *MemoryStore) Read(ctx context.Context, fn func(ctx context.Context, tx ReadTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return model.ErrStoreClosed
	}
	return fn(ctx, &memoryTx{base: s.data})
}

func (s *MemoryStore) Mutate(ctx context.Context, name string, args any, fn func(ctx context.Context, tx WriteTx) error) error {
	keys, err := s.commit(ctx, name, args, fn)
	if err != nil {
		return err
	}

	s.publish(name, keys)
	return nil
}

func (s *MemoryStore) commit(ctx context.Context, name string, args any, fn func(ctx context.Context, tx WriteTx) error) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mutation, err := newMutation(name, args, s.clock())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, model.ErrStoreClosed
	}

	tx := &memoryTx{base: s.data, writes: map[string]memoryWrite{}}
	if err := fn(ctx, tx); err != nil {
		return nil, err
	}

	for key, w := range tx.writes {
		if w.deleted {
			delete(s.data, key)
			continue
		}
		s.data[key] = w.value
	}
	s.pending = append(s.pending, mutation)

	return tx.changed.sorted(), nil
}

func (s *MemoryStore) Watch(fn func(event.Event)) func() {
	return s.bus.Subscribe(fn)
}

func (s *MemoryStore) Pending(ctx context.Context) ([]model.Mutation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, model.ErrStoreClosed
	}
	return slices.Clone(s.pending), nil
}

func (s *MemoryStore) Ack(ctx context.Context, ids ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return model.ErrStoreClosed
	}
	s.pending = slices.DeleteFunc(s.pending, func(m model.Mutation) bool {
		return slices.Contains(ids, m.ID)
	})
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.data = map[string][]byte{}
	s.pending = nil
	return nil
}

type memoryWrite struct {
	value   []byte
	deleted bool
}

// memoryTx reads through its own uncommitted writes to base.
type memoryTx struct {
	base    map[string][]byte
	writes  map[string]memoryWrite
	changed touched
}

func (tx *memoryTx) lookup(key string) ([]byte, bool) {
	if w, ok := tx.writes[key]; ok {
		return w.value, !w.deleted
	}
	v, ok := tx.base[key]
	return v, ok
}

func (tx *memoryTx) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	v, ok := tx.lookup(key)
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(v), true, nil
}

func (tx *memoryTx) Has(ctx context.Context, key string) (bool, error) {
	_, ok := tx.lookup(key)
	return ok, nil
}

func (tx *memoryTx) Scan(ctx context.Context, prefix string) ([]Entry, error) {
	keys := make([]string, 0)
	for k := range tx.base {
		if strings.HasPrefix(k, prefix) {
			if _, shadowed := tx.writes[k]; !shadowed {
				keys = append(keys, k)
			}
		}
	}
	for k, w := range tx.writes {
		if !w.deleted && strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		v, _ := tx.lookup(k)
		entries = append(entries, Entry{Key: k, Value: bytes.Clone(v)})
	}
	return entries, nil
}

func (tx *memoryTx) Set(ctx context.Context, key string, value any) error {
	if tx.writes == nil {
		return fmt.Errorf("set %q: read-only transaction", key)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}

	tx.writes[key] = memoryWrite{value: raw}
	tx.changed.add(key)
	return nil
}

func (tx *memoryTx) Delete(ctx context.Context, key string) (bool, error) {
	if tx.writes == nil {
		return false, fmt.Errorf("delete %q: read-only transaction", key)
	}

	if _, ok := tx.lookup(key); !ok {
		return false, nil
	}

	tx.writes[key] = memoryWrite{deleted: true}
	tx.changed.add(key)
	return true, nil
}
