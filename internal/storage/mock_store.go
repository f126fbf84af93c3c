package storage

import (
	"context"

	"github.com/stretchr/testify/mock"

	"localhaven-cms/internal/event"
	"localhaven-cms/internal/model"
)

// MockStore is a testify mock of Store. Read and Mutate never call fn;
// they only return the configured error.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockStore) Read(ctx context.Context, fn func(ctx context.Context, tx ReadTx) error) error {
	args := m.Called(ctx, fn)
	return args.Error(0)
}

func (m *MockStore) Mutate(ctx context.Context, name string, a any, fn func(ctx context.Context, tx WriteTx) error) error {
	args := m.Called(ctx, name, a, fn)
	return args.Error(0)
}

func (m *MockStore) Watch(fn func(event.Event)) func() {
	args := m.Called(fn)
	if args.Get(0) == nil {
		return func() {}
	}
	return args.Get(0).(func())
}

func (m *MockStore) Pending(ctx context.Context) ([]model.Mutation, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Mutation), args.Error(1)
}

func (m *MockStore) Ack(ctx context.Context, ids ...string) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}

func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
