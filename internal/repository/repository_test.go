package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localhaven-cms/internal/event"
	"localhaven-cms/internal/model"
	"localhaven-cms/internal/storage"
)

func ptr[T any](v T) *T { return &v }

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newSession() model.Session {
	return model.Session{
		User: model.User{
			ID:        "u-1",
			Email:     "ada@example.com",
			Role:      model.RoleViewer,
			CreatedAt: t0,
			UpdatedAt: t0,
		},
		Token:     "tok",
		ExpiresAt: t0.Add(time.Hour),
	}
}

func newMemoryStore(t *testing.T) *storage.MemoryStore {
	t.Helper()
	s := storage.NewMemoryStore("test")
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSessionRepository_UpdateUserRequiresSession(t *testing.T) {
	repo := NewSessionRepository(newMemoryStore(t))

	_, err := repo.UpdateUser(context.Background(), model.UserPatch{Role: ptr(model.RoleEditor)})
	assert.ErrorIs(t, err, model.ErrNoActiveSession)
	assert.EqualError(t, err, "no active session")
}

func TestSessionRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)
	repo := NewSessionRepository(store)

	got, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, repo.SetSession(ctx, newSession()))

	updated, err := repo.UpdateUser(ctx, model.UserPatch{Role: ptr(model.RoleEditor)})
	require.NoError(t, err)

	assert.Equal(t, model.RoleEditor, updated.User.Role)
	assert.Equal(t, "ada@example.com", updated.User.Email)
	assert.True(t, updated.ExpiresAt.Equal(t0.Add(time.Hour)))

	got, err = repo.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.RoleEditor, got.User.Role)
	assert.Equal(t, "ada@example.com", got.User.Email, "unpatched fields are untouched")
	assert.Equal(t, "u-1", got.User.ID)
	assert.True(t, got.User.UpdatedAt.Equal(t0))
	assert.Equal(t, "tok", got.Token)

	require.NoError(t, repo.ClearSession(ctx))
	got, err = repo.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, repo.ClearSession(ctx), "clearing an absent session is fine")

	pending, err := store.Pending(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(pending))
	for _, m := range pending {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{
		model.MutatorSetSession,
		model.MutatorUpdateUser,
		model.MutatorClearSession,
		model.MutatorClearSession,
	}, names)
}

func TestSessionRepository_UpdateUserRejectsInvalidPatch(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(newMemoryStore(t))
	require.NoError(t, repo.SetSession(ctx, newSession()))

	_, err := repo.UpdateUser(ctx, model.UserPatch{Role: ptr(model.Role("owner"))})
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	got, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.RoleViewer, got.User.Role)
}

func newAssetRepo(t *testing.T, store storage.Store) *AssetRepository {
	t.Helper()
	n := 0
	return NewAssetRepository(store,
		WithAssetClock(func() time.Time { return t0 }),
		WithAssetIDs(func() string {
			n++
			return fmt.Sprintf("id-%02d", n)
		}),
	)
}

func TestAssetRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewAssetRepository(newMemoryStore(t))

	id, err := repo.CreateAsset(ctx, model.AssetFields{Name: "a.png", Type: "image", Size: 10, Metadata: map[string]any{}})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	other, err := repo.CreateAsset(ctx, model.AssetFields{Name: "b.png", Type: "image", Size: 1})
	require.NoError(t, err)
	assert.NotEqual(t, id, other)

	got, err := repo.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "a.png", got.Name)
	assert.Equal(t, "image", got.Type)
	assert.Equal(t, int64(10), got.Size)
	assert.Equal(t, map[string]any{}, got.Metadata)
	assert.True(t, got.CreatedAt.Equal(got.UpdatedAt))

	missing, err := repo.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAssetRepository_CreateRejectsInvalidFields(t *testing.T) {
	repo := NewAssetRepository(newMemoryStore(t))

	_, err := repo.CreateAsset(context.Background(), model.AssetFields{Type: "image"})
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = repo.CreateAsset(context.Background(), model.AssetFields{Name: "a", Type: "image", Size: -1})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestAssetRepository_CreateRefusesIDCollision(t *testing.T) {
	ctx := context.Background()
	repo := NewAssetRepository(newMemoryStore(t), WithAssetIDs(func() string { return "same" }))

	_, err := repo.CreateAsset(ctx, model.AssetFields{Name: "a", Type: "image"})
	require.NoError(t, err)

	_, err = repo.CreateAsset(ctx, model.AssetFields{Name: "b", Type: "image"})
	assert.Error(t, err)

	got, err := repo.Get(ctx, "same")
	require.NoError(t, err)
	assert.Equal(t, "a", got.Name)
}

func TestAssetRepository_Update(t *testing.T) {
	ctx := context.Background()
	repo := newAssetRepo(t, newMemoryStore(t))

	id, err := repo.CreateAsset(ctx, model.AssetFields{
		Name:     "a.png",
		Type:     "image",
		Size:     10,
		Metadata: map[string]any{"alt": "logo"},
	})
	require.NoError(t, err)
	before, err := repo.Get(ctx, id)
	require.NoError(t, err)

	// The clock is frozen, so updatedAt must still move forward.
	updated, err := repo.UpdateAsset(ctx, id, model.AssetPatch{Size: ptr(int64(20))})
	require.NoError(t, err)
	assert.Equal(t, int64(20), updated.Size)
	assert.True(t, updated.UpdatedAt.After(before.UpdatedAt))

	after, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "a.png", after.Name)
	assert.Equal(t, "image", after.Type)
	assert.Equal(t, map[string]any{"alt": "logo"}, after.Metadata)
	assert.True(t, after.CreatedAt.Equal(before.CreatedAt))
	assert.True(t, after.UpdatedAt.Equal(updated.UpdatedAt))

	again, err := repo.UpdateAsset(ctx, id, model.AssetPatch{})
	require.NoError(t, err)
	assert.True(t, again.UpdatedAt.After(after.UpdatedAt), "every update moves updatedAt")
}

func TestAssetRepository_UpdateMissing(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)
	repo := NewAssetRepository(store)

	events := 0
	store.Watch(func(event.Event) { events++ })

	_, err := repo.UpdateAsset(ctx, "nope", model.AssetPatch{Size: ptr(int64(1))})
	assert.ErrorIs(t, err, model.ErrAssetNotFound)
	assert.Zero(t, events)

	pending, err := store.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending, "a failed mutator is not queued")

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestAssetRepository_Delete(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)
	repo := newAssetRepo(t, store)

	id, err := repo.CreateAsset(ctx, model.AssetFields{Name: "a.png", Type: "image"})
	require.NoError(t, err)

	events := 0
	store.Watch(func(event.Event) { events++ })

	require.NoError(t, repo.DeleteAsset(ctx, "nope"))
	assert.Zero(t, events, "deleting a missing asset changes nothing")

	require.NoError(t, repo.DeleteAsset(ctx, id))
	assert.Equal(t, 1, events)

	got, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)

	images, err := repo.ListByType(ctx, "image")
	require.NoError(t, err)
	assert.Empty(t, images)
}

func TestAssetRepository_ListByType(t *testing.T) {
	ctx := context.Background()
	store, err := storage.OpenSQLite(ctx, "assets", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	repo := newAssetRepo(t, store)

	for _, f := range []model.AssetFields{
		{Name: "a.png", Type: "image"},
		{Name: "b.png", Type: "image"},
		{Name: "c.mp4", Type: "video"},
	} {
		_, err := repo.CreateAsset(ctx, f)
		require.NoError(t, err)
	}

	images, err := repo.ListByType(ctx, "image")
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, "a.png", images[0].Name)
	assert.Equal(t, "b.png", images[1].Name)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := repo.ListByType(ctx, "audio")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAssetRepository_UpdateRecordsMetadataClear(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)
	repo := newAssetRepo(t, store)

	id, err := repo.CreateAsset(ctx, model.AssetFields{Name: "a.png", Type: "image", Metadata: map[string]any{"alt": "logo"}})
	require.NoError(t, err)

	updated, err := repo.UpdateAsset(ctx, id, model.AssetPatch{Metadata: map[string]any{}})
	require.NoError(t, err)
	assert.Empty(t, updated.Metadata)

	pending, err := store.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, model.MutatorUpdateAsset, pending[1].Name)

	// Replaying the recorded args must clear the metadata again.
	var args updateAssetArgs
	require.NoError(t, json.Unmarshal(pending[1].Args, &args))
	assert.Equal(t, id, args.ID)
	require.NotNil(t, args.Patch.Metadata)
	assert.Empty(t, args.Patch.Metadata)

	replayed := args.Patch.Apply(model.Asset{Metadata: map[string]any{"alt": "logo"}})
	assert.Empty(t, replayed.Metadata)
}
