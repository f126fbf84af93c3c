package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"localhaven-cms/internal/model"
	"localhaven-cms/internal/storage"
)

// AssetRepository holds the asset mutators. Records live under model.AssetKeyPrefix.
type AssetRepository struct {
	store storage.Store
	clock func() time.Time
	newID func() string
}

type AssetOption func(*AssetRepository)

func WithAssetClock(clock func() time.Time) AssetOption {
	return func(r *AssetRepository) { r.clock = clock }
}

func WithAssetIDs(newID func() string) AssetOption {
	return func(r *AssetRepository) { r.newID = newID }
}

func NewAssetRepository(store storage.Store, opts ...AssetOption) *AssetRepository {
	r := &AssetRepository{
		store: store,
		clock: func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type updateAssetArgs struct {
	ID    string           `json:"id"`
	Patch model.AssetPatch `json:"patch"`
}

type deleteAssetArgs struct {
	ID string `json:"id"`
}

// CreateAsset stores a new asset and returns its generated id.
func (r *AssetRepository) CreateAsset(ctx context.Context, fields model.AssetFields) (string, error) {
	if err := fields.Validate(); err != nil {
		return "", err
	}

	asset := model.NewAsset(r.newID(), fields, r.clock())
	key := model.AssetKey(asset.ID)

	err := r.store.Mutate(ctx, model.MutatorCreateAsset, asset, func(ctx context.Context, tx storage.WriteTx) error {
		exists, err := tx.Has(ctx, key)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("create asset: id %s already in use", asset.ID)
		}
		return tx.Set(ctx, key, asset)
	})
	if err != nil {
		return "", err
	}

	return asset.ID, nil
}

// UpdateAsset applies patch to an existing asset and always moves updatedAt
// forward. It fails with model.ErrAssetNotFound when id is unknown.
func (r *AssetRepository) UpdateAsset(ctx context.Context, id string, patch model.AssetPatch) (*model.Asset, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	key := model.AssetKey(id)
	args := updateAssetArgs{ID: id, Patch: patch}

	var updated model.Asset
	err := r.store.Mutate(ctx, model.MutatorUpdateAsset, args, func(ctx context.Context, tx storage.WriteTx) error {
		existing, ok, err := storage.GetJSON[model.Asset](ctx, tx, key)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", model.ErrAssetNotFound, id)
		}

		updated = patch.Apply(existing)
		updated.UpdatedAt = r.nextUpdatedAt(existing.UpdatedAt)
		return tx.Set(ctx, key, updated)
	})
	if err != nil {
		return nil, err
	}

	return &updated, nil
}

// DeleteAsset removes an asset. Deleting an unknown id is a no-op.
func (r *AssetRepository) DeleteAsset(ctx context.Context, id string) error {
	return r.store.Mutate(ctx, model.MutatorDeleteAsset, deleteAssetArgs{ID: id}, func(ctx context.Context, tx storage.WriteTx) error {
		_, err := tx.Delete(ctx, model.AssetKey(id))
		return err
	})
}

// Get returns the asset, or nil when id is unknown.
func (r *AssetRepository) Get(ctx context.Context, id string) (*model.Asset, error) {
	var asset *model.Asset
	err := r.store.Read(ctx, func(ctx context.Context, tx storage.ReadTx) error {
		a, ok, err := storage.GetJSON[model.Asset](ctx, tx, model.AssetKey(id))
		if err != nil || !ok {
			return err
		}
		asset = &a
		return nil
	})
	return asset, err
}

func (r *AssetRepository) List(ctx context.Context) ([]model.Asset, error) {
	var assets []model.Asset
	err := r.store.Read(ctx, func(ctx context.Context, tx storage.ReadTx) error {
		list, err := ListAssets(ctx, tx)
		assets = list
		return err
	})
	return assets, err
}

func (r *AssetRepository) ListByType(ctx context.Context, assetType string) ([]model.Asset, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]model.Asset, 0, len(all))
	for _, a := range all {
		if a.Type == assetType {
			matched = append(matched, a)
		}
	}
	return matched, nil
}

// ListAssets reads every asset inside tx, ordered by key.
func ListAssets(ctx context.Context, tx storage.ReadTx) ([]model.Asset, error) {
	assets, err := storage.ScanJSON[model.Asset](ctx, tx, model.AssetKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	return assets, nil
}

// nextUpdatedAt is the clock reading, pushed past prev when the clock has
// not advanced.
func (r *AssetRepository) nextUpdatedAt(prev time.Time) time.Time {
	now := r.clock()
	if !now.After(prev) {
		now = prev.Add(time.Nanosecond)
	}
	return now
}
