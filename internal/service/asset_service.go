package service

import (
	"context"
	"log/slog"

	"localhaven-cms/internal/event"
	"localhaven-cms/internal/model"
	"localhaven-cms/internal/repository"
	"localhaven-cms/internal/storage"
)

// AssetService is the UI-facing asset state. The list observable follows
// the store; the action methods never touch it directly.
type AssetService struct {
	assets      *repository.AssetRepository
	list        *event.Observable[[]model.Asset]
	unsubscribe func()
	logger      *slog.Logger
}

func NewAssetService(ctx context.Context, store storage.Store, assets *repository.AssetRepository, logger *slog.Logger) (*AssetService, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &AssetService{
		assets: assets,
		list:   event.NewObservable[[]model.Asset]([]model.Asset{}),
		logger: logger,
	}

	unsubscribe, err := storage.Subscribe(ctx, store, repository.ListAssets, s.list.Set, func(err error) {
		s.logger.Error("asset subscription failed", "error", err)
	})
	if err != nil {
		return nil, err
	}
	s.unsubscribe = unsubscribe

	return s, nil
}

// Assets returns the current list in key order.
func (s *AssetService) Assets() []model.Asset {
	return s.list.Get()
}

func (s *AssetService) Subscribe(fn func([]model.Asset)) func() {
	return s.list.Subscribe(fn)
}

func (s *AssetService) Create(ctx context.Context, fields model.AssetFields) (string, error) {
	id, err := s.assets.CreateAsset(ctx, fields)
	if err != nil {
		s.logger.Error("create asset failed", "name", fields.Name, "error", err)
		return "", err
	}
	return id, nil
}

func (s *AssetService) Update(ctx context.Context, id string, patch model.AssetPatch) (*model.Asset, error) {
	asset, err := s.assets.UpdateAsset(ctx, id, patch)
	if err != nil {
		s.logger.Error("update asset failed", "id", id, "error", err)
		return nil, err
	}
	return asset, nil
}

func (s *AssetService) Delete(ctx context.Context, id string) error {
	if err := s.assets.DeleteAsset(ctx, id); err != nil {
		s.logger.Error("delete asset failed", "id", id, "error", err)
		return err
	}
	return nil
}

// GetByID returns nil when no asset has id.
func (s *AssetService) GetByID(ctx context.Context, id string) (*model.Asset, error) {
	asset, err := s.assets.Get(ctx, id)
	if err != nil {
		s.logger.Error("get asset failed", "id", id, "error", err)
		return nil, err
	}
	return asset, nil
}

// GetByType reads the store at call time; the result does not update.
func (s *AssetService) GetByType(ctx context.Context, assetType string) ([]model.Asset, error) {
	assets, err := s.assets.ListByType(ctx, assetType)
	if err != nil {
		s.logger.Error("list assets by type failed", "type", assetType, "error", err)
		return nil, err
	}
	return assets, nil
}

func (s *AssetService) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}
