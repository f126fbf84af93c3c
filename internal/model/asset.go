package model

import (
	"maps"
	"time"
)

// AssetKeyPrefix namespaces asset records in the local store.
const AssetKeyPrefix = "asset/"

func AssetKey(id string) string {
	return AssetKeyPrefix + id
}

type Asset struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Type      string         `json:"type"`
	Size      int64          `json:"size"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// AssetFields is the caller-supplied part of a new asset. Identity and
// timestamps are assigned by the store.
type AssetFields struct {
	Name     string         `json:"name" validate:"required"`
	Type     string         `json:"type" validate:"required"`
	Size     int64          `json:"size" validate:"gte=0"`
	Metadata map[string]any `json:"metadata"`
}

func (f AssetFields) Validate() error {
	return validateStruct(f)
}

// AssetPatch lists the asset fields an update may change. Nil fields are
// left untouched; a non-nil Metadata replaces the whole map.
type AssetPatch struct {
	Name     *string        `json:"name,omitempty" validate:"omitempty,min=1"`
	Type     *string        `json:"type,omitempty" validate:"omitempty,min=1"`
	Size     *int64         `json:"size,omitempty" validate:"omitempty,gte=0"`
	Metadata map[string]any `json:"metadata"`
}

func (p AssetPatch) Validate() error {
	return validateStruct(p)
}

func (p AssetPatch) Apply(a Asset) Asset {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Type != nil {
		a.Type = *p.Type
	}
	if p.Size != nil {
		a.Size = *p.Size
	}
	if p.Metadata != nil {
		a.Metadata = maps.Clone(p.Metadata)
	}
	return a
}

// NewAsset builds a full record from caller fields.
func NewAsset(id string, fields AssetFields, now time.Time) Asset {
	metadata := maps.Clone(fields.Metadata)
	if metadata == nil {
		metadata = map[string]any{}
	}

	return Asset{
		ID:        id,
		Name:      fields.Name,
		Type:      fields.Type,
		Size:      fields.Size,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
