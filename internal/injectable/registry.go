package injectable

import (
	"context"

	"github.com/emrgen/template/internal/model"
	"github.com/emrgen/template/internal/store"
	"github.com/google/uuid"
)

const DefaultLocale = "en"

// Accessible is an injectable a workspace may reference from its documents.
type Accessible struct {
	Key        string `json:"key"`
	ID         string `json:"id"`
	IsGlobal   bool   `json:"isGlobal"`
	SourceType string `json:"sourceType"`
	DataType   string `json:"dataType"`
	Label      string `json:"label"`
}

// Lister returns the injectables accessible from a workspace.
type Lister interface {
	List(ctx context.Context, workspaceID uuid.UUID) ([]Accessible, error)
}

// LocalizedLister is a Lister that can label its results for a locale.
type LocalizedLister interface {
	Lister
	ListLocalized(ctx context.Context, workspaceID uuid.UUID, locale string) ([]Accessible, error)
}

var _ LocalizedLister = (*Registry)(nil)

// Registry reads system and workspace injectables from the store.
type Registry struct {
	store store.InjectableStore
}

func NewRegistry(store store.InjectableStore) *Registry {
	return &Registry{store: store}
}

func (r *Registry) List(ctx context.Context, workspaceID uuid.UUID) ([]Accessible, error) {
	return r.ListLocalized(ctx, workspaceID, DefaultLocale)
}

func (r *Registry) ListLocalized(ctx context.Context, workspaceID uuid.UUID, locale string) ([]Accessible, error) {
	rows, err := r.store.ListAccessibleInjectables(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	accessible := make([]Accessible, 0, len(rows))
	for _, row := range rows {
		accessible = append(accessible, fromModel(row, locale))
	}

	return accessible, nil
}

func fromModel(row *model.Injectable, locale string) Accessible {
	return Accessible{
		Key:        row.Key,
		ID:         row.ID,
		IsGlobal:   row.IsGlobal(),
		SourceType: row.SourceType,
		DataType:   row.DataType,
		Label:      row.Label(locale),
	}
}

// Index maps keys to accessible injectables. A workspace definition shadows a
// system one with the same key.
func Index(accessible []Accessible) map[string]Accessible {
	index := make(map[string]Accessible, len(accessible))
	for _, a := range accessible {
		if existing, ok := index[a.Key]; ok && !existing.IsGlobal {
			continue
		}
		index[a.Key] = a
	}

	return index
}
