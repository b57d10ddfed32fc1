// Package parcels manages the per-user registry of tracked shipments.
package parcels

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"parcelbot/core/logger"
	"parcelbot/internal/storage"
)

// AddOutcome reports how an Add call concluded.
type AddOutcome int

const (
	// Added means a new row was created.
	Added AddOutcome = iota
	// AlreadyTracked means the owner already follows this code.
	AlreadyTracked
)

// RemoveOutcome reports how a Remove call concluded.
type RemoveOutcome int

const (
	// Removed means the parcel existed and is gone.
	Removed RemoveOutcome = iota
	// NotTracked means there was nothing to remove.
	NotTracked
)

// Registry wraps the parcel store with idempotent add/remove semantics.
// Racing adds of the same (owner, code) are resolved by the store's
// uniqueness guarantee; the losing writer observes AlreadyTracked.
type Registry struct {
	store storage.ParcelStore
}

// NewRegistry wires the registry.
func NewRegistry(store storage.ParcelStore) *Registry {
	return &Registry{store: store}
}

// Canonical returns the stored form of a tracking code.
func Canonical(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Add tracks a code for the owner. Adding a code the owner already tracks
// is a normal outcome, not an error.
func (r *Registry) Add(ctx context.Context, owner int64, code string) (AddOutcome, error) {
	p := storage.Parcel{OwnerID: owner, Code: Canonical(code)}
	err := r.store.InsertParcel(ctx, &p)
	if errors.Is(err, storage.ErrDuplicateParcel) {
		return AlreadyTracked, nil
	}
	if err != nil {
		return 0, fmt.Errorf("parcels add: %w", err)
	}
	logger.Info(ctx, "parcels", "parcel.added",
		slog.Int64("owner", owner),
		slog.String("code", p.Code),
	)
	return Added, nil
}

// Remove stops tracking one code.
func (r *Registry) Remove(ctx context.Context, owner int64, code string) (RemoveOutcome, error) {
	ok, err := r.store.DeleteParcel(ctx, owner, Canonical(code))
	if err != nil {
		return 0, fmt.Errorf("parcels remove: %w", err)
	}
	if !ok {
		return NotTracked, nil
	}
	return Removed, nil
}

// RemoveAll drops every parcel of the owner and returns how many were removed.
func (r *Registry) RemoveAll(ctx context.Context, owner int64) (int64, error) {
	n, err := r.store.DeleteAllParcels(ctx, owner)
	if err != nil {
		return 0, fmt.Errorf("parcels remove all: %w", err)
	}
	if n > 0 {
		logger.Info(ctx, "parcels", "parcel.cleared",
			slog.Int64("owner", owner),
			slog.Int64("count", n),
		)
	}
	return n, nil
}

// List returns the owner's parcels in the order they were added.
func (r *Registry) List(ctx context.Context, owner int64) ([]storage.Parcel, error) {
	list, err := r.store.ParcelsByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("parcels list: %w", err)
	}
	return list, nil
}

// Count returns the number of parcels the owner tracks.
func (r *Registry) Count(ctx context.Context, owner int64) (int64, error) {
	n, err := r.store.CountParcels(ctx, owner)
	if err != nil {
		return 0, fmt.Errorf("parcels count: %w", err)
	}
	return n, nil
}
