// Package storage defines the persistence ports for the bot's entities.
// Postgres adapters live in the postgres subpackage; the memory subpackage
// provides in-memory doubles with the same conflict semantics for tests.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrHandleTaken indicates another user already registered the handle.
	ErrHandleTaken = errors.New("storage: handle taken")
	// ErrDuplicateParcel indicates the owner already tracks the code.
	ErrDuplicateParcel = errors.New("storage: duplicate parcel")
)

// User is an account row. ID is the messaging-platform user identifier.
// Guests have an empty Handle and SecretHash until they register.
type User struct {
	ID         int64     `db:"id"`
	Handle     string    `db:"handle"`
	SecretHash string    `db:"secret_hash"`
	FirstName  string    `db:"first_name"`
	LastName   string    `db:"last_name"`
	CreatedAt  time.Time `db:"created_at"`
}

// Registered reports whether the user completed registration.
func (u *User) Registered() bool {
	return u != nil && u.Handle != ""
}

// Parcel is a tracked shipment owned by a user.
type Parcel struct {
	ID      int64     `db:"id"`
	OwnerID int64     `db:"owner_id"`
	Code    string    `db:"code"`
	Status  string    `db:"status"`
	AddedAt time.Time `db:"added_at"`
}

// UserStore persists accounts.
type UserStore interface {
	// GetUser returns the user row or ErrNotFound.
	GetUser(ctx context.Context, id int64) (*User, error)
	// GetUserByHandle returns the registered user owning the handle or ErrNotFound.
	GetUserByHandle(ctx context.Context, handle string) (*User, error)
	// EnsureUser returns the row for id, creating a guest row when absent.
	EnsureUser(ctx context.Context, id int64) (*User, error)
	// SaveUser writes handle, secret hash and names for an existing row.
	// Returns ErrHandleTaken when the handle is owned by another user.
	SaveUser(ctx context.Context, u *User) error
	// UpdateSecret replaces the stored secret hash.
	UpdateSecret(ctx context.Context, id int64, hash string) error
	// RebindIdentity moves the account row from fromID to toID in one
	// transaction: parcels tracked under toID's guest row are re-parented
	// to the account first, the stale guest row is removed, then the
	// account primary key moves to toID (parcel ownership follows).
	RebindIdentity(ctx context.Context, fromID, toID int64) error
}

// ParcelStore persists tracked parcels.
type ParcelStore interface {
	// InsertParcel adds a parcel; ErrDuplicateParcel when the owner
	// already tracks the code.
	InsertParcel(ctx context.Context, p *Parcel) error
	// ParcelsByOwner lists parcels in insertion order.
	ParcelsByOwner(ctx context.Context, owner int64) ([]Parcel, error)
	// DeleteParcel removes one parcel and reports whether it existed.
	DeleteParcel(ctx context.Context, owner int64, code string) (bool, error)
	// DeleteAllParcels removes every parcel of the owner and returns the count.
	DeleteAllParcels(ctx context.Context, owner int64) (int64, error)
	// CountParcels returns the number of parcels tracked by the owner.
	CountParcels(ctx context.Context, owner int64) (int64, error)
}

// Store aggregates all persistence ports.
type Store interface {
	UserStore
	ParcelStore
}
