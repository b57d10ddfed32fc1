// Package postgres implements the storage ports on sqlx + lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"parcelbot/core/logger"
	"parcelbot/internal/storage"
)

const uniqueViolation = "23505"

// Store implements storage.Store on a Postgres database.
type Store struct {
	db *sqlx.DB
}

var _ storage.Store = (*Store)(nil)

// New wraps an open sqlx handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// GetUser returns the user row or storage.ErrNotFound.
func (s *Store) GetUser(ctx context.Context, id int64) (*storage.User, error) {
	var u storage.User
	err := s.db.GetContext(ctx, &u, `SELECT id, handle, secret_hash, first_name, last_name, created_at FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// GetUserByHandle returns the registered account owning the handle.
func (s *Store) GetUserByHandle(ctx context.Context, handle string) (*storage.User, error) {
	var u storage.User
	err := s.db.GetContext(ctx, &u, `SELECT id, handle, secret_hash, first_name, last_name, created_at FROM users WHERE handle = $1 AND handle <> ''`, handle)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by handle: %w", err)
	}
	return &u, nil
}

// EnsureUser returns the row for id, creating a guest row when absent.
func (s *Store) EnsureUser(ctx context.Context, id int64) (*storage.User, error) {
	var u storage.User
	err := s.db.GetContext(ctx, &u, `
		INSERT INTO users (id, handle, secret_hash, first_name, last_name)
		VALUES ($1, '', '', '', '')
		ON CONFLICT (id) DO UPDATE SET id = users.id
		RETURNING id, handle, secret_hash, first_name, last_name, created_at`, id)
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}
	return &u, nil
}

// SaveUser writes handle, secret hash and names for an existing row.
func (s *Store) SaveUser(ctx context.Context, u *storage.User) error {
	start := time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET handle = $2, secret_hash = $3, first_name = $4, last_name = $5
		WHERE id = $1`,
		u.ID, u.Handle, u.SecretHash, u.FirstName, u.LastName)
	if isUniqueViolation(err) {
		return storage.ErrHandleTaken
	}
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return storage.ErrNotFound
	}
	logger.Debug(ctx, "storage", "user.save",
		slog.Int64("user_id", u.ID),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

// UpdateSecret replaces the stored secret hash.
func (s *Store) UpdateSecret(ctx context.Context, id int64, hash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET secret_hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return fmt.Errorf("update secret: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// RebindIdentity moves the account row from fromID to toID in one transaction.
// Parcels tracked under toID's guest row are re-parented to the account first,
// the stale guest row is removed, then the account primary key moves to toID.
// The parcels FK cascades on update, so the account's parcels follow the id.
func (s *Store) RebindIdentity(ctx context.Context, fromID, toID int64) error {
	if fromID == toID {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("rebind identity: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `UPDATE parcels SET owner_id = $1 WHERE owner_id = $2`, fromID, toID); err != nil {
		return fmt.Errorf("rebind identity: reparent: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, toID); err != nil {
		return fmt.Errorf("rebind identity: drop guest: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE users SET id = $2 WHERE id = $1`, fromID, toID)
	if err != nil {
		return fmt.Errorf("rebind identity: move id: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("rebind identity: commit: %w", err)
	}
	logger.Info(ctx, "storage", "user.rebind",
		slog.Int64("from", fromID),
		slog.Int64("to", toID),
	)
	return nil
}

// InsertParcel adds a parcel owned by a user.
func (s *Store) InsertParcel(ctx context.Context, p *storage.Parcel) error {
	err := s.db.GetContext(ctx, &p.ID, `
		INSERT INTO parcels (owner_id, code, status)
		VALUES ($1, $2, $3)
		RETURNING id`,
		p.OwnerID, p.Code, p.Status)
	if isUniqueViolation(err) {
		return storage.ErrDuplicateParcel
	}
	if err != nil {
		return fmt.Errorf("insert parcel: %w", err)
	}
	return nil
}

// ParcelsByOwner lists parcels in insertion order.
func (s *Store) ParcelsByOwner(ctx context.Context, owner int64) ([]storage.Parcel, error) {
	var out []storage.Parcel
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, owner_id, code, status, added_at FROM parcels
		WHERE owner_id = $1 ORDER BY id`, owner)
	if err != nil {
		return nil, fmt.Errorf("parcels by owner: %w", err)
	}
	return out, nil
}

// DeleteParcel removes one parcel and reports whether it existed.
func (s *Store) DeleteParcel(ctx context.Context, owner int64, code string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM parcels WHERE owner_id = $1 AND code = $2`, owner, code)
	if err != nil {
		return false, fmt.Errorf("delete parcel: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DeleteAllParcels removes every parcel of the owner and returns the count.
func (s *Store) DeleteAllParcels(ctx context.Context, owner int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM parcels WHERE owner_id = $1`, owner)
	if err != nil {
		return 0, fmt.Errorf("delete all parcels: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// CountParcels returns the number of parcels tracked by the owner.
func (s *Store) CountParcels(ctx context.Context, owner int64) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM parcels WHERE owner_id = $1`, owner); err != nil {
		return 0, fmt.Errorf("count parcels: %w", err)
	}
	return n, nil
}
