// Package memory provides an in-memory storage.Store with the same
// conflict semantics as the Postgres adapter. Intended for tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"parcelbot/internal/storage"
)

// Store is a thread-safe in-memory storage.Store implementation.
type Store struct {
	mu      sync.Mutex
	users   map[int64]*storage.User
	parcels map[int64]*storage.Parcel
	nextID  int64
}

var _ storage.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		users:   make(map[int64]*storage.User),
		parcels: make(map[int64]*storage.Parcel),
		nextID:  1,
	}
}

func cloneUser(u *storage.User) *storage.User {
	cp := *u
	return &cp
}

// GetUser returns the user row or storage.ErrNotFound.
func (s *Store) GetUser(_ context.Context, id int64) (*storage.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneUser(u), nil
}

// GetUserByHandle returns the registered account owning the handle.
func (s *Store) GetUserByHandle(_ context.Context, handle string) (*storage.User, error) {
	if handle == "" {
		return nil, storage.ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Handle == handle {
			return cloneUser(u), nil
		}
	}
	return nil, storage.ErrNotFound
}

// EnsureUser returns the row for id, creating a guest row when absent.
func (s *Store) EnsureUser(_ context.Context, id int64) (*storage.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return cloneUser(u), nil
	}
	u := &storage.User{ID: id, CreatedAt: time.Now()}
	s.users[id] = u
	return cloneUser(u), nil
}

// SaveUser writes handle, secret hash and names for an existing row.
func (s *Store) SaveUser(_ context.Context, in *storage.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[in.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if in.Handle != "" {
		for id, other := range s.users {
			if id != in.ID && other.Handle == in.Handle {
				return storage.ErrHandleTaken
			}
		}
	}
	u.Handle = in.Handle
	u.SecretHash = in.SecretHash
	u.FirstName = in.FirstName
	u.LastName = in.LastName
	return nil
}

// UpdateSecret replaces the stored secret hash.
func (s *Store) UpdateSecret(_ context.Context, id int64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	u.SecretHash = hash
	return nil
}

// RebindIdentity moves the account row from fromID to toID.
func (s *Store) RebindIdentity(_ context.Context, fromID, toID int64) error {
	if fromID == toID {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.users[fromID]
	if !ok {
		return storage.ErrNotFound
	}
	// guest parcels join the account
	for _, p := range s.parcels {
		if p.OwnerID == toID {
			p.OwnerID = fromID
		}
	}
	delete(s.users, toID)
	delete(s.users, fromID)
	acct.ID = toID
	s.users[toID] = acct
	for _, p := range s.parcels {
		if p.OwnerID == fromID {
			p.OwnerID = toID
		}
	}
	return nil
}

// InsertParcel adds a parcel owned by a user.
func (s *Store) InsertParcel(_ context.Context, in *storage.Parcel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.parcels {
		if p.OwnerID == in.OwnerID && p.Code == in.Code {
			return storage.ErrDuplicateParcel
		}
	}
	in.ID = s.nextID
	s.nextID++
	if in.AddedAt.IsZero() {
		in.AddedAt = time.Now()
	}
	cp := *in
	s.parcels[cp.ID] = &cp
	return nil
}

// ParcelsByOwner lists parcels in insertion order.
func (s *Store) ParcelsByOwner(_ context.Context, owner int64) ([]storage.Parcel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.Parcel
	for _, p := range s.parcels {
		if p.OwnerID == owner {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteParcel removes one parcel and reports whether it existed.
func (s *Store) DeleteParcel(_ context.Context, owner int64, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.parcels {
		if p.OwnerID == owner && p.Code == code {
			delete(s.parcels, id)
			return true, nil
		}
	}
	return false, nil
}

// DeleteAllParcels removes every parcel of the owner and returns the count.
func (s *Store) DeleteAllParcels(_ context.Context, owner int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, p := range s.parcels {
		if p.OwnerID == owner {
			delete(s.parcels, id)
			n++
		}
	}
	return n, nil
}

// CountParcels returns the number of parcels tracked by the owner.
func (s *Store) CountParcels(_ context.Context, owner int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, p := range s.parcels {
		if p.OwnerID == owner {
			n++
		}
	}
	return n, nil
}
