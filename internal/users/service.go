// Package users implements account registration, login with identity
// rebinding, and secret management.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"parcelbot/core/logger"
	"parcelbot/internal/storage"
)

var (
	// ErrHandleTooShort rejects handles below the configured minimum.
	ErrHandleTooShort = errors.New("users: handle too short")
	// ErrHandleInvalid rejects handles with characters outside [a-z0-9_].
	ErrHandleInvalid = errors.New("users: handle has invalid characters")
	// ErrSecretTooShort rejects secrets below the configured minimum.
	ErrSecretTooShort = errors.New("users: secret too short")
	// ErrHandleTaken means another account owns the handle.
	ErrHandleTaken = errors.New("users: handle taken")
	// ErrBadCredentials covers both unknown handle and wrong secret.
	ErrBadCredentials = errors.New("users: bad credentials")
	// ErrNotRegistered means the operation needs a completed registration.
	ErrNotRegistered = errors.New("users: not registered")
	// ErrAlreadyRegistered means the user already has an account bound.
	ErrAlreadyRegistered = errors.New("users: already registered")
)

// Policy holds validation limits for handles and secrets.
type Policy struct {
	HandleMinLength int
	SecretMinLength int
}

// Service provides account operations over the user store.
type Service struct {
	store  storage.UserStore
	hasher Hasher
	policy Policy
}

// NewService wires the account service.
func NewService(store storage.UserStore, hasher Hasher, policy Policy) *Service {
	if policy.HandleMinLength <= 0 {
		policy.HandleMinLength = 3
	}
	if policy.SecretMinLength <= 0 {
		policy.SecretMinLength = 6
	}
	return &Service{store: store, hasher: hasher, policy: policy}
}

// ValidateHandle normalizes the raw handle and checks the policy.
// It returns the normalized handle on success.
func (s *Service) ValidateHandle(raw string) (string, error) {
	handle := NormalizeHandle(raw)
	if len(handle) < s.policy.HandleMinLength {
		return "", ErrHandleTooShort
	}
	if !ValidHandle(handle) {
		return "", ErrHandleInvalid
	}
	return handle, nil
}

// ValidateSecret checks the secret against the policy.
func (s *Service) ValidateSecret(secret string) error {
	if len([]rune(secret)) < s.policy.SecretMinLength {
		return ErrSecretTooShort
	}
	return nil
}

// Profile returns the account row for a platform user, creating a guest
// row on first contact.
func (s *Service) Profile(ctx context.Context, id int64) (*storage.User, error) {
	return s.store.EnsureUser(ctx, id)
}

// GetUserByTelegramID adapts Profile for the transport helpers.
func (s *Service) GetUserByTelegramID(ctx context.Context, id int64) (*storage.User, error) {
	return s.Profile(ctx, id)
}

// Register turns the guest row of id into an account. The handle must be
// pre-validated; the conflict with a concurrent registration surfaces as
// ErrHandleTaken.
func (s *Service) Register(ctx context.Context, id int64, handle, secret, firstName, lastName string) error {
	u, err := s.store.EnsureUser(ctx, id)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	if u.Registered() {
		return ErrAlreadyRegistered
	}

	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return fmt.Errorf("register: hash: %w", err)
	}
	u.Handle = handle
	u.SecretHash = hash
	u.FirstName = firstName
	u.LastName = lastName
	if err := s.store.SaveUser(ctx, u); err != nil {
		if errors.Is(err, storage.ErrHandleTaken) {
			return ErrHandleTaken
		}
		return fmt.Errorf("register: %w", err)
	}
	logger.Info(ctx, "users", "account.registered",
		slog.Int64("user_id", id),
		slog.String("handle", handle),
	)
	return nil
}

// HandleAvailable reports whether a normalized handle is free.
func (s *Service) HandleAvailable(ctx context.Context, handle string) (bool, error) {
	_, err := s.store.GetUserByHandle(ctx, handle)
	if errors.Is(err, storage.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("handle lookup: %w", err)
	}
	return false, nil
}

// Login verifies credentials and binds the account to currentID's platform
// identity. An unknown handle burns a dummy hash comparison so the error
// and its timing do not reveal whether the account exists.
func (s *Service) Login(ctx context.Context, currentID int64, handle, secret string) error {
	acct, err := s.store.GetUserByHandle(ctx, handle)
	if errors.Is(err, storage.ErrNotFound) {
		CompareDummy(s.hasher, secret)
		return ErrBadCredentials
	}
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	if !s.hasher.Compare(acct.SecretHash, secret) {
		return ErrBadCredentials
	}

	if acct.ID == currentID {
		return nil
	}
	if err := s.store.RebindIdentity(ctx, acct.ID, currentID); err != nil {
		return fmt.Errorf("login: rebind: %w", err)
	}
	logger.Info(ctx, "users", "account.rebound",
		slog.Int64("from", acct.ID),
		slog.Int64("to", currentID),
	)
	return nil
}

// VerifySecret checks a secret against the stored hash without changing
// anything. Used by dialogs that confirm the current secret up front.
func (s *Service) VerifySecret(ctx context.Context, id int64, secret string) error {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotRegistered
		}
		return fmt.Errorf("verify secret: %w", err)
	}
	if !u.Registered() {
		return ErrNotRegistered
	}
	if !s.hasher.Compare(u.SecretHash, secret) {
		return ErrBadCredentials
	}
	return nil
}

// ChangeSecret verifies the current secret and stores a hash of the new one.
func (s *Service) ChangeSecret(ctx context.Context, id int64, current, next string) error {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotRegistered
		}
		return fmt.Errorf("change secret: %w", err)
	}
	if !u.Registered() {
		return ErrNotRegistered
	}
	if !s.hasher.Compare(u.SecretHash, current) {
		return ErrBadCredentials
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("change secret: hash: %w", err)
	}
	if err := s.store.UpdateSecret(ctx, id, hash); err != nil {
		return fmt.Errorf("change secret: %w", err)
	}
	logger.Info(ctx, "users", "account.secret_changed",
		slog.Int64("user_id", id),
	)
	return nil
}
