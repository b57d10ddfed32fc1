package users

import (
	"golang.org/x/crypto/bcrypt"
)

// Hasher abstracts secret hashing so tests can substitute a fast fake.
type Hasher interface {
	Hash(secret string) (string, error)
	Compare(hash, secret string) bool
}

// BcryptHasher hashes secrets with bcrypt.
type BcryptHasher struct {
	Cost int
}

// dummyHash is compared against when the handle is unknown, so login
// timing does not reveal whether an account exists.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("parcelbot-dummy-secret"), bcrypt.DefaultCost)

// Hash returns a bcrypt hash of the secret.
func (h BcryptHasher) Hash(secret string) (string, error) {
	cost := h.Cost
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	out, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Compare reports whether the secret matches the hash.
func (h BcryptHasher) Compare(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// CompareDummy burns the same time as a real comparison and always fails.
func CompareDummy(h Hasher, secret string) {
	if bh, ok := h.(BcryptHasher); ok {
		_ = bh.Compare(string(dummyHash), secret)
		return
	}
	_ = h.Compare("", secret)
}
