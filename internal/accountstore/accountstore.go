// Package accountstore looks up accounts and their character lists for
// the authentication handshake. The MySQL-backed implementation mirrors
// Database::getAccount's two-query shape: one for the account row keyed
// by email and salted SHA-1 password hash, one for the character rows
// keyed by account id.
package accountstore

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
)

// Character is one playable character belonging to an account.
type Character struct {
	Name            string
	InstanceName    string
	InstanceID      string
	Level           uint16
	AutoReconnect   bool
}

// Account is the result of a successful login lookup. A zero-value ID
// signals "not found" to callers, matching the original's
// `!m_account.id` check.
type Account struct {
	ID         uint16
	Email      string
	Password   string
	PremiumEnd uint64
	Characters []Character
}

// Found reports whether the lookup actually matched a row.
func (a Account) Found() bool {
	return a.ID != 0
}

// Store resolves credentials to an account. Implementations must treat
// "no such account" and "wrong password" identically, returning a
// zero-value Account with no error, so the caller can give a single
// generic "invalid email or password" response either way.
type Store interface {
	GetAccount(ctx context.Context, email, password string) (Account, error)
}

// HashPassword reproduces transformToSHA1(salt + password): the salt is
// configuration, not a per-account value, so the same salt is used for
// every lookup.
func HashPassword(salt, password string) string {
	sum := sha1.Sum([]byte(salt + password))
	return hex.EncodeToString(sum[:])
}
