package users

import "errors"

// ErrNotFound is returned by a Store when no user matches the id.
var ErrNotFound = errors.New("user not found")

// Store is the resource-owner persistence contract the engine consumes.
// All mutations are per-user atomic; Persist is a checkpoint the engine
// calls after scope or code changes.
type Store interface {
	FindUser(id string) (*AuthenticatedUser, error)
	CreateUser(id string) (*AuthenticatedUser, error)

	// GrantScopes replaces (never unions) the owner's granted scopes, so a
	// re-consent downgrades to exactly what was just approved.
	GrantScopes(id string, scopes []string) error
	RevokeScopes(id string) error

	SetPendingCode(id, code string) error
	ClearPendingCode(id string) error
	SetAccessToken(id, token string) error

	Persist() error
}
