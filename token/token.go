package token

import "time"

// Token is the closed set of token variants issued by the Store: a
// BearerToken for wire-facing responses and a ServerToken for server-side
// validation. Dispatch on the concrete type explicitly; there are no other
// implementations.
type Token interface {
	// Bearer returns the wire-facing view shared by both variants.
	Bearer() *BearerToken

	sealed()
}

// BearerToken is an issued opaque access token and its metadata.
type BearerToken struct {
	AccessToken  string
	TokenType    string // always "Bearer"
	ExpirePeriod int64  // seconds; <= 0 means non-expiring
	RefreshToken string // empty for non-expiring tokens
	Scope        []string
	OwnerID      string // resource owner; empty for client_credentials tokens
	ClientID     string
	IssuedAt     time.Time
}

func (t *BearerToken) Bearer() *BearerToken { return t }
func (t *BearerToken) sealed()              {}

// Expiring reports whether the token has a bounded lifetime.
func (t *BearerToken) Expiring() bool {
	return t.ExpirePeriod > 0
}

// ExpiresAt returns the expiry instant; ok is false for non-expiring tokens.
func (t *BearerToken) ExpiresAt() (time.Time, bool) {
	if !t.Expiring() {
		return time.Time{}, false
	}
	return t.IssuedAt.Add(time.Duration(t.ExpirePeriod) * time.Second), true
}

// ServerToken is the server-internal variant: it additionally carries the
// authenticated username so validation responses can identify the owner.
// For client_credentials tokens the username is the client id.
type ServerToken struct {
	BearerToken
	Username string
}

func (t *ServerToken) Bearer() *BearerToken { return &t.BearerToken }
