package token

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"

	"github.com/jrsteele09/go-oauth-provider/clients"
	"github.com/jrsteele09/go-oauth-provider/oauth2"
	"github.com/jrsteele09/go-oauth-provider/scopes"
	"github.com/jrsteele09/go-oauth-provider/users"
	"github.com/pkg/errors"
)

const opaqueTokenBytes = 32 // 256 bits

// Store generates, indexes and invalidates opaque token strings. All
// mutations are check-then-act under a single mutex so code consumption and
// token rotation are linearizable: two concurrent refreshes of the same
// refresh token yield exactly one success.
type Store struct {
	mu        sync.Mutex
	byAccess  map[string]*ServerToken
	byRefresh map[string]string // refresh token -> access token

	defaultExpiry time.Duration
	nowFunc       func() time.Time
}

// StoreOption modifies a Store at construction time.
type StoreOption func(*Store)

// WithDefaultExpiry sets the access-token lifetime used when neither the
// client nor the owner carries an override. Zero or negative means tokens
// never expire (and no refresh tokens are issued).
func WithDefaultExpiry(d time.Duration) StoreOption {
	return func(s *Store) {
		s.defaultExpiry = d
	}
}

// WithNowFunc sets the time source (primarily for testing).
func WithNowFunc(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowFunc = now
	}
}

// NewStore creates an empty token store.
func NewStore(options ...StoreOption) *Store {
	s := &Store{
		byAccess:      make(map[string]*ServerToken),
		byRefresh:     make(map[string]string),
		defaultExpiry: time.Hour,
		nowFunc:       time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Generate allocates a new opaque access token for the given client and
// scope. owner is nil for client_credentials tokens. Expiring tokens get a
// refresh token, always distinct from the access token string.
func (s *Store) Generate(client *clients.Client, owner *users.AuthenticatedUser, scope []string) (*ServerToken, error) {
	if client == nil {
		return nil, errors.New("[Store.Generate] client is required")
	}

	expiry := s.resolveExpiry(client, owner)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mintLocked(client.ID, owner, scope, expiry, expiry > 0)
}

// GenerateClientToken allocates a token bound to the client itself, with no
// resource owner and no refresh token (RFC 6749 §4.4.3).
func (s *Store) GenerateClientToken(client *clients.Client, scope []string) (*ServerToken, error) {
	if client == nil {
		return nil, errors.New("[Store.GenerateClientToken] client is required")
	}

	expiry := s.resolveExpiry(client, nil)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mintLocked(client.ID, nil, scope, expiry, false)
}

// Refresh rotates a refresh token into a new token pair, retiring the old
// record. The requested scope must be a subset of the originally granted
// scope (RFC 6749 §6); nil inherits the original scope unchanged.
func (s *Store) Refresh(client *clients.Client, refreshToken string, narrowed []string) (*ServerToken, error) {
	if client == nil {
		return nil, errors.New("[Store.Refresh] client is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	access, ok := s.byRefresh[refreshToken]
	if !ok {
		return nil, oauth2.NewError(oauth2.ErrorInvalidGrant, "unknown refresh token")
	}
	old, ok := s.byAccess[access]
	if !ok {
		// Index out of sync can only mean a bug; fail closed.
		delete(s.byRefresh, refreshToken)
		return nil, oauth2.NewError(oauth2.ErrorInvalidGrant, "unknown refresh token")
	}
	if old.ClientID != client.ID {
		return nil, oauth2.NewError(oauth2.ErrorUnauthorizedClient, "refresh token was not issued to this client")
	}

	scope := old.Scope
	if narrowed != nil {
		if !scopes.Contains(old.Scope, narrowed) {
			return nil, oauth2.NewError(oauth2.ErrorInvalidScope,
				"requested scope exceeds the scope originally granted by the resource owner")
		}
		scope = narrowed
	}

	// Retire the old pair before minting: once rotated the previous access
	// token must fail validation.
	delete(s.byAccess, old.AccessToken)
	delete(s.byRefresh, refreshToken)

	fresh := &ServerToken{
		BearerToken: BearerToken{
			TokenType:    oauth2.TokenTypeBearer,
			ExpirePeriod: old.ExpirePeriod,
			Scope:        append([]string(nil), scope...),
			OwnerID:      old.OwnerID,
			ClientID:     old.ClientID,
			IssuedAt:     s.nowFunc(),
		},
		Username: old.Username,
	}
	if err := s.indexLocked(fresh, true); err != nil {
		return nil, err
	}
	return copyToken(fresh), nil
}

// Find resolves an access token string without validating expiry.
func (s *Store) Find(accessToken string) (Token, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byAccess[accessToken]
	if !ok {
		return nil, false
	}
	return copyToken(t), true
}

// Validate resolves an access token to its owner identity and granted scope
// for authorization decisions. Expired tokens are removed and rejected; a
// refresh token presented where an access token is expected is rejected.
func (s *Store) Validate(accessToken string) (*ServerToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byAccess[accessToken]
	if !ok {
		if _, isRefresh := s.byRefresh[accessToken]; isRefresh {
			return nil, oauth2.NewError(oauth2.ErrorInvalidToken, "refresh token presented as access token")
		}
		return nil, oauth2.NewError(oauth2.ErrorInvalidToken, "unknown access token")
	}
	if exp, bounded := t.ExpiresAt(); bounded && !s.nowFunc().Before(exp) {
		s.removeLocked(t)
		return nil, oauth2.NewError(oauth2.ErrorInvalidToken, "access token expired")
	}
	return copyToken(t), nil
}

// Revoke invalidates an access token and its paired refresh token. Revoking
// an unknown token is a no-op (RFC 7009 semantics).
func (s *Store) Revoke(accessToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.byAccess[accessToken]; ok {
		s.removeLocked(t)
	}
}

// RevokeRefresh invalidates a token pair addressed by its refresh token.
func (s *Store) RevokeRefresh(refreshToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if access, ok := s.byRefresh[refreshToken]; ok {
		if t, ok := s.byAccess[access]; ok {
			s.removeLocked(t)
			return
		}
		delete(s.byRefresh, refreshToken)
	}
}

// Sweep removes expired tokens. Called by the shared janitor; uses the same
// removal primitive as foreground validation so an expiring token cannot be
// returned and evicted at the same instant.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFunc()
	removed := 0
	for _, t := range s.byAccess {
		if exp, bounded := t.ExpiresAt(); bounded && !now.Before(exp) {
			s.removeLocked(t)
			removed++
		}
	}
	return removed
}

func (s *Store) resolveExpiry(client *clients.Client, owner *users.AuthenticatedUser) time.Duration {
	// Owner override wins over client override wins over the default; a
	// negative override means non-expiring. One rule for every grant.
	if owner != nil && owner.TokenExpirySeconds != 0 {
		return time.Duration(owner.TokenExpirySeconds) * time.Second
	}
	if client.TokenExpirySeconds != 0 {
		return time.Duration(client.TokenExpirySeconds) * time.Second
	}
	return s.defaultExpiry
}

func (s *Store) mintLocked(clientID string, owner *users.AuthenticatedUser, scope []string, expiry time.Duration, withRefresh bool) (*ServerToken, error) {
	t := &ServerToken{
		BearerToken: BearerToken{
			TokenType: oauth2.TokenTypeBearer,
			Scope:     append([]string(nil), scope...),
			ClientID:  clientID,
			IssuedAt:  s.nowFunc(),
		},
		Username: clientID,
	}
	if owner != nil {
		t.OwnerID = owner.ID
		t.Username = owner.ID
	}
	if expiry > 0 {
		t.ExpirePeriod = int64(expiry / time.Second)
	}
	if err := s.indexLocked(t, withRefresh); err != nil {
		return nil, err
	}
	return copyToken(t), nil
}

// indexLocked fills in the opaque strings and registers the token. The
// access and refresh strings are guaranteed distinct from each other and
// from every live token.
func (s *Store) indexLocked(t *ServerToken, withRefresh bool) error {
	access, err := s.uniqueOpaqueLocked()
	if err != nil {
		return errors.Wrap(err, "[Store] generating access token")
	}
	t.AccessToken = access
	s.byAccess[access] = t

	if withRefresh && t.Expiring() {
		// Registered after the access token so the uniqueness check also
		// guarantees refresh != access.
		refresh, err := s.uniqueOpaqueLocked()
		if err != nil {
			delete(s.byAccess, access)
			return errors.Wrap(err, "[Store] generating refresh token")
		}
		t.RefreshToken = refresh
		s.byRefresh[refresh] = access
	}
	return nil
}

func (s *Store) uniqueOpaqueLocked() (string, error) {
	for {
		buf := make([]byte, opaqueTokenBytes)
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		candidate := base64.RawURLEncoding.EncodeToString(buf)
		if _, taken := s.byAccess[candidate]; taken {
			continue
		}
		if _, taken := s.byRefresh[candidate]; taken {
			continue
		}
		return candidate, nil
	}
}

func (s *Store) removeLocked(t *ServerToken) {
	delete(s.byAccess, t.AccessToken)
	if t.RefreshToken != "" {
		delete(s.byRefresh, t.RefreshToken)
	}
}

func copyToken(t *ServerToken) *ServerToken {
	copied := *t
	copied.Scope = append([]string(nil), t.Scope...)
	return &copied
}
