package authorizer

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-oauth-provider/oauth2"
	"github.com/jrsteele09/go-oauth-provider/scopes"
	"github.com/jrsteele09/go-oauth-provider/token"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyOwner stores the token owner's identity
	ContextKeyOwner ContextKey = "token_owner"
	// ContextKeyScopes stores the token's granted scopes
	ContextKeyScopes ContextKey = "token_scopes"
)

// TokenValidator resolves a presented access token, rejecting expired,
// revoked or unknown strings with invalid_token. *auth.Service satisfies it.
type TokenValidator interface {
	Validate(accessToken string) (*token.ServerToken, error)
}

// Authorizer guards protected resources: it extracts the Bearer token,
// validates it and enforces that ALL required scopes were granted
// (all-match, not any-match). Failures answer with RFC 6750
// WWW-Authenticate challenges.
type Authorizer struct {
	validator      TokenValidator
	realm          string
	requiredScopes []string
	expectedOwner  string
}

// Option modifies an Authorizer at construction time.
type Option func(*Authorizer)

// WithRealm sets the protection-space name used in challenges.
func WithRealm(realm string) Option {
	return func(a *Authorizer) {
		a.realm = realm
	}
}

// WithRequiredScopes sets the scopes a token must carry, all of them.
func WithRequiredScopes(required ...string) Option {
	return func(a *Authorizer) {
		a.requiredScopes = required
	}
}

// WithExpectedOwner pins the resource to one resource owner; tokens issued
// to anyone else are rejected.
func WithExpectedOwner(owner string) Option {
	return func(a *Authorizer) {
		a.expectedOwner = owner
	}
}

// New creates an Authorizer around a validator.
func New(validator TokenValidator, options ...Option) *Authorizer {
	a := &Authorizer{
		validator: validator,
		realm:     "oauth2",
	}
	for _, opt := range options {
		opt(a)
	}
	return a
}

// Middleware wraps a handler with the bearer-token check. On success the
// owner identity and granted scopes are injected into the request context.
func (a *Authorizer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			// No credentials at all: a bare challenge, no error code
			// (RFC 6750 §3.1).
			w.Header().Set("WWW-Authenticate", fmt.Sprintf("Bearer realm=%q", a.realm))
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		validated, err := a.validator.Validate(raw)
		if err != nil {
			a.challenge(w, http.StatusUnauthorized, oauth2.ErrorInvalidToken, "the access token is invalid or expired")
			return
		}
		if a.expectedOwner != "" && validated.OwnerID != a.expectedOwner {
			a.challenge(w, http.StatusUnauthorized, oauth2.ErrorInvalidToken, "the access token was issued to another resource owner")
			return
		}
		if !scopes.Contains(validated.Scope, a.requiredScopes) {
			a.challenge(w, http.StatusForbidden, oauth2.ErrorInsufficientScope, "the access token is missing a required scope")
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyOwner, validated.Username)
		ctx = context.WithValue(ctx, ContextKeyScopes, validated.Scope)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authorizer) challenge(w http.ResponseWriter, status int, code oauth2.ErrorCode, description string) {
	header := fmt.Sprintf("Bearer realm=%q, error=%q, error_description=%q", a.realm, code, description)
	if code == oauth2.ErrorInsufficientScope && len(a.requiredScopes) > 0 {
		header += fmt.Sprintf(", scope=%q", scopes.Format(a.requiredScopes))
	}
	w.Header().Set("WWW-Authenticate", header)
	w.WriteHeader(status)
}

// OwnerFromContext returns the identity the guarded token was issued to.
func OwnerFromContext(ctx context.Context) (string, bool) {
	owner, ok := ctx.Value(ContextKeyOwner).(string)
	return owner, ok
}

// ScopesFromContext returns the scopes granted to the guarded token.
func ScopesFromContext(ctx context.Context) ([]string, bool) {
	granted, ok := ctx.Value(ContextKeyScopes).([]string)
	return granted, ok
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	raw := strings.TrimSpace(parts[1])
	return raw, raw != ""
}
