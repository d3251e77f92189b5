package authorizer_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/go-oauth-provider/authorizer"
	"github.com/jrsteele09/go-oauth-provider/clients"
	"github.com/jrsteele09/go-oauth-provider/token"
	"github.com/jrsteele09/go-oauth-provider/users"
	"github.com/stretchr/testify/require"
)

func issueToken(t *testing.T, store *token.Store, owner string, scope []string) *token.ServerToken {
	t.Helper()
	client := &clients.Client{ID: "client-1", Type: clients.ClientTypeConfidential}
	issued, err := store.Generate(client, &users.AuthenticatedUser{ID: owner}, scope)
	require.NoError(t, err)
	return issued
}

func protectedEcho(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner, ok := authorizer.OwnerFromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(owner))
	})
}

func TestMiddlewareAllowsMatchingToken(t *testing.T) {
	store := token.NewStore(token.WithDefaultExpiry(time.Hour))
	issued := issueToken(t, store, "alice", []string{"read", "write"})

	guard := authorizer.New(store, authorizer.WithRequiredScopes("read", "write"))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/resource", nil)
	req.Header.Set("Authorization", "Bearer "+issued.AccessToken)

	guard.Middleware(protectedEcho(t)).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "alice", rec.Body.String())
}

func TestMiddlewareChallengesWithoutCredentials(t *testing.T) {
	store := token.NewStore(token.WithDefaultExpiry(time.Hour))
	guard := authorizer.New(store)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/resource", nil)

	guard.Middleware(protectedEcho(t)).ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, `Bearer realm="oauth2"`, rec.Header().Get("WWW-Authenticate"))
}

func TestMiddlewareRejectsInvalidToken(t *testing.T) {
	store := token.NewStore(token.WithDefaultExpiry(time.Hour))
	guard := authorizer.New(store)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/resource", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")

	guard.Middleware(protectedEcho(t)).ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), `error="invalid_token"`)
}

func TestMiddlewareRequiresAllScopes(t *testing.T) {
	store := token.NewStore(token.WithDefaultExpiry(time.Hour))
	issued := issueToken(t, store, "alice", []string{"read"})

	guard := authorizer.New(store, authorizer.WithRequiredScopes("read", "write"))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/resource", nil)
	req.Header.Set("Authorization", "Bearer "+issued.AccessToken)

	guard.Middleware(protectedEcho(t)).ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
	challenge := rec.Header().Get("WWW-Authenticate")
	require.Contains(t, challenge, `error="insufficient_scope"`)
	require.Contains(t, challenge, `scope="read write"`)
}

func TestMiddlewarePinsOwner(t *testing.T) {
	store := token.NewStore(token.WithDefaultExpiry(time.Hour))
	issued := issueToken(t, store, "mallory", []string{"read"})

	guard := authorizer.New(store, authorizer.WithExpectedOwner("alice"))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/resource", nil)
	req.Header.Set("Authorization", "Bearer "+issued.AccessToken)

	guard.Middleware(protectedEcho(t)).ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), `error="invalid_token"`)
}
