package auth_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-oauth-provider/auth"
	"github.com/jrsteele09/go-oauth-provider/clients"
	"github.com/jrsteele09/go-oauth-provider/clients/fakerepo"
	"github.com/jrsteele09/go-oauth-provider/oauth2"
	"github.com/jrsteele09/go-oauth-provider/session"
	"github.com/jrsteele09/go-oauth-provider/token"
	"github.com/jrsteele09/go-oauth-provider/users"
	"github.com/jrsteele09/go-oauth-provider/users/repofake"
	"github.com/stretchr/testify/require"
)

const (
	webClientID    = "web-app"
	webSecret      = "web-secret"
	webRedirectURI = "https://app.example/cb"
	spaClientID    = "spa-app"
	svcClientID    = "batch-service"
	svcSecret      = "batch-secret"
	ownerID        = "alice"
	ownerPassword  = "correct horse battery staple"
)

type fixture struct {
	clients  *fakerepo.FakeClientRepo
	users    *repofake.FakeUserRepo
	sessions *session.Manager
	tokens   *token.Store
	service  *auth.Service
}

func newFixture(t *testing.T, sessionOpts ...session.ManagerOption) *fixture {
	t.Helper()

	clientRepo := fakerepo.NewFakeClientRepo()
	clientRepo.Add(&clients.Client{
		ID:          webClientID,
		Secret:      webSecret,
		RedirectURI: webRedirectURI,
		Type:        clients.ClientTypeConfidential,
		GrantTypes: []oauth2.GrantType{
			oauth2.AuthorizationCodeGrant,
			oauth2.PasswordGrant,
			oauth2.RefreshTokenGrant,
		},
	})
	clientRepo.Add(&clients.Client{
		ID:          spaClientID,
		RedirectURI: webRedirectURI,
		Type:        clients.ClientTypePublic,
		GrantTypes: []oauth2.GrantType{
			oauth2.AuthorizationCodeGrant,
			oauth2.ClientCredentialsGrant,
		},
	})
	clientRepo.Add(&clients.Client{
		ID:     svcClientID,
		Secret: svcSecret,
		Type:   clients.ClientTypeConfidential,
		GrantTypes: []oauth2.GrantType{
			oauth2.ClientCredentialsGrant,
		},
	})

	userRepo := repofake.NewFakeUserRepo()
	hash, err := users.HashPassword(ownerPassword)
	require.NoError(t, err)
	userRepo.Upsert(&users.AuthenticatedUser{ID: ownerID, PasswordHash: hash})

	sessions := session.NewManager(sessionOpts...)
	tokens := token.NewStore(token.WithDefaultExpiry(time.Hour))

	service, err := auth.NewService(
		auth.Repos{Clients: clientRepo, Users: userRepo},
		sessions, tokens,
	)
	require.NoError(t, err)

	return &fixture{
		clients:  clientRepo,
		users:    userRepo,
		sessions: sessions,
		tokens:   tokens,
		service:  service,
	}
}

// authorizeThroughConsent walks the interactive flow up to the consent
// decision and returns the session id.
func authorizeThroughConsent(t *testing.T, f *fixture, clientID, responseType, scope string) string {
	t.Helper()

	var sessionID string
	err := f.service.Authorize(&auth.AuthorizeParameters{
		ClientID:     clientID,
		ResponseType: responseType,
		Scope:        scope,
		State:        "state-123",
	},
		func(id string) { sessionID = id },
		func(string, string, []string, []string) { t.Fatal("consent requested before login") },
	)
	require.NoError(t, err)
	require.NotEmpty(t, sessionID)

	consentReached := false
	err = f.service.Authorize(&auth.AuthorizeParameters{
		ClientID:     clientID,
		ResponseType: responseType,
		Scope:        scope,
		State:        "state-123",
		SessionID:    sessionID,
		Owner:        ownerID,
	},
		func(string) { t.Fatal("login requested after owner was bound") },
		func(id, owner string, requested, previously []string) {
			consentReached = true
			require.Equal(t, sessionID, id)
			require.Equal(t, ownerID, owner)
		},
	)
	require.NoError(t, err)
	require.True(t, consentReached)
	return sessionID
}

func issueCode(t *testing.T, f *fixture, scope string, approved []string) string {
	t.Helper()

	sessionID := authorizeThroughConsent(t, f, webClientID, "code", scope)
	result, err := f.service.Decide(sessionID, ownerID, true, approved)
	require.NoError(t, err)
	require.Equal(t, oauth2.CodeResponseType, result.ResponseType)
	require.NotEmpty(t, result.Code)
	require.Equal(t, "state-123", result.State)
	return result.Code
}

func requireRedirectErr(t *testing.T, err error, code oauth2.ErrorCode) *auth.RedirectError {
	t.Helper()
	var rerr *auth.RedirectError
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, code, rerr.Err.Code)
	return rerr
}

func TestCodeGrantFlow(t *testing.T) {
	f := newFixture(t)
	code := issueCode(t, f, "read write", nil)

	resp, err := f.service.Token(oauth2.TokenRequest{
		GrantType:           oauth2.AuthorizationCodeGrant,
		ClientID:            webClientID,
		ClientSecret:        webSecret,
		ClientAuthenticated: true,
		Code:                code,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.Equal(t, oauth2.TokenTypeBearer, resp.TokenType)
	require.Equal(t, int64(3600), resp.ExpiresIn)
	require.NotEmpty(t, resp.RefreshToken)

	// Granted equals requested, so the scope parameter stays silent.
	require.Empty(t, resp.Scope)

	validated, err := f.service.Validate(resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, ownerID, validated.OwnerID)
	require.ElementsMatch(t, []string{"read", "write"}, validated.Scope)
}

func TestAuthorizationCodeSingleUse(t *testing.T) {
	f := newFixture(t)
	code := issueCode(t, f, "read", nil)

	req := oauth2.TokenRequest{
		GrantType:           oauth2.AuthorizationCodeGrant,
		ClientID:            webClientID,
		ClientSecret:        webSecret,
		ClientAuthenticated: true,
		Code:                code,
	}
	_, err := f.service.Token(req)
	require.NoError(t, err)

	_, err = f.service.Token(req)
	require.True(t, oauth2.IsCode(err, oauth2.ErrorInvalidGrant))
}

func TestAuthorizeUnknownClientRendersError(t *testing.T) {
	f := newFixture(t)

	err := f.service.Authorize(&auth.AuthorizeParameters{
		ClientID:     "never-registered",
		ResponseType: "code",
		RedirectURI:  "https://attacker.example/cb",
	},
		func(string) { t.Fatal("unexpected login redirect") },
		func(string, string, []string, []string) { t.Fatal("unexpected consent redirect") },
	)

	// Unregistered clients are invalid_request, and the error is rendered,
	// never sent to the presented URI.
	rerr := requireRedirectErr(t, err, oauth2.ErrorInvalidRequest)
	require.Empty(t, rerr.RedirectURI)
}

func TestAuthorizeRedirectMismatchNeverRedirects(t *testing.T) {
	f := newFixture(t)

	err := f.service.Authorize(&auth.AuthorizeParameters{
		ClientID:     webClientID,
		ResponseType: "code",
		RedirectURI:  "https://attacker.example/cb",
		Scope:        "read",
	},
		func(string) { t.Fatal("unexpected login redirect") },
		func(string, string, []string, []string) { t.Fatal("unexpected consent redirect") },
	)

	rerr := requireRedirectErr(t, err, oauth2.ErrorInvalidRequest)
	require.Empty(t, rerr.RedirectURI)
}

func TestAuthorizeUnsupportedResponseTypeRedirects(t *testing.T) {
	f := newFixture(t)

	err := f.service.Authorize(&auth.AuthorizeParameters{
		ClientID:     webClientID,
		ResponseType: "id_token",
		Scope:        "read",
		State:        "state-123",
	},
		func(string) { t.Fatal("unexpected login redirect") },
		func(string, string, []string, []string) { t.Fatal("unexpected consent redirect") },
	)

	// The callback was verified first, so this error travels back to it.
	rerr := requireRedirectErr(t, err, oauth2.ErrorUnsupportedResponseType)
	require.Equal(t, webRedirectURI, rerr.RedirectURI)
	require.Equal(t, "state-123", rerr.State)
}

func TestAuthorizeWithoutScopeAndNoDefault(t *testing.T) {
	f := newFixture(t)

	err := f.service.Authorize(&auth.AuthorizeParameters{
		ClientID:     webClientID,
		ResponseType: "code",
	},
		func(string) { t.Fatal("unexpected login redirect") },
		func(string, string, []string, []string) { t.Fatal("unexpected consent redirect") },
	)
	requireRedirectErr(t, err, oauth2.ErrorInvalidScope)
}

func TestConsentNarrowingEchoesScope(t *testing.T) {
	f := newFixture(t)
	code := issueCode(t, f, "read write", []string{"read"})

	resp, err := f.service.Token(oauth2.TokenRequest{
		GrantType:           oauth2.AuthorizationCodeGrant,
		ClientID:            webClientID,
		ClientSecret:        webSecret,
		ClientAuthenticated: true,
		Code:                code,
	})
	require.NoError(t, err)
	require.Equal(t, "read", resp.Scope)

	// The narrowed consent replaced the owner's grants.
	user, err := f.users.FindUser(ownerID)
	require.NoError(t, err)
	require.Equal(t, []string{"read"}, user.GrantedScopes)
}

func TestDecideApprovalBeyondRequestedScope(t *testing.T) {
	f := newFixture(t)
	sessionID := authorizeThroughConsent(t, f, webClientID, "code", "read")

	_, err := f.service.Decide(sessionID, ownerID, true, []string{"read", "admin"})
	requireRedirectErr(t, err, oauth2.ErrorInvalidScope)
}

func TestDecideRejectReturnsAccessDenied(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.users.GrantScopes(ownerID, []string{"read"}))
	sessionID := authorizeThroughConsent(t, f, webClientID, "code", "read")

	_, err := f.service.Decide(sessionID, ownerID, false, nil)
	rerr := requireRedirectErr(t, err, oauth2.ErrorAccessDenied)
	require.Equal(t, webRedirectURI, rerr.RedirectURI)
	require.Equal(t, "state-123", rerr.State)
	require.False(t, rerr.Fragment)

	// The session is destroyed; the decision cannot be replayed.
	_, err = f.service.Decide(sessionID, ownerID, true, nil)
	require.Error(t, err)
	require.Equal(t, 0, f.sessions.Len())

	// The denial withdrew the owner's earlier grants.
	user, err := f.users.FindUser(ownerID)
	require.NoError(t, err)
	require.Empty(t, user.GrantedScopes)
}

func TestAuthorizeResumeAfterAbandonedConsent(t *testing.T) {
	f := newFixture(t)
	sessionID := authorizeThroughConsent(t, f, webClientID, "code", "read")

	// The owner walked away from the consent page and re-entered the
	// authorization endpoint with only the session cookie. Login is skipped
	// and the consent hand-off carries the owner bound on the first pass.
	var resumedOwner string
	err := f.service.Authorize(&auth.AuthorizeParameters{
		ClientID:     webClientID,
		ResponseType: "code",
		Scope:        "read",
		State:        "state-123",
		SessionID:    sessionID,
	},
		func(string) { t.Fatal("login requested for a session with a bound owner") },
		func(id, owner string, _, _ []string) {
			require.Equal(t, sessionID, id)
			resumedOwner = owner
		},
	)
	require.NoError(t, err)
	require.Equal(t, ownerID, resumedOwner)

	// The decision made with that owner completes the flow.
	result, err := f.service.Decide(sessionID, resumedOwner, true, nil)
	require.NoError(t, err)
	require.NotEmpty(t, result.Code)
}

func TestImplicitFlowMintsFragmentToken(t *testing.T) {
	f := newFixture(t)
	sessionID := authorizeThroughConsent(t, f, spaClientID, "token", "read")

	result, err := f.service.Decide(sessionID, ownerID, true, nil)
	require.NoError(t, err)
	require.Equal(t, oauth2.TokenResponseType, result.ResponseType)
	require.Empty(t, result.Code)
	require.NotEmpty(t, result.AccessToken)
	require.Equal(t, oauth2.TokenTypeBearer, result.TokenType)
	require.Equal(t, int64(3600), result.ExpiresIn)
	require.Equal(t, "state-123", result.State)

	// No exchange step remains; the session is gone.
	require.Equal(t, 0, f.sessions.Len())

	validated, err := f.service.Validate(result.AccessToken)
	require.NoError(t, err)
	require.Equal(t, ownerID, validated.OwnerID)
}

func TestTokenGrantTypeChecks(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Token(oauth2.TokenRequest{})
	require.True(t, oauth2.IsCode(err, oauth2.ErrorInvalidRequest))

	_, err = f.service.Token(oauth2.TokenRequest{GrantType: "saml_bearer"})
	require.True(t, oauth2.IsCode(err, oauth2.ErrorUnsupportedGrantType))
}

func TestTokenUnregisteredClientIsInvalidRequest(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Token(oauth2.TokenRequest{
		GrantType: oauth2.ClientCredentialsGrant,
		ClientID:  "never-registered",
	})
	require.True(t, oauth2.IsCode(err, oauth2.ErrorInvalidRequest))
}

func TestTokenClientAuthenticationFailure(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Token(oauth2.TokenRequest{
		GrantType:           oauth2.ClientCredentialsGrant,
		ClientID:            svcClientID,
		ClientSecret:        "wrong",
		ClientAuthenticated: true,
	})
	require.True(t, oauth2.IsCode(err, oauth2.ErrorInvalidClient))

	_, err = f.service.Token(oauth2.TokenRequest{
		GrantType: oauth2.ClientCredentialsGrant,
		ClientID:  svcClientID,
	})
	require.True(t, oauth2.IsCode(err, oauth2.ErrorInvalidClient))
}

func TestTokenGrantAllowList(t *testing.T) {
	f := newFixture(t)

	// The batch service client is registered for client_credentials only.
	_, err := f.service.Token(oauth2.TokenRequest{
		GrantType:           oauth2.PasswordGrant,
		ClientID:            svcClientID,
		ClientSecret:        svcSecret,
		ClientAuthenticated: true,
		Username:            ownerID,
		Password:            ownerPassword,
	})
	require.True(t, oauth2.IsCode(err, oauth2.ErrorUnauthorizedClient))
}

func TestPasswordGrant(t *testing.T) {
	f := newFixture(t)

	resp, err := f.service.Token(oauth2.TokenRequest{
		GrantType:           oauth2.PasswordGrant,
		ClientID:            webClientID,
		ClientSecret:        webSecret,
		ClientAuthenticated: true,
		Username:            ownerID,
		Password:            ownerPassword,
		Scope:               "read",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)

	user, err := f.users.FindUser(ownerID)
	require.NoError(t, err)
	require.Equal(t, []string{"read"}, user.GrantedScopes)
	require.Equal(t, resp.AccessToken, user.AccessToken)
}

func TestPasswordGrantBadCredentials(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Token(oauth2.TokenRequest{
		GrantType:           oauth2.PasswordGrant,
		ClientID:            webClientID,
		ClientSecret:        webSecret,
		ClientAuthenticated: true,
		Username:            ownerID,
		Password:            "nope",
		Scope:               "read",
	})
	require.True(t, oauth2.IsCode(err, oauth2.ErrorInvalidGrant))

	_, err = f.service.Token(oauth2.TokenRequest{
		GrantType:           oauth2.PasswordGrant,
		ClientID:            webClientID,
		ClientSecret:        webSecret,
		ClientAuthenticated: true,
		Username:            "nobody",
		Password:            ownerPassword,
		Scope:               "read",
	})
	require.True(t, oauth2.IsCode(err, oauth2.ErrorInvalidRequest))
}

func TestClientCredentialsGrant(t *testing.T) {
	f := newFixture(t)

	resp, err := f.service.Token(oauth2.TokenRequest{
		GrantType:           oauth2.ClientCredentialsGrant,
		ClientID:            svcClientID,
		ClientSecret:        svcSecret,
		ClientAuthenticated: true,
		Scope:               "read",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)

	// No refresh token for client_credentials.
	require.Empty(t, resp.RefreshToken)

	validated, err := f.service.Validate(resp.AccessToken)
	require.NoError(t, err)
	require.Empty(t, validated.OwnerID)
	require.Equal(t, svcClientID, validated.Username)
}

func TestClientCredentialsRequiresConfidentialClient(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Token(oauth2.TokenRequest{
		GrantType: oauth2.ClientCredentialsGrant,
		ClientID:  spaClientID,
		Scope:     "read",
	})
	require.True(t, oauth2.IsCode(err, oauth2.ErrorInvalidClient))
}

func TestRefreshGrant(t *testing.T) {
	f := newFixture(t)

	issued, err := f.service.Token(oauth2.TokenRequest{
		GrantType:           oauth2.PasswordGrant,
		ClientID:            webClientID,
		ClientSecret:        webSecret,
		ClientAuthenticated: true,
		Username:            ownerID,
		Password:            ownerPassword,
		Scope:               "read write",
	})
	require.NoError(t, err)

	// Widening is refused without rotating the pair.
	_, err = f.service.Token(oauth2.TokenRequest{
		GrantType:           oauth2.RefreshTokenGrant,
		ClientID:            webClientID,
		ClientSecret:        webSecret,
		ClientAuthenticated: true,
		RefreshToken:        issued.RefreshToken,
		Scope:               "read write admin",
	})
	require.True(t, oauth2.IsCode(err, oauth2.ErrorInvalidScope))

	// Narrowing rotates and reports the reduced scope.
	rotated, err := f.service.Token(oauth2.TokenRequest{
		GrantType:           oauth2.RefreshTokenGrant,
		ClientID:            webClientID,
		ClientSecret:        webSecret,
		ClientAuthenticated: true,
		RefreshToken:        issued.RefreshToken,
		Scope:               "read",
	})
	require.NoError(t, err)
	require.Equal(t, "", rotated.Scope) // narrowed scope equals requested scope
	require.NotEqual(t, issued.AccessToken, rotated.AccessToken)

	_, err = f.service.Validate(issued.AccessToken)
	require.True(t, oauth2.IsCode(err, oauth2.ErrorInvalidToken))

	user, err := f.users.FindUser(ownerID)
	require.NoError(t, err)
	require.Equal(t, []string{"read"}, user.GrantedScopes)
	require.Equal(t, rotated.AccessToken, user.AccessToken)
}

func TestCodeExchangeAfterSessionTimeout(t *testing.T) {
	now := time.Now()
	f := newFixture(t,
		session.WithInactivityWindow(time.Minute),
		session.WithNowFunc(func() time.Time { return now }),
	)
	code := issueCode(t, f, "read", nil)

	now = now.Add(2 * time.Minute)
	_, err := f.service.Token(oauth2.TokenRequest{
		GrantType:           oauth2.AuthorizationCodeGrant,
		ClientID:            webClientID,
		ClientSecret:        webSecret,
		ClientAuthenticated: true,
		Code:                code,
	})
	require.True(t, oauth2.IsCode(err, oauth2.ErrorInvalidGrant))
}

func TestCodeIssuedToAnotherClient(t *testing.T) {
	f := newFixture(t)
	code := issueCode(t, f, "read", nil)

	_, err := f.service.Token(oauth2.TokenRequest{
		GrantType: oauth2.AuthorizationCodeGrant,
		ClientID:  spaClientID,
		Code:      code,
	})
	require.True(t, oauth2.IsCode(err, oauth2.ErrorInvalidGrant))
}

func TestDynamicRedirectMustBeRepeated(t *testing.T) {
	f := newFixture(t)
	dynamicURI := webRedirectURI + "/landing?env=test"

	var sessionID string
	err := f.service.Authorize(&auth.AuthorizeParameters{
		ClientID:     webClientID,
		ResponseType: "code",
		RedirectURI:  dynamicURI,
		Scope:        "read",
		Owner:        ownerID,
	},
		func(string) { t.Fatal("unexpected login redirect") },
		func(id, _ string, _, _ []string) { sessionID = id },
	)
	require.NoError(t, err)

	result, err := f.service.Decide(sessionID, ownerID, true, nil)
	require.NoError(t, err)
	require.Equal(t, dynamicURI, result.RedirectURI)

	// The exchange must repeat the overriding redirect_uri exactly.
	_, err = f.service.Token(oauth2.TokenRequest{
		GrantType:           oauth2.AuthorizationCodeGrant,
		ClientID:            webClientID,
		ClientSecret:        webSecret,
		ClientAuthenticated: true,
		Code:                result.Code,
	})
	require.True(t, oauth2.IsCode(err, oauth2.ErrorInvalidGrant))
}

func TestRevokeHints(t *testing.T) {
	f := newFixture(t)

	issued, err := f.service.Token(oauth2.TokenRequest{
		GrantType:           oauth2.PasswordGrant,
		ClientID:            webClientID,
		ClientSecret:        webSecret,
		ClientAuthenticated: true,
		Username:            ownerID,
		Password:            ownerPassword,
		Scope:               "read",
	})
	require.NoError(t, err)

	f.service.Revoke(issued.RefreshToken, "refresh_token")
	_, err = f.service.Validate(issued.AccessToken)
	require.True(t, oauth2.IsCode(err, oauth2.ErrorInvalidToken))

	// Revoking an unknown token is a silent no-op.
	f.service.Revoke("unknown-token", "")
}
