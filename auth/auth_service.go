package auth

import (
	"crypto/subtle"
	"strings"

	"github.com/jrsteele09/go-oauth-provider/clients"
	"github.com/jrsteele09/go-oauth-provider/oauth2"
	"github.com/jrsteele09/go-oauth-provider/scopes"
	"github.com/jrsteele09/go-oauth-provider/session"
	"github.com/jrsteele09/go-oauth-provider/token"
	"github.com/jrsteele09/go-oauth-provider/users"
	"github.com/pkg/errors"
)

// Repos holds the collaborator lookups the engine consumes. Client and user
// records are administered elsewhere; the engine only reads clients and
// checkpoints user mutations through Persist.
type Repos struct {
	Clients clients.Registry
	Users   users.Store
}

// Service is the authorization/token engine: it drives the interactive
// authorization flow, dispatches token grants and validates issued tokens.
// All state lives in the session manager and token store passed in at
// construction; the service itself is stateless and safe for concurrent use.
type Service struct {
	repos        Repos
	sessions     *session.Manager
	tokens       *token.Store
	defaultScope []string
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithDefaultScope sets the scope applied when a request omits the scope
// parameter. Without a default, scopeless requests fail with invalid_scope
// (RFC 6749 §3.3).
func WithDefaultScope(scope string) ServiceOption {
	return func(s *Service) {
		s.defaultScope = scopes.Parse(scope)
	}
}

// NewService initializes the engine with its required dependencies.
func NewService(repos Repos, sessions *session.Manager, tokens *token.Store, options ...ServiceOption) (*Service, error) {
	if repos.Clients == nil {
		return nil, errors.New("[NewService] Clients registry is required")
	}
	if repos.Users == nil {
		return nil, errors.New("[NewService] Users store is required")
	}
	if sessions == nil {
		return nil, errors.New("[NewService] session manager is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewService] token store is required")
	}

	service := &Service{
		repos:    repos,
		sessions: sessions,
		tokens:   tokens,
	}
	for _, opt := range options {
		opt(service)
	}
	return service, nil
}

// Authorize drives the interactive grants (response_type code and token) up
// to the consent hand-off. The flow suspends through loginRedirect when no
// resource owner is bound yet and through consentRedirect once one is; the
// terminal redirect happens in Decide. Returned errors are *RedirectError:
// redirectable once the callback URI has been verified, render-only before.
func (s *Service) Authorize(params *AuthorizeParameters, loginRedirect LoginRedirect, consentRedirect ConsentRedirect) error {
	if params.ClientID == "" {
		return renderErr(oauth2.NewError(oauth2.ErrorInvalidRequest, "no client_id parameter found"))
	}
	client, err := s.repos.Clients.FindByID(params.ClientID)
	if err != nil {
		// Unregistered ids are invalid_request, not invalid_client, so the
		// endpoint does not confirm which client ids exist.
		return renderErr(oauth2.NewErrorf(oauth2.ErrorInvalidRequest, "need to register the client: %s", params.ClientID))
	}

	redirectURI, dynamic, ok := client.MatchRedirectURI(params.RedirectURI)
	if !ok {
		return renderErr(oauth2.NewError(oauth2.ErrorInvalidRequest, "redirect_uri does not match the registered callback"))
	}

	// The callback is verified from here on; protocol errors may redirect.
	if params.ResponseType == "" {
		return redirectErr(oauth2.NewError(oauth2.ErrorInvalidRequest, "no response_type parameter found"),
			redirectURI, params.State, false)
	}
	responseType := oauth2.ResponseType(params.ResponseType)
	if !responseType.Valid() {
		return redirectErr(oauth2.NewErrorf(oauth2.ErrorUnsupportedResponseType, "unsupported flow: %s", params.ResponseType),
			redirectURI, params.State, false)
	}
	fragment := responseType == oauth2.TokenResponseType

	requested, oerr := s.resolveScope(params.Scope)
	if oerr != nil {
		return redirectErr(oerr, redirectURI, params.State, fragment)
	}

	sess := s.resumeSession(params.SessionID, client)
	if sess == nil {
		sess = s.sessions.Create(client, responseType, redirectURI, dynamic)
	}
	if err := s.sessions.AwaitConsent(sess.ID, requested, params.State); err != nil {
		return redirectErr(sessionErr(err), redirectURI, params.State, fragment)
	}

	owner := params.Owner
	if owner == "" {
		owner = sess.Owner
	}
	if owner == "" {
		// Suspend: the external login collaborator establishes identity and
		// resumes the flow with the same session id.
		loginRedirect(sess.ID)
		return nil
	}
	if err := s.sessions.BindOwner(sess.ID, owner); err != nil {
		return redirectErr(sessionErr(err), redirectURI, params.State, fragment)
	}

	var previouslyGranted []string
	if user, err := s.repos.Users.FindUser(owner); err == nil {
		previouslyGranted = user.GrantedScopes
	}
	consentRedirect(sess.ID, owner, requested, previouslyGranted)
	return nil
}

// Decide applies the resource owner's consent decision. On accept the
// approved scopes REPLACE the owner's previous grants (a re-consent
// downgrades to exactly what was just approved) and the flow terminates with
// either an authorization code or, for the implicit flow, a directly minted
// token. On reject the session is destroyed, the owner's standing grants are
// withdrawn and access_denied travels the error path.
func (s *Service) Decide(sessionID, owner string, accepted bool, approvedScope []string) (*CallbackResult, error) {
	sess, err := s.sessions.Snapshot(sessionID)
	if err != nil {
		return nil, renderErr(sessionErr(err))
	}
	fragment := sess.ResponseType == oauth2.TokenResponseType

	if owner == "" || sess.Owner == "" || sess.Owner != owner {
		return nil, renderErr(oauth2.NewError(oauth2.ErrorAccessDenied, "consent decision does not match the session owner"))
	}

	if !accepted {
		_ = s.sessions.Reject(sessionID)
		// A denial also withdraws the owner's standing grants; the next
		// consent page starts with nothing pre-approved.
		if err := s.repos.Users.RevokeScopes(owner); err == nil {
			_ = s.repos.Users.Persist()
		}
		return nil, redirectErr(oauth2.NewError(oauth2.ErrorAccessDenied, "resource owner denied the request"),
			sess.RedirectURI, sess.ClientState, fragment)
	}

	if len(approvedScope) == 0 {
		approvedScope = sess.RequestedScope
	}
	if !scopes.Contains(sess.RequestedScope, approvedScope) {
		return nil, redirectErr(oauth2.NewError(oauth2.ErrorInvalidScope, "approved scope exceeds the requested scope"),
			sess.RedirectURI, sess.ClientState, fragment)
	}

	user, err := s.repos.Users.FindUser(owner)
	if err != nil {
		if user, err = s.repos.Users.CreateUser(owner); err != nil {
			return nil, errors.Wrap(err, "[Service.Decide] CreateUser")
		}
	}
	if err := s.repos.Users.GrantScopes(owner, approvedScope); err != nil {
		return nil, errors.Wrap(err, "[Service.Decide] GrantScopes")
	}
	user.GrantedScopes = append([]string(nil), approvedScope...)

	if err := s.sessions.Accept(sessionID, approvedScope); err != nil {
		return nil, redirectErr(sessionErr(err), sess.RedirectURI, sess.ClientState, fragment)
	}

	switch sess.ResponseType {
	case oauth2.TokenResponseType:
		return s.implicitResult(sess, user, approvedScope)
	default:
		return s.codeResult(sess, user, approvedScope)
	}
}

func (s *Service) codeResult(sess *session.AuthSession, user *users.AuthenticatedUser, approvedScope []string) (*CallbackResult, error) {
	code, err := s.sessions.IssueCode(sess.ID)
	if err != nil {
		return nil, redirectErr(sessionErr(err), sess.RedirectURI, sess.ClientState, false)
	}
	if err := s.repos.Users.SetPendingCode(user.ID, code); err != nil {
		return nil, errors.Wrap(err, "[Service.codeResult] SetPendingCode")
	}
	if err := s.repos.Users.Persist(); err != nil {
		return nil, errors.Wrap(err, "[Service.codeResult] Persist")
	}
	return &CallbackResult{
		RedirectURI:  sess.RedirectURI,
		ResponseType: oauth2.CodeResponseType,
		Code:         code,
		State:        sess.ClientState,
	}, nil
}

func (s *Service) implicitResult(sess *session.AuthSession, user *users.AuthenticatedUser, approvedScope []string) (*CallbackResult, error) {
	if _, err := s.sessions.Consume(sess.ID); err != nil {
		return nil, redirectErr(sessionErr(err), sess.RedirectURI, sess.ClientState, true)
	}
	tok, err := s.tokens.Generate(sess.Client, user, approvedScope)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.implicitResult] Generate")
	}
	if err := s.bindToken(user.ID, tok); err != nil {
		return nil, err
	}

	result := &CallbackResult{
		RedirectURI:  sess.RedirectURI,
		ResponseType: oauth2.TokenResponseType,
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		ExpiresIn:    tok.ExpirePeriod,
		State:        sess.ClientState,
	}
	if !scopes.Identical(sess.RequestedScope, tok.Scope) {
		result.Scope = scopes.Format(tok.Scope)
	}
	return result, nil
}

// Token is the token endpoint state machine: one entry point dispatching on
// grant_type after the cross-cutting preconditions (client authentication
// and the grant allow-list).
func (s *Service) Token(req oauth2.TokenRequest) (*oauth2.TokenResponse, error) {
	if req.GrantType == "" {
		return nil, oauth2.NewError(oauth2.ErrorInvalidRequest, "no grant_type parameter found")
	}
	if !req.GrantType.Valid() {
		return nil, oauth2.NewErrorf(oauth2.ErrorUnsupportedGrantType, "unsupported flow: %s", req.GrantType)
	}

	client, oerr := s.authenticateClient(req)
	if oerr != nil {
		return nil, oerr
	}
	if !client.AllowsGrant(req.GrantType) {
		return nil, oauth2.NewErrorf(oauth2.ErrorUnauthorizedClient, "client is not authorized for grant type %s", req.GrantType)
	}

	switch req.GrantType {
	case oauth2.AuthorizationCodeGrant:
		return s.authorizationCodeGrant(client, req)
	case oauth2.PasswordGrant:
		return s.passwordGrant(client, req)
	case oauth2.ClientCredentialsGrant:
		return s.clientCredentialsGrant(client, req)
	case oauth2.RefreshTokenGrant:
		return s.refreshTokenGrant(client, req)
	}
	return nil, oauth2.NewError(oauth2.ErrorServerError, "unreachable grant dispatch")
}

// Validate resolves a presented access token to its owner identity and
// granted scopes for downstream authorization decisions.
func (s *Service) Validate(accessToken string) (*token.ServerToken, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, oauth2.NewError(oauth2.ErrorInvalidToken, "no access token presented")
	}
	return s.tokens.Validate(accessToken)
}

// Revoke invalidates a token. The hint mirrors RFC 7009: "refresh_token"
// addresses the pair by its refresh string, anything else by the access
// string. Unknown tokens are a no-op.
func (s *Service) Revoke(rawToken, tokenTypeHint string) {
	if tokenTypeHint == string(oauth2.RefreshTokenGrant) {
		s.tokens.RevokeRefresh(rawToken)
		return
	}
	s.tokens.Revoke(rawToken)
}

// authenticateClient resolves and, for confidential clients, authenticates
// the requesting client. Public clients are identified by client_id alone.
func (s *Service) authenticateClient(req oauth2.TokenRequest) (*clients.Client, *oauth2.Error) {
	if req.ClientID == "" {
		return nil, oauth2.NewError(oauth2.ErrorInvalidRequest, "no client_id parameter found")
	}
	client, err := s.repos.Clients.FindByID(req.ClientID)
	if err != nil {
		return nil, oauth2.NewErrorf(oauth2.ErrorInvalidRequest, "need to register the client: %s", req.ClientID)
	}

	if client.IsPublic() {
		if req.ClientSecret != "" {
			return nil, oauth2.NewError(oauth2.ErrorInvalidClient, "public clients do not hold a secret")
		}
		return client, nil
	}

	if !req.ClientAuthenticated ||
		subtle.ConstantTimeCompare([]byte(req.ClientSecret), []byte(client.Secret)) != 1 {
		return nil, oauth2.NewError(oauth2.ErrorInvalidClient, "client authentication failed")
	}
	return client, nil
}

func (s *Service) authorizationCodeGrant(client *clients.Client, req oauth2.TokenRequest) (*oauth2.TokenResponse, error) {
	if req.Code == "" {
		return nil, oauth2.NewError(oauth2.ErrorInvalidRequest, "mandatory parameter code is missing")
	}

	// RestoreSession is an atomic check-and-remove with the timeout
	// evaluated in the same critical section: a code is exchangeable exactly
	// once, and a timed-out session surfaces as invalid_grant here.
	sess, err := s.sessions.RestoreSession(req.Code)
	if errors.Is(err, session.ErrSessionTimeout) {
		return nil, oauth2.NewError(oauth2.ErrorInvalidGrant, "authorization session timed out")
	}
	if err != nil {
		return nil, oauth2.NewError(oauth2.ErrorInvalidGrant, "authorization code is invalid")
	}

	if sess.Client.ID != client.ID {
		return nil, oauth2.NewError(oauth2.ErrorInvalidGrant, "authorization code was issued to another client")
	}
	if sess.DynamicRedirect && req.RedirectURI != sess.RedirectURI {
		return nil, oauth2.NewError(oauth2.ErrorInvalidGrant, "redirect_uri does not match the authorization request")
	}

	user, err := s.repos.Users.FindUser(sess.Owner)
	if err != nil {
		return nil, oauth2.NewError(oauth2.ErrorInvalidGrant, "resource owner no longer exists")
	}

	// The code is single use: clear it from the owner record now that the
	// session is consumed.
	if err := s.repos.Users.ClearPendingCode(user.ID); err != nil {
		return nil, errors.Wrap(err, "[Service.authorizationCodeGrant] ClearPendingCode")
	}

	tok, err := s.tokens.Generate(sess.Client, user, sess.GrantedScope)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.authorizationCodeGrant] Generate")
	}
	if err := s.bindToken(user.ID, tok); err != nil {
		return nil, err
	}
	return tokenResponse(tok, sess.RequestedScope), nil
}

func (s *Service) passwordGrant(client *clients.Client, req oauth2.TokenRequest) (*oauth2.TokenResponse, error) {
	if req.Username == "" {
		return nil, oauth2.NewError(oauth2.ErrorInvalidRequest, "mandatory parameter username is missing")
	}
	if req.Password == "" {
		return nil, oauth2.NewError(oauth2.ErrorInvalidRequest, "mandatory parameter password is missing")
	}

	user, err := s.repos.Users.FindUser(req.Username)
	if err != nil {
		return nil, oauth2.NewError(oauth2.ErrorInvalidRequest, "authenticated user not found")
	}
	if !users.CheckPasswordHash(req.Password, user.PasswordHash) {
		return nil, oauth2.NewError(oauth2.ErrorInvalidGrant, "password not correct")
	}

	requested, oerr := s.resolveScope(req.Scope)
	if oerr != nil {
		return nil, oerr
	}

	// The freshly requested scopes replace whatever the owner granted
	// before, same as an interactive re-consent.
	if err := s.repos.Users.GrantScopes(user.ID, requested); err != nil {
		return nil, errors.Wrap(err, "[Service.passwordGrant] GrantScopes")
	}
	user.GrantedScopes = append([]string(nil), requested...)

	tok, err := s.tokens.Generate(client, user, requested)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.passwordGrant] Generate")
	}
	if err := s.bindToken(user.ID, tok); err != nil {
		return nil, err
	}
	return tokenResponse(tok, requested), nil
}

func (s *Service) clientCredentialsGrant(client *clients.Client, req oauth2.TokenRequest) (*oauth2.TokenResponse, error) {
	// Only clients able to keep a secret may act on their own behalf.
	if client.IsPublic() {
		return nil, oauth2.NewError(oauth2.ErrorInvalidClient, "client_credentials grant requires a confidential client")
	}

	requested, oerr := s.resolveScope(req.Scope)
	if oerr != nil {
		return nil, oerr
	}

	tok, err := s.tokens.GenerateClientToken(client, requested)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.clientCredentialsGrant] GenerateClientToken")
	}
	return tokenResponse(tok, requested), nil
}

func (s *Service) refreshTokenGrant(client *clients.Client, req oauth2.TokenRequest) (*oauth2.TokenResponse, error) {
	if req.RefreshToken == "" {
		return nil, oauth2.NewError(oauth2.ErrorInvalidRequest, "mandatory parameter refresh_token is missing")
	}

	var narrowed []string
	if strings.TrimSpace(req.Scope) != "" {
		narrowed = scopes.Parse(req.Scope)
	}

	tok, err := s.tokens.Refresh(client, req.RefreshToken, narrowed)
	if err != nil {
		return nil, err
	}

	if tok.OwnerID != "" {
		if narrowed != nil {
			if err := s.repos.Users.GrantScopes(tok.OwnerID, narrowed); err != nil {
				return nil, errors.Wrap(err, "[Service.refreshTokenGrant] GrantScopes")
			}
		}
		if err := s.bindToken(tok.OwnerID, tok); err != nil {
			return nil, err
		}
	}

	requested := narrowed
	if requested == nil {
		requested = tok.Scope
	}
	return tokenResponse(tok, requested), nil
}

// bindToken records the owner's current access token and checkpoints the
// user store.
func (s *Service) bindToken(ownerID string, tok *token.ServerToken) error {
	if err := s.repos.Users.SetAccessToken(ownerID, tok.AccessToken); err != nil {
		return errors.Wrap(err, "[Service.bindToken] SetAccessToken")
	}
	if err := s.repos.Users.Persist(); err != nil {
		return errors.Wrap(err, "[Service.bindToken] Persist")
	}
	return nil
}

// resolveScope parses the wire scope, falling back to the configured default
// when absent. No scope and no default is invalid_scope (RFC 6749 §3.3).
func (s *Service) resolveScope(raw string) ([]string, *oauth2.Error) {
	parsed := scopes.Parse(raw)
	if len(parsed) > 0 {
		return parsed, nil
	}
	if len(s.defaultScope) == 0 {
		return nil, oauth2.NewError(oauth2.ErrorInvalidScope, "scope has not been provided")
	}
	return append([]string(nil), s.defaultScope...), nil
}

// resumeSession resolves a cookie-correlated session, discarding it when it
// expired or belongs to a different client's attempt.
func (s *Service) resumeSession(sessionID string, client *clients.Client) *session.AuthSession {
	if sessionID == "" {
		return nil
	}
	sess, err := s.sessions.Snapshot(sessionID)
	if err != nil || sess.Client.ID != client.ID {
		return nil
	}
	if err := s.sessions.UpdateActivity(sess.ID); err != nil {
		return nil
	}
	return sess
}

// sessionErr translates the session manager's internal signals to protocol
// errors at the grant boundary.
func sessionErr(err error) *oauth2.Error {
	switch {
	case errors.Is(err, session.ErrSessionTimeout):
		return oauth2.NewError(oauth2.ErrorInvalidGrant, "authorization session timed out")
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrCodeNotFound):
		return oauth2.NewError(oauth2.ErrorInvalidGrant, "authorization session not found")
	default:
		return oauth2.AsError(err)
	}
}

// tokenResponse shapes the RFC 6749 §5.1 success body. The scope parameter
// is echoed only when the granted scope differs from the requested one.
func tokenResponse(tok *token.ServerToken, requested []string) *oauth2.TokenResponse {
	resp := &oauth2.TokenResponse{
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
	}
	if tok.Expiring() {
		resp.ExpiresIn = tok.ExpirePeriod
		resp.RefreshToken = tok.RefreshToken
	}
	if !scopes.Identical(requested, tok.Scope) {
		resp.Scope = scopes.Format(tok.Scope)
	}
	return resp
}
