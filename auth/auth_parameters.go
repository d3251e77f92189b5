package auth

import "github.com/jrsteele09/go-oauth-provider/oauth2"

// AuthorizeParameters holds the query/form fields of an authorization
// endpoint request (RFC 6749 §4.1.1, §4.2.1).
type AuthorizeParameters struct {
	// ClientID identifies the application requesting authorization.
	// Validated against the client registry; unregistered ids fail with
	// invalid_request so the endpoint does not leak which ids exist.
	ClientID string

	// ResponseType is "code" or "token"; anything else fails with
	// unsupported_response_type, an absent value with invalid_request.
	ResponseType string

	// RedirectURI is where the authorization response will be sent. It must
	// equal the registered URI or extend it (dynamic override); otherwise
	// the request fails with invalid_request and is never redirected.
	RedirectURI string

	// Scope is the space-delimited permission request. Absent scope falls
	// back to the configured default; no default means invalid_scope.
	Scope string

	// State is an opaque CSRF value the client expects echoed back.
	State string

	// SessionID correlates a resumed attempt (cookie value); empty on the
	// first round trip.
	SessionID string

	// Owner is the resource-owner identity when the login collaborator has
	// already established it; empty otherwise.
	Owner string
}

// LoginRedirect suspends an authorization attempt by sending the user agent
// to the external login collaborator. The flow resumes with the same session
// id once the owner's identity is established.
type LoginRedirect func(sessionID string)

// ConsentRedirect hands the attempt to the external consent collaborator,
// carrying the resolved owner (which may come from a resumed session rather
// than the request) and the newly requested scopes next to what the owner
// previously granted so the page can present the difference.
type ConsentRedirect func(sessionID, owner string, requestedScope, previouslyGranted []string)

// CallbackResult is the terminal redirect of an interactive flow. Exactly
// one of Code and Token is set: code-flow results append the code as query
// parameters, implicit-flow results carry the token in the URI fragment so
// it never reaches the callback server or a referrer header (RFC 6749
// §4.2.2).
type CallbackResult struct {
	RedirectURI  string
	ResponseType oauth2.ResponseType
	Code         string
	AccessToken  string
	TokenType    string
	ExpiresIn    int64
	Scope        string // echoed only when granted differs from requested
	State        string
}
