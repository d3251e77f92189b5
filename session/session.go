package session

import (
	"time"

	"github.com/jrsteele09/go-oauth-provider/clients"
	"github.com/jrsteele09/go-oauth-provider/oauth2"
)

// Status is the lifecycle position of an authorization attempt. Expired is
// reachable from any non-terminal status.
type Status string

const (
	StatusCreated         Status = "created"
	StatusAwaitingConsent Status = "awaiting_consent"
	StatusAccepted        Status = "accepted"
	StatusRejected        Status = "rejected"
	StatusConsumed        Status = "consumed"
)

// AuthSession is the ephemeral state of one authorization attempt,
// correlated with the user agent through an opaque cookie carrying the
// session id. All mutation happens through the Manager so that activity
// timestamps and status transitions stay atomic per session.
type AuthSession struct {
	ID           string
	Client       *clients.Client
	ResponseType oauth2.ResponseType

	RequestedScope []string
	GrantedScope   []string

	// RedirectURI is the callback for this attempt. DynamicRedirect marks it
	// as differing from the client's registered URI, in which case the token
	// exchange must present the same value again.
	RedirectURI     string
	DynamicRedirect bool

	// ClientState is the CSRF token the client passed as the state
	// parameter, echoed back on every redirect.
	ClientState string

	// Owner is the resource-owner id, empty until login completes.
	Owner string

	Status       Status
	LastActivity time.Time

	code string // pending authorization code, if issued
}

func (s *AuthSession) terminal() bool {
	return s.Status == StatusConsumed || s.Status == StatusRejected
}

func copySession(s *AuthSession) *AuthSession {
	copied := *s
	copied.RequestedScope = append([]string(nil), s.RequestedScope...)
	copied.GrantedScope = append([]string(nil), s.GrantedScope...)
	return &copied
}
