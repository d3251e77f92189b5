// Package loginsession holds the short-lived browser-side state that carries
// an authorization attempt across the login and consent form round trips.
package loginsession

import (
	"github.com/jrsteele09/go-oauth-provider/auth"
	"github.com/pkg/errors"
)

// ErrNotFound signals an unknown or expired login session id.
var ErrNotFound = errors.New("login session not found")

// Session correlates the browser with a suspended authorization attempt. It
// lives only as long as the login/consent round trip.
type Session struct {
	// AuthSessionID is the engine-side authorization session this round
	// trip belongs to.
	AuthSessionID string

	// Params are the original authorization request fields, replayed when
	// the flow resumes after login.
	Params auth.AuthorizeParameters

	// Owner is set once login established the resource owner's identity.
	Owner string

	// RequestedScope and PreviouslyGranted feed the consent page so it can
	// present the difference.
	RequestedScope    []string
	PreviouslyGranted []string
}

// Repo stores login sessions with a bounded lifetime.
type Repo interface {
	Put(id string, session Session)
	Get(id string) (Session, error)
	Delete(id string)
}
