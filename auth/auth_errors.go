package auth

import "github.com/jrsteele09/go-oauth-provider/oauth2"

// RedirectError carries a protocol error together with the verified callback
// it may be delivered to. An empty RedirectURI means no verified target
// exists and the error must be rendered as a page, never redirected to an
// unverified URI.
type RedirectError struct {
	Err         *oauth2.Error
	RedirectURI string
	State       string

	// Fragment marks implicit-flow errors, which travel in the URI fragment
	// like the tokens they replace.
	Fragment bool
}

func (e *RedirectError) Error() string { return e.Err.Error() }

func (e *RedirectError) Unwrap() error { return e.Err }

func redirectErr(err *oauth2.Error, redirectURI, state string, fragment bool) *RedirectError {
	return &RedirectError{Err: err, RedirectURI: redirectURI, State: state, Fragment: fragment}
}

func renderErr(err *oauth2.Error) *RedirectError {
	return &RedirectError{Err: err}
}
