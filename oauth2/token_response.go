package oauth2

// TokenResponse is the token endpoint success body as defined in RFC 6749
// §5.1. Returned for all four grant types.
type TokenResponse struct {
	// AccessToken is the opaque token used to access protected resources.
	// Usage: "Authorization: Bearer <access_token>".
	AccessToken string `json:"access_token"`

	// TokenType is always "Bearer" in this implementation.
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token. Omitted for
	// non-expiring tokens.
	ExpiresIn int64 `json:"expires_in,omitempty"`

	// RefreshToken is an opaque token used to obtain a new token pair.
	// Rotates on each use; only issued alongside expiring access tokens.
	RefreshToken string `json:"refresh_token,omitempty"`

	// Scope echoes the granted permissions, space separated. Per §5.1 it is
	// only present when the granted scope differs from the requested scope.
	Scope string `json:"scope,omitempty"`
}
