package users

import (
	"golang.org/x/crypto/bcrypt"
)

// AuthenticatedUser is a resource owner's relationship to one client: the
// scopes the owner has granted, the pending authorization code (single use)
// and the currently issued access token.
type AuthenticatedUser struct {
	ID            string   `json:"id"`
	Code          string   `json:"-"` // pending authorization code, cleared on exchange
	AccessToken   string   `json:"-"` // currently issued access token, if any
	GrantedScopes []string `json:"grantedScopes,omitempty"`
	PasswordHash  string   `json:"-"` // never serialised

	// TokenExpirySeconds overrides the server default when positive. Zero
	// means use the default; negative means non-expiring tokens.
	TokenExpirySeconds int64 `json:"tokenExpirySeconds,omitempty"`
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
