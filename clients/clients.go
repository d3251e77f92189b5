package clients

import (
	"strings"

	"github.com/jrsteele09/go-oauth-provider/oauth2"
)

// ClientType tells whether a client can hold a secret safely.
type ClientType string

const (
	ClientTypeConfidential ClientType = "confidential" // Can keep secrets (server-side apps)
	ClientTypePublic       ClientType = "public"       // Cannot keep secrets (SPAs, mobile apps)
)

// Client is the identity of a registered application. Registration and
// revocation happen outside this engine; clients are only ever looked up.
type Client struct {
	ID              string             `json:"id"`
	Secret          string             `json:"secret,omitempty"` // confidential clients only
	RedirectURI     string             `json:"redirectURI,omitempty"`
	ApplicationName string             `json:"applicationName"`
	Type            ClientType         `json:"type"`
	GrantTypes      []oauth2.GrantType `json:"grantTypes"`

	// TokenExpirySeconds overrides the server default when positive. Zero
	// means use the default; negative means non-expiring tokens.
	TokenExpirySeconds int64 `json:"tokenExpirySeconds,omitempty"`
}

// IsPublic returns true if the client is a public client.
func (c *Client) IsPublic() bool {
	return c.Type == ClientTypePublic
}

// AllowsGrant checks the client's grant-type allow-list.
func (c *Client) AllowsGrant(gt oauth2.GrantType) bool {
	for _, g := range c.GrantTypes {
		if g == gt {
			return true
		}
	}
	return false
}

// MatchRedirectURI validates a presented redirect_uri against the registered
// one. Returns the URI to use and whether it is a dynamic override (presented
// URI extends the registered base with extra path or query, which the session
// records so the token exchange can verify it).
//
// Rules:
//   - no registered URI: the presented one is required and always dynamic;
//   - presented equals registered: not dynamic;
//   - presented extends registered (prefix match): dynamic override;
//   - anything else is a mismatch and must never be redirected to.
func (c *Client) MatchRedirectURI(presented string) (uri string, dynamic bool, ok bool) {
	if c.RedirectURI == "" {
		if presented == "" {
			return "", false, false
		}
		return presented, true, true
	}
	if presented == "" || presented == c.RedirectURI {
		return c.RedirectURI, false, true
	}
	if strings.HasPrefix(presented, c.RedirectURI) {
		return presented, true, true
	}
	return "", false, false
}
