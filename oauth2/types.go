package oauth2

// Parameter names from RFC 6749. Handlers and the engine share these so the
// wire vocabulary lives in one place.
const (
	ParamClientID     = "client_id"
	ParamClientSecret = "client_secret"
	ParamResponseType = "response_type"
	ParamScope        = "scope"
	ParamState        = "state"
	ParamRedirectURI  = "redirect_uri"
	ParamError        = "error"
	ParamErrorDesc    = "error_description"
	ParamErrorURI     = "error_uri"
	ParamGrantType    = "grant_type"
	ParamCode         = "code"
	ParamAccessToken  = "access_token"
	ParamTokenType    = "token_type"
	ParamExpiresIn    = "expires_in"
	ParamUsername     = "username"
	ParamPassword     = "password"
	ParamRefreshToken = "refresh_token"
)

// TokenTypeBearer is the only token type this engine issues.
const TokenTypeBearer = "Bearer"

// ResponseType represents the OAuth 2.0 response type requested at the
// authorization endpoint.
type ResponseType string

const (
	// CodeResponseType indicates the authorization code flow: the endpoint
	// returns a single-use code to be exchanged at the token endpoint.
	CodeResponseType ResponseType = "code"

	// TokenResponseType indicates the implicit flow: the endpoint mints an
	// access token directly and returns it in the redirect fragment.
	TokenResponseType ResponseType = "token"
)

// Valid reports whether rt is a response type this engine supports.
func (rt ResponseType) Valid() bool {
	return rt == CodeResponseType || rt == TokenResponseType
}

// GrantType represents the OAuth 2.0 grant type used at the token endpoint.
type GrantType string

const (
	// AuthorizationCodeGrant exchanges an authorization code for tokens.
	AuthorizationCodeGrant GrantType = "authorization_code"

	// PasswordGrant exchanges resource-owner credentials for tokens.
	PasswordGrant GrantType = "password"

	// ClientCredentialsGrant authenticates a confidential client on its own
	// behalf, with no resource owner involved.
	ClientCredentialsGrant GrantType = "client_credentials"

	// RefreshTokenGrant rotates a previously issued refresh token into a
	// new token pair.
	RefreshTokenGrant GrantType = "refresh_token"
)

// Valid reports whether gt is one of the four standardized grant types.
func (gt GrantType) Valid() bool {
	switch gt {
	case AuthorizationCodeGrant, PasswordGrant, ClientCredentialsGrant, RefreshTokenGrant:
		return true
	}
	return false
}

// TokenRequest holds the form fields of a token endpoint request. Client
// credentials may arrive via HTTP Basic or as body fields; the server layer
// normalises both into ClientID/ClientSecret before dispatch.
type TokenRequest struct {
	GrantType    GrantType
	ClientID     string
	ClientSecret string

	// ClientAuthenticated is set by the transport when the client proved
	// possession of its secret (Basic auth or client_secret body field).
	ClientAuthenticated bool

	// Grant specific fields.
	Code         string // authorization_code
	RedirectURI  string // authorization_code, when the session used a dynamic override
	Username     string // password
	Password     string // password
	RefreshToken string // refresh_token
	Scope        string // password, client_credentials, refresh_token
}

// ValidationRequest is the body of the internal token validation endpoint.
// TokenOwner, when set, additionally pins the token to an expected owner.
type ValidationRequest struct {
	TokenType   string `json:"token_type"`
	AccessToken string `json:"access_token"`
	TokenOwner  string `json:"tokenOwner,omitempty"`
}

// ValidationResponse reports whether a presented token resolved to an owner.
type ValidationResponse struct {
	Authenticated bool   `json:"authenticated"`
	TokenOwner    string `json:"tokenOwner,omitempty"`
	Error         string `json:"error,omitempty"`
}
