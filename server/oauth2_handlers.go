package server

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-oauth-provider/auth"
	"github.com/jrsteele09/go-oauth-provider/internal/metrics"
	"github.com/jrsteele09/go-oauth-provider/oauth2"
	"github.com/jrsteele09/go-oauth-provider/server/loginsession"
)

// AuthorizeHandler begins an interactive authorization flow
// (GET/POST /oauth2/authorize).
func (s *Server) AuthorizeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			s.writeAuthorizeError(w, r, oauth2.NewError(oauth2.ErrorInvalidRequest, "malformed request"))
			return
		}

		params := &auth.AuthorizeParameters{
			ClientID:     r.FormValue(oauth2.ParamClientID),
			ResponseType: r.FormValue(oauth2.ParamResponseType),
			RedirectURI:  r.FormValue(oauth2.ParamRedirectURI),
			Scope:        r.FormValue(oauth2.ParamScope),
			State:        r.FormValue(oauth2.ParamState),
		}
		if cookie, err := r.Cookie(authSessionCookieName); err == nil {
			params.SessionID = cookie.Value
		}
		s.startAuthorization(w, r, params)
	}
}

// startAuthorization drives the engine and translates its suspensions into
// browser redirects. POST /login re-enters here with the owner established.
func (s *Server) startAuthorization(w http.ResponseWriter, r *http.Request, params *auth.AuthorizeParameters) {
	loginRedirect := func(sessionID string) {
		sid := uuid.New().String()
		s.loginSessions.Put(sid, loginsession.Session{
			AuthSessionID: sessionID,
			Params:        *params,
		})
		s.setAuthSessionCookie(w, sessionID)
		http.Redirect(w, r, RouteLogin+"?sid="+sid, http.StatusSeeOther)
	}

	// The engine resolves the owner itself: on a cookie-resumed attempt it
	// comes from the session, not from params.
	consentRedirect := func(sessionID, owner string, requested, previouslyGranted []string) {
		sid := uuid.New().String()
		s.loginSessions.Put(sid, loginsession.Session{
			AuthSessionID:     sessionID,
			Params:            *params,
			Owner:             owner,
			RequestedScope:    requested,
			PreviouslyGranted: previouslyGranted,
		})
		s.setAuthSessionCookie(w, sessionID)
		http.Redirect(w, r, RouteConsent+"?sid="+sid, http.StatusSeeOther)
	}

	if err := s.auth.Authorize(params, loginRedirect, consentRedirect); err != nil {
		s.writeAuthorizeError(w, r, err)
	}
}

// TokenHandler exchanges a grant for tokens (POST /oauth2/token). Client
// credentials arrive via HTTP Basic or as body fields.
func (s *Server) TokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			s.writeTokenError(w, oauth2.NewError(oauth2.ErrorInvalidRequest, "malformed form body"), false)
			return
		}

		req := oauth2.TokenRequest{
			GrantType:    oauth2.GrantType(r.FormValue(oauth2.ParamGrantType)),
			Code:         r.FormValue(oauth2.ParamCode),
			RedirectURI:  r.FormValue(oauth2.ParamRedirectURI),
			Username:     r.FormValue(oauth2.ParamUsername),
			Password:     r.FormValue(oauth2.ParamPassword),
			RefreshToken: r.FormValue(oauth2.ParamRefreshToken),
			Scope:        r.FormValue(oauth2.ParamScope),
		}

		basicAttempted := false
		if id, secret, ok := r.BasicAuth(); ok {
			basicAttempted = true
			// Basic credentials are form-urlencoded before base64 encoding
			// (RFC 6749 §2.3.1). Malformed escapes fail authentication later
			// against the registered values.
			if unescaped, err := url.QueryUnescape(id); err == nil {
				id = unescaped
			}
			if unescaped, err := url.QueryUnescape(secret); err == nil {
				secret = unescaped
			}
			req.ClientID = id
			req.ClientSecret = secret
			req.ClientAuthenticated = true
		} else {
			req.ClientID = r.FormValue(oauth2.ParamClientID)
			req.ClientSecret = r.FormValue(oauth2.ParamClientSecret)
			req.ClientAuthenticated = req.ClientSecret != ""
		}

		resp, err := s.auth.Token(req)
		if err != nil {
			s.writeTokenError(w, err, basicAttempted)
			return
		}

		metrics.TokensIssued.WithLabelValues(string(req.GrantType)).Inc()
		noStore(w)
		writeJSON(w, http.StatusOK, resp)
	}
}

// ValidateHandler resolves a token to its owner for internal resource
// servers (POST /oauth2/validate).
func (s *Server) ValidateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req oauth2.ValidationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, oauth2.ValidationResponse{
				Error: string(oauth2.ErrorInvalidRequest),
			})
			return
		}
		if req.TokenType != "" && req.TokenType != oauth2.TokenTypeBearer {
			writeJSON(w, http.StatusOK, oauth2.ValidationResponse{
				Error: string(oauth2.ErrorInvalidToken),
			})
			return
		}

		validated, err := s.auth.Validate(req.AccessToken)
		if err != nil {
			writeJSON(w, http.StatusOK, oauth2.ValidationResponse{
				Error: string(oauth2.AsError(err).Code),
			})
			return
		}
		if req.TokenOwner != "" && req.TokenOwner != validated.Username {
			writeJSON(w, http.StatusOK, oauth2.ValidationResponse{
				Error: string(oauth2.ErrorInvalidToken),
			})
			return
		}

		writeJSON(w, http.StatusOK, oauth2.ValidationResponse{
			Authenticated: true,
			TokenOwner:    validated.Username,
		})
	}
}

// RevokeHandler invalidates a token (POST /oauth2/revoke). Per RFC 7009 the
// endpoint answers 200 whether or not the token was known.
func (s *Server) RevokeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			s.writeTokenError(w, oauth2.NewError(oauth2.ErrorInvalidRequest, "malformed form body"), false)
			return
		}
		raw := r.FormValue("token")
		if raw == "" {
			s.writeTokenError(w, oauth2.NewError(oauth2.ErrorInvalidRequest, "mandatory parameter token is missing"), false)
			return
		}
		s.auth.Revoke(raw, r.FormValue("token_type_hint"))
		w.WriteHeader(http.StatusOK)
	}
}
