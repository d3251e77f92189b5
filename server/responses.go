package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jrsteele09/go-oauth-provider/auth"
	"github.com/jrsteele09/go-oauth-provider/internal/metrics"
	"github.com/jrsteele09/go-oauth-provider/oauth2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const contentTypeJSON = "application/json; charset=utf-8"

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeTokenError maps a token endpoint failure to the RFC 6749 §5.2 error
// body. invalid_client answers 401, with a Basic challenge when the client
// attempted Basic authentication.
func (s *Server) writeTokenError(w http.ResponseWriter, err error, basicAttempted bool) {
	oerr := oauth2.AsError(err)
	metrics.ProtocolErrors.WithLabelValues(string(oerr.Code)).Inc()

	status := http.StatusBadRequest
	switch oerr.Code {
	case oauth2.ErrorInvalidClient:
		status = http.StatusUnauthorized
		if basicAttempted {
			w.Header().Set("WWW-Authenticate", `Basic realm="oauth2"`)
		}
	case oauth2.ErrorServerError:
		status = http.StatusInternalServerError
		log.Error().Err(err).Msg("token endpoint failure")
	}

	noStore(w)
	writeJSON(w, status, oerr)
}

// writeAuthorizeError delivers an authorization endpoint failure. Errors
// carrying a verified redirect target travel back to the client as query or
// fragment parameters with the state echoed; everything else is rendered as
// an error page, never redirected to an unverified URI.
func (s *Server) writeAuthorizeError(w http.ResponseWriter, r *http.Request, err error) {
	var rerr *auth.RedirectError
	if !errors.As(err, &rerr) {
		rerr = &auth.RedirectError{Err: oauth2.AsError(err)}
	}
	metrics.ProtocolErrors.WithLabelValues(string(rerr.Err.Code)).Inc()

	if rerr.RedirectURI == "" {
		s.renderErrorPage(w, rerr.Err)
		return
	}

	values := url.Values{}
	values.Set(oauth2.ParamError, string(rerr.Err.Code))
	if rerr.Err.Description != "" {
		values.Set(oauth2.ParamErrorDesc, rerr.Err.Description)
	}
	if rerr.State != "" {
		values.Set(oauth2.ParamState, rerr.State)
	}

	target, buildErr := buildRedirect(rerr.RedirectURI, values, rerr.Fragment)
	if buildErr != nil {
		s.renderErrorPage(w, rerr.Err)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// callbackURL shapes the terminal success redirect: code flows append query
// parameters, implicit flows carry the token in the fragment so it never
// reaches the callback server (RFC 6749 §4.2.2).
func callbackURL(result *auth.CallbackResult) (string, error) {
	values := url.Values{}
	fragment := false
	switch result.ResponseType {
	case oauth2.TokenResponseType:
		fragment = true
		values.Set(oauth2.ParamAccessToken, result.AccessToken)
		values.Set(oauth2.ParamTokenType, result.TokenType)
		if result.ExpiresIn > 0 {
			values.Set(oauth2.ParamExpiresIn, strconv.FormatInt(result.ExpiresIn, 10))
		}
		if result.Scope != "" {
			values.Set(oauth2.ParamScope, result.Scope)
		}
	default:
		values.Set(oauth2.ParamCode, result.Code)
	}
	if result.State != "" {
		values.Set(oauth2.ParamState, result.State)
	}
	return buildRedirect(result.RedirectURI, values, fragment)
}

func buildRedirect(redirectURI string, values url.Values, fragment bool) (string, error) {
	parsed, err := url.Parse(redirectURI)
	if err != nil {
		return "", errors.Wrap(err, "[buildRedirect] url.Parse")
	}
	if fragment {
		// Encoded by hand; url.String would re-escape the fragment.
		return parsed.String() + "#" + values.Encode(), nil
	}
	query := parsed.Query()
	for key, vals := range values {
		for _, v := range vals {
			query.Set(key, v)
		}
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
