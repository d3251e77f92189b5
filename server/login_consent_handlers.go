package server

import (
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-oauth-provider/oauth2"
	"github.com/jrsteele09/go-oauth-provider/users"
	"github.com/rs/zerolog/log"
)

// LoginPageHandler shows the sign-in form for a suspended authorization
// attempt (GET /login).
func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid := r.URL.Query().Get("sid")
		if _, err := s.loginSessions.Get(sid); err != nil {
			s.renderErrorPage(w, oauth2.NewError(oauth2.ErrorInvalidRequest, "unknown or expired login session"))
			return
		}

		data := loginPageData{
			AppName:  s.config.GetAppName(),
			SID:      sid,
			Username: r.URL.Query().Get("username"),
			Error:    r.URL.Query().Get("error"),
		}
		w.Header().Set("Content-Type", contentTypeHTML)
		if err := loginTmpl.Execute(w, data); err != nil {
			log.Err(err).Msg("failed to render login page")
		}
	}
}

// LoginSubmissionHandler checks the owner's credentials and resumes the
// authorization flow with the identity bound (POST /login).
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			s.renderErrorPage(w, oauth2.NewError(oauth2.ErrorInvalidRequest, "malformed form body"))
			return
		}
		sid := r.FormValue("sid")
		record, err := s.loginSessions.Get(sid)
		if err != nil {
			s.renderErrorPage(w, oauth2.NewError(oauth2.ErrorInvalidRequest, "unknown or expired login session"))
			return
		}

		username := r.FormValue(oauth2.ParamUsername)
		password := r.FormValue(oauth2.ParamPassword)
		if !s.credentialsValid(username, password) {
			s.redirectLoginError(w, r, sid, username)
			return
		}
		s.loginSessions.Delete(sid)

		// Resume the flow; the engine binds the owner and hands off to
		// consent.
		params := record.Params
		params.SessionID = record.AuthSessionID
		params.Owner = username
		s.startAuthorization(w, r, &params)
	}
}

// ConsentPageHandler shows the approval form with the newly requested scopes
// pre-checked alongside what the owner previously granted (GET /consent).
func (s *Server) ConsentPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid := r.URL.Query().Get("sid")
		record, err := s.loginSessions.Get(sid)
		if err != nil {
			s.renderErrorPage(w, oauth2.NewError(oauth2.ErrorInvalidRequest, "unknown or expired login session"))
			return
		}

		applicationName := record.Params.ClientID
		if client, err := s.repos.Clients.FindByID(record.Params.ClientID); err == nil {
			applicationName = client.ApplicationName
		}

		previously := make(map[string]bool, len(record.PreviouslyGranted))
		for _, scope := range record.PreviouslyGranted {
			previously[scope] = true
		}
		data := consentPageData{
			ApplicationName: applicationName,
			SID:             sid,
		}
		for _, scope := range record.RequestedScope {
			data.Scopes = append(data.Scopes, consentScope{Name: scope, Granted: previously[scope]})
		}

		w.Header().Set("Content-Type", contentTypeHTML)
		if err := consentTmpl.Execute(w, data); err != nil {
			log.Err(err).Msg("failed to render consent page")
		}
	}
}

// ConsentSubmissionHandler applies the owner's decision and performs the
// terminal redirect back to the client (POST /consent).
func (s *Server) ConsentSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			s.renderErrorPage(w, oauth2.NewError(oauth2.ErrorInvalidRequest, "malformed form body"))
			return
		}
		sid := r.FormValue("sid")
		record, err := s.loginSessions.Get(sid)
		if err != nil {
			s.renderErrorPage(w, oauth2.NewError(oauth2.ErrorInvalidRequest, "unknown or expired login session"))
			return
		}
		s.loginSessions.Delete(sid)
		s.clearAuthSessionCookie(w)

		accepted := r.FormValue("action") == "accept"
		approved := r.Form["scope"]

		result, err := s.auth.Decide(record.AuthSessionID, record.Owner, accepted, approved)
		if err != nil {
			s.writeAuthorizeError(w, r, err)
			return
		}

		target, err := callbackURL(result)
		if err != nil {
			s.writeAuthorizeError(w, r, err)
			return
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
	}
}

func (s *Server) credentialsValid(username, password string) bool {
	if username == "" || password == "" {
		return false
	}
	user, err := s.repos.Users.FindUser(username)
	if err != nil {
		return false
	}
	return users.CheckPasswordHash(password, user.PasswordHash)
}

func (s *Server) redirectLoginError(w http.ResponseWriter, r *http.Request, sid, username string) {
	values := url.Values{}
	values.Set("sid", sid)
	values.Set("error", "invalid username or password")
	if username != "" {
		values.Set("username", username)
	}
	http.Redirect(w, r, RouteLogin+"?"+values.Encode(), http.StatusSeeOther)
}
