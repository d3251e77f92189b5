package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jrsteele09/go-oauth-provider/auth"
	"github.com/jrsteele09/go-oauth-provider/internal/config"
	"github.com/jrsteele09/go-oauth-provider/server/loginsession"
	"github.com/jrsteele09/go-oauth-provider/session"
	"github.com/jrsteele09/go-oauth-provider/token"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Route paths. The oauth2 prefix matches what relying parties expect from
// RFC 6749 deployments.
const (
	RouteAuthorize = "/oauth2/authorize"
	RouteToken     = "/oauth2/token"
	RouteValidate  = "/oauth2/validate"
	RouteRevoke    = "/oauth2/revoke"
	RouteLogin     = "/login"
	RouteConsent   = "/consent"
	RouteMetrics   = "/metrics"
)

// authSessionCookieName correlates the browser with its authorization
// attempt across redirects.
const authSessionCookieName = "_cid"

// Server is the HTTP face of the engine: the two protocol endpoints, the
// internal validation/revocation endpoints and the minimal login/consent
// collaborators the interactive flows suspend to.
type Server struct {
	router        chi.Router
	config        config.Config
	auth          *auth.Service
	repos         auth.Repos
	sessions      *session.Manager
	tokens        *token.Store
	loginSessions loginsession.Repo
}

// New wires the engine and its HTTP surface together.
func New(cfg config.Config, repos auth.Repos, loginSessions loginsession.Repo) (*Server, error) {
	sessions := session.NewManager(
		session.WithInactivityWindow(cfg.GetSessionInactivityWindow()),
	)
	tokens := token.NewStore(
		token.WithDefaultExpiry(cfg.GetDefaultTokenExpiry()),
	)

	var options []auth.ServiceOption
	if scope := cfg.GetDefaultScope(); scope != "" {
		options = append(options, auth.WithDefaultScope(scope))
	}
	authService, err := auth.NewService(repos, sessions, tokens, options...)
	if err != nil {
		return nil, errors.Wrap(err, "[server.New] NewService")
	}

	s := &Server{
		router:        chi.NewRouter(),
		config:        cfg,
		auth:          authService,
		repos:         repos,
		sessions:      sessions,
		tokens:        tokens,
		loginSessions: loginSessions,
	}
	s.initRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Auth exposes the engine, mainly for tests that seed state directly.
func (s *Server) Auth() *auth.Service {
	return s.auth
}

func (s *Server) initRoutes() {
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(requestLogger)

	s.router.Get(RouteAuthorize, s.AuthorizeHandler())
	s.router.Post(RouteAuthorize, s.AuthorizeHandler())
	s.router.Post(RouteToken, s.TokenHandler())
	s.router.Post(RouteValidate, s.ValidateHandler())
	s.router.Post(RouteRevoke, s.RevokeHandler())

	s.router.Get(RouteLogin, s.LoginPageHandler())
	s.router.Post(RouteLogin, s.LoginSubmissionHandler())
	s.router.Get(RouteConsent, s.ConsentPageHandler())
	s.router.Post(RouteConsent, s.ConsentSubmissionHandler())

	s.router.Get(RouteMetrics, promhttp.Handler().ServeHTTP)
}

func (s *Server) setAuthSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     authSessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearAuthSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     authSessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
