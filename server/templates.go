package server

import (
	"html/template"
	"net/http"

	"github.com/jrsteele09/go-oauth-provider/oauth2"
	"github.com/rs/zerolog/log"
)

const contentTypeHTML = "text/html; charset=utf-8"

// The login/consent collaborators are deliberately minimal forms: enough to
// exercise the interactive flows end to end without a templating layer.
var (
	loginTmpl = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html>
<head><title>Sign in</title></head>
<body>
<h1>Sign in to {{.AppName}}</h1>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
<form method="post" action="/login">
  <input type="hidden" name="sid" value="{{.SID}}">
  <label>Username <input type="text" name="username" value="{{.Username}}"></label>
  <label>Password <input type="password" name="password"></label>
  <button type="submit">Sign in</button>
</form>
</body>
</html>`))

	consentTmpl = template.Must(template.New("consent").Parse(`<!DOCTYPE html>
<html>
<head><title>Authorize application</title></head>
<body>
<h1>{{.ApplicationName}} requests access</h1>
<form method="post" action="/consent">
  <input type="hidden" name="sid" value="{{.SID}}">
  <ul>
  {{range .Scopes}}
    <li><label><input type="checkbox" name="scope" value="{{.Name}}"{{if .Granted}} checked{{end}}> {{.Name}}</label></li>
  {{end}}
  </ul>
  <button type="submit" name="action" value="accept">Allow</button>
  <button type="submit" name="action" value="reject">Deny</button>
</form>
</body>
</html>`))

	errorTmpl = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html>
<head><title>Authorization error</title></head>
<body>
<h1>{{.Code}}</h1>
<p>{{.Description}}</p>
</body>
</html>`))
)

type loginPageData struct {
	AppName  string
	SID      string
	Username string
	Error    string
}

type consentScope struct {
	Name    string
	Granted bool
}

type consentPageData struct {
	ApplicationName string
	SID             string
	Scopes          []consentScope
}

func (s *Server) renderErrorPage(w http.ResponseWriter, oerr *oauth2.Error) {
	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(http.StatusBadRequest)
	if err := errorTmpl.Execute(w, oerr); err != nil {
		log.Err(err).Msg("failed to render error page")
	}
}
