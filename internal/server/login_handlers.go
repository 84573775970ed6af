package server

import (
	"context"
	"html/template"
	"log"
	"net/http"
	"net/url"

	"github.com/ssokit/ssoapi/internal/auth"
)

// loginFormTemplate is the minimal password prompt rendered during the
// OAuth2 authorization code flow. It carries the pending auth request id
// through the POST so the flow can resume after the password check.
var loginFormTemplate = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html>
<head><title>Sign in</title></head>
<body>
	<h1>Sign in</h1>
	{{if .Error}}<p>{{.Error}}</p>{{end}}
	<form method="post" action="/oauth/login">
		<input type="hidden" name="id" value="{{.RequestID}}">
		<input type="hidden" name="next" value="{{.Next}}">
		<label>Username <input type="text" name="username" autofocus></label>
		<label>Password <input type="password" name="password"></label>
		<button type="submit">Sign in</button>
	</form>
</body>
</html>
`))

type loginFormData struct {
	RequestID string
	Next      string
	Error     string
}

// authRequestFinalizer is implemented by the OIDC storage: it marks a
// pending authorization request as authenticated.
type authRequestFinalizer interface {
	FinalizeAuthRequest(ctx context.Context, id string, userID string) error
}

// HandleLoginForm renders the login form for GET /oauth/login.
func HandleLoginForm() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renderLoginForm(w, loginFormData{
			RequestID: r.URL.Query().Get("id"),
			Next:      auth.ValidateReturnTarget(r.URL.Query().Get("next"), ""),
		})
	}
}

// HandleLoginSubmit processes POST /oauth/login.
//
// With a pending auth request id, a successful password check resumes the
// authorization code flow via the provider's callback endpoint. Without one
// the browser is sent to the validated `next` target, defaulting to the
// account page.
func HandleLoginSubmit(svc iamService, storage authRequestFinalizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form data", http.StatusBadRequest)
			return
		}

		requestID := r.PostFormValue("id")
		next := auth.ValidateReturnTarget(r.PostFormValue("next"), "/")
		username := r.PostFormValue("username")
		password := r.PostFormValue("password")

		user, _, err := svc.Login(r.Context(), username, password)
		if err != nil {
			// Same body for unknown user, wrong password, and disabled
			// account.
			w.WriteHeader(http.StatusUnauthorized)
			renderLoginForm(w, loginFormData{
				RequestID: requestID,
				Next:      next,
				Error:     "invalid credentials",
			})
			return
		}

		if requestID == "" {
			http.Redirect(w, r, next, http.StatusFound)
			return
		}

		if err := storage.FinalizeAuthRequest(r.Context(), requestID, user.ID); err != nil {
			log.Printf("finalize auth request %s: %v", requestID, err)
			http.Error(w, "authorization request expired", http.StatusBadRequest)
			return
		}

		http.Redirect(w, r, "/authorize/callback?id="+url.QueryEscape(requestID), http.StatusFound)
	}
}

func renderLoginForm(w http.ResponseWriter, data loginFormData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := loginFormTemplate.Execute(w, data); err != nil {
		log.Printf("render login form: %v", err)
	}
}
