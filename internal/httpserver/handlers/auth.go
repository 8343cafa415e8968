package handlers

import (
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"github.com/MrSnakeDoc/openbinder/internal/auth"
	"github.com/MrSnakeDoc/openbinder/internal/bridge"
	"github.com/MrSnakeDoc/openbinder/internal/domain"
	"github.com/MrSnakeDoc/openbinder/internal/httpserver/deps"
	"github.com/MrSnakeDoc/openbinder/internal/httpserver/mw"
	"github.com/MrSnakeDoc/openbinder/internal/logger"
)

// popupDone closes the sign-in popup and tells the opener the result.
var popupDone = template.Must(template.New("popup").Parse(`<!doctype html>
<html><body><script>
if (window.opener) { window.opener.postMessage({type: "ob:auth-state", ok: {{.OK}}, error: {{.Error}}}, location.origin); }
window.close();
location.replace({{.ReturnTo}});
</script></body></html>
`))

type popupResult struct {
	OK       bool
	Error    string
	ReturnTo string
}

// SignIn starts the identity provider flow. Popup mode answers JSON with the
// URL to open; anything else redirects the whole page.
func SignIn(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		start, err := d.Auth.SignIn(r.Context(), q.Get("mode"), q.Get("return"))
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		if start.Mode == auth.ModePopup {
			writeJSON(w, d, http.StatusOK, start)
			return
		}
		http.Redirect(w, r, start.URL, http.StatusFound)
	}
}

// Callback completes the provider flow and sets the session cookie. Failed
// redirect sign-ins return to the app with signin_error set.
func Callback(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if e := q.Get("error"); e != "" {
			d.Logger.Warn("sign-in rejected by provider", logger.String("error", e))
			failSignIn(w, r, "/", e)
			return
		}

		res, err := d.Auth.Callback(r.Context(), q.Get("state"), q.Get("code"))
		if err != nil {
			if errors.Is(err, domain.ErrUnauthenticated) {
				d.Logger.Warn("sign-in failed", logger.Error(err))
				failSignIn(w, r, "/", "sign-in failed")
				return
			}
			writeError(w, r, d, err)
			return
		}

		setSessionCookie(w, d, res.Session.Token, d.Auth.SessionTTL())
		if res.Mode == auth.ModePopup {
			renderPopup(w, d, popupResult{OK: true, ReturnTo: res.ReturnTo})
			return
		}
		http.Redirect(w, r, res.ReturnTo, http.StatusFound)
	}
}

func failSignIn(w http.ResponseWriter, r *http.Request, returnTo, reason string) {
	v := url.Values{"signin_error": {reason}}
	http.Redirect(w, r, returnTo+"?"+v.Encode(), http.StatusFound)
}

func renderPopup(w http.ResponseWriter, d deps.Deps, res popupResult) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := popupDone.Execute(w, res); err != nil {
		d.Logger.Debug("failed to write response", logger.Error(err))
	}
}

// SignOut ends the current session and clears the cookie.
func SignOut(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := mw.TokenFromContext(r.Context())
		if token == "" {
			token = mw.RequestToken(r, d.SessionCookie)
		}
		if err := d.Auth.SignOut(r.Context(), token); err != nil {
			writeError(w, r, d, err)
			return
		}
		if d.Sessions != nil {
			d.Sessions.Forget(token)
		}
		setSessionCookie(w, d, "", -1)
		w.WriteHeader(http.StatusNoContent)
	}
}

type authStateResponse struct {
	User *bridge.UserInfo `json:"user"`
}

// AuthState reports the signed-in user, null when signed out.
func AuthState(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, _ := domain.UserFromContext(r.Context())
		writeJSON(w, d, http.StatusOK, authStateResponse{User: bridge.ExtractUser(u)})
	}
}

func setSessionCookie(w http.ResponseWriter, d deps.Deps, token string, ttl time.Duration) {
	c := &http.Cookie{
		Name:     d.SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   d.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl < 0 {
		c.MaxAge = -1
	} else {
		c.MaxAge = int(ttl.Seconds())
	}
	http.SetCookie(w, c)
}
