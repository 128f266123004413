package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/THL-Leo/llmail/internal/audit"
	"github.com/THL-Leo/llmail/internal/profile"
	"github.com/THL-Leo/llmail/internal/session"
)

const (
	oauthStateCookie    = "llmail_oauth_state"
	oauthCallbackCookie = "llmail_oauth_callback"
)

// ---------- OAuth flow ----------

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil || s.sessions == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":          "authentication is not configured",
			"missingEnvVars": s.cfg.MissingRequired(),
		})
		return
	}

	state := uuid.NewString()
	http.SetCookie(w, s.flowCookie(oauthStateCookie, state))

	if target := safeCallbackURL(r.URL.Query().Get("callbackUrl")); target != "" {
		http.SetCookie(w, s.flowCookie(oauthCallbackCookie, target))
	}

	http.Redirect(w, r, s.oauth.AuthURL(state), http.StatusFound)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil || s.sessions == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":          "authentication is not configured",
			"missingEnvVars": s.cfg.MissingRequired(),
		})
		return
	}

	q := r.URL.Query()
	if provErr := q.Get("error"); provErr != "" {
		s.failSignIn(w, r, provErr, nil)
		return
	}

	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != q.Get("state") {
		s.failSignIn(w, r, "state_mismatch", nil)
		return
	}

	code := q.Get("code")
	if code == "" {
		s.failSignIn(w, r, "missing_code", nil)
		return
	}

	tok, err := s.oauth.Exchange(r.Context(), code)
	if err != nil {
		s.failSignIn(w, r, "exchange_failed", err)
		return
	}

	info, err := s.oauth.FetchUserInfo(r.Context(), tok)
	if err != nil {
		s.failSignIn(w, r, "userinfo_failed", err)
		return
	}

	// Provision the profile row. Failure is logged and audited but never
	// blocks authentication; the user can still sign in with a missing or
	// broken profiles table.
	if s.provisioner != nil {
		created, err := s.provisioner.Ensure(r.Context(), profile.Identity{
			ID:        info.Sub,
			Email:     info.Email,
			Name:      info.Name,
			AvatarURL: info.Picture,
		})
		if err != nil {
			slog.Warn("Profile provisioning failed during sign-in", "user", info.Sub, "error", err)
		} else if created {
			s.metrics.provisioned.Inc()
			if s.audit != nil {
				s.audit.Log(r.Context(), &info.Sub, audit.ActionProfileCreated, "profile", info.Sub, r, nil)
			}
		}
	}

	token, err := s.sessions.Issue(session.Session{
		UserID:   info.Sub,
		Email:    info.Email,
		Name:     info.Name,
		Picture:  info.Picture,
		Provider: "google",
	}, tok)
	if err != nil {
		s.failSignIn(w, r, "session_error", err)
		return
	}

	http.SetCookie(w, s.sessions.Cookie(token))
	s.clearFlowCookies(w)

	if s.audit != nil {
		s.audit.Log(r.Context(), &info.Sub, audit.ActionSignIn, "session", "", r, map[string]interface{}{"provider": "google"})
	}
	s.metrics.signIn(true)

	target := "/"
	if cb, err := r.Cookie(oauthCallbackCookie); err == nil {
		if safe := safeCallbackURL(cb.Value); safe != "" {
			target = safe
		}
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// failSignIn finishes a broken OAuth flow: audit, count, and bounce the
// browser back to the sign-in page with an error code.
func (s *Server) failSignIn(w http.ResponseWriter, r *http.Request, reason string, err error) {
	if err != nil {
		slog.Warn("Sign-in failed", "reason", reason, "error", err)
	} else {
		slog.Warn("Sign-in failed", "reason", reason)
	}
	if s.audit != nil {
		s.audit.Log(r.Context(), nil, audit.ActionSignInFailed, "session", "", r, map[string]interface{}{"reason": reason})
	}
	s.metrics.signIn(false)
	s.clearFlowCookies(w)
	http.Redirect(w, r, "/signin?error="+url.QueryEscape(reason), http.StatusFound)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	sess := s.FromRequest(r)
	if s.sessions != nil {
		http.SetCookie(w, s.sessions.ClearCookie())
	}
	if sess != nil && s.audit != nil {
		s.audit.Log(r.Context(), &sess.UserID, audit.ActionSignOut, "session", "", r, nil)
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess := s.FromRequest(r)
	if sess == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": sess})
}

// ---------- Cookie helpers ----------

// flowCookie is a short-lived cookie carrying OAuth flow state.
func (s *Server) flowCookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   strings.HasPrefix(s.cfg.BaseURL, "https://"),
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *Server) clearFlowCookies(w http.ResponseWriter) {
	for _, name := range []string{oauthStateCookie, oauthCallbackCookie} {
		c := s.flowCookie(name, "")
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

// safeCallbackURL accepts only same-site relative paths, rejecting absolute
// URLs and protocol-relative ("//host") redirect targets.
func safeCallbackURL(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") {
		return ""
	}
	return raw
}
