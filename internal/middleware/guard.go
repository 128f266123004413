package middleware

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/THL-Leo/llmail/internal/session"
)

// PathClass is the access class of a browser route.
type PathClass int

const (
	// ClassUnrestricted paths are served regardless of session state.
	ClassUnrestricted PathClass = iota
	// ClassProtected paths require a valid session.
	ClassProtected
	// ClassAuthOnly paths are for signed-out users (the sign-in page).
	ClassAuthOnly
)

var protectedPrefixes = []string{"/profile", "/emails"}

// ClassifyPath maps a request path to its access class. API routes are
// exempt from page redirects; they do their own auth and return JSON errors.
func ClassifyPath(path string) PathClass {
	if strings.HasPrefix(path, "/api/") {
		return ClassUnrestricted
	}
	for _, prefix := range protectedPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return ClassProtected
		}
	}
	if path == "/signin" || strings.HasPrefix(path, "/signin/") {
		return ClassAuthOnly
	}
	return ClassUnrestricted
}

// SessionResolver resolves the session for a request, nil when
// unauthenticated. *session.Manager satisfies it.
type SessionResolver interface {
	FromRequest(r *http.Request) *session.Session
}

// Guard redirects browsers according to the path class: protected pages
// bounce signed-out users to /signin with a callbackUrl, and the sign-in
// page bounces signed-in users home.
type Guard struct {
	sessions SessionResolver
}

func NewGuard(sessions SessionResolver) *Guard {
	return &Guard{sessions: sessions}
}

func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := g.sessions.FromRequest(r)

		switch ClassifyPath(r.URL.Path) {
		case ClassProtected:
			if sess == nil {
				target := "/signin?callbackUrl=" + url.QueryEscape(r.URL.RequestURI())
				http.Redirect(w, r, target, http.StatusFound)
				return
			}
		case ClassAuthOnly:
			if sess != nil {
				http.Redirect(w, r, "/", http.StatusFound)
				return
			}
		}

		if sess != nil {
			r = r.WithContext(setContextValue(r.Context(), ContextSession, sess))
		}
		next.ServeHTTP(w, r)
	})
}

type contextKey string

// ContextSession carries the verified session for downstream handlers.
const ContextSession contextKey = "session"

// GetSession extracts the session from the request context, nil when the
// request is unauthenticated.
func GetSession(r *http.Request) *session.Session {
	sess, _ := r.Context().Value(ContextSession).(*session.Session)
	return sess
}

func setContextValue(ctx context.Context, key contextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}
