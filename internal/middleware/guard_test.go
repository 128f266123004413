package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/THL-Leo/llmail/internal/session"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// staticResolver always resolves the same session (possibly nil).
type staticResolver struct {
	sess *session.Session
}

func (s staticResolver) FromRequest(r *http.Request) *session.Session { return s.sess }

var signedIn = &session.Session{
	UserID:   "user-123",
	Email:    "user@example.com",
	Provider: "google",
}

// ---------------------------------------------------------------------------
// ClassifyPath
// ---------------------------------------------------------------------------

func TestClassifyPath(t *testing.T) {
	tests := []struct {
		path     string
		expected PathClass
	}{
		{"/", ClassUnrestricted},
		{"/about", ClassUnrestricted},
		{"/profile", ClassProtected},
		{"/profile/settings", ClassProtected},
		{"/emails", ClassProtected},
		{"/emails/inbox/42", ClassProtected},
		{"/signin", ClassAuthOnly},
		{"/signin/", ClassAuthOnly},
		// prefix match must not swallow sibling routes
		{"/profiles", ClassUnrestricted},
		{"/emailsetup", ClassUnrestricted},
		{"/signing", ClassUnrestricted},
		// API routes handle auth themselves
		{"/api/auth/session", ClassUnrestricted},
		{"/api/create-profile", ClassUnrestricted},
	}

	for _, tt := range tests {
		if got := ClassifyPath(tt.path); got != tt.expected {
			t.Errorf("ClassifyPath(%q): expected %v, got %v", tt.path, tt.expected, got)
		}
	}
}

// ---------------------------------------------------------------------------
// Guard.Middleware
// ---------------------------------------------------------------------------

func TestGuard_ProtectedWithoutSessionRedirects(t *testing.T) {
	guard := NewGuard(staticResolver{nil})

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("inner handler should not be called")
	})

	req := httptest.NewRequest(http.MethodGet, "/emails", nil)
	rec := httptest.NewRecorder()
	guard.Middleware(inner).ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/signin?callbackUrl=%2Femails" {
		t.Errorf("unexpected redirect target: %q", loc)
	}
}

func TestGuard_CallbackURLPreservesQuery(t *testing.T) {
	guard := NewGuard(staticResolver{nil})

	req := httptest.NewRequest(http.MethodGet, "/emails/inbox?page=2", nil)
	rec := httptest.NewRecorder()
	guard.Middleware(http.NotFoundHandler()).ServeHTTP(rec, req)

	if loc := rec.Header().Get("Location"); loc != "/signin?callbackUrl=%2Femails%2Finbox%3Fpage%3D2" {
		t.Errorf("unexpected redirect target: %q", loc)
	}
}

func TestGuard_ProtectedWithSessionPasses(t *testing.T) {
	guard := NewGuard(staticResolver{signedIn})

	called := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	rec := httptest.NewRecorder()
	guard.Middleware(inner).ServeHTTP(rec, req)

	if !called {
		t.Fatal("expected inner handler to run")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestGuard_SigninWithSessionRedirectsHome(t *testing.T) {
	guard := NewGuard(staticResolver{signedIn})

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("inner handler should not be called")
	})

	req := httptest.NewRequest(http.MethodGet, "/signin", nil)
	rec := httptest.NewRecorder()
	guard.Middleware(inner).ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/" {
		t.Errorf("expected redirect to '/', got %q", loc)
	}
}

func TestGuard_SigninWithoutSessionPasses(t *testing.T) {
	guard := NewGuard(staticResolver{nil})

	called := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	req := httptest.NewRequest(http.MethodGet, "/signin", nil)
	rec := httptest.NewRecorder()
	guard.Middleware(inner).ServeHTTP(rec, req)

	if !called {
		t.Fatal("expected sign-in page to render for signed-out user")
	}
}

func TestGuard_APIRoutesExemptFromRedirects(t *testing.T) {
	guard := NewGuard(staticResolver{nil})

	called := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	req := httptest.NewRequest(http.MethodGet, "/api/db-status", nil)
	rec := httptest.NewRecorder()
	guard.Middleware(inner).ServeHTTP(rec, req)

	if !called {
		t.Fatal("API routes must not be redirected")
	}
}

func TestGuard_SessionAttachedToContext(t *testing.T) {
	guard := NewGuard(staticResolver{signedIn})

	var got *session.Session
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetSession(r)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	guard.Middleware(inner).ServeHTTP(rec, req)

	if got == nil || got.UserID != "user-123" {
		t.Errorf("expected session in context, got %+v", got)
	}
}

func TestGetSession_EmptyContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if sess := GetSession(req); sess != nil {
		t.Errorf("expected nil session, got %+v", sess)
	}
}
