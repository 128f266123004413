package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

const testSecret = "test-session-secret-long-enough-32chars!"

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(testSecret, time.Hour, false)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m
}

var testIdentity = Session{
	UserID:   "google-sub-123",
	Email:    "user@example.com",
	Name:     "Test User",
	Picture:  "https://example.com/avatar.png",
	Provider: "google",
}

// ---------------------------------------------------------------------------
// NewManager
// ---------------------------------------------------------------------------

func TestNewManager_RejectsShortSecret(t *testing.T) {
	if _, err := NewManager("short", time.Hour, false); err == nil {
		t.Fatal("expected error for short secret")
	}
}

// ---------------------------------------------------------------------------
// Issue / Verify
// ---------------------------------------------------------------------------

func TestIssueVerify_RoundTrip(t *testing.T) {
	m := newTestManager(t)

	token, err := m.Issue(testIdentity, nil)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	sess, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if *sess != testIdentity {
		t.Errorf("round trip mismatch: %+v", sess)
	}
}

func TestVerify_ExpiredToken(t *testing.T) {
	m, err := NewManager(testSecret, -time.Hour, false)
	if err != nil {
		t.Fatal(err)
	}

	token, _ := m.Issue(testIdentity, nil)
	if _, err := m.Verify(token); err == nil {
		t.Error("expected expired token to be rejected")
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	m := newTestManager(t)
	other, _ := NewManager("a-completely-different-secret-32chars!!!", time.Hour, false)

	token, _ := other.Issue(testIdentity, nil)
	if _, err := m.Verify(token); err == nil {
		t.Error("expected token signed with another secret to be rejected")
	}
}

func TestVerify_MalformedToken(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Verify("not-a-jwt"); err == nil {
		t.Error("expected malformed token to be rejected")
	}
}

// ---------------------------------------------------------------------------
// Provider tokens
// ---------------------------------------------------------------------------

func TestProviderToken_RoundTrip(t *testing.T) {
	m := newTestManager(t)

	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	providerTok := &oauth2.Token{
		AccessToken:  "ya29.access",
		RefreshToken: "1//refresh",
		Expiry:       expiry,
	}

	token, err := m.Issue(testIdentity, providerTok)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	got, err := m.ProviderToken(token)
	if err != nil {
		t.Fatalf("ProviderToken failed: %v", err)
	}
	if got.AccessToken != "ya29.access" {
		t.Errorf("unexpected access token: %q", got.AccessToken)
	}
	if got.RefreshToken != "1//refresh" {
		t.Errorf("unexpected refresh token: %q", got.RefreshToken)
	}
	if !got.Expiry.Equal(expiry) {
		t.Errorf("expected expiry %v, got %v", expiry, got.Expiry)
	}
}

func TestProviderToken_AbsentWhenNotIssued(t *testing.T) {
	m := newTestManager(t)

	token, _ := m.Issue(testIdentity, nil)
	if _, err := m.ProviderToken(token); err == nil {
		t.Error("expected error when session carries no provider tokens")
	}
}

// ---------------------------------------------------------------------------
// FromRequest
// ---------------------------------------------------------------------------

func TestFromRequest_NoCookie(t *testing.T) {
	m := newTestManager(t)
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	if sess := m.FromRequest(r); sess != nil {
		t.Errorf("expected nil session without cookie, got %+v", sess)
	}
}

func TestFromRequest_InvalidCookieIsUnauthenticated(t *testing.T) {
	m := newTestManager(t)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: "garbage"})

	if sess := m.FromRequest(r); sess != nil {
		t.Errorf("expected nil session for invalid cookie, got %+v", sess)
	}
}

func TestFromRequest_ValidCookie(t *testing.T) {
	m := newTestManager(t)
	token, _ := m.Issue(testIdentity, nil)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: token})

	sess := m.FromRequest(r)
	if sess == nil {
		t.Fatal("expected session")
	}
	if sess.UserID != testIdentity.UserID {
		t.Errorf("unexpected user: %q", sess.UserID)
	}
}

// ---------------------------------------------------------------------------
// Cookies
// ---------------------------------------------------------------------------

func TestCookie_Attributes(t *testing.T) {
	m := newTestManager(t)

	c := m.Cookie("token-value")
	if c.Name != CookieName || c.Value != "token-value" {
		t.Errorf("unexpected cookie identity: %+v", c)
	}
	if !c.HttpOnly {
		t.Error("session cookie must be HttpOnly")
	}
	if c.SameSite != http.SameSiteLaxMode {
		t.Error("expected SameSite=Lax")
	}
	if c.MaxAge != 3600 {
		t.Errorf("expected MaxAge 3600, got %d", c.MaxAge)
	}
	if c.Path != "/" {
		t.Errorf("expected Path '/', got %q", c.Path)
	}
}

func TestClearCookie_Expires(t *testing.T) {
	m := newTestManager(t)

	c := m.ClearCookie()
	if c.MaxAge >= 0 {
		t.Errorf("expected negative MaxAge, got %d", c.MaxAge)
	}
	if c.Value != "" {
		t.Errorf("expected empty value, got %q", c.Value)
	}
}
