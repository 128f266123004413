package session

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// CookieName is the session cookie issued after a successful sign-in.
const CookieName = "llmail_session"

// Session is the authenticated identity carried by a verified session token.
type Session struct {
	UserID   string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Picture  string `json:"picture,omitempty"`
	Provider string `json:"provider"`
}

// Claims is the session JWT payload. PVT holds the provider access and
// refresh tokens, encrypted so the OAuth credentials never appear in the
// cookie in the clear.
type Claims struct {
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Picture  string `json:"picture,omitempty"`
	Provider string `json:"provider"`
	PVT      string `json:"pvt,omitempty"`
	jwt.RegisteredClaims
}

// providerTokens is the plaintext form of the encrypted PVT claim.
type providerTokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

// Manager issues and verifies session tokens.
type Manager struct {
	secret []byte
	maxAge time.Duration
	cipher *tokenCipher
	secure bool
}

// NewManager builds a session manager. Tokens are HS256 JWTs signed with
// secret; secure controls the cookie Secure flag (true behind HTTPS).
func NewManager(secret string, maxAge time.Duration, secure bool) (*Manager, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("session secret must be at least 32 characters")
	}

	cipher, err := newTokenCipher(secret)
	if err != nil {
		return nil, fmt.Errorf("init token cipher: %w", err)
	}

	return &Manager{
		secret: []byte(secret),
		maxAge: maxAge,
		cipher: cipher,
		secure: secure,
	}, nil
}

// Issue signs a session token for the given identity. tok may be nil when
// no provider tokens should be carried.
func (m *Manager) Issue(sess Session, tok *oauth2.Token) (string, error) {
	now := time.Now()
	claims := Claims{
		Email:    sess.Email,
		Name:     sess.Name,
		Picture:  sess.Picture,
		Provider: sess.Provider,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.maxAge)),
			Issuer:    "llmail",
		},
	}

	if tok != nil {
		pt := providerTokens{
			AccessToken:  tok.AccessToken,
			RefreshToken: tok.RefreshToken,
			Expiry:       tok.Expiry,
		}
		plain, err := json.Marshal(pt)
		if err != nil {
			return "", fmt.Errorf("marshal provider tokens: %w", err)
		}
		encrypted, err := m.cipher.encrypt(string(plain))
		if err != nil {
			return "", fmt.Errorf("encrypt provider tokens: %w", err)
		}
		claims.PVT = encrypted
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify parses and validates a session token. Any failure (bad signature,
// expiry, malformed token) returns an error; callers treat that as an
// unauthenticated request, never as a hard failure.
func (m *Manager) Verify(tokenString string) (*Session, error) {
	claims, err := m.parse(tokenString)
	if err != nil {
		return nil, err
	}

	return &Session{
		UserID:   claims.Subject,
		Email:    claims.Email,
		Name:     claims.Name,
		Picture:  claims.Picture,
		Provider: claims.Provider,
	}, nil
}

// ProviderToken decrypts the provider tokens embedded in a session token.
func (m *Manager) ProviderToken(tokenString string) (*oauth2.Token, error) {
	claims, err := m.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.PVT == "" {
		return nil, fmt.Errorf("session carries no provider tokens")
	}

	plain, err := m.cipher.decrypt(claims.PVT)
	if err != nil {
		return nil, fmt.Errorf("decrypt provider tokens: %w", err)
	}

	var pt providerTokens
	if err := json.Unmarshal([]byte(plain), &pt); err != nil {
		return nil, fmt.Errorf("unmarshal provider tokens: %w", err)
	}

	return &oauth2.Token{
		AccessToken:  pt.AccessToken,
		RefreshToken: pt.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       pt.Expiry,
	}, nil
}

func (m *Manager) parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}

// FromRequest resolves the session from the request cookie. A missing or
// invalid cookie yields (nil, nil): the request is simply unauthenticated.
func (m *Manager) FromRequest(r *http.Request) *Session {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	sess, err := m.Verify(cookie.Value)
	if err != nil {
		return nil
	}
	return sess
}

// Cookie wraps a signed token in the session cookie.
func (m *Manager) Cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.maxAge.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearCookie expires the session cookie.
func (m *Manager) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
