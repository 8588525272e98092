// Package auth verifies session tokens and signed bid requests.
package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionCookie is the cookie carrying the access token.
const SessionCookie = "access_token"

var (
	ErrMissingToken = errors.New("missing session token")
	ErrInvalidToken = errors.New("invalid session token")
)

// Claims identify a signed-in wallet.
type Claims struct {
	WalletAddress string `json:"walletAddress,omitempty"`
	Username      string `json:"username,omitempty"`
	IsArtist      bool   `json:"isArtist,omitempty"`

	jwt.RegisteredClaims
}

// SessionVerifier signs and verifies HS256 session tokens.
type SessionVerifier struct {
	Secret   []byte
	TokenTTL time.Duration
}

func (v SessionVerifier) Sign(claims Claims) (string, error) {
	now := time.Now().UTC()
	if claims.IssuedAt == nil {
		claims.IssuedAt = jwt.NewNumericDate(now)
	}
	if claims.ExpiresAt == nil && v.TokenTTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(v.TokenTTL))
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(v.Secret)
}

func (v SessionVerifier) Verify(token string) (Claims, error) {
	if token == "" {
		return Claims{}, ErrMissingToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return v.Secret, nil
	})
	if err != nil {
		return Claims{}, errors.Join(ErrInvalidToken, err)
	}
	c, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	return *c, nil
}

// VerifyRequest extracts and verifies the request's session token.
func (v SessionVerifier) VerifyRequest(r *http.Request) (Claims, error) {
	return v.Verify(TokenFromRequest(r))
}

// TokenFromRequest reads the token from the `token` query parameter, a
// bearer Authorization header, or the session cookie, in that order.
func TokenFromRequest(r *http.Request) string {
	if tok := r.URL.Query().Get("token"); tok != "" {
		return tok
	}
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, tok, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(tok)
		}
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}
