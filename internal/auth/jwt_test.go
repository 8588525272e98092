package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestSessionVerifier_RoundTrip(t *testing.T) {
	v := SessionVerifier{Secret: []byte("s3cret"), TokenTTL: time.Hour}

	tok, err := v.Sign(Claims{WalletAddress: "GWALLET", RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	c, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if c.Subject != "user-1" || c.WalletAddress != "GWALLET" {
		t.Errorf("unexpected claims: %+v", c)
	}
}

func TestSessionVerifier_Rejects(t *testing.T) {
	v := SessionVerifier{Secret: []byte("s3cret"), TokenTTL: time.Hour}
	other := SessionVerifier{Secret: []byte("other"), TokenTTL: time.Hour}
	wrongKey, _ := other.Sign(Claims{})

	expired, _ := v.Sign(Claims{RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}})

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", ErrMissingToken},
		{"garbage", "not-a-token", ErrInvalidToken},
		{"wrong secret", wrongKey, ErrInvalidToken},
		{"expired", expired, ErrInvalidToken},
		{"alg none", unsigned, ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws/bids?token=q", nil)
	r.Header.Set("Authorization", "Bearer h")
	if got := TokenFromRequest(r); got != "q" {
		t.Errorf("expected query token, got %q", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/ws/bids", nil)
	r.Header.Set("Authorization", "bearer h")
	if got := TokenFromRequest(r); got != "h" {
		t.Errorf("expected header token, got %q", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/ws/bids", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookie, Value: "c"})
	if got := TokenFromRequest(r); got != "c" {
		t.Errorf("expected cookie token, got %q", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/ws/bids", nil)
	r.Header.Set("Authorization", "Basic abc")
	if got := TokenFromRequest(r); got != "" {
		t.Errorf("expected no token, got %q", got)
	}
}
