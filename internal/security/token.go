package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionTokenBytes gives 256 bits of entropy per session token.
const SessionTokenBytes = 32

var ErrInvalidCookie = errors.New("invalid session cookie")

// GenerateSessionToken returns the opaque token handed to the client and the
// digest that is persisted in its place.
func GenerateSessionToken() (string, []byte, error) {
	buf := make([]byte, SessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", nil, fmt.Errorf("generate session token: %w", err)
	}

	token := base64.RawURLEncoding.EncodeToString(buf)
	return token, HashSessionToken(token), nil
}

func HashSessionToken(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	return sum[:]
}

type SessionCookieClaims struct {
	Token string `json:"tok"`
	jwt.RegisteredClaims
}

// SignSessionCookie wraps a session token in an HS256 JWT so tampered
// cookies are rejected before any store lookup.
func SignSessionCookie(secret string, token string, issuedAt, expiresAt time.Time) (string, error) {
	claims := SessionCookieClaims{
		Token: token,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign session cookie: %w", err)
	}
	return signed, nil
}

func ParseSessionCookie(value string, secret string) (string, error) {
	token, err := jwt.ParseWithClaims(value, &SessionCookieClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCookie, err)
	}

	claims, ok := token.Claims.(*SessionCookieClaims)
	if !ok || !token.Valid || claims.Token == "" {
		return "", ErrInvalidCookie
	}
	return claims.Token, nil
}
