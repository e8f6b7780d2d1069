package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	AccessTokenCookie  = "access_token"
	GuestSessionHeader = "X-Guest-Session"
)

var ErrInvalidToken = errors.New("invalid access token")

func ExtractAccessToken(r *http.Request) string {
	// Cookie first, then the Authorization header.
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil {
		if cookie.Value != "" {
			return cookie.Value
		}
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}

// Claims are issued by the auth service; this engine only verifies them.
type Claims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// ParseToken accepts HS256 tokens signed with secret that carry a user id.
func ParseToken(secret []byte, tokenStr string) (*Identity, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID <= 0 {
		return nil, ErrInvalidToken
	}
	return &Identity{UserID: claims.UserID, Role: claims.Role}, nil
}

// GuestSession reads the guest cart session header. A malformed value is
// reported as absent.
func GuestSession(r *http.Request) (uuid.UUID, bool) {
	raw := strings.TrimSpace(r.Header.Get(GuestSessionHeader))
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}
