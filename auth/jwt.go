package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the bearer token payload. Simplified relative to an OIDC/JWKS
// flow (there is no external identity provider here) down to the HMAC
// shared-secret shape spec.md §4.9/§6 requires: a single JWT_SECRET_KEY.
// SessionID carries the backing sessions row's id so a valid signature
// alone is never sufficient — spec.md §3/§4.9 require checking is_active
// on every call, not just at issuance.
type Claims struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	GroupID   string `json:"group_id"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewJWTIssuer(secret string, ttl time.Duration) *JWTIssuer {
	return &JWTIssuer{secret: []byte(secret), ttl: ttl}
}

// Issue signs a token bound to sessionID, the pre-generated id of the
// sessions row the caller is about to create — the token is meaningless
// without a matching, active session.
func (j *JWTIssuer) Issue(userID int64, username, groupID, sessionID string) (string, time.Time, error) {
	expiresAt := time.Now().Add(j.ttl)
	claims := Claims{
		UserID:    userID,
		Username:  username,
		GroupID:   groupID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (j *JWTIssuer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return j.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
