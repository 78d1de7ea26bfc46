package crypto

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidSession = errors.New("invalid session token")
	ErrMissingSubject = errors.New("session token has no user id")
)

// SessionClaims is the payload of a session token. The userId claim matches
// the tokens issued by the authentication service.
type SessionClaims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// IssueSessionToken signs an HS256 session token for userID.
// A zero ttl produces a token without expiry.
func IssueSessionToken(secret []byte, userID string, ttl time.Duration) (string, error) {
	claims := SessionClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	if ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// VerifySessionToken validates the signature and expiry of a session token
// and returns the user id it carries.
func VerifySessionToken(secret []byte, token string) (string, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if claims.UserID == "" {
		return "", ErrMissingSubject
	}
	return claims.UserID, nil
}
