package session

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoToken is returned by Claims when the store holds no access token.
var ErrNoToken = errors.New("no access token")

// Claims is the display subset of an access token's payload.
type Claims struct {
	Subject   string
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token carried an expiry that has passed.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

type tokenClaims struct {
	jwt.RegisteredClaims
	UserID any `json:"user_id,omitempty"`
}

// Claims decodes the access token without verifying its signature. The
// result is for display only and must never gate access.
func (s *Store) Claims() (Claims, error) {
	tok, ok := s.AccessToken()
	if !ok {
		return Claims{}, ErrNoToken
	}

	var tc tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &tc); err != nil {
		return Claims{}, err
	}

	c := Claims{Subject: tc.Subject}
	switch v := tc.UserID.(type) {
	case string:
		c.UserID = v
	case float64:
		c.UserID = strconv.FormatInt(int64(v), 10)
	}
	if tc.IssuedAt != nil {
		c.IssuedAt = tc.IssuedAt.Time
	}
	if tc.ExpiresAt != nil {
		c.ExpiresAt = tc.ExpiresAt.Time
	}
	return c, nil
}
