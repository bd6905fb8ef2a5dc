package remote

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// TokenSource supplies the bearer token sent with every request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed access token, typically issued by the admin backend at
// login.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// HS256Source mints a short-lived token per request, signed with a shared
// secret. It is meant for service-to-service calls and local setups.
type HS256Source struct {
	Secret   []byte
	Subject  string
	Audience string
	TTL      time.Duration

	now func() time.Time
}

// NewHS256Source creates a signer for the given subject.
func NewHS256Source(secret []byte, subject, audience string, ttl time.Duration) *HS256Source {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &HS256Source{Secret: secret, Subject: subject, Audience: audience, TTL: ttl, now: time.Now}
}

func (s *HS256Source) Token(context.Context) (string, error) {
	if len(s.Secret) == 0 {
		return "", errors.New("hs256 token source has no secret")
	}
	if s.Subject == "" {
		return "", errors.New("hs256 token source has no subject")
	}
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	issued := now()
	claims := jwt.MapClaims{
		"sub": s.Subject,
		"iat": issued.Unix(),
		"exp": issued.Add(s.TTL).Unix(),
	}
	if s.Audience != "" {
		claims["aud"] = s.Audience
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
}
