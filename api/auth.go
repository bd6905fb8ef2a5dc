package api

import (
	"errors"
	"strings"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
)

var (
	errMissingAuthorization = errors.New("missing authorization header")
	errBadAuthorization     = errors.New("bad auth header")
	errNoKeySet             = errors.New("jwks not configured")
)

// Authenticator resolves the caller from an Authorization header.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// AuthOptions tunes an Auth. A non-empty TestSecret switches to HS256 tokens
// signed with that secret instead of the JWKS.
type AuthOptions struct {
	TestSecret []byte
}

// Auth validates bearer JWTs issued by Auth0, or HS256 tokens in test mode.
// The parser checks exp, iat and nbf; Auth adds audience, issuer and subject.
type Auth struct {
	audience string
	issuer   string
	keyFunc  jwt.Keyfunc
	parser   *jwt.Parser
}

func NewAuth(jwks *keyfunc.JWKS, audience, issuer string, opts AuthOptions) *Auth {
	a := &Auth{audience: audience, issuer: issuer}
	switch {
	case len(opts.TestSecret) > 0:
		secret := opts.TestSecret
		a.parser = jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))
		a.keyFunc = func(*jwt.Token) (any, error) { return secret, nil }
	case jwks != nil:
		a.parser = jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}))
		a.keyFunc = jwks.Keyfunc
	default:
		a.parser = jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}))
		a.keyFunc = func(*jwt.Token) (any, error) { return nil, errNoKeySet }
	}
	return a
}

// UserIDFromAuthHeader returns the subject of the bearer token in h.
func (a *Auth) UserIDFromAuthHeader(h string) (string, error) {
	raw, err := bearerToken(h)
	if err != nil {
		return "", err
	}
	claims := jwt.MapClaims{}
	if _, err := a.parser.ParseWithClaims(raw, claims, a.keyFunc); err != nil {
		return "", err
	}
	if a.audience != "" && !claims.VerifyAudience(a.audience, true) {
		return "", errors.New("invalid audience")
	}
	if a.issuer != "" && !claims.VerifyIssuer(a.issuer, true) {
		return "", errors.New("invalid issuer")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", errors.New("missing sub")
	}
	return sub, nil
}

// bearerToken extracts a compact JWT from "Bearer <token>".
func bearerToken(h string) (string, error) {
	h = strings.TrimSpace(h)
	if h == "" {
		return "", errMissingAuthorization
	}
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || token == "" || strings.Count(token, ".") != 2 {
		return "", errBadAuthorization
	}
	return token, nil
}
