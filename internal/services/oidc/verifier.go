// Package oidc verifies bearer tokens issued by the identity provider that
// fronts the nudge API.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/benvon/smart-nudge/internal/models"
)

// ErrMissingSubject is returned for tokens without a sub claim
var ErrMissingSubject = errors.New("token missing subject claim")

// Claims are the identity claims the API reads from a verified token
type Claims struct {
	Subject   string
	Issuer    string
	Audience  []string
	Email     string
	Name      string
	ExpiresAt time.Time
}

// Verifier verifies JWT tokens against one issuer and its key set
type Verifier struct {
	jwksManager *JWKSManager
	issuer      string
	jwksURL     string
	audience    string
}

// NewVerifier creates a new JWT verifier. An empty audience skips the aud check.
func NewVerifier(jwksManager *JWKSManager, issuer, jwksURL, audience string) *Verifier {
	return &Verifier{
		jwksManager: jwksManager,
		issuer:      issuer,
		jwksURL:     jwksURL,
		audience:    audience,
	}
}

// Verify verifies a JWT token and extracts claims
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	keys, err := v.jwksManager.GetJWKS(ctx, v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get JWKS: %w", err)
	}

	opts := []jwt.ParseOption{
		jwt.WithKeySet(keys),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	token, err := jwt.Parse([]byte(tokenString), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse/verify token: %w", err)
	}
	if token.Subject() == "" {
		return nil, ErrMissingSubject
	}

	return &Claims{
		Subject:   token.Subject(),
		Issuer:    token.Issuer(),
		Audience:  token.Audience(),
		Email:     stringClaim(token, "email"),
		Name:      stringClaim(token, "name"),
		ExpiresAt: token.Expiration(),
	}, nil
}

// Authenticate verifies the token and returns the principal it names
func (v *Verifier) Authenticate(ctx context.Context, tokenString string) (*models.User, error) {
	claims, err := v.Verify(ctx, tokenString)
	if err != nil {
		return nil, err
	}
	return &models.User{
		ID:     claims.Subject,
		Email:  claims.Email,
		Name:   claims.Name,
		Issuer: claims.Issuer,
	}, nil
}

func stringClaim(token jwt.Token, name string) string {
	v, ok := token.Get(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
