package oidc

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const testIssuer = "https://issuer.example.com"

type testIdP struct {
	server  *httptest.Server
	private jwk.Key
	hits    atomic.Int32
}

func newTestIdP(t *testing.T) *testIdP {
	t.Helper()

	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	private, err := jwk.FromRaw(raw)
	if err != nil {
		t.Fatalf("failed to wrap key: %v", err)
	}
	_ = private.Set(jwk.KeyIDKey, "test-key")
	_ = private.Set(jwk.AlgorithmKey, jwa.RS256)

	public, err := jwk.PublicKeyOf(private)
	if err != nil {
		t.Fatalf("failed to derive public key: %v", err)
	}
	_ = public.Set(jwk.KeyIDKey, "test-key")
	_ = public.Set(jwk.AlgorithmKey, jwa.RS256)
	set := jwk.NewSet()
	if err := set.AddKey(public); err != nil {
		t.Fatalf("failed to build key set: %v", err)
	}
	body, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("failed to marshal key set: %v", err)
	}

	idp := &testIdP{private: private}
	idp.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idp.hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(idp.server.Close)
	return idp
}

func (idp *testIdP) sign(t *testing.T, build func(*jwt.Builder) *jwt.Builder) string {
	t.Helper()
	now := time.Now()
	b := jwt.NewBuilder().
		Issuer(testIssuer).
		Subject("user-123").
		Audience([]string{"nudge-api"}).
		IssuedAt(now).
		Expiration(now.Add(time.Hour)).
		Claim("email", "user@example.com").
		Claim("name", "Test User")
	if build != nil {
		b = build(b)
	}
	tok, err := b.Build()
	if err != nil {
		t.Fatalf("failed to build token: %v", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, idp.private))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return string(signed)
}

func TestVerifier_Authenticate(t *testing.T) {
	t.Parallel()

	idp := newTestIdP(t)
	jwks := NewJWKSManager(idp.server.Client(), 0)
	v := NewVerifier(jwks, testIssuer, idp.server.URL, "nudge-api")

	user, err := v.Authenticate(context.Background(), idp.sign(t, nil))
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if user.ID != "user-123" {
		t.Errorf("Expected ID 'user-123', got '%s'", user.ID)
	}
	if user.Email != "user@example.com" || user.Name != "Test User" {
		t.Errorf("Unexpected profile claims: %+v", user)
	}
	if user.Issuer != testIssuer {
		t.Errorf("Expected issuer %q, got %q", testIssuer, user.Issuer)
	}
}

func TestVerifier_Rejects(t *testing.T) {
	t.Parallel()

	idp := newTestIdP(t)
	jwks := NewJWKSManager(idp.server.Client(), 0)

	tests := []struct {
		name     string
		audience string
		build    func(*jwt.Builder) *jwt.Builder
		token    string
	}{
		{
			name:  "wrong issuer",
			build: func(b *jwt.Builder) *jwt.Builder { return b.Issuer("https://evil.example.com") },
		},
		{
			name: "expired",
			build: func(b *jwt.Builder) *jwt.Builder {
				return b.Expiration(time.Now().Add(-time.Hour))
			},
		},
		{
			name:     "wrong audience",
			audience: "other-api",
		},
		{
			name:  "missing subject",
			build: func(b *jwt.Builder) *jwt.Builder { return b.Subject("") },
		},
		{
			name:  "garbage",
			token: "not.a.token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			audience := tt.audience
			if audience == "" {
				audience = "nudge-api"
			}
			v := NewVerifier(jwks, testIssuer, idp.server.URL, audience)
			token := tt.token
			if token == "" {
				token = idp.sign(t, tt.build)
			}
			if _, err := v.Verify(context.Background(), token); err == nil {
				t.Error("Expected verification to fail")
			}
		})
	}
}

func TestJWKSManager_Caches(t *testing.T) {
	t.Parallel()

	idp := newTestIdP(t)
	m := NewJWKSManager(idp.server.Client(), time.Minute)
	ctx := context.Background()

	for range 3 {
		if _, err := m.GetJWKS(ctx, idp.server.URL); err != nil {
			t.Fatalf("GetJWKS failed: %v", err)
		}
	}
	if got := idp.hits.Load(); got != 1 {
		t.Errorf("Expected 1 fetch, got %d", got)
	}

	m.Invalidate(idp.server.URL)
	if _, err := m.GetJWKS(ctx, idp.server.URL); err != nil {
		t.Fatalf("GetJWKS failed: %v", err)
	}
	if got := idp.hits.Load(); got != 2 {
		t.Errorf("Expected 2 fetches after invalidation, got %d", got)
	}
}

func TestJWKSManager_ErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := NewJWKSManager(srv.Client(), 0)
	if _, err := m.GetJWKS(context.Background(), srv.URL); err == nil {
		t.Error("Expected error for a failing JWKS endpoint")
	}
}
