package eit

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
)

var fixedNow = time.Date(2026, time.March, 4, 10, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func newRSAKey(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	block := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	return key, string(block)
}

// escapeNewlines mimics secret stores that keep PEM files on a single line.
func escapeNewlines(s string) string {
	return strings.ReplaceAll(s, "\n", `\n`)
}

func newTestBuilder(t *testing.T, pemKey string) *TokenBuilder {
	t.Helper()
	builder, err := NewTokenBuilder(BuilderConfig{
		Identity: StaticIdentity{Key: "layer:///keys/kid-1", Provider: "layer:///providers/prov-1"},
		Keys:     StaticKey(pemKey),
		Clock:    fixedClock,
	})
	if err != nil {
		t.Fatalf("NewTokenBuilder: %v", err)
	}
	return builder
}

type decodedToken struct {
	Header jws.Headers
	Claims map[string]any
}

func decode(t *testing.T, token string, key *rsa.PrivateKey) decodedToken {
	t.Helper()
	payload, err := jws.Verify([]byte(token), jws.WithKey(jwa.RS256, &key.PublicKey))
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	msg, err := jws.Parse([]byte(token))
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if len(msg.Signatures()) != 1 {
		t.Fatalf("expected one signature, got %d", len(msg.Signatures()))
	}
	var claims map[string]any
	if err := json.Unmarshal(payload, &claims); err != nil {
		t.Fatalf("decode claims: %v", err)
	}
	return decodedToken{Header: msg.Signatures()[0].ProtectedHeaders(), Claims: claims}
}

func unixClaim(t *testing.T, claims map[string]any, name string) int64 {
	t.Helper()
	v, ok := claims[name].(float64)
	if !ok {
		t.Fatalf("claim %s: expected number, got %T", name, claims[name])
	}
	return int64(v)
}

func requireCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if e.Code != code {
		t.Fatalf("expected code %s, got %s (%v)", code, e.Code, err)
	}
}
