package eit

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
)

const defaultPrivateKeyEnv = "LAYER_PRIVATE_KEY"

// KeyProvider returns the PEM encoded RSA private key used to sign tokens.
// The PEM text may carry literal `\n` sequences in place of line breaks.
type KeyProvider interface {
	PrivateKeyPEM(ctx context.Context) (string, error)
}

// StaticKey serves a PEM string held in memory.
type StaticKey string

// PrivateKeyPEM implements KeyProvider.
func (k StaticKey) PrivateKeyPEM(context.Context) (string, error) {
	if strings.TrimSpace(string(k)) == "" {
		return "", newError(ErrCodeKeyMaterial, errors.New("private key is empty"))
	}
	return string(k), nil
}

// EnvKey reads the private key from an environment variable on every call.
type EnvKey struct {
	// Var defaults to LAYER_PRIVATE_KEY.
	Var string
}

// PrivateKeyPEM implements KeyProvider.
func (k EnvKey) PrivateKeyPEM(context.Context) (string, error) {
	name := k.Var
	if name == "" {
		name = defaultPrivateKeyEnv
	}
	value, ok := os.LookupEnv(name)
	if !ok || strings.TrimSpace(value) == "" {
		return "", newError(ErrCodeKeyMaterial, fmt.Errorf("environment variable %s is not set", name))
	}
	return value, nil
}

// NormalizePEM turns literal `\n` escape sequences into real line breaks.
func NormalizePEM(raw string) string {
	return strings.TrimSpace(strings.ReplaceAll(raw, `\n`, "\n"))
}

// ParseRSAPrivateKey normalizes raw and parses it as a PKCS#1 or PKCS#8 RSA
// private key.
func ParseRSAPrivateKey(raw string) (*rsa.PrivateKey, error) {
	normalized := NormalizePEM(raw)
	if normalized == "" {
		return nil, newError(ErrCodeKeyMaterial, errors.New("private key is empty"))
	}
	block, _ := pem.Decode([]byte(normalized))
	if block == nil {
		return nil, newError(ErrCodeKeyMaterial, errors.New("failed to decode PEM block"))
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, newError(ErrCodeKeyMaterial, fmt.Errorf("parse private key: %w", err))
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, newError(ErrCodeKeyMaterial, fmt.Errorf("unsupported key type %T, want RSA", parsed))
	}
	return key, nil
}
