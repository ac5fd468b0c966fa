package eit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// IdentityRequest describes the user a token vouches for.
type IdentityRequest struct {
	UserID string
	// Nonce is issued by the platform; it is never generated here.
	Nonce string
	// ExpiresAt defaults to issue time + DefaultTokenTTL when zero.
	ExpiresAt  time.Time
	Attributes ProfileAttributes
}

// TokenBuilder issues signed identity tokens. It holds no mutable state and
// is safe for concurrent use.
type TokenBuilder struct {
	identity IdentityConfig
	keys     KeyProvider
	now      func() time.Time
}

// NewTokenBuilder constructs a TokenBuilder from cfg.
func NewTokenBuilder(cfg BuilderConfig) (*TokenBuilder, error) {
	if err := cfg.validate(); err != nil {
		return nil, newError(ErrCodeInvalidConfig, err)
	}
	cfg.normalize()
	return &TokenBuilder{
		identity: cfg.Identity,
		keys:     cfg.Keys,
		now:      cfg.Clock,
	}, nil
}

// Claims validates req and assembles the claim set without signing it.
func (b *TokenBuilder) Claims(req IdentityRequest) (*IdentityClaims, error) {
	return b.claims(req, b.now())
}

func (b *TokenBuilder) claims(req IdentityRequest, now time.Time) (*IdentityClaims, error) {
	switch {
	case strings.TrimSpace(req.UserID) == "":
		return nil, newError(ErrCodeMissingField, errors.New("user id is required"))
	case req.Nonce == "":
		return nil, newError(ErrCodeMissingField, errors.New("nonce is required"))
	}
	issuer := b.identity.ProviderID()
	if issuer == "" {
		return nil, newError(ErrCodeInvalidConfig, errors.New("provider id is empty"))
	}

	issuedAt := now.Truncate(time.Second)
	expiresAt := req.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = issuedAt.Add(DefaultTokenTTL)
	}
	expiresAt = expiresAt.Truncate(time.Second)
	if expiresAt.Before(issuedAt) {
		return nil, newError(ErrCodeInvalidField, fmt.Errorf("expiry %s is before issue time %s",
			expiresAt.UTC().Format(time.RFC3339), issuedAt.UTC().Format(time.RFC3339)))
	}

	claims := &IdentityClaims{
		Issuer:    issuer,
		Principal: req.UserID,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
		Nonce:     req.Nonce,
	}
	if err := claims.mergeAttributes(req.Attributes.Values()); err != nil {
		return nil, err
	}
	return claims, nil
}

// Build issues the compact RS256 identity token for req.
func (b *TokenBuilder) Build(ctx context.Context, req IdentityRequest) (string, error) {
	claims, err := b.claims(req, b.now())
	if err != nil {
		return "", err
	}
	keyID := b.identity.KeyID()
	if keyID == "" {
		return "", newError(ErrCodeInvalidConfig, errors.New("key id is empty"))
	}

	signer, err := b.signer(ctx)
	if err != nil {
		return "", err
	}

	tok, err := claims.token()
	if err != nil {
		return "", newError(ErrCodeSigning, fmt.Errorf("build claims: %w", err))
	}
	payload, err := json.Marshal(tok)
	if err != nil {
		return "", newError(ErrCodeSigning, fmt.Errorf("encode claims: %w", err))
	}
	return signer.Sign(Header{KeyID: keyID}, payload)
}

func (b *TokenBuilder) signer(ctx context.Context) (*Signer, error) {
	raw, err := b.keys.PrivateKeyPEM(ctx)
	if err != nil {
		var coded *Error
		if errors.As(err, &coded) {
			return nil, err
		}
		return nil, newError(ErrCodeKeyMaterial, fmt.Errorf("load private key: %w", err))
	}
	key, err := ParseRSAPrivateKey(raw)
	if err != nil {
		return nil, err
	}
	return NewSigner(key)
}
