package eit

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
)

const (
	// ContentType marks the token profile for the verifying platform.
	ContentType = "layer-eit;v=1"
	// TokenType is the typ header of every identity token.
	TokenType = "JWT"
)

// Header carries the protected header values that vary per issuer.
type Header struct {
	KeyID string
}

// Signer produces RS256 compact serializations.
// PKCS#1 v1.5 signatures are deterministic, so identical input yields
// identical tokens.
type Signer struct {
	key *rsa.PrivateKey
}

// NewSigner validates key and wraps it.
func NewSigner(key *rsa.PrivateKey) (*Signer, error) {
	if key == nil {
		return nil, newError(ErrCodeKeyMaterial, errors.New("private key is nil"))
	}
	if err := key.Validate(); err != nil {
		return nil, newError(ErrCodeKeyMaterial, err)
	}
	return &Signer{key: key}, nil
}

// Sign encodes payload under the identity token header and signs
// base64url(header) + "." + base64url(payload).
func (s *Signer) Sign(header Header, payload []byte) (string, error) {
	hdrs := jws.NewHeaders()
	for k, v := range map[string]string{
		jws.TypeKey:        TokenType,
		jws.ContentTypeKey: ContentType,
		jws.KeyIDKey:       header.KeyID,
	} {
		if err := hdrs.Set(k, v); err != nil {
			return "", newError(ErrCodeSigning, fmt.Errorf("set header %s: %w", k, err))
		}
	}

	signed, err := jws.Sign(payload, jws.WithKey(jwa.RS256, s.key, jws.WithProtectedHeaders(hdrs)))
	if err != nil {
		return "", newError(ErrCodeSigning, err)
	}
	token := string(signed)
	if i := strings.LastIndexByte(token, '.'); i < 0 || i == len(token)-1 {
		return "", newError(ErrCodeSigning, errors.New("empty signature segment"))
	}
	return token, nil
}
