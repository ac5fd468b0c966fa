package eit

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/api/option"
	secretmanager "google.golang.org/api/secretmanager/v1"
)

// SecretManagerKey loads the signing key from a Google Secret Manager secret
// version, for example "projects/p/secrets/layer-key/versions/latest".
// The API client is created once; the secret itself is fetched on every call.
type SecretManagerKey struct {
	Version string
	Options []option.ClientOption

	mu      sync.Mutex
	service *secretmanager.Service
}

// NewSecretManagerKey returns a KeyProvider for the given secret version.
func NewSecretManagerKey(version string, opts ...option.ClientOption) *SecretManagerKey {
	return &SecretManagerKey{
		Version: version,
		Options: append([]option.ClientOption(nil), opts...),
	}
}

// PrivateKeyPEM implements KeyProvider.
func (s *SecretManagerKey) PrivateKeyPEM(ctx context.Context) (string, error) {
	if strings.TrimSpace(s.Version) == "" {
		return "", newError(ErrCodeInvalidConfig, errors.New("secret version is required"))
	}
	if ctx == nil {
		ctx = context.Background()
	}
	svc, err := s.getOrCreate(ctx)
	if err != nil {
		return "", newError(ErrCodeKeyMaterial, fmt.Errorf("create secret manager client: %w", err))
	}

	resp, err := svc.Projects.Secrets.Versions.Access(s.Version).Context(ctx).Do()
	if err != nil {
		return "", newError(ErrCodeKeyMaterial, fmt.Errorf("access %s: %w", s.Version, err))
	}
	if resp.Payload == nil || resp.Payload.Data == "" {
		return "", newError(ErrCodeKeyMaterial, fmt.Errorf("secret %s has no payload", s.Version))
	}
	data, err := base64.StdEncoding.DecodeString(resp.Payload.Data)
	if err != nil {
		return "", newError(ErrCodeKeyMaterial, fmt.Errorf("decode secret payload: %w", err))
	}
	return string(data), nil
}

func (s *SecretManagerKey) getOrCreate(ctx context.Context) (*secretmanager.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.service != nil {
		return s.service, nil
	}
	// The cached client's credentials must outlive the call that created it.
	svc, err := secretmanager.NewService(context.WithoutCancel(ctx), s.Options...)
	if err != nil {
		return nil, err
	}
	s.service = svc
	return svc, nil
}
