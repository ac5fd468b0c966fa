package eit

import (
	"errors"
	"os"
	"time"
)

const (
	// DefaultTokenTTL is the validity window used when no expiry is supplied.
	DefaultTokenTTL = 1209600 * time.Second

	defaultKeyIDEnv      = "LAYER_KEY_ID"
	defaultProviderIDEnv = "LAYER_PROVIDER_ID"
)

// IdentityConfig supplies the issuer identity registered with the platform.
type IdentityConfig interface {
	KeyID() string
	ProviderID() string
}

// StaticIdentity is an IdentityConfig with fixed values.
type StaticIdentity struct {
	Key      string
	Provider string
}

// KeyID returns the configured signing key id.
func (s StaticIdentity) KeyID() string { return s.Key }

// ProviderID returns the configured provider id.
func (s StaticIdentity) ProviderID() string { return s.Provider }

// EnvIdentity reads the identity from environment variables, defaulting to
// LAYER_KEY_ID and LAYER_PROVIDER_ID.
type EnvIdentity struct {
	KeyIDVar      string
	ProviderIDVar string
}

// KeyID reads the signing key id from the environment.
func (e EnvIdentity) KeyID() string {
	if e.KeyIDVar == "" {
		return os.Getenv(defaultKeyIDEnv)
	}
	return os.Getenv(e.KeyIDVar)
}

// ProviderID reads the provider id from the environment.
func (e EnvIdentity) ProviderID() string {
	if e.ProviderIDVar == "" {
		return os.Getenv(defaultProviderIDEnv)
	}
	return os.Getenv(e.ProviderIDVar)
}

// BuilderConfig wires the collaborators of a TokenBuilder.
type BuilderConfig struct {
	Identity IdentityConfig
	Keys     KeyProvider
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// normalize sets default values for optional fields.
func (c *BuilderConfig) normalize() {
	if c.Clock == nil {
		c.Clock = time.Now
	}
}

// validate ensures the builder configuration is usable.
func (c BuilderConfig) validate() error {
	switch {
	case c.Identity == nil:
		return errors.New("identity config is required")
	case c.Keys == nil:
		return errors.New("key provider is required")
	}
	return nil
}
