package eit

import (
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Attribute names an optional profile claim.
type Attribute string

const (
	AttrFirstName   Attribute = "first_name"
	AttrLastName    Attribute = "last_name"
	AttrDisplayName Attribute = "display_name"
	AttrAvatarURL   Attribute = "avatar_url"
)

// Claim names every identity token carries.
const (
	ClaimIssuer    = "iss"
	ClaimPrincipal = "prn"
	ClaimIssuedAt  = "iat"
	ClaimExpiresAt = "exp"
	ClaimNonce     = "nce"
)

var knownAttributes = []Attribute{AttrFirstName, AttrLastName, AttrDisplayName, AttrAvatarURL}

var reservedClaims = map[string]struct{}{
	ClaimIssuer:    {},
	ClaimPrincipal: {},
	ClaimIssuedAt:  {},
	ClaimExpiresAt: {},
	ClaimNonce:     {},
}

// KnownAttributes returns the closed set of accepted attribute names.
func KnownAttributes() []Attribute {
	return append([]Attribute(nil), knownAttributes...)
}

// ProfileAttributes holds the optional user profile claims. Empty fields are
// omitted from the token.
type ProfileAttributes struct {
	FirstName   string
	LastName    string
	DisplayName string
	AvatarURL   string
}

// ProfileAttributesFromMap converts loosely typed input into ProfileAttributes.
// Unknown keys and nil or empty values are dropped.
func ProfileAttributesFromMap(values map[string]any) ProfileAttributes {
	var attrs ProfileAttributes
	for k, v := range values {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			s = fmt.Sprint(v)
		}
		attrs.set(Attribute(k), s)
	}
	return attrs
}

func (p *ProfileAttributes) set(name Attribute, value string) {
	switch name {
	case AttrFirstName:
		p.FirstName = value
	case AttrLastName:
		p.LastName = value
	case AttrDisplayName:
		p.DisplayName = value
	case AttrAvatarURL:
		p.AvatarURL = value
	}
}

func (p ProfileAttributes) get(name Attribute) string {
	switch name {
	case AttrFirstName:
		return p.FirstName
	case AttrLastName:
		return p.LastName
	case AttrDisplayName:
		return p.DisplayName
	case AttrAvatarURL:
		return p.AvatarURL
	}
	return ""
}

// Values returns the present attributes keyed by claim name.
func (p ProfileAttributes) Values() map[string]string {
	out := make(map[string]string, len(knownAttributes))
	for _, name := range knownAttributes {
		if v := p.get(name); v != "" {
			out[string(name)] = v
		}
	}
	return out
}

// IdentityClaims is the payload signed into an identity token.
type IdentityClaims struct {
	Issuer     string
	Principal  string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	Nonce      string
	Attributes map[string]string
}

// mergeAttributes copies attrs into the claim set, refusing reserved names.
func (c *IdentityClaims) mergeAttributes(attrs map[string]string) error {
	if len(attrs) == 0 {
		return nil
	}
	if c.Attributes == nil {
		c.Attributes = make(map[string]string, len(attrs))
	}
	for k, v := range attrs {
		if _, reserved := reservedClaims[k]; reserved {
			return newError(ErrCodeReservedClaim, fmt.Errorf("attribute %q collides with a reserved claim", k))
		}
		if v == "" {
			continue
		}
		c.Attributes[k] = v
	}
	return nil
}

// token renders the claim set as a JWT claim set. iat and exp are emitted as
// integer unix seconds.
func (c *IdentityClaims) token() (jwt.Token, error) {
	builder := jwt.NewBuilder().
		Issuer(c.Issuer).
		IssuedAt(c.IssuedAt.Truncate(time.Second)).
		Expiration(c.ExpiresAt.Truncate(time.Second)).
		Claim(ClaimPrincipal, c.Principal).
		Claim(ClaimNonce, c.Nonce)
	for k, v := range c.Attributes {
		builder = builder.Claim(k, v)
	}
	return builder.Build()
}
