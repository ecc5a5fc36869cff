// Package auth supplies optional bearer credentials for the room channel.
// A session without a provider connects anonymously.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vovakirdan/canvaschat/internal/config"
)

// ErrNoIdentity is returned when a credential is requested without a user id.
var ErrNoIdentity = errors.New("user id is required")

// Credential is a bearer token plus the canonical username it asserts.
type Credential struct {
	Token    string
	Username string
}

// Provider issues credentials for an identity.
type Provider interface {
	Credential(ctx context.Context, userID, displayName string) (Credential, error)
}

// JWTProvider signs HS256 tokens locally.
type JWTProvider struct {
	cfg *JWTConfig
}

// NewJWTProvider builds a provider from an explicit JWT configuration.
func NewJWTProvider(cfg *JWTConfig) *JWTProvider {
	return &JWTProvider{cfg: cfg}
}

// NewProvider returns a JWT provider when a secret is configured and nil
// otherwise, in which case callers stay anonymous.
func NewProvider(cfg config.Config) Provider {
	if cfg.JWTSecret == "" {
		return nil
	}
	ttl := cfg.JWTTTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return NewJWTProvider(&JWTConfig{
		Secret: []byte(cfg.JWTSecret),
		Issuer: cfg.JWTIssuer,
		TTL:    ttl,
	})
}

// Credential signs a token for userID carrying displayName.
func (p *JWTProvider) Credential(_ context.Context, userID, displayName string) (Credential, error) {
	if userID == "" {
		return Credential{}, ErrNoIdentity
	}
	token, err := GenerateToken(p.cfg, userID, displayName)
	if err != nil {
		return Credential{}, fmt.Errorf("sign token: %w", err)
	}
	return Credential{Token: token, Username: displayName}, nil
}

// Validate returns the claims of a token issued by this provider.
func (p *JWTProvider) Validate(token string) (*Claims, error) {
	return ValidateToken(p.cfg, token)
}
