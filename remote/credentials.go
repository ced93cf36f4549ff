package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jonwraymond/lanceops/cache"
)

// Credentials authenticate outgoing requests.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Secrets: implementations must not log credential values.
type Credentials interface {
	Apply(ctx context.Context, req *http.Request) error
}

// APIKeyCredentials sends a static key in the x-api-key header.
type APIKeyCredentials struct {
	Key string
}

func (c APIKeyCredentials) Apply(_ context.Context, req *http.Request) error {
	if c.Key == "" {
		return ErrMissingCredentials
	}
	req.Header.Set("x-api-key", c.Key)
	return nil
}

// JWTConfig configures JWTCredentials.
type JWTConfig struct {
	// Secret is the HS256 signing key.
	Secret []byte

	Issuer   string
	Subject  string
	Audience string

	// TTL is each token's lifetime. Default: 1h.
	TTL time.Duration

	// RefreshMargin is how long before expiry a new token is minted.
	// Default: 1m.
	RefreshMargin time.Duration

	Clock clock.Clock
}

// JWTCredentials sends a short-lived HS256 bearer token, minting a new one
// only when the cached token is within RefreshMargin of expiry.
type JWTCredentials struct {
	config JWTConfig

	mu     sync.Mutex
	tokens *cache.TTLCache[string]
}

// ErrInvalidJWTConfig indicates a JWTConfig that cannot mint tokens.
var ErrInvalidJWTConfig = errors.New("remote: invalid jwt config")

const jwtCacheKey = "bearer"

// NewJWTCredentials validates config and applies defaults.
func NewJWTCredentials(config JWTConfig) (*JWTCredentials, error) {
	if len(config.Secret) == 0 {
		return nil, fmt.Errorf("%w: secret is required", ErrInvalidJWTConfig)
	}
	if config.TTL <= 0 {
		config.TTL = time.Hour
	}
	if config.RefreshMargin <= 0 {
		config.RefreshMargin = time.Minute
	}
	if config.RefreshMargin >= config.TTL {
		return nil, fmt.Errorf("%w: refresh margin %v must be shorter than ttl %v", ErrInvalidJWTConfig, config.RefreshMargin, config.TTL)
	}
	if config.Clock == nil {
		config.Clock = clock.New()
	}

	return &JWTCredentials{
		config: config,
		tokens: cache.NewTTLCache[string](config.TTL-config.RefreshMargin, cache.WithClock(config.Clock)),
	}, nil
}

// Token returns the current bearer token, minting one if needed.
func (c *JWTCredentials) Token() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tok, ok := c.tokens.Get(jwtCacheKey); ok {
		return tok, nil
	}

	now := c.config.Clock.Now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    c.config.Issuer,
		Subject:   c.config.Subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.config.TTL)),
	}
	if c.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{c.config.Audience}
	}

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.config.Secret)
	if err != nil {
		return "", fmt.Errorf("remote: sign token: %w", err)
	}
	c.tokens.Set(jwtCacheKey, tok)
	return tok, nil
}

func (c *JWTCredentials) Apply(_ context.Context, req *http.Request) error {
	tok, err := c.Token()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	return nil
}
