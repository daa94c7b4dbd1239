package auth

import (
	goerrors "github.com/goliatone/go-errors"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// BaseConfig is a file backed Config implementation. Durations are in
// hours: TokenExpiration for regular sessions, ExtendedTokenDuration for
// remember-me sessions.
type BaseConfig struct {
	SigningKey            string   `koanf:"signing_key" json:"signing_key"`
	ContextKey            string   `koanf:"context_key" json:"context_key"`
	TokenExpiration       int      `koanf:"token_expiration" json:"token_expiration"`
	ExtendedTokenDuration int      `koanf:"extended_token_duration" json:"extended_token_duration"`
	AuthScheme            string   `koanf:"auth_scheme" json:"auth_scheme"`
	Issuer                string   `koanf:"issuer" json:"issuer"`
	Audience              []string `koanf:"audience" json:"audience"`
}

var _ Config = (*BaseConfig)(nil)

// DefaultConfig returns the storefront defaults: 24 hour sessions, 30
// day remember-me sessions, cookie named auth_token.
func DefaultConfig() *BaseConfig {
	return &BaseConfig{
		ContextKey:            "auth_token",
		TokenExpiration:       24,
		ExtendedTokenDuration: 24 * 30,
		AuthScheme:            "Bearer",
	}
}

// LoadConfig reads a YAML config file, overlaying the defaults. Keys
// live under the top-level "auth" section.
func LoadConfig(path string) (*BaseConfig, error) {
	cfg := DefaultConfig()

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to read config file").
			WithMetadata(map[string]any{"path": path})
	}

	if err := k.Unmarshal("auth", cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to decode config file").
			WithMetadata(map[string]any{"path": path})
	}

	if cfg.SigningKey == "" {
		return nil, ErrMissingSigningKey
	}

	return cfg, nil
}

func (c *BaseConfig) GetSigningKey() string { return c.SigningKey }

func (c *BaseConfig) GetContextKey() string {
	if c.ContextKey == "" {
		return "auth_token"
	}
	return c.ContextKey
}

func (c *BaseConfig) GetTokenExpiration() int { return c.TokenExpiration }

func (c *BaseConfig) GetExtendedTokenDuration() int { return c.ExtendedTokenDuration }

func (c *BaseConfig) GetAuthScheme() string {
	if c.AuthScheme == "" {
		return "Bearer"
	}
	return c.AuthScheme
}

func (c *BaseConfig) GetIssuer() string { return c.Issuer }

func (c *BaseConfig) GetAudience() []string { return c.Audience }
