package core

import (
	"fmt"
	"strings"
	"time"
)

type TokenConfig struct {
	// TTLHours bounds the access token lifetime; exp is always minted
	// as iat + TTL.
	TTLHours  int    `koanf:"ttl_hours" mapstructure:"ttl_hours"`
	TokenType string `koanf:"token_type" mapstructure:"token_type"`
}

type PasswordResetConfig struct {
	TTLHours int `koanf:"ttl_hours" mapstructure:"ttl_hours"`
}

type ReaperConfig struct {
	RetentionDays int `koanf:"retention_days" mapstructure:"retention_days"`
}

// KeysConfig carries the RSA key material for signing and verifying
// access tokens. Inline PEM wins over a file path. A deployment that
// only verifies tokens can omit the private key entirely.
type KeysConfig struct {
	PrivateKeyPEM  string `koanf:"private_key_pem" mapstructure:"private_key_pem"`
	PublicKeyPEM   string `koanf:"public_key_pem" mapstructure:"public_key_pem"`
	PrivateKeyFile string `koanf:"private_key_file" mapstructure:"private_key_file"`
	PublicKeyFile  string `koanf:"public_key_file" mapstructure:"public_key_file"`
}

func (k KeysConfig) HasPrivateKey() bool {
	return strings.TrimSpace(k.PrivateKeyPEM) != "" || strings.TrimSpace(k.PrivateKeyFile) != ""
}

func (k KeysConfig) HasPublicKey() bool {
	return strings.TrimSpace(k.PublicKeyPEM) != "" || strings.TrimSpace(k.PublicKeyFile) != ""
}

type Config struct {
	ServiceName   string              `koanf:"service_name" mapstructure:"service_name"`
	Token         TokenConfig         `koanf:"token" mapstructure:"token"`
	PasswordReset PasswordResetConfig `koanf:"password_reset" mapstructure:"password_reset"`
	Reaper        ReaperConfig        `koanf:"reaper" mapstructure:"reaper"`
	Keys          KeysConfig          `koanf:"keys" mapstructure:"keys"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "access",
		Token: TokenConfig{
			TTLHours:  4,
			TokenType: "bearer",
		},
		PasswordReset: PasswordResetConfig{
			TTLHours: 24,
		},
		Reaper: ReaperConfig{
			RetentionDays: 30,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Token.TTLHours <= 0 {
		return fmt.Errorf("core: token.ttl_hours must be positive")
	}
	if c.PasswordReset.TTLHours <= 0 {
		return fmt.Errorf("core: password_reset.ttl_hours must be positive")
	}
	if c.Reaper.RetentionDays < 0 {
		return fmt.Errorf("core: reaper.retention_days must not be negative")
	}
	return nil
}

func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.Token.TTLHours) * time.Hour
}

func (c Config) PasswordResetTTL() time.Duration {
	return time.Duration(c.PasswordReset.TTLHours) * time.Hour
}

func (c Config) ReaperRetention() time.Duration {
	return time.Duration(c.Reaper.RetentionDays) * 24 * time.Hour
}
