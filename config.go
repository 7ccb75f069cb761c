package authkit

import (
	"errors"
	"time"

	"github.com/confreg/authkit/password"
	"github.com/confreg/authkit/token"
)

// Config is the engine configuration tree. New() seeds a Builder with
// DefaultConfig; callers adjust fields from there. Validate runs once at
// Build time.
type Config struct {
	AppName   string
	Token     TokenConfig
	Password  PasswordConfig
	CSRF      CSRFConfig
	RateLimit RateLimitConfig
	Reset     ResetConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

// TokenConfig mirrors token.Config; the signing key is process-wide secret
// state loaded once at startup.
type TokenConfig struct {
	TTL           time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	Key           []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
}

// PasswordConfig mirrors password.Params. Memory is in KiB.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// CSRFConfig tunes anti-forgery token bindings.
type CSRFConfig struct {
	TTL         time.Duration
	RedisPrefix string
}

// RateLimitConfig tunes the login attempt window.
type RateLimitConfig struct {
	Window      time.Duration
	MaxAttempts int
	RedisPrefix string
}

// ResetConfig tunes the password-reset code protocol.
type ResetConfig struct {
	CodeDigits  int
	CodeTTL     time.Duration
	GrantTTL    time.Duration
	CodePrefix  string
	GrantPrefix string
}

// AuditConfig controls the audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the production defaults: 24h tokens, argon2id at
// 64 MiB/3 passes, a 60-second login window of 5 attempts, 6-digit reset
// codes valid 15 minutes, and a 10-minute reset grant.
func DefaultConfig() Config {
	params := password.DefaultParams()
	return Config{
		AppName: "Conference Registration System",
		Token: TokenConfig{
			TTL:           24 * time.Hour,
			SigningMethod: string(token.MethodHS256),
		},
		Password: PasswordConfig{
			Memory:      params.Memory,
			Time:        params.Time,
			Parallelism: params.Parallelism,
			SaltLength:  params.SaltLength,
			KeyLength:   params.KeyLength,
		},
		CSRF: CSRFConfig{
			TTL:         12 * time.Hour,
			RedisPrefix: "csrf",
		},
		RateLimit: RateLimitConfig{
			Window:      time.Minute,
			MaxAttempts: 5,
			RedisPrefix: "lra",
		},
		Reset: ResetConfig{
			CodeDigits:  6,
			CodeTTL:     15 * time.Minute,
			GrantTTL:    10 * time.Minute,
			CodePrefix:  "prc",
			GrantPrefix: "prg",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.Token.TTL <= 0 {
		return errors.New("token TTL must be positive")
	}
	switch token.SigningMethod(c.Token.SigningMethod) {
	case token.MethodHS256:
		if len(c.Token.Key) == 0 {
			return errors.New("hs256 requires a signing secret")
		}
	case token.MethodEd25519:
		if len(c.Token.Key) == 0 || len(c.Token.PublicKey) == 0 {
			return errors.New("ed25519 requires a private and a public key")
		}
	default:
		return errors.New("unsupported token signing method")
	}

	if c.CSRF.TTL <= 0 {
		return errors.New("csrf TTL must be positive")
	}
	if c.RateLimit.Window <= 0 {
		return errors.New("rate limit window must be positive")
	}
	if c.RateLimit.MaxAttempts <= 0 {
		return errors.New("rate limit ceiling must be positive")
	}
	if c.Reset.CodeDigits < 4 || c.Reset.CodeDigits > 10 {
		return errors.New("reset code digits must be between 4 and 10")
	}
	if c.Reset.CodeTTL <= 0 {
		return errors.New("reset code TTL must be positive")
	}
	if c.Reset.GrantTTL <= 0 {
		return errors.New("reset grant TTL must be positive")
	}
	return nil
}

func (c PasswordConfig) toParams() password.Params {
	return password.Params{
		Memory:      c.Memory,
		Time:        c.Time,
		Parallelism: c.Parallelism,
		SaltLength:  c.SaltLength,
		KeyLength:   c.KeyLength,
	}
}

func (c TokenConfig) toTokenConfig() token.Config {
	return token.Config{
		TTL:           c.TTL,
		SigningMethod: token.SigningMethod(c.SigningMethod),
		Key:           c.Key,
		PublicKey:     c.PublicKey,
		Issuer:        c.Issuer,
		Leeway:        c.Leeway,
	}
}
