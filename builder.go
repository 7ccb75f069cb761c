package authkit

import (
	"errors"
	"fmt"

	"github.com/confreg/authkit/csrf"
	internalaudit "github.com/confreg/authkit/internal/audit"
	internalmetrics "github.com/confreg/authkit/internal/metrics"
	"github.com/confreg/authkit/internal/otp"
	"github.com/confreg/authkit/internal/rate"
	"github.com/confreg/authkit/mail"
	"github.com/confreg/authkit/password"
	"github.com/confreg/authkit/token"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. Without a Redis client the CSRF bindings,
// login attempt window, and reset codes live in process memory, which is
// correct for a single instance; multi-instance deployments share them
// through Redis.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	userStore UserStore
	mailer    mail.Sender
	auditSink AuditSink

	built bool
}

// New starts a Builder from DefaultConfig.
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the whole configuration tree.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis backs the CSRF bindings, rate-limit window, and reset codes
// with Redis instead of process memory.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserStore supplies the external user persistence collaborator.
// Required.
func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.userStore = store
	return b
}

// WithMailer supplies the outbound mail collaborator. Required only for
// the password-reset flow.
func (b *Builder) WithMailer(sender mail.Sender) *Builder {
	b.mailer = sender
	return b
}

// WithAuditSink supplies the audit event receiver. A non-nil sink enables
// auditing at Build time regardless of the order of Builder calls.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration, wires the stores, and returns a ready
// Engine. A Builder builds at most once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if b.auditSink != nil {
		cfg.Audit.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.userStore == nil {
		return nil, fmt.Errorf("%w: user store required", ErrEngineNotReady)
	}

	hasher, err := password.NewHasher(cfg.Password.toParams())
	if err != nil {
		return nil, err
	}
	tokens, err := token.NewManager(cfg.Token.toTokenConfig())
	if err != nil {
		return nil, err
	}

	// Pre-hash a throwaway credential so login can burn the same argon2
	// work for unknown emails as for wrong passwords.
	dummyHash, err := hasher.Hash("authkit.timing.equalizer")
	if err != nil {
		return nil, err
	}

	var (
		csrfBinding  csrf.Binding
		attemptStore rate.AttemptStore
		resetCodes   otp.Store
		resetGrants  otp.Store
	)
	if b.redis != nil {
		csrfBinding = csrf.NewRedisBinding(b.redis, cfg.CSRF.RedisPrefix)
		attemptStore = rate.NewRedisStore(b.redis, cfg.RateLimit.RedisPrefix)
		resetCodes = otp.NewRedisStore(b.redis, cfg.Reset.CodePrefix)
		resetGrants = otp.NewRedisStore(b.redis, cfg.Reset.GrantPrefix)
	} else {
		csrfBinding = csrf.NewMemoryBinding()
		attemptStore = rate.NewMemoryStore()
		resetCodes = otp.NewMemoryStore()
		resetGrants = otp.NewMemoryStore()
	}

	var registry *internalmetrics.Registry
	if cfg.Metrics.Enabled {
		registry = internalmetrics.NewRegistry()
	}

	engine := &Engine{
		config:    cfg,
		userStore: b.userStore,
		mailer:    b.mailer,
		hasher:    hasher,
		tokens:    tokens,
		csrfGuard: csrf.NewGuard(csrfBinding, cfg.CSRF.TTL),
		loginLimiter: rate.New(attemptStore, rate.Config{
			Window:      cfg.RateLimit.Window,
			MaxAttempts: cfg.RateLimit.MaxAttempts,
		}),
		resetCodes:  resetCodes,
		resetGrants: resetGrants,
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
		metrics:   registry,
		dummyHash: dummyHash,
	}

	b.built = true
	return engine, nil
}
