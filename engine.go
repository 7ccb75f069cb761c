package authkit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/confreg/authkit/csrf"
	internalaudit "github.com/confreg/authkit/internal/audit"
	internalmetrics "github.com/confreg/authkit/internal/metrics"
	"github.com/confreg/authkit/internal/otp"
	"github.com/confreg/authkit/internal/rate"
	"github.com/confreg/authkit/mail"
	"github.com/confreg/authkit/password"
	"github.com/confreg/authkit/token"
)

// Engine is the authentication core. It owns credential hashing, session
// tokens, CSRF bindings, the login attempt window, and the password-reset
// code lifecycle; user persistence and outbound mail stay behind the
// UserStore and mail.Sender collaborators. All methods are safe for
// concurrent use.
type Engine struct {
	config    Config
	userStore UserStore
	mailer    mail.Sender

	hasher       *password.Hasher
	tokens       *token.Manager
	csrfGuard    *csrf.Guard
	loginLimiter *rate.Limiter
	resetCodes   otp.Store
	resetGrants  otp.Store

	audit   *internalaudit.Dispatcher
	metrics *internalmetrics.Registry

	dummyHash string
}

// Close flushes the audit dispatcher. The engine must not be used after.
func (e *Engine) Close() {
	e.audit.Close()
}

// IssueCSRF mints a fresh CSRF token bound to the session carried in ctx
// (see WithSession). Issuing again for the same session invalidates the
// previous token.
func (e *Engine) IssueCSRF(ctx context.Context) (string, error) {
	session := sessionFromContext(ctx)
	if session == "" {
		return "", fmt.Errorf("%w: no session in context", ErrCSRFMismatch)
	}
	return e.csrfGuard.Issue(ctx, session)
}

// verifyCSRF checks the submitted token against the session binding and
// rotates the binding on failure so a rejected form cannot be replayed.
func (e *Engine) verifyCSRF(ctx context.Context, submitted string) error {
	session := sessionFromContext(ctx)
	if e.csrfGuard.Verify(ctx, session, submitted) {
		return nil
	}
	e.inc(internalmetrics.CSRFRejected)
	if session != "" {
		// Best effort; the caller renders the new token with the error page.
		_, _ = e.csrfGuard.Issue(ctx, session)
	}
	return ErrCSRFMismatch
}

// Login authenticates an email/password pair submitted with a CSRF token.
// The order is fixed: the per-address attempt window is consulted first, a
// refused attempt is not recorded in it, then the CSRF token, then the
// credentials. Unknown emails and wrong passwords both come back as
// ErrInvalidCredentials after equivalent hashing work.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	email := normalizeEmail(req.Email)
	addr := clientIPFromContext(ctx)

	if err := e.loginLimiter.Check(ctx, addr, email); err != nil {
		switch {
		case errors.Is(err, rate.ErrRateLimited):
			e.inc(internalmetrics.LoginRateLimited)
			e.emitAudit(ctx, eventLoginRateLimited, "", email, false, ErrRateLimited, nil)
			return nil, ErrRateLimited
		case errors.Is(err, rate.ErrUnavailable):
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		default:
			return nil, err
		}
	}

	if err := e.verifyCSRF(ctx, req.CSRFToken); err != nil {
		e.emitAudit(ctx, eventLoginFailure, "", email, false, err, nil)
		return nil, err
	}

	user, err := e.userStore.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("user lookup: %w", err)
	}
	if user == nil {
		// Burn the same argon2 work as a real verification.
		_, _ = e.hasher.Verify(req.Password, e.dummyHash)
		e.inc(internalmetrics.LoginFailure)
		e.emitAudit(ctx, eventLoginFailure, "", email, false, ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}

	ok, err := e.hasher.Verify(req.Password, user.PasswordHash)
	if err != nil {
		if !errors.Is(err, password.ErrMalformedHash) {
			return nil, fmt.Errorf("verify password: %w", err)
		}
		// A corrupt stored hash can never match. The detail goes to the
		// audit trail; the user sees the usual credential failure.
		e.inc(internalmetrics.LoginFailure)
		e.emitAudit(ctx, eventLoginFailure, user.ID, email, false, err, nil)
		return nil, ErrInvalidCredentials
	}
	if !ok {
		e.inc(internalmetrics.LoginFailure)
		e.emitAudit(ctx, eventLoginFailure, user.ID, email, false, ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}

	tok, err := e.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	e.inc(internalmetrics.LoginSuccess)
	e.emitAudit(ctx, eventLoginSuccess, user.ID, email, true, nil, nil)
	return &LoginResult{Token: tok, User: user}, nil
}

// Authenticate resolves a bearer token to its user. Expired tokens come
// back as ErrTokenExpired, any other defect as ErrTokenInvalid, and a valid
// token whose subject no longer exists as ErrUnknownSubject.
func (e *Engine) Authenticate(ctx context.Context, raw string) (*User, error) {
	subject, err := e.tokens.Resolve(raw)
	if err != nil {
		e.inc(internalmetrics.TokenRejected)
		if errors.Is(err, token.ErrExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	user, err := e.userStore.FindByID(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("user lookup: %w", err)
	}
	if user == nil {
		e.inc(internalmetrics.TokenRejected)
		return nil, ErrUnknownSubject
	}
	return user, nil
}

// MetricsSnapshot returns the current counter values, or nil when metrics
// are disabled.
func (e *Engine) MetricsSnapshot() map[MetricID]uint64 {
	if e.metrics == nil {
		return nil
	}
	return e.metrics.Snapshot()
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	return e.audit.Dropped()
}

func (e *Engine) inc(id internalmetrics.MetricID) {
	e.metrics.Inc(id)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// sendResetMail composes and delivers the reset-code email. Delivery runs
// after the code is committed so a slow SMTP server never holds a store
// lock, and a failure is reported but does not invalidate the code.
func (e *Engine) sendResetMail(to, code string, ttl time.Duration) error {
	if e.mailer == nil {
		return fmt.Errorf("%w: no mailer configured", ErrMailDelivery)
	}
	subject, body := mail.ComposeResetEmail(e.config.AppName, code, ttl)
	if err := e.mailer.Send(to, subject, body); err != nil {
		e.inc(internalmetrics.MailFailure)
		return fmt.Errorf("%w: %v", ErrMailDelivery, err)
	}
	return nil
}
