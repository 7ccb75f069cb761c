package authkit

import (
	"context"
	"errors"
	"fmt"
	"time"

	internalmetrics "github.com/confreg/authkit/internal/metrics"
)

// Register creates a new account from the registration form and logs the
// user in. Every rejected field comes back at once in a *ValidationError;
// an already-registered email comes back as ErrDuplicateEmail.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if err := e.verifyCSRF(ctx, req.CSRFToken); err != nil {
		e.emitAudit(ctx, eventRegisterFailure, "", normalizeEmail(req.Email), false, err, nil)
		return nil, err
	}

	fields, err := validateRegistration(req, time.Now())
	if err != nil {
		e.inc(internalmetrics.RegisterFailure)
		e.emitAudit(ctx, eventRegisterFailure, "", normalizeEmail(req.Email), false, err, nil)
		return nil, err
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	fields.PasswordHash = hash

	user, err := e.userStore.Create(ctx, fields)
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			e.inc(internalmetrics.RegisterFailure)
			e.emitAudit(ctx, eventRegisterFailure, "", fields.Email, false, ErrDuplicateEmail, nil)
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	tok, err := e.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	e.inc(internalmetrics.RegisterSuccess)
	e.emitAudit(ctx, eventRegisterSuccess, user.ID, user.Email, true, nil, nil)
	return &RegisterResult{Token: tok, User: user}, nil
}
