package authkit

import (
	"context"
	"errors"
	"fmt"
	"time"

	internalmetrics "github.com/confreg/authkit/internal/metrics"
)

// UpdateProfile applies the profile form to an existing account. Password
// fields are optional; when Password is empty the stored hash is kept.
// Changing the email to one registered to another account fails with
// ErrDuplicateEmail.
func (e *Engine) UpdateProfile(ctx context.Context, req ProfileRequest) (*User, error) {
	if err := e.verifyCSRF(ctx, req.CSRFToken); err != nil {
		return nil, err
	}

	fields, err := validateProfile(req, time.Now())
	if err != nil {
		return nil, err
	}

	if req.Password != "" {
		hash, err := e.hasher.Hash(req.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		fields.PasswordHash = hash
	}

	user, err := e.userStore.Update(ctx, req.UserID, fields)
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	if user == nil {
		return nil, ErrUnknownSubject
	}

	e.inc(internalmetrics.ProfileUpdated)
	e.emitAudit(ctx, eventProfileUpdated, user.ID, user.Email, true, nil, nil)
	return user, nil
}
