package authkit

import (
	"context"
	"fmt"

	internalmetrics "github.com/confreg/authkit/internal/metrics"
	"github.com/confreg/authkit/internal/otp"
	"github.com/google/uuid"
)

// RequestPasswordReset generates a one-time numeric code for the account,
// stores it with its TTL, and emails it. A new request overwrites any code
// still pending for the same email. This flow intentionally reveals whether
// an account exists: an unknown email returns ErrUnknownEmail so the form
// can tell the visitor to register instead.
func (e *Engine) RequestPasswordReset(ctx context.Context, req ResetRequest) error {
	if err := e.verifyCSRF(ctx, req.CSRFToken); err != nil {
		return err
	}

	email := normalizeEmail(req.Email)
	user, err := e.userStore.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("user lookup: %w", err)
	}
	if user == nil {
		return ErrUnknownEmail
	}

	code, err := otp.GenerateCode(e.config.Reset.CodeDigits)
	if err != nil {
		return fmt.Errorf("generate reset code: %w", err)
	}
	if err := e.resetCodes.Put(ctx, email, code, e.config.Reset.CodeTTL); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.inc(internalmetrics.ResetRequested)
	e.emitAudit(ctx, eventResetRequested, user.ID, email, true, nil, nil)

	// The code is committed before delivery, so a slow or failing mailer
	// never loses it; the caller decides how to surface ErrMailDelivery.
	return e.sendResetMail(email, code, e.config.Reset.CodeTTL)
}

// VerifyResetCode checks the emailed code. A match consumes the code and
// returns a one-shot grant that authorizes exactly one password submission;
// a mismatch leaves the stored code untouched and returns
// ErrInvalidResetCode.
func (e *Engine) VerifyResetCode(ctx context.Context, req ResetVerifyRequest) (string, error) {
	if err := e.verifyCSRF(ctx, req.CSRFToken); err != nil {
		return "", err
	}

	email := normalizeEmail(req.Email)
	ok, err := e.resetCodes.Consume(ctx, email, req.Code)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !ok {
		e.emitAudit(ctx, eventResetCodeVerified, "", email, false, ErrInvalidResetCode, nil)
		return "", ErrInvalidResetCode
	}

	grant := uuid.NewString()
	if err := e.resetGrants.Put(ctx, email, grant, e.config.Reset.GrantTTL); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.inc(internalmetrics.ResetCodeVerified)
	e.emitAudit(ctx, eventResetCodeVerified, "", email, true, nil, nil)
	return grant, nil
}

// CompletePasswordReset sets a new password under the grant returned by
// VerifyResetCode. The new password is validated before the grant is
// consumed, so a policy failure leaves the grant usable for the corrected
// resubmission; once the grant is consumed it cannot be replayed.
func (e *Engine) CompletePasswordReset(ctx context.Context, req ResetCompleteRequest) error {
	if err := e.verifyCSRF(ctx, req.CSRFToken); err != nil {
		return err
	}

	if err := validateNewPassword(req.Password, req.PasswordConfirm); err != nil {
		return err
	}

	email := normalizeEmail(req.Email)
	ok, err := e.resetGrants.Consume(ctx, email, req.Grant)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !ok {
		e.emitAudit(ctx, eventResetCompleted, "", email, false, ErrResetGrantInvalid, nil)
		return ErrResetGrantInvalid
	}

	user, err := e.userStore.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("user lookup: %w", err)
	}
	if user == nil {
		return ErrUnknownEmail
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	fields := UserFields{
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		Gender:       user.Gender,
		Nationality:  user.Nationality,
		Organization: user.Organization,
		Position:     user.Position,
		BirthDate:    user.BirthDate,
		Email:        user.Email,
		PasswordHash: hash,
	}
	if _, err := e.userStore.Update(ctx, user.ID, fields); err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	e.inc(internalmetrics.ResetCompleted)
	e.emitAudit(ctx, eventResetCompleted, user.ID, email, true, nil, nil)
	return nil
}
