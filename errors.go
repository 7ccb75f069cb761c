package authkit

import "errors"

var (
	// ErrEngineNotReady means the engine is missing a collaborator the
	// requested flow needs.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrInvalidCredentials covers both unknown email and wrong password;
	// login never reveals which.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrTokenInvalid means a bearer token failed signature or claim checks.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired means a bearer token was valid but has expired.
	ErrTokenExpired = errors.New("token expired")
	// ErrUnknownSubject means a valid token names a user that no longer exists.
	ErrUnknownSubject = errors.New("unknown token subject")
	// ErrCSRFMismatch means a state-changing submission carried a missing or
	// wrong anti-forgery token. Callers re-render the form with a fresh one.
	ErrCSRFMismatch = errors.New("csrf token mismatch")
	// ErrRateLimited means the client address exhausted its login attempt
	// budget for the current window.
	ErrRateLimited = errors.New("too many login attempts")
	// ErrInvalidResetCode means the submitted reset code is wrong, already
	// used, or expired.
	ErrInvalidResetCode = errors.New("invalid reset code")
	// ErrResetGrantInvalid means the one-shot reset authorization is wrong,
	// already used, or expired; the user restarts the code cycle.
	ErrResetGrantInvalid = errors.New("invalid reset grant")
	// ErrDuplicateEmail means the email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrUnknownEmail is returned by the reset flow when no account carries
	// the email. Revealing existence here is a deliberate design choice; the
	// login flow never does.
	ErrUnknownEmail = errors.New("no account for email")
	// ErrMailDelivery means the reset email could not be handed to the mail
	// transport; the pending code stays valid for a retry.
	ErrMailDelivery = errors.New("mail delivery failed")
	// ErrStoreUnavailable wraps unexpected backend failures (user store,
	// Redis). Callers log the detail and show a generic retry message.
	ErrStoreUnavailable = errors.New("backend store unavailable")
)
