package authkit

import (
	"context"
	"time"

	internalaudit "github.com/confreg/authkit/internal/audit"
)

// Audit event names, one per observable outcome.
const (
	eventLoginSuccess      = "login_success"
	eventLoginFailure      = "login_failure"
	eventLoginRateLimited  = "login_rate_limited"
	eventRegisterSuccess   = "register_success"
	eventRegisterFailure   = "register_failure"
	eventResetRequested    = "reset_requested"
	eventResetCodeVerified = "reset_code_verified"
	eventResetCompleted    = "reset_completed"
	eventProfileUpdated    = "profile_updated"
)

func (e *Engine) emitAudit(ctx context.Context, eventType, userID, email string, success bool, cause error, metadata map[string]string) {
	if e.audit == nil {
		return
	}
	event := internalaudit.Event{
		Timestamp: time.Now(),
		EventType: eventType,
		UserID:    userID,
		Email:     email,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	e.audit.Emit(ctx, event)
}
