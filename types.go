package authkit

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/confreg/authkit/internal/audit"
	internalmetrics "github.com/confreg/authkit/internal/metrics"
)

// Gender is the registration gender enum.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// ParseGender maps a form value onto the enum.
func ParseGender(s string) (Gender, bool) {
	switch Gender(s) {
	case GenderMale, GenderFemale, GenderOther:
		return Gender(s), true
	}
	return "", false
}

// User is the account record mirrored from the external user store. The
// engine never sees or stores a raw password; PasswordHash is always a
// password.Hasher output.
type User struct {
	ID           string
	FirstName    string
	LastName     string
	Gender       Gender
	Nationality  string
	Organization string
	Position     string
	BirthDate    time.Time
	Email        string
	PasswordHash string
}

// FullName joins the name fields for display.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// UserFields is the persistence payload for Create and Update. An empty
// PasswordHash on Update keeps the stored hash.
type UserFields struct {
	FirstName    string
	LastName     string
	Gender       Gender
	Nationality  string
	Organization string
	Position     string
	BirthDate    time.Time
	Email        string
	PasswordHash string
}

// UserStore is the external user-persistence contract the engine consumes.
// Find methods return (nil, nil) when no record matches. Create and Update
// return ErrDuplicateEmail when the email is already registered to another
// account; Update returns (nil, nil) for an unknown id.
type UserStore interface {
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, fields UserFields) (*User, error)
	Update(ctx context.Context, id string, fields UserFields) (*User, error)
}

// LoginRequest carries the login form fields. The client address and
// session key travel in the context (WithClientIP, WithSession).
type LoginRequest struct {
	Email     string
	Password  string
	CSRFToken string
}

// LoginResult is returned on successful login.
type LoginResult struct {
	Token string
	User  *User
}

// RegisterRequest carries the raw registration form. BirthDate and Gender
// stay strings here; validation parses them and accumulates every failure
// into one ValidationError.
type RegisterRequest struct {
	FirstName       string
	LastName        string
	Gender          string
	Nationality     string
	Organization    string
	Position        string
	BirthDate       string
	Email           string
	Password        string
	PasswordConfirm string
	CSRFToken       string
}

// RegisterResult is returned on successful registration. The new user is
// logged in immediately.
type RegisterResult struct {
	Token string
	User  *User
}

// ResetRequest starts the password-reset flow for an email.
type ResetRequest struct {
	Email     string
	CSRFToken string
}

// ResetVerifyRequest submits the emailed one-time code.
type ResetVerifyRequest struct {
	Email     string
	Code      string
	CSRFToken string
}

// ResetCompleteRequest submits the new password under the one-shot grant
// returned by VerifyResetCode.
type ResetCompleteRequest struct {
	Email           string
	Grant           string
	Password        string
	PasswordConfirm string
	CSRFToken       string
}

// ProfileRequest carries the profile self-service form for the
// authenticated user. Password fields are optional; when Password is empty
// the stored hash is kept.
type ProfileRequest struct {
	UserID          string
	FirstName       string
	LastName        string
	Gender          string
	Nationality     string
	Organization    string
	Position        string
	BirthDate       string
	Email           string
	Password        string
	PasswordConfirm string
	CSRFToken       string
}

// AuditEvent is a structured security event emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives AuditEvent values from the engine's dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an AuditSink that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based AuditSink.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes JSON-encoded audit events, one per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a ChannelSink with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a JSONWriterSink that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// MetricID identifies one engine counter.
type MetricID = internalmetrics.MetricID

const (
	MetricLoginSuccess      = internalmetrics.LoginSuccess
	MetricLoginFailure      = internalmetrics.LoginFailure
	MetricLoginRateLimited  = internalmetrics.LoginRateLimited
	MetricCSRFRejected      = internalmetrics.CSRFRejected
	MetricRegisterSuccess   = internalmetrics.RegisterSuccess
	MetricRegisterFailure   = internalmetrics.RegisterFailure
	MetricResetRequested    = internalmetrics.ResetRequested
	MetricResetCodeVerified = internalmetrics.ResetCodeVerified
	MetricResetCompleted    = internalmetrics.ResetCompleted
	MetricMailFailure       = internalmetrics.MailFailure
	MetricProfileUpdated    = internalmetrics.ProfileUpdated
	MetricTokenRejected     = internalmetrics.TokenRejected
)

// MetricName returns the stable string name of id.
func MetricName(id MetricID) string {
	return internalmetrics.Name(id)
}
