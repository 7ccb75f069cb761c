// Package authkit is the credential and session core for a
// conference-registration web application: password hashing and
// verification, bearer-token issuance and resolution, CSRF-token
// lifecycle, login rate limiting, and the emailed one-time-code password
// reset protocol.
//
// The embedding application keeps HTTP routing, page rendering, the user
// database, and the SMTP relay; it hands the engine a [UserStore], a
// [mail.Sender], and optionally a Redis client, and calls the flow
// operations from its request handlers:
//
//	engine, err := authkit.New().
//		WithConfig(cfg).
//		WithUserStore(store).
//		WithMailer(sender).
//		Build()
//
// Every flow error a user can cause is a sentinel ([ErrInvalidCredentials],
// [ErrRateLimited], [ErrCSRFMismatch], ...) or a [*ValidationError] with
// per-field messages. Anything else is an internal fault for the caller to
// log and degrade to a generic "try again later" response; failures of the
// engine-owned stores come wrapped in [ErrStoreUnavailable].
package authkit
