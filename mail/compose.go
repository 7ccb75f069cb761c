package mail

import (
	"fmt"
	"html"
	"time"
)

// ComposeResetEmail builds the subject and HTML body for a password-reset
// code message. The code is the only secret in the body; everything else is
// boilerplate the recipient can safely ignore if they did not ask for a
// reset.
func ComposeResetEmail(appName, code string, codeTTL time.Duration) (subject, htmlBody string) {
	app := html.EscapeString(appName)
	subject = fmt.Sprintf("%s - Password Reset", appName)
	htmlBody = fmt.Sprintf(`<html>
	<body>
		<h2>Password Reset Request</h2>
		<p>We received a request to reset your password for %s.</p>
		<p>Your verification code is: <strong>%s</strong></p>
		<p>This code will expire in %d minutes.</p>
		<p>If you did not request a password reset, please ignore this email.</p>
		<p>Best regards,<br>The %s Team</p>
	</body>
</html>`, app, html.EscapeString(code), int(codeTTL.Minutes()), app)
	return subject, htmlBody
}
