package authkit

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

const specialPasswordRunes = `!@#$%^&*(),.?":{}|<>`

// ValidationError collects every rejected field of a form submission so the
// caller can render all of them at once. Fields maps the form field name to
// a human-readable message.
type ValidationError struct {
	Fields map[string]string
}

func (v *ValidationError) Error() string {
	names := make([]string, 0, len(v.Fields))
	for name := range v.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+v.Fields[name])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// fieldErrors accumulates per-field messages and becomes a ValidationError
// only when at least one field was rejected.
type fieldErrors map[string]string

func (f fieldErrors) add(field, message string) {
	if _, dup := f[field]; !dup {
		f[field] = message
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationError{Fields: map[string]string(f)}
}

// checkEmail validates the address format.
func checkEmail(f fieldErrors, email string) {
	if email == "" {
		f.add("email", "Email is required.")
		return
	}
	if err := validate.Var(email, "email"); err != nil {
		f.add("email", "Enter a valid email address.")
	}
}

// checkPassword enforces the account password policy: at least 8
// characters with an uppercase letter, a digit, and a special character.
// Every failed rule is reported in one message so the user can fix the
// whole password in a single pass.
func checkPassword(f fieldErrors, pw, confirm string) {
	if pw == "" {
		f.add("password", "Password is required.")
	} else {
		var rules []string
		if len(pw) < 8 {
			rules = append(rules, "Password must be at least 8 characters long.")
		}
		if !strings.ContainsFunc(pw, unicode.IsUpper) {
			rules = append(rules, "Password must contain at least one uppercase letter.")
		}
		if !strings.ContainsFunc(pw, unicode.IsDigit) {
			rules = append(rules, "Password must contain at least one number.")
		}
		if !strings.ContainsAny(pw, specialPasswordRunes) {
			rules = append(rules, "Password must contain at least one special character.")
		}
		if len(rules) > 0 {
			f.add("password", strings.Join(rules, " "))
		}
	}
	if pw != confirm {
		f.add("password_confirm", "Passwords do not match.")
	}
}

// checkName rejects blank first/last names.
func checkName(f fieldErrors, field, value string) {
	if strings.TrimSpace(value) == "" {
		f.add(field, fieldLabel(field)+" is required.")
	}
}

func fieldLabel(field string) string {
	switch field {
	case "first_name":
		return "First name"
	case "last_name":
		return "Last name"
	default:
		return field
	}
}

// checkGender parses the gender enum.
func checkGender(f fieldErrors, raw string) Gender {
	gender, ok := ParseGender(raw)
	if !ok {
		f.add("gender", "Select a valid gender.")
	}
	return gender
}

// checkBirthDate parses an ISO date and enforces the minimum age of 18.
// Age counts completed years: the year difference, minus one when the
// birthday has not yet occurred this year.
func checkBirthDate(f fieldErrors, raw string, now time.Time) time.Time {
	if raw == "" {
		f.add("birth_date", "Birth date is required.")
		return time.Time{}
	}
	birth, err := time.Parse("2006-01-02", raw)
	if err != nil {
		f.add("birth_date", "Enter the birth date as YYYY-MM-DD.")
		return time.Time{}
	}
	if age(birth, now) < 18 {
		f.add("birth_date", "You must be at least 18 years old to register.")
	}
	return birth
}

func age(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() ||
		(now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	return years
}

// validateRegistration checks every field of the registration form and
// returns the parsed fields together with a ValidationError naming every
// rejected field, never just the first one.
func validateRegistration(req RegisterRequest, now time.Time) (UserFields, error) {
	f := make(fieldErrors)

	checkName(f, "first_name", req.FirstName)
	checkName(f, "last_name", req.LastName)
	gender := checkGender(f, req.Gender)
	birth := checkBirthDate(f, req.BirthDate, now)
	checkEmail(f, normalizeEmail(req.Email))
	checkPassword(f, req.Password, req.PasswordConfirm)

	if err := f.err(); err != nil {
		return UserFields{}, err
	}
	return UserFields{
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Gender:       gender,
		Nationality:  strings.TrimSpace(req.Nationality),
		Organization: strings.TrimSpace(req.Organization),
		Position:     strings.TrimSpace(req.Position),
		BirthDate:    birth,
		Email:        normalizeEmail(req.Email),
	}, nil
}

// validateProfile checks the profile form. The password is optional here;
// when present it must satisfy the same policy as registration.
func validateProfile(req ProfileRequest, now time.Time) (UserFields, error) {
	f := make(fieldErrors)

	checkName(f, "first_name", req.FirstName)
	checkName(f, "last_name", req.LastName)
	gender := checkGender(f, req.Gender)
	birth := checkBirthDate(f, req.BirthDate, now)
	checkEmail(f, normalizeEmail(req.Email))
	if req.Password != "" || req.PasswordConfirm != "" {
		checkPassword(f, req.Password, req.PasswordConfirm)
	}

	if err := f.err(); err != nil {
		return UserFields{}, err
	}
	return UserFields{
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Gender:       gender,
		Nationality:  strings.TrimSpace(req.Nationality),
		Organization: strings.TrimSpace(req.Organization),
		Position:     strings.TrimSpace(req.Position),
		BirthDate:    birth,
		Email:        normalizeEmail(req.Email),
	}, nil
}

// validateNewPassword checks just the password pair, for the reset flow.
func validateNewPassword(pw, confirm string) error {
	f := make(fieldErrors)
	checkPassword(f, pw, confirm)
	return f.err()
}
