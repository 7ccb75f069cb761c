package authkit

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// testConfig keeps argon2 at the floor so the suite stays fast.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.Key = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

type memUserStore struct {
	mu      sync.Mutex
	byID    map[string]*User
	byEmail map[string]string

	findErr error
}

func newMemUserStore() *memUserStore {
	return &memUserStore{
		byID:    make(map[string]*User),
		byEmail: make(map[string]string),
	}
}

func (s *memUserStore) FindByID(ctx context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	user, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	clone := *user
	return &clone, nil
}

func (s *memUserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	id, ok := s.byEmail[email]
	if !ok {
		return nil, nil
	}
	clone := *s.byID[id]
	return &clone, nil
}

func (s *memUserStore) Create(ctx context.Context, fields UserFields) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byEmail[fields.Email]; taken {
		return nil, ErrDuplicateEmail
	}
	user := &User{
		ID:           uuid.NewString(),
		FirstName:    fields.FirstName,
		LastName:     fields.LastName,
		Gender:       fields.Gender,
		Nationality:  fields.Nationality,
		Organization: fields.Organization,
		Position:     fields.Position,
		BirthDate:    fields.BirthDate,
		Email:        fields.Email,
		PasswordHash: fields.PasswordHash,
	}
	s.byID[user.ID] = user
	s.byEmail[user.Email] = user.ID
	clone := *user
	return &clone, nil
}

func (s *memUserStore) Update(ctx context.Context, id string, fields UserFields) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	if other, taken := s.byEmail[fields.Email]; taken && other != id {
		return nil, ErrDuplicateEmail
	}
	delete(s.byEmail, user.Email)
	user.FirstName = fields.FirstName
	user.LastName = fields.LastName
	user.Gender = fields.Gender
	user.Nationality = fields.Nationality
	user.Organization = fields.Organization
	user.Position = fields.Position
	user.BirthDate = fields.BirthDate
	user.Email = fields.Email
	if fields.PasswordHash != "" {
		user.PasswordHash = fields.PasswordHash
	}
	s.byEmail[user.Email] = id
	clone := *user
	return &clone, nil
}

type capturedMail struct {
	To      string
	Subject string
	Body    string
}

// captureMailer records sent mail and can be told to fail.
type captureMailer struct {
	mu   sync.Mutex
	sent []capturedMail
	fail error
}

func (m *captureMailer) Send(to, subject, htmlBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, capturedMail{To: to, Subject: subject, Body: htmlBody})
	return nil
}

var resetCodePattern = regexp.MustCompile(`\b\d{6}\b`)

func (m *captureMailer) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("no mail was sent")
	}
	code := resetCodePattern.FindString(m.sent[len(m.sent)-1].Body)
	if code == "" {
		t.Fatalf("no reset code in mail body: %q", m.sent[len(m.sent)-1].Body)
	}
	return code
}

func newTestEngine(t *testing.T) (*Engine, *memUserStore, *captureMailer) {
	t.Helper()
	store := newMemUserStore()
	mailer := &captureMailer{}
	engine, err := New().
		WithConfig(testConfig()).
		WithUserStore(store).
		WithMailer(mailer).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, store, mailer
}

// seedUser registers an account directly through the store with a real hash.
func seedUser(t *testing.T, e *Engine, store *memUserStore, email, plaintext string) *User {
	t.Helper()
	hash, err := e.hasher.Hash(plaintext)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user, err := store.Create(context.Background(), UserFields{
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Gender:       GenderFemale,
		Nationality:  "GB",
		Organization: "Analytical Engines Ltd",
		Position:     "Programmer",
		BirthDate:    time.Date(1990, time.December, 10, 0, 0, 0, 0, time.UTC),
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

// sessionContext builds a request context with a session and client IP, and
// issues a CSRF token for it.
func sessionContext(t *testing.T, e *Engine, session, ip string) (context.Context, string) {
	t.Helper()
	ctx := WithSession(context.Background(), session)
	ctx = WithClientIP(ctx, ip)
	token, err := e.IssueCSRF(ctx)
	if err != nil {
		t.Fatalf("issue csrf: %v", err)
	}
	return ctx, token
}

func TestLoginSuccess(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	seedUser(t, engine, store, "ada@example.com", "Sup3rSecret!")
	ctx, csrfToken := sessionContext(t, engine, "sess-1", "198.51.100.7")

	result, err := engine.Login(ctx, LoginRequest{
		Email:     "Ada@Example.com",
		Password:  "Sup3rSecret!",
		CSRFToken: csrfToken,
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Token == "" {
		t.Fatal("expected a session token")
	}
	if result.User.Email != "ada@example.com" {
		t.Fatalf("unexpected user %q", result.User.Email)
	}

	user, err := engine.Authenticate(ctx, result.Token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if user.ID != result.User.ID {
		t.Fatalf("token resolved to %q, want %q", user.ID, result.User.ID)
	}
}

func TestLoginWrongPasswordAndUnknownEmailLookAlike(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	seedUser(t, engine, store, "ada@example.com", "Sup3rSecret!")

	ctx, csrfToken := sessionContext(t, engine, "sess-1", "198.51.100.7")
	_, wrongPw := engine.Login(ctx, LoginRequest{
		Email:     "ada@example.com",
		Password:  "WrongPass1!",
		CSRFToken: csrfToken,
	})

	ctx, csrfToken = sessionContext(t, engine, "sess-2", "198.51.100.8")
	_, unknown := engine.Login(ctx, LoginRequest{
		Email:     "nobody@example.com",
		Password:  "WrongPass1!",
		CSRFToken: csrfToken,
	})

	if !errors.Is(wrongPw, ErrInvalidCredentials) || !errors.Is(unknown, ErrInvalidCredentials) {
		t.Fatalf("want ErrInvalidCredentials for both, got %v and %v", wrongPw, unknown)
	}
	if wrongPw.Error() != unknown.Error() {
		t.Fatalf("error text differs: %q vs %q", wrongPw, unknown)
	}
}

func TestLoginRateLimited(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	seedUser(t, engine, store, "ada@example.com", "Sup3rSecret!")

	ctx, _ := sessionContext(t, engine, "sess-1", "203.0.113.9")
	for i := 0; i < 5; i++ {
		csrfToken, err := engine.IssueCSRF(ctx)
		if err != nil {
			t.Fatalf("issue csrf: %v", err)
		}
		_, err = engine.Login(ctx, LoginRequest{
			Email:     "ada@example.com",
			Password:  fmt.Sprintf("WrongPass%d!", i),
			CSRFToken: csrfToken,
		})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: want ErrInvalidCredentials, got %v", i, err)
		}
	}

	csrfToken, err := engine.IssueCSRF(ctx)
	if err != nil {
		t.Fatalf("issue csrf: %v", err)
	}
	_, err = engine.Login(ctx, LoginRequest{
		Email:     "ada@example.com",
		Password:  "Sup3rSecret!",
		CSRFToken: csrfToken,
	})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("want ErrRateLimited, got %v", err)
	}

	// A different address is unaffected.
	otherCtx, otherToken := sessionContext(t, engine, "sess-2", "203.0.113.10")
	if _, err := engine.Login(otherCtx, LoginRequest{
		Email:     "ada@example.com",
		Password:  "Sup3rSecret!",
		CSRFToken: otherToken,
	}); err != nil {
		t.Fatalf("other address: %v", err)
	}
}

func TestLoginRejectsBadCSRF(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	seedUser(t, engine, store, "ada@example.com", "Sup3rSecret!")
	ctx, _ := sessionContext(t, engine, "sess-1", "198.51.100.7")

	_, err := engine.Login(ctx, LoginRequest{
		Email:     "ada@example.com",
		Password:  "Sup3rSecret!",
		CSRFToken: "forged",
	})
	if !errors.Is(err, ErrCSRFMismatch) {
		t.Fatalf("want ErrCSRFMismatch, got %v", err)
	}
}

func TestCSRFRotatesAfterRejection(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	seedUser(t, engine, store, "ada@example.com", "Sup3rSecret!")
	ctx, original := sessionContext(t, engine, "sess-1", "198.51.100.7")

	if _, err := engine.Login(ctx, LoginRequest{
		Email:     "ada@example.com",
		Password:  "Sup3rSecret!",
		CSRFToken: "forged",
	}); !errors.Is(err, ErrCSRFMismatch) {
		t.Fatalf("want ErrCSRFMismatch, got %v", err)
	}

	// The rejection rotated the binding, so the original token is dead.
	_, err := engine.Login(ctx, LoginRequest{
		Email:     "ada@example.com",
		Password:  "Sup3rSecret!",
		CSRFToken: original,
	})
	if !errors.Is(err, ErrCSRFMismatch) {
		t.Fatalf("stale token after rotation: want ErrCSRFMismatch, got %v", err)
	}
}

func TestLoginMalformedStoredHashIsACredentialFailure(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	if _, err := store.Create(context.Background(), UserFields{
		FirstName: "Ada", LastName: "Lovelace", Gender: GenderFemale,
		BirthDate:    time.Date(1990, time.December, 10, 0, 0, 0, 0, time.UTC),
		Email:        "ada@example.com",
		PasswordHash: "not-a-phc-hash",
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	ctx, csrfToken := sessionContext(t, engine, "sess-1", "198.51.100.7")
	_, err := engine.Login(ctx, LoginRequest{
		Email:     "ada@example.com",
		Password:  "Sup3rSecret!",
		CSRFToken: csrfToken,
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("corrupt stored hash: want ErrInvalidCredentials, got %v", err)
	}
	if engine.MetricsSnapshot()[MetricLoginFailure] != 1 {
		t.Fatal("corrupt-hash login not counted as a failure")
	}
}

func TestAuthenticateRejectsTamperedAndUnknown(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	user := seedUser(t, engine, store, "ada@example.com", "Sup3rSecret!")

	raw, err := engine.tokens.Issue(user.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := engine.Authenticate(context.Background(), raw+"x"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("tampered: want ErrTokenInvalid, got %v", err)
	}

	ghost, err := engine.tokens.Issue(uuid.NewString())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := engine.Authenticate(context.Background(), ghost); !errors.Is(err, ErrUnknownSubject) {
		t.Fatalf("ghost subject: want ErrUnknownSubject, got %v", err)
	}
}

func TestMetricsSnapshotCountsOutcomes(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	seedUser(t, engine, store, "ada@example.com", "Sup3rSecret!")
	ctx, csrfToken := sessionContext(t, engine, "sess-1", "198.51.100.7")

	if _, err := engine.Login(ctx, LoginRequest{
		Email:     "ada@example.com",
		Password:  "Sup3rSecret!",
		CSRFToken: csrfToken,
	}); err != nil {
		t.Fatalf("login: %v", err)
	}

	snap := engine.MetricsSnapshot()
	if snap[MetricLoginSuccess] != 1 {
		t.Fatalf("login_success = %d, want 1", snap[MetricLoginSuccess])
	}
	if snap[MetricLoginFailure] != 0 {
		t.Fatalf("login_failure = %d, want 0", snap[MetricLoginFailure])
	}
}
