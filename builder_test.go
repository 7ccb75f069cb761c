package authkit

import (
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestBuildRequiresUserStore(t *testing.T) {
	_, err := New().WithConfig(testConfig()).Build()
	if !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("want ErrEngineNotReady, got %v", err)
	}
}

func TestBuildRejectsMissingSigningKey(t *testing.T) {
	cfg := testConfig()
	cfg.Token.Key = nil
	_, err := New().WithConfig(cfg).WithUserStore(newMemUserStore()).Build()
	if err == nil {
		t.Fatal("want config rejection")
	}
}

func TestBuilderBuildsOnce(t *testing.T) {
	b := New().WithConfig(testConfig()).WithUserStore(newMemUserStore())
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	t.Cleanup(engine.Close)
	if _, err := b.Build(); err == nil {
		t.Fatal("second build must fail")
	}
}

func TestRedisBackedEngine(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := newMemUserStore()
	mailer := &captureMailer{}
	engine, err := New().
		WithConfig(testConfig()).
		WithRedis(client).
		WithUserStore(store).
		WithMailer(mailer).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(engine.Close)

	seedUser(t, engine, store, "ada@example.com", "Sup3rSecret!")
	ctx, csrfToken := sessionContext(t, engine, "sess-1", "198.51.100.7")

	result, err := engine.Login(ctx, LoginRequest{
		Email: "ada@example.com", Password: "Sup3rSecret!", CSRFToken: csrfToken,
	})
	if err != nil {
		t.Fatalf("login via redis stores: %v", err)
	}
	if _, err := engine.Authenticate(ctx, result.Token); err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	// Reset codes expire out of Redis with their TTL.
	csrfToken, _ = engine.IssueCSRF(ctx)
	if err := engine.RequestPasswordReset(ctx, ResetRequest{
		Email: "ada@example.com", CSRFToken: csrfToken,
	}); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	code := mailer.lastCode(t)
	mr.FastForward(16 * time.Minute)

	csrfToken, _ = engine.IssueCSRF(ctx)
	if _, err := engine.VerifyResetCode(ctx, ResetVerifyRequest{
		Email: "ada@example.com", Code: code, CSRFToken: csrfToken,
	}); !errors.Is(err, ErrInvalidResetCode) {
		t.Fatalf("expired code: want ErrInvalidResetCode, got %v", err)
	}
}

func TestAuditSinkSurvivesLaterWithConfig(t *testing.T) {
	sink := NewChannelSink(16)
	store := newMemUserStore()
	// WithConfig replaces the whole tree after the sink is set; the sink
	// must still enable auditing.
	engine, err := New().
		WithAuditSink(sink).
		WithConfig(testConfig()).
		WithUserStore(store).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	seedUser(t, engine, store, "ada@example.com", "Sup3rSecret!")
	ctx, csrfToken := sessionContext(t, engine, "sess-1", "198.51.100.7")
	if _, err := engine.Login(ctx, LoginRequest{
		Email: "ada@example.com", Password: "Sup3rSecret!", CSRFToken: csrfToken,
	}); err != nil {
		t.Fatalf("login: %v", err)
	}
	engine.Close()

	select {
	case event := <-sink.Events():
		if event.EventType != "login_success" {
			t.Fatalf("event %q, want login_success", event.EventType)
		}
	default:
		t.Fatal("no audit event delivered after WithConfig replaced the tree")
	}
}

func TestAuditEventsReachSink(t *testing.T) {
	sink := NewChannelSink(16)
	store := newMemUserStore()
	engine, err := New().
		WithConfig(testConfig()).
		WithUserStore(store).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	seedUser(t, engine, store, "ada@example.com", "Sup3rSecret!")
	ctx, csrfToken := sessionContext(t, engine, "sess-1", "198.51.100.7")
	if _, err := engine.Login(ctx, LoginRequest{
		Email: "ada@example.com", Password: "Sup3rSecret!", CSRFToken: csrfToken,
	}); err != nil {
		t.Fatalf("login: %v", err)
	}
	engine.Close() // flushes the dispatcher

	select {
	case event := <-sink.Events():
		if event.EventType != "login_success" {
			t.Fatalf("event %q, want login_success", event.EventType)
		}
		if event.IP != "198.51.100.7" || !event.Success {
			t.Fatalf("unexpected event %+v", event)
		}
	default:
		t.Fatal("no audit event delivered")
	}
}
