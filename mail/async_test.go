package mail

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []string
	fail bool
}

func (r *recordingSender) Send(to, subject, htmlBody string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("relay down")
	}
	r.sent = append(r.sent, to)
	return nil
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func TestAsyncDeliversAndDrainsOnClose(t *testing.T) {
	inner := &recordingSender{}
	a := NewAsync(inner, 8)

	for i := 0; i < 5; i++ {
		if err := a.Send("user@example.com", "subject", "<p>body</p>"); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
	}
	a.Close()

	if got := inner.count(); got != 5 {
		t.Fatalf("expected 5 deliveries after Close drain, got %d", got)
	}

	if err := a.Send("user@example.com", "subject", "<p>body</p>"); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull after Close, got %v", err)
	}
}

func TestAsyncCountsDeliveryFailures(t *testing.T) {
	inner := &recordingSender{fail: true}
	a := NewAsync(inner, 8)

	if err := a.Send("user@example.com", "subject", "<p>body</p>"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	a.Close()

	if a.Failed() != 1 {
		t.Fatalf("expected 1 recorded failure, got %d", a.Failed())
	}
}

func TestComposeResetEmail(t *testing.T) {
	subject, body := ComposeResetEmail("Conference Registration", "123456", 15*time.Minute)

	if !strings.Contains(subject, "Password Reset") {
		t.Fatalf("unexpected subject %q", subject)
	}
	if !strings.Contains(body, "123456") {
		t.Fatal("expected the code in the body")
	}
	if !strings.Contains(body, "15 minutes") {
		t.Fatal("expected the expiry window in the body")
	}

	// Hostile app names must not inject markup.
	_, body = ComposeResetEmail("<script>x</script>", "123456", 15*time.Minute)
	if strings.Contains(body, "<script>") {
		t.Fatal("expected app name to be HTML-escaped")
	}
}
