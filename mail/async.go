package mail

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrQueueFull means the outbound buffer is saturated; the caller surfaces
// a retryable error to the user.
var ErrQueueFull = errors.New("mail queue full")

type message struct {
	to       string
	subject  string
	htmlBody string
}

// Async wraps a Sender with a bounded fire-and-forget queue so the request
// path never blocks on SMTP. Send enqueues and returns immediately;
// delivery errors are counted, not propagated (by the time the worker sees
// one, the originating request is long gone).
type Async struct {
	inner     Sender
	ch        chan message
	done      chan struct{}
	wg        sync.WaitGroup
	failed    atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewAsync starts the delivery worker with the given buffer capacity.
func NewAsync(inner Sender, buffer int) *Async {
	if buffer <= 0 {
		buffer = 16
	}

	a := &Async{
		inner: inner,
		ch:    make(chan message, buffer),
		done:  make(chan struct{}),
	}

	a.wg.Add(1)
	go a.run()

	return a
}

func (a *Async) run() {
	defer a.wg.Done()

	for {
		select {
		case msg := <-a.ch:
			a.deliver(msg)
		case <-a.done:
			for {
				select {
				case msg := <-a.ch:
					a.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

func (a *Async) deliver(msg message) {
	if err := a.inner.Send(msg.to, msg.subject, msg.htmlBody); err != nil {
		a.failed.Add(1)
	}
}

// Send implements Sender. It fails only when the queue is full or closed.
func (a *Async) Send(to, subject, htmlBody string) error {
	if a.closed.Load() {
		return ErrQueueFull
	}

	select {
	case a.ch <- message{to: to, subject: subject, htmlBody: htmlBody}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close drains queued messages and stops the worker.
func (a *Async) Close() {
	a.closeOnce.Do(func() {
		a.closed.Store(true)
		close(a.done)
		a.wg.Wait()
	})
}

// Failed reports how many deliveries the worker has seen fail.
func (a *Async) Failed() uint64 {
	return a.failed.Load()
}
