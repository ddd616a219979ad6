package messagebroker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// LocalBus is an in-process stand-in for NATSClient used with the memory
// store driver, where the API and the workers share one process. Each
// published message goes to one subscriber of the subject and runs on its own
// goroutine.
type LocalBus struct {
	mu       sync.Mutex
	handlers map[string][]localHandler
	next     map[string]int
	seq      int
	inflight sync.WaitGroup
	closed   bool
}

type localHandler struct {
	id int
	fn func(*nats.Msg)
}

func NewLocalBus() *LocalBus {
	return &LocalBus{
		handlers: make(map[string][]localHandler),
		next:     make(map[string]int),
	}
}

var ErrNoSubscriber = errors.New("no subscriber for subject")

func (b *LocalBus) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nats.ErrConnectionClosed
	}
	hs := b.handlers[subject]
	if len(hs) == 0 {
		b.mu.Unlock()
		return ErrNoSubscriber
	}
	h := hs[b.next[subject]%len(hs)].fn
	b.next[subject]++
	b.inflight.Add(1)
	b.mu.Unlock()

	msg := &nats.Msg{Subject: subject, Data: append([]byte(nil), data...)}
	go func() {
		defer b.inflight.Done()
		h(msg)
	}()
	return nil
}

// SubscribeToSubjectWithQueue registers handler and blocks until ctx is done.
// The queue group is accepted for parity with NATSClient.
func (b *LocalBus) SubscribeToSubjectWithQueue(ctx context.Context, subject, _ string, handler func(msg *nats.Msg)) error {
	b.mu.Lock()
	b.seq++
	id := b.seq
	b.handlers[subject] = append(b.handlers[subject], localHandler{id: id, fn: handler})
	b.mu.Unlock()

	<-ctx.Done()

	b.mu.Lock()
	kept := b.handlers[subject][:0]
	for _, h := range b.handlers[subject] {
		if h.id != id {
			kept = append(kept, h)
		}
	}
	b.handlers[subject] = kept
	b.mu.Unlock()
	return nil
}

// HasSubscriber reports whether a handler is registered for subject.
func (b *LocalBus) HasSubscriber(subject string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers[subject]) > 0
}

const subscriberPollInterval = 5 * time.Millisecond

// WaitForSubscribers blocks until every subject has a handler or ctx is done.
// Publishing before then fails with ErrNoSubscriber.
func (b *LocalBus) WaitForSubscribers(ctx context.Context, subjects ...string) error {
	ticker := time.NewTicker(subscriberPollInterval)
	defer ticker.Stop()
	for {
		var missing []string
		for _, s := range subjects {
			if !b.HasSubscriber(s) {
				missing = append(missing, s)
			}
		}
		if len(missing) == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("no subscriber for %v: %w", missing, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Wait blocks until every published message has been handled.
func (b *LocalBus) Wait() { b.inflight.Wait() }

// Close rejects further publishes and waits for in-flight handlers.
func (b *LocalBus) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.inflight.Wait()
}
