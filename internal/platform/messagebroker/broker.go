// Package messagebroker carries background tasks between the control API and
// the workers. NATSClient is used in deployments; LocalBus keeps everything in
// one process for the memory store driver.
package messagebroker

import (
	"context"

	"github.com/nats-io/nats.go"
)

// Publisher sends a message on a subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Subscriber joins a queue group on a subject; the call blocks until ctx is done.
type Subscriber interface {
	SubscribeToSubjectWithQueue(ctx context.Context, subject, queueGroup string, handler func(msg *nats.Msg)) error
}

// Broker is both.
type Broker interface {
	Publisher
	Subscriber
}

var (
	_ Broker = (*NATSClient)(nil)
	_ Broker = (*LocalBus)(nil)
)
