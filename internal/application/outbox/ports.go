package outbox

import "context"

// TransactionManager runs fn inside a database transaction carried in
// the context. This is an application-layer port, not a domain concern.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventPublisher delivers one outbox payload to the message broker.
// The topic is the entry's event type and the key its aggregate id.
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
}
