package broker

import "context"

// MessageBroker publishes job lifecycle events to an external system so
// consumers such as the UI or an audit trail can react without polling the
// status endpoint.
type MessageBroker interface {
	Publish(queue string, message []byte) error
	Consume(ctx context.Context, queue string) (<-chan []byte, error)
	Close() error
}
