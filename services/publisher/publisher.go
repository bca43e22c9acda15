package publisher

import "context"

// Message keys
const (
	KeyEvent   = "b64_event"
	KeySummary = "b64_summary"
)

// Publisher represents a service for publishing messages
type Publisher interface {
	// Publish publishes a message under key
	Publish(ctx context.Context, key string, message []byte) error

	// TrimStreams trims the stream to the configured maximum length
	TrimStreams(ctx context.Context) error

	// Close closes the publisher connection
	Close() error
}
