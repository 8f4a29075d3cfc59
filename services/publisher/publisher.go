package publisher

// Publisher represents a service for publishing stage output records
type Publisher interface {
	// Publish publishes one encoded record under the stage's stream
	Publish(stage string, message []byte) error

	// TrimStreams trims all streams to the configured maximum length
	TrimStreams() error

	// Close closes the publisher connection
	Close() error
}

// NopPublisher discards everything; used when publishing is disabled
type NopPublisher struct{}

// Publish implements Publisher
func (NopPublisher) Publish(string, []byte) error { return nil }

// TrimStreams implements Publisher
func (NopPublisher) TrimStreams() error { return nil }

// Close implements Publisher
func (NopPublisher) Close() error { return nil }
