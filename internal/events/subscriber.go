package events

// Subscriber receives notifications from the bus.
type Subscriber interface {
	// Subscribe delivers raw payloads on the returned channel until the
	// returned cancel func is called.
	Subscribe(topic string) (<-chan []byte, func(), error)
	Close() error
}

var _ Subscriber = (*NATSSubscriber)(nil)
