package natsstore

import (
	"github.com/nats-io/nats.go"
)

// headerCarrier adapts nats.Header to propagation.TextMapCarrier so history messages carry
// the tick's trace context and baggage to downstream consumers.
type headerCarrier nats.Header

func (c headerCarrier) Get(key string) string {
	return nats.Header(c).Get(key)
}

func (c headerCarrier) Set(key, value string) {
	nats.Header(c).Set(key, value)
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}

	return keys
}
