package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/baggage"
)

// Baggage keys set by the scheduler on every tick.
const (
	BaggageTickSeq  = "sensorsim.tick.seq"
	BaggageTickTime = "sensorsim.tick.time"
)

// SetBaggage adds a W3C baggage member to ctx.
// Keys must be header tokens; values with special characters must be percent-encoded.
func SetBaggage(ctx context.Context, key, value string) (context.Context, error) {
	member, err := baggage.NewMember(key, value)
	if err != nil {
		return ctx, fmt.Errorf("create baggage member: %w", err)
	}
	bag, err := baggage.FromContext(ctx).SetMember(member)
	if err != nil {
		return ctx, fmt.Errorf("set baggage member: %w", err)
	}

	return baggage.ContextWithBaggage(ctx, bag), nil
}

// MustSetBaggage is SetBaggage for keys and values known to be valid. It panics otherwise.
func MustSetBaggage(ctx context.Context, key, value string) context.Context {
	newCtx, err := SetBaggage(ctx, key, value)
	if err != nil {
		panic(fmt.Sprintf("telemetry: invalid baggage key=%q value=%q: %v", key, value, err))
	}

	return newCtx
}

// GetBaggage returns the baggage value for key, or "".
func GetBaggage(ctx context.Context, key string) string {
	return baggage.FromContext(ctx).Member(key).Value()
}
