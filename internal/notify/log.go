package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/asheth-dev/backend-daan/internal/events"
)

// LogNotifier writes emitted domain events to the structured log. It stands in
// for outbound channels (email, ops hooks) the storefront wires up separately.
type LogNotifier struct {
	Logger zerolog.Logger
}

// Notify implements events.Notifier.
func (n LogNotifier) Notify(_ context.Context, event events.Event) error {
	n.Logger.Info().
		Str("topic", event.Topic).
		Str("aggregate_id", event.AggregateID.String()).
		Str("event_id", event.ID.String()).
		RawJSON("payload", payloadOrEmpty(event.Payload)).
		Msg("domain_event")
	return nil
}

func payloadOrEmpty(payload []byte) []byte {
	if len(payload) == 0 {
		return []byte("{}")
	}
	return payload
}
