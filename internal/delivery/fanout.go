// Package delivery pushes events to online users. Delivery is
// at-most-once: offline users and failed sends are dropped without retry.
package delivery

import (
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/chatterbox/internal/metrics"
	"github.com/eldtechnologies/chatterbox/internal/presence"
)

// Realtime event names.
const (
	EventNewMessage     = "new-message"
	EventMessageDeleted = "message-deleted"
)

// Fanout delivers events through the presence registry.
type Fanout struct {
	presence *presence.Registry
	logger   zerolog.Logger
}

// New creates a fan-out over registry.
func New(registry *presence.Registry, logger zerolog.Logger) *Fanout {
	return &Fanout{
		presence: registry,
		logger:   logger.With().Str("component", "delivery").Logger(),
	}
}

// Deliver sends event to userID if they are online and reports whether the
// event reached a live handle.
func (f *Fanout) Deliver(userID, event string, payload any) bool {
	h, ok := f.presence.Lookup(userID)
	if !ok {
		metrics.Deliveries.WithLabelValues(event, "offline").Inc()
		return false
	}

	if err := h.Send(event, payload); err != nil {
		metrics.Deliveries.WithLabelValues(event, "dropped").Inc()
		f.logger.Debug().Err(err).Str("user_id", userID).Str("event", event).Msg("delivery dropped")
		return false
	}

	metrics.Deliveries.WithLabelValues(event, "delivered").Inc()
	return true
}
