package ports

import (
	"context"

	"github.com/alejandrodnm/polysniper/internal/domain"
)

// EventSink consume un evento por cada transición de estado. Lo implementan
// la capa de notificaciones y los consumidores de telemetría.
type EventSink interface {
	Publish(ctx context.Context, ev domain.Event) error
}
