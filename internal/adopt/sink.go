package adopt

import (
	"context"

	"adopt-go/internal/model"
)

// EventSink receives journal entries after their transaction has committed.
// Delivery is fire-and-forget: the service logs errors returned by Emit but
// never fails an operation because of them.
type EventSink interface {
	Emit(ctx context.Context, ev *model.ResourceEvent) error
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Emit(context.Context, *model.ResourceEvent) error { return nil }
