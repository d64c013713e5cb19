package auditlog

import (
	"context"
	"log/slog"

	"github.com/safar/tackle-shop/internal/events"
	"github.com/safar/tackle-shop/internal/models"
)

// Recorder turns order events into history entries. A failed write is
// logged and does not affect the operation that published the event.
type Recorder struct {
	repo   Repository
	logger *slog.Logger
}

func NewRecorder(repo Repository, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{repo: repo, logger: logger}
}

func (r *Recorder) Handle(ctx context.Context, e events.Event) {
	var entry *Entry
	ti := ExtractTraceInfo(ctx)

	switch ev := e.(type) {
	case events.OrderPlaced:
		entry = &Entry{
			OrderNumber: ev.Order.OrderNumber,
			Kind:        KindPlaced,
			To:          ev.Order.Status,
			ActorID:     ev.Order.CustomerID,
			Role:        models.RoleCustomer,
			At:          ev.Order.CreatedAt,
		}
	case events.OrderStatusChanged:
		entry = &Entry{
			OrderNumber: ev.OrderNumber,
			Kind:        KindStatusChanged,
			From:        ev.From,
			To:          ev.To,
			ActorID:     ev.ActorID,
			Role:        ev.Role,
			At:          ev.At,
		}
	default:
		return
	}
	entry.TraceID = ti.TraceID
	entry.SpanID = ti.SpanID

	if err := r.repo.Save(ctx, entry); err != nil {
		r.logger.ErrorContext(ctx, "audit write failed",
			"order_number", entry.OrderNumber, "kind", entry.Kind, "error", err)
	}
}
