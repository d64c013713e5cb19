// Package auditlog is the append-only order history: one entry when an
// order is placed and one per status change. Each entry carries the trace
// of the request that caused it, when there is one.
package auditlog

import (
	"context"
	"time"

	"github.com/safar/tackle-shop/internal/models"
	"go.opentelemetry.io/otel/trace"
)

type Kind string

const (
	KindPlaced        Kind = "placed"
	KindStatusChanged Kind = "status_changed"
)

type Entry struct {
	OrderNumber string             `json:"order_number"`
	Kind        Kind               `json:"kind"`
	From        models.OrderStatus `json:"from,omitempty"`
	To          models.OrderStatus `json:"to"`
	ActorID     int64              `json:"actor_id"`
	Role        models.Role        `json:"role"`
	TraceID     string             `json:"trace_id,omitempty"`
	SpanID      string             `json:"span_id,omitempty"`
	At          time.Time          `json:"at"`
}

type Repository interface {
	// Save appends an entry; entries are never updated.
	Save(ctx context.Context, e *Entry) error
	// List returns an order's entries oldest first.
	List(ctx context.Context, orderNumber string) ([]Entry, error)
}

type TraceInfo struct {
	TraceID string
	SpanID  string
}

// ExtractTraceInfo returns empty ids when ctx has no valid span.
func ExtractTraceInfo(ctx context.Context) TraceInfo {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return TraceInfo{}
	}
	return TraceInfo{
		TraceID: sc.TraceID().String(),
		SpanID:  sc.SpanID().String(),
	}
}
