package auditlog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/safar/tackle-shop/internal/events"
	"github.com/safar/tackle-shop/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

type memRepo struct {
	mu      sync.Mutex
	entries []Entry
	err     error
}

func (m *memRepo) Save(_ context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memRepo) List(_ context.Context, orderNumber string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for _, e := range m.entries {
		if e.OrderNumber == orderNumber {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestRecorderHandlesOrderEvents(t *testing.T) {
	repo := &memRepo{}
	bus := events.NewBus()
	bus.Subscribe(NewRecorder(repo, nil).Handle)

	ctx := context.Background()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	bus.Publish(ctx, events.CartChanged{CustomerID: 1, ItemCount: 2})
	bus.Publish(ctx, events.OrderPlaced{Order: &models.Order{
		OrderNumber: "ORDER1", CustomerID: 1, Status: models.OrderStatusPending, CreatedAt: at,
	}})
	bus.Publish(ctx, events.OrderStatusChanged{
		OrderNumber: "ORDER1", From: models.OrderStatusPending, To: models.OrderStatusCancelled,
		Role: models.RoleAdmin, ActorID: 5, At: at.Add(time.Hour),
	})

	entries, err := repo.List(ctx, "ORDER1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, KindPlaced, entries[0].Kind)
	assert.Equal(t, int64(1), entries[0].ActorID)
	assert.Equal(t, models.RoleCustomer, entries[0].Role)
	assert.Equal(t, KindStatusChanged, entries[1].Kind)
	assert.Equal(t, models.OrderStatusCancelled, entries[1].To)
	assert.Empty(t, entries[1].TraceID)
}

func TestRecorderSwallowsWriteErrors(t *testing.T) {
	repo := &memRepo{err: errors.New("disk full")}
	r := NewRecorder(repo, nil)

	assert.NotPanics(t, func() {
		r.Handle(context.Background(), events.OrderStatusChanged{OrderNumber: "ORDER1"})
	})
}

func TestExtractTraceInfo(t *testing.T) {
	assert.Equal(t, TraceInfo{}, ExtractTraceInfo(context.Background()))

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)

	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	ti := ExtractTraceInfo(ctx)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", ti.TraceID)
	assert.Equal(t, "00f067aa0ba902b7", ti.SpanID)
}
