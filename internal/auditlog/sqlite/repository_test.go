package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/safar/tackle-shop/internal/auditlog"
	"github.com/safar/tackle-shop/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestSaveAndList(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	at := time.Date(2026, 4, 2, 10, 30, 0, 123456789, time.UTC)

	require.NoError(t, repo.Save(ctx, &auditlog.Entry{
		OrderNumber: "ORDER1", Kind: auditlog.KindPlaced,
		To: models.OrderStatusPending, ActorID: 3, Role: models.RoleCustomer, At: at,
	}))
	require.NoError(t, repo.Save(ctx, &auditlog.Entry{
		OrderNumber: "ORDER2", Kind: auditlog.KindPlaced,
		To: models.OrderStatusPending, ActorID: 4, Role: models.RoleCustomer, At: at,
	}))
	require.NoError(t, repo.Save(ctx, &auditlog.Entry{
		OrderNumber: "ORDER1", Kind: auditlog.KindStatusChanged,
		From: models.OrderStatusPending, To: models.OrderStatusProcessing,
		ActorID: 9, Role: models.RoleStaff, TraceID: "abc", At: at.Add(time.Minute),
	}))

	entries, err := repo.List(ctx, "ORDER1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, auditlog.KindPlaced, entries[0].Kind)
	assert.True(t, entries[0].At.Equal(at))
	assert.Equal(t, models.OrderStatusPending, entries[1].From)
	assert.Equal(t, models.OrderStatusProcessing, entries[1].To)
	assert.Equal(t, "abc", entries[1].TraceID)

	none, err := repo.List(ctx, "ORDER9")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestReopenKeepsHistory(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "audit.db")

	repo, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, &auditlog.Entry{
		OrderNumber: "ORDER1", Kind: auditlog.KindPlaced, To: models.OrderStatusPending, At: time.Now(),
	}))
	require.NoError(t, repo.Close())

	repo, err = Open(path)
	require.NoError(t, err)
	defer repo.Close()

	entries, err := repo.List(ctx, "ORDER1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
