package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/safar/tackle-shop/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) (*redis.Client, func()) {
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to ping redis: %v", err)
	}

	cleanup := func() {
		if err := client.Close(); err != nil {
			t.Logf("Failed to close redis client: %v", err)
		}
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}
	return client, cleanup
}

func TestRedisStore(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRedisStore(client, "tackleshop-test")
	m := NewManager(store, testUsers, time.Hour)

	s, err := m.Login(ctx, 2)
	require.NoError(t, err)

	ttl, err := client.TTL(ctx, store.GenerateKey(s.Token)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)

	got, err := m.Resolve(ctx, s.Token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleStaff, got.Role)
	assert.Equal(t, int64(7), got.StoreID)
	assert.True(t, got.ExpiresAt.Equal(s.ExpiresAt))

	require.NoError(t, m.Logout(ctx, s.Token))
	_, err = store.Get(ctx, s.Token)
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestRedisStoreRejectsExpired(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	err := NewRedisStore(client, "t").Save(context.Background(), &Session{
		Token:     "old",
		ExpiresAt: time.Now().Add(-time.Second),
	})
	assert.Error(t, err)
}

func TestGenerateKey(t *testing.T) {
	assert.Equal(t, "shop:session:abc", NewRedisStore(nil, "shop").GenerateKey("abc"))
}
