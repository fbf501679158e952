package redis_test

import (
	"context"
	"testing"

	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	scanredis "ms-scanner/internal/scans/redis"
)

// TestLocksAgainstRealRedis runs the lock contract against a containerized
// Redis. Requires Docker; skipped in short mode.
func TestLocksAgainstRealRedis(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:latest",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("Could not start Redis container: %v", err)
	}
	defer redisContainer.Terminate(ctx)

	host, err := redisContainer.Host(ctx)
	require.NoError(t, err)

	port, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := goredis.NewClient(&goredis.Options{
		Addr: host + ":" + port.Port(),
	})
	defer client.Close()

	locks := scanredis.NewLocks(client)

	locked, err := locks.LockRegistration(ctx, 1, "owner-a")
	require.NoError(t, err)
	assert.True(t, locked, "Expected the registration to be lockable")

	err = locks.UnlockRegistration(ctx, 1, "owner-a")
	require.NoError(t, err)

	locked, err = locks.LockRegistration(ctx, 1, "owner-b")
	require.NoError(t, err)
	assert.True(t, locked, "Expected the registration to be lockable after release")
}
