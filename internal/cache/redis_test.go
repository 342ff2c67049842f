package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestRedisCache(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}
	ctx := context.Background()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	client, err := ConnectRedis(ctx, fmt.Sprintf("%s:%s", host, port.Port()), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	c := NewRedisCache(client)

	_, found, err := c.Get(ctx, "payment:status:x")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, "payment:status:x", []byte(`{"status":"PENDING"}`), time.Minute))
	v, found, err := c.Get(ctx, "payment:status:x")
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"status":"PENDING"}`, string(v))

	require.NoError(t, c.Delete(ctx, "payment:status:x"))
	_, found, err = c.Get(ctx, "payment:status:x")
	require.NoError(t, err)
	assert.False(t, found)

	n, err := c.Incr(ctx, "payment:status:gen:x", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = c.Incr(ctx, "payment:status:gen:x", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	ttl, err := client.TTL(ctx, "payment:status:gen:x").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestConnectRedis_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := ConnectRedis(ctx, "127.0.0.1:1", "", 0)
	assert.Error(t, err)
}
