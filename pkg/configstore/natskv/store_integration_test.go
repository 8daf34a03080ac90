//go:build integration

package natskv

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/txn2/configs-api/pkg/configstore"
)

func startNATS(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "nats:2.11.7-alpine",
			ExposedPorts: []string{"4222/tcp", "8222/tcp"},
			Cmd:          []string{"--port", "4222", "--http_port", "8222", "--js"},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("4222/tcp"),
				wait.ForHTTP("/").WithPort("8222/tcp").WithStartupTimeout(30*time.Second),
			),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "4222")
	require.NoError(t, err)
	return fmt.Sprintf("nats://%s:%s", host, port.Port())
}

func TestStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	store, err := Open(ctx, startNATS(t), Options{Bucket: "configs_test"})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.Ping(ctx))

	t.Run("insert get replace", func(t *testing.T) {
		require.NoError(t, store.Insert(ctx, testName, []byte(testDoc)))
		assert.ErrorIs(t, store.Insert(ctx, testName, []byte(`{}`)), configstore.ErrNameAlreadyUsed)

		require.NoError(t, store.Replace(ctx, testName, []byte(`{"a":1}`)))
		got, err := store.Get(ctx, testName)
		require.NoError(t, err)
		assert.Equal(t, `{"a":1}`, string(got.Document))

		assert.ErrorIs(t, store.Replace(ctx, "missing", []byte(`{}`)), configstore.ErrNotFound)
	})

	t.Run("concurrent inserts have one winner", func(t *testing.T) {
		var wins atomic.Int32
		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if store.Insert(ctx, "race", []byte(`{}`)) == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})

	t.Run("delete then recreate", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, testName))
		require.NoError(t, store.Delete(ctx, testName))

		got, err := store.Get(ctx, testName)
		require.NoError(t, err)
		assert.Nil(t, got)

		entries, err := store.List(ctx)
		require.NoError(t, err)
		assert.Len(t, entries, 1)

		require.NoError(t, store.Insert(ctx, testName, []byte(testDoc)))
		entries, err = store.FindCandidates(ctx, "monitoring")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, testName, entries[0].Name)
	})
}
