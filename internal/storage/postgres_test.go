package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container test skipped in -short mode")
	}
	testcontainers.Logger = log.New(io.Discard, "", 0)

	ctx := context.Background()
	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		Started: true,
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "rankledger",
				"POSTGRES_PASSWORD": "rankledger",
				"POSTGRES_DB":       "rankledger",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(90 * time.Second),
		},
	})
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	host, err := pg.Host(ctx)
	require.NoError(t, err)
	port, err := pg.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("postgres://rankledger:rankledger@%s:%s/rankledger?sslmode=disable", host, port.Port())
}

func TestPostgresStoreContract(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	// every subtest gets clean permanent tables
	newStore := func(t *testing.T) Store {
		s, err := NewPostgresStore(ctx, dsn)
		require.NoError(t, err)
		require.NoError(t, s.EnsureSchema(ctx))
		_, err = s.db.Pool.Exec(ctx, `TRUNCATE entity_snapshots, entity_current`)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	}
	runStoreContract(t, newStore)
}
