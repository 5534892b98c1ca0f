//go:build integration

// Package testinfra starts a throwaway Postgres for integration tests. Run them
// with `go test -tags integration ./...`; Docker must be available.
package testinfra

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/luminagoods/site/src/migration"
	"github.com/luminagoods/site/src/migration/types"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var (
	once    sync.Once
	pool    *pgxpool.Pool
	initErr error
)

// DB returns a pool to a migrated database with every site table emptied.
func DB(t testing.TB) *pgxpool.Pool {
	t.Helper()
	once.Do(func() {
		pool, initErr = start(context.Background())
	})
	require.NoError(t, initErr)

	_, err := pool.Exec(context.Background(), `
		TRUNCATE subscribers, contact_submissions, creator_applications,
			comments, reactions, scheduled_emails, analytics_events
		RESTART IDENTITY
	`)
	require.NoError(t, err)
	return pool
}

func start(ctx context.Context) (*pgxpool.Pool, error) {
	container, err := postgres.Run(ctx, "postgres:17.2-alpine",
		postgres.WithDatabase("lumina_test"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("password"),
		testcontainers.WithEnv(map[string]string{"TZ": "UTC"}),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, err
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, err
	}

	p, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := p.Ping(pingCtx); err != nil {
		return nil, err
	}

	if err := migration.Migrate(ctx, p, types.MigrationVersion{}, io.Discard); err != nil {
		return nil, err
	}
	return p, nil
}
