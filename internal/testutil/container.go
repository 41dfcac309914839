package testutil

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const defaultPostgresImage = "postgres:16-alpine"

// PostgresContainer is a throwaway PostgreSQL server for the postgres user
// store tests.
type PostgresContainer struct {
	*postgres.PostgresContainer
	ConnectionString string
}

// NewPostgresContainer starts an empty coursehub database. The image can be
// overridden with COURSEHUB_TEST_POSTGRES_IMAGE to match a production version.
func NewPostgresContainer(ctx context.Context) (*PostgresContainer, error) {
	image := os.Getenv("COURSEHUB_TEST_POSTGRES_IMAGE")
	if image == "" {
		image = defaultPostgresImage
	}

	// postgres logs "ready" once for the init run and once for the real start.
	ready := wait.ForLog("database system is ready to accept connections").
		WithOccurrence(2).
		WithStartupTimeout(time.Minute)

	container, err := postgres.Run(ctx, image,
		postgres.WithDatabase("coursehub"),
		postgres.WithUsername("coursehub"),
		postgres.WithPassword("coursehub"),
		testcontainers.WithWaitStrategy(ready),
	)
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", image, err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("postgres dsn: %w", err)
	}

	return &PostgresContainer{PostgresContainer: container, ConnectionString: dsn}, nil
}
