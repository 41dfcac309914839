//go:build integration

package integration

import (
	"context"
	"fmt"
	"testing"

	"github.com/bissquit/coursehub/internal/client"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// uniqueEmail returns an address no other test uses.
func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%s@example.com", prefix, uuid.NewString()[:8])
}

// registerAndLogin creates a fresh account and returns a logged in client.
func registerAndLogin(t *testing.T, name string) (*client.Client, string) {
	t.Helper()
	ctx := context.Background()

	c := newTestClient(t)
	email := uniqueEmail(name)

	_, err := c.Signup(ctx, email, "password123", name)
	require.NoError(t, err)

	user, err := c.Login(ctx, email, "password123")
	require.NoError(t, err)

	return c, user.ID
}

// storedEnrollments reads the enrollment sequence straight from the database.
func storedEnrollments(t *testing.T, userID string) []string {
	t.Helper()

	rows, err := testDB.Query(context.Background(),
		`SELECT course_id FROM enrollments WHERE user_id = $1 ORDER BY position`, userID)
	require.NoError(t, err)
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	require.NoError(t, rows.Err())
	return ids
}
