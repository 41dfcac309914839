package jsonfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/bissquit/coursehub/internal/domain"
	"github.com/bissquit/coursehub/internal/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) (*Repository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.json")
	return NewRepository(path), path
}

func createUser(t *testing.T, repo *Repository, id, email string) *domain.User {
	t.Helper()
	user := &domain.User{ID: id, Name: id, Email: email, Password: "hash"}
	require.NoError(t, repo.CreateUser(context.Background(), user))
	return user
}

func TestRepository_MissingFileIsEmpty(t *testing.T) {
	repo, _ := newTestRepository(t)

	users, err := repo.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)

	_, err = repo.GetUserByEmail(context.Background(), "a@x.com")
	assert.ErrorIs(t, err, identity.ErrUserNotFound)

	assert.NoError(t, repo.Ping(context.Background()))
}

func TestRepository_CreateAndFind(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	createUser(t, repo, "u1", "a@x.com")

	byEmail, err := repo.GetUserByEmail(ctx, "  A@X.COM ")
	require.NoError(t, err)
	assert.Equal(t, "u1", byEmail.ID)
	assert.Equal(t, []string{}, byEmail.EnrolledCourseIDs)
	assert.False(t, byEmail.CreatedAt.IsZero())

	byID, err := repo.GetUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", byID.Email)

	_, err = repo.GetUserByID(ctx, "missing")
	assert.ErrorIs(t, err, identity.ErrUserNotFound)
}

func TestRepository_CreateRejectsCaseInsensitiveDuplicate(t *testing.T) {
	repo, _ := newTestRepository(t)

	createUser(t, repo, "u1", "a@x.com")

	err := repo.CreateUser(context.Background(), &domain.User{ID: "u2", Email: "A@x.Com"})
	assert.ErrorIs(t, err, identity.ErrEmailExists)

	users, err := repo.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestRepository_PersistsWholeCollection(t *testing.T) {
	repo, path := newTestRepository(t)

	createUser(t, repo, "u1", "a@x.com")
	createUser(t, repo, "u2", "b@x.com")

	// A fresh repository over the same file sees both records.
	reopened := NewRepository(path)
	users, err := reopened.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "u1", users[0].ID)
	assert.Equal(t, "u2", users[1].ID)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"enrolledCourseIds": []`)
}

func TestRepository_UpdateUser(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()
	createUser(t, repo, "u1", "a@x.com")

	updated, err := repo.UpdateUser(ctx, "u1", func(u *domain.User) error {
		u.Enroll("c1")
		u.ID = "attempted-change"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", updated.ID, "id is immutable")
	assert.Equal(t, []string{"c1"}, updated.EnrolledCourseIDs)

	stored, err := repo.GetUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, stored.EnrolledCourseIDs)
}

func TestRepository_UpdateUserAbortsOnError(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()
	createUser(t, repo, "u1", "a@x.com")

	errAbort := errors.New("abort")
	_, err := repo.UpdateUser(ctx, "u1", func(u *domain.User) error {
		u.Enroll("c1")
		return errAbort
	})
	assert.ErrorIs(t, err, errAbort)

	stored, err := repo.GetUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, stored.EnrolledCourseIDs)
}

func TestRepository_UpdateUserNotFound(t *testing.T) {
	repo, _ := newTestRepository(t)

	_, err := repo.UpdateUser(context.Background(), "missing", func(*domain.User) error { return nil })
	assert.ErrorIs(t, err, identity.ErrUserNotFound)
}

// Two writers working from snapshots taken before either write: the second
// ReplaceAll silently discards the first writer's change.
func TestRepository_ReplaceAllIsLastWriterWins(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()
	createUser(t, repo, "u1", "a@x.com")

	first, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	second, err := repo.ListUsers(ctx)
	require.NoError(t, err)

	first[0].Enroll("c1")
	require.NoError(t, repo.ReplaceAll(ctx, first))

	second[0].Enroll("c2")
	require.NoError(t, repo.ReplaceAll(ctx, second))

	stored, err := repo.GetUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c2"}, stored.EnrolledCourseIDs)
}

func TestRepository_ConcurrentUpdatesAreNotLost(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()
	createUser(t, repo, "u1", "a@x.com")
	createUser(t, repo, "u2", "b@x.com")

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := "u1"
			if i%2 == 1 {
				userID = "u2"
			}
			_, err := repo.UpdateUser(ctx, userID, func(u *domain.User) error {
				u.Enroll(fmt.Sprintf("c%d", i))
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	u1, err := repo.GetUserByID(ctx, "u1")
	require.NoError(t, err)
	u2, err := repo.GetUserByID(ctx, "u2")
	require.NoError(t, err)

	assert.Len(t, u1.EnrolledCourseIDs, workers/2)
	assert.Len(t, u2.EnrolledCourseIDs, workers/2)
}

func TestRepository_ConcurrentCreateSameEmail(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	const workers = 10
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = repo.CreateUser(ctx, &domain.User{
				ID:    fmt.Sprintf("u%d", i),
				Email: "same@x.com",
			})
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, identity.ErrEmailExists)
	}
	assert.Equal(t, 1, created)

	users, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestRepository_CorruptFile(t *testing.T) {
	repo, path := newTestRepository(t)
	require.NoError(t, os.WriteFile(path, []byte("[{"), 0o600))

	_, err := repo.GetUserByEmail(context.Background(), "a@x.com")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, identity.ErrUserNotFound)
	assert.Error(t, repo.Ping(context.Background()))
}
