package identity

import (
	"context"

	"github.com/bissquit/coursehub/internal/domain"
)

// Repository is the credential store. It exclusively owns persisted users.
type Repository interface {
	// CreateUser persists a new user. Returns ErrEmailExists if the
	// normalized email is already taken.
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	// GetUserByEmail matches on the normalized (trimmed, case-folded) email.
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]*domain.User, error)
	// ReplaceAll persists a full snapshot of the collection. Concurrent
	// callers are last-writer-wins: nothing is merged.
	ReplaceAll(ctx context.Context, users []*domain.User) error
	// UpdateUser runs fn against the current record and persists the result
	// atomically with respect to other writers. If fn returns an error
	// nothing is written and the error is returned unchanged.
	UpdateUser(ctx context.Context, id string, fn func(user *domain.User) error) (*domain.User, error)
	// Ping checks that the backing storage is reachable.
	Ping(ctx context.Context) error
}
