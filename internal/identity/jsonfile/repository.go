// Package jsonfile implements the identity repository on a single JSON file
// holding the whole user collection.
package jsonfile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bissquit/coursehub/internal/domain"
	"github.com/bissquit/coursehub/internal/identity"
	"github.com/bissquit/coursehub/internal/pkg/jsonfile"
	"github.com/bissquit/coursehub/internal/pkg/metrics"
)

const (
	driverName = "jsonfile"
	filePerm   = 0o600
)

// Repository implements identity.Repository. Every operation reads the file;
// every mutation rewrites it whole. Writers are serialized so that the
// read-modify-write of CreateUser and UpdateUser cannot lose updates.
type Repository struct {
	path string
	mu   sync.RWMutex
	now  func() time.Time
}

// NewRepository creates a repository backed by the file at path.
// The file does not need to exist.
func NewRepository(path string) *Repository {
	return &Repository{
		path: path,
		now:  time.Now,
	}
}

// CreateUser appends user and rewrites the collection.
func (r *Repository) CreateUser(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.load()
	if err != nil {
		return err
	}

	for _, u := range users {
		if domain.SameEmail(u.Email, user.Email) {
			return identity.ErrEmailExists
		}
		if u.ID == user.ID {
			return fmt.Errorf("create user: duplicate id %s", user.ID)
		}
	}

	now := r.now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.EnrolledCourseIDs == nil {
		user.EnrolledCourseIDs = []string{}
	}

	users = append(users, user.Clone())
	return r.save("create", users)
}

// GetUserByID returns a copy of the user with the given id.
func (r *Repository) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users, err := r.load()
	if err != nil {
		return nil, err
	}

	for _, u := range users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, identity.ErrUserNotFound
}

// GetUserByEmail scans the collection for a normalized email match.
func (r *Repository) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users, err := r.load()
	if err != nil {
		return nil, err
	}

	for _, u := range users {
		if domain.SameEmail(u.Email, email) {
			return u, nil
		}
	}
	return nil, identity.ErrUserNotFound
}

// ListUsers returns a snapshot of the whole collection.
func (r *Repository) ListUsers(_ context.Context) ([]*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.load()
}

// ReplaceAll overwrites the collection with users. It does not merge with
// the current content: a snapshot taken before another writer's change
// discards that change.
func (r *Repository) ReplaceAll(_ context.Context, users []*domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make([]*domain.User, 0, len(users))
	for _, u := range users {
		snapshot = append(snapshot, u.Clone())
	}
	return r.save("replace_all", snapshot)
}

// UpdateUser applies fn to the user with the given id under the write lock.
func (r *Repository) UpdateUser(_ context.Context, id string, fn func(user *domain.User) error) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.load()
	if err != nil {
		return nil, err
	}

	idx := -1
	for i, u := range users {
		if u.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, identity.ErrUserNotFound
	}

	updated := users[idx].Clone()
	if err := fn(updated); err != nil {
		return nil, err
	}

	// id is immutable once assigned
	updated.ID = id
	updated.UpdatedAt = r.now().UTC()
	users[idx] = updated

	if err := r.save("update", users); err != nil {
		return nil, err
	}
	return updated.Clone(), nil
}

// Ping checks that the file is readable and decodes.
func (r *Repository) Ping(_ context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, err := r.load()
	return err
}

func (r *Repository) load() ([]*domain.User, error) {
	var users []*domain.User
	if _, err := jsonfile.Load(r.path, &users); err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	for _, u := range users {
		if u.EnrolledCourseIDs == nil {
			u.EnrolledCourseIDs = []string{}
		}
	}
	if users == nil {
		users = []*domain.User{}
	}
	return users, nil
}

func (r *Repository) save(operation string, users []*domain.User) error {
	start := time.Now()
	defer func() {
		metrics.StoreWriteDuration.WithLabelValues(driverName, operation).Observe(time.Since(start).Seconds())
	}()

	if err := jsonfile.Save(r.path, users, filePerm); err != nil {
		return fmt.Errorf("save users: %w", err)
	}
	return nil
}
