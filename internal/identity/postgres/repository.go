// Package postgres provides PostgreSQL implementation of the identity repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/bissquit/coursehub/internal/domain"
	"github.com/bissquit/coursehub/internal/identity"
	"github.com/bissquit/coursehub/internal/pkg/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	driverName         = "postgres"
	uniqueViolationErr = "23505"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository implements identity.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateUser inserts a user and its enrollment set.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	defer observeWrite("create", time.Now())

	return r.inTx(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO users (id, name, email, password_hash)
			VALUES ($1, $2, $3, $4)
			RETURNING created_at, updated_at
		`
		err := tx.QueryRow(ctx, query,
			user.ID,
			user.Name,
			domain.NormalizeEmail(user.Email),
			user.Password,
		).Scan(&user.CreatedAt, &user.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return identity.ErrEmailExists
			}
			return fmt.Errorf("create user: %w", err)
		}

		if user.EnrolledCourseIDs == nil {
			user.EnrolledCourseIDs = []string{}
		}
		return insertEnrollments(ctx, tx, user.ID, user.EnrolledCourseIDs)
	})
}

// GetUserByID retrieves a user by ID.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	query := `
		SELECT id, name, email, password_hash, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	return r.getUser(ctx, r.db, query, id)
}

// GetUserByEmail retrieves a user by normalized email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT id, name, email, password_hash, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	return r.getUser(ctx, r.db, query, domain.NormalizeEmail(email))
}

// ListUsers returns all users with their enrollment sets.
func (r *Repository) ListUsers(ctx context.Context) ([]*domain.User, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, email, password_hash, created_at, updated_at
		FROM users
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]*domain.User, 0)
	byID := make(map[string]*domain.User)
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Password, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.EnrolledCourseIDs = []string{}
		users = append(users, &u)
		byID[u.ID] = &u
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	enrollRows, err := r.db.Query(ctx, `
		SELECT user_id, course_id
		FROM enrollments
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer enrollRows.Close()

	for enrollRows.Next() {
		var userID, courseID string
		if err := enrollRows.Scan(&userID, &courseID); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		if u, ok := byID[userID]; ok {
			u.EnrolledCourseIDs = append(u.EnrolledCourseIDs, courseID)
		}
	}
	if err := enrollRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrollments: %w", err)
	}

	return users, nil
}

// ReplaceAll rewrites the user collection to match users exactly.
func (r *Repository) ReplaceAll(ctx context.Context, users []*domain.User) error {
	defer observeWrite("replace_all", time.Now())

	return r.inTx(ctx, func(tx pgx.Tx) error {
		ids := make([]string, 0, len(users))
		for _, u := range users {
			ids = append(ids, u.ID)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM users WHERE NOT (id = ANY($1))`, ids); err != nil {
			return fmt.Errorf("delete users: %w", err)
		}

		for _, u := range users {
			_, err := tx.Exec(ctx, `
				INSERT INTO users (id, name, email, password_hash)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (id) DO UPDATE
				SET name = EXCLUDED.name,
					email = EXCLUDED.email,
					password_hash = EXCLUDED.password_hash,
					updated_at = NOW()
			`, u.ID, u.Name, domain.NormalizeEmail(u.Email), u.Password)
			if err != nil {
				if isUniqueViolation(err) {
					return identity.ErrEmailExists
				}
				return fmt.Errorf("upsert user %s: %w", u.ID, err)
			}

			if _, err := tx.Exec(ctx, `DELETE FROM enrollments WHERE user_id = $1`, u.ID); err != nil {
				return fmt.Errorf("clear enrollments: %w", err)
			}
			if err := insertEnrollments(ctx, tx, u.ID, u.EnrolledCourseIDs); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateUser locks the user row, applies fn and writes back the changes.
func (r *Repository) UpdateUser(ctx context.Context, id string, fn func(user *domain.User) error) (*domain.User, error) {
	defer observeWrite("update", time.Now())

	var updated *domain.User
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		current, err := r.getUser(ctx, tx, `
			SELECT id, name, email, password_hash, created_at, updated_at
			FROM users
			WHERE id = $1
			FOR UPDATE
		`, id)
		if err != nil {
			return err
		}

		next := current.Clone()
		if err := fn(next); err != nil {
			return err
		}
		next.ID = id
		if next.EnrolledCourseIDs == nil {
			next.EnrolledCourseIDs = []string{}
		}

		err = tx.QueryRow(ctx, `
			UPDATE users
			SET name = $2, email = $3, password_hash = $4, updated_at = NOW()
			WHERE id = $1
			RETURNING updated_at
		`, id, next.Name, domain.NormalizeEmail(next.Email), next.Password).Scan(&next.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return identity.ErrEmailExists
			}
			return fmt.Errorf("update user: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			DELETE FROM enrollments
			WHERE user_id = $1 AND NOT (course_id = ANY($2))
		`, id, next.EnrolledCourseIDs); err != nil {
			return fmt.Errorf("delete enrollments: %w", err)
		}

		added := make([]string, 0)
		for _, courseID := range next.EnrolledCourseIDs {
			if !slices.Contains(current.EnrolledCourseIDs, courseID) {
				added = append(added, courseID)
			}
		}
		if err := insertEnrollments(ctx, tx, id, added); err != nil {
			return err
		}

		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Ping checks the database connection.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *Repository) getUser(ctx context.Context, q querier, query string, arg string) (*domain.User, error) {
	var u domain.User
	err := q.QueryRow(ctx, query, arg).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Password,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	courseIDs, err := loadEnrollments(ctx, q, u.ID)
	if err != nil {
		return nil, err
	}
	u.EnrolledCourseIDs = courseIDs

	return &u, nil
}

func loadEnrollments(ctx context.Context, q querier, userID string) ([]string, error) {
	rows, err := q.Query(ctx, `
		SELECT course_id
		FROM enrollments
		WHERE user_id = $1
		ORDER BY position
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("get enrollments: %w", err)
	}
	defer rows.Close()

	courseIDs := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		courseIDs = append(courseIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrollments: %w", err)
	}
	return courseIDs, nil
}

// insertEnrollments appends course ids in order; position preserves it.
func insertEnrollments(ctx context.Context, tx pgx.Tx, userID string, courseIDs []string) error {
	for _, courseID := range courseIDs {
		_, err := tx.Exec(ctx, `
			INSERT INTO enrollments (user_id, course_id)
			VALUES ($1, $2)
			ON CONFLICT (user_id, course_id) DO NOTHING
		`, userID, courseID)
		if err != nil {
			return fmt.Errorf("insert enrollment: %w", err)
		}
	}
	return nil
}

func (r *Repository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationErr
}

func observeWrite(operation string, start time.Time) {
	metrics.StoreWriteDuration.WithLabelValues(driverName, operation).Observe(time.Since(start).Seconds())
}
