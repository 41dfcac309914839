// Package enrollment manages the set of courses a user is enrolled in.
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bissquit/coursehub/internal/catalog"
	"github.com/bissquit/coursehub/internal/domain"
	"github.com/bissquit/coursehub/internal/identity"
	"github.com/bissquit/coursehub/internal/pkg/ctxlog"
	"github.com/bissquit/coursehub/internal/pkg/metrics"
)

// UserStore reads and atomically updates user records.
type UserStore interface {
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	UpdateUser(ctx context.Context, id string, fn func(user *domain.User) error) (*domain.User, error)
}

// CourseCatalog resolves course ids against the reference data.
type CourseCatalog interface {
	GetCourse(ctx context.Context, id string) (*domain.Course, error)
	GetCoursesByIDs(ctx context.Context, ids []string) ([]domain.Course, error)
}

// Service implements enrollment business logic.
type Service struct {
	users   UserStore
	courses CourseCatalog
}

// NewService creates a new enrollment service.
func NewService(users UserStore, courses CourseCatalog) *Service {
	return &Service{
		users:   users,
		courses: courses,
	}
}

// Enroll adds courseID to the user's enrollment set and returns the course.
// The check for an existing enrollment and the append happen inside one
// store update, so concurrent enrolls for the same user cannot lose writes.
func (s *Service) Enroll(ctx context.Context, userID, courseID string) (*domain.Course, error) {
	courseID = strings.TrimSpace(courseID)
	if courseID == "" {
		return nil, ErrCourseIDRequired
	}

	course, err := s.courses.GetCourse(ctx, courseID)
	if err != nil {
		if errors.Is(err, catalog.ErrCourseNotFound) {
			metrics.EnrollmentOperations.WithLabelValues("enroll", "course_not_found").Inc()
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("get course: %w", err)
	}

	_, err = s.users.UpdateUser(ctx, userID, func(user *domain.User) error {
		if !user.Enroll(courseID) {
			return ErrAlreadyEnrolled
		}
		return nil
	})
	if err != nil {
		return nil, s.mutationError("enroll", err)
	}

	metrics.EnrollmentOperations.WithLabelValues("enroll", "success").Inc()
	ctxlog.FromContext(ctx).Info("user enrolled", "user_id", userID, "course_id", courseID)

	return course, nil
}

// Unenroll removes courseID from the user's enrollment set.
func (s *Service) Unenroll(ctx context.Context, userID, courseID string) error {
	_, err := s.users.UpdateUser(ctx, userID, func(user *domain.User) error {
		if !user.Unenroll(courseID) {
			return ErrNotEnrolled
		}
		return nil
	})
	if err != nil {
		return s.mutationError("unenroll", err)
	}

	metrics.EnrollmentOperations.WithLabelValues("unenroll", "success").Inc()
	ctxlog.FromContext(ctx).Info("user unenrolled", "user_id", userID, "course_id", courseID)

	return nil
}

// ListEnrolled returns the user's courses in enrollment order. Ids that are
// no longer in the catalog are skipped.
func (s *Service) ListEnrolled(ctx context.Context, userID string) ([]domain.Course, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	courses, err := s.courses.GetCoursesByIDs(ctx, user.EnrolledCourseIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve courses: %w", err)
	}
	return courses, nil
}

func (s *Service) mutationError(operation string, err error) error {
	switch {
	case errors.Is(err, identity.ErrUserNotFound):
		metrics.EnrollmentOperations.WithLabelValues(operation, "user_not_found").Inc()
		return identity.ErrUserNotFound
	case errors.Is(err, ErrAlreadyEnrolled):
		metrics.EnrollmentOperations.WithLabelValues(operation, "conflict").Inc()
		return ErrAlreadyEnrolled
	case errors.Is(err, ErrNotEnrolled):
		metrics.EnrollmentOperations.WithLabelValues(operation, "not_enrolled").Inc()
		return ErrNotEnrolled
	default:
		metrics.EnrollmentOperations.WithLabelValues(operation, "error").Inc()
		return fmt.Errorf("update user: %w", err)
	}
}
