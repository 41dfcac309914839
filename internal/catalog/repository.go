package catalog

import (
	"context"

	"github.com/bissquit/coursehub/internal/domain"
)

// Repository provides read-only access to course reference data.
type Repository interface {
	ListCourses(ctx context.Context) ([]domain.Course, error)
	GetCourseByID(ctx context.Context, id string) (*domain.Course, error)
}
