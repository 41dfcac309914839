// Package catalog serves the read-only course catalog.
package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/bissquit/coursehub/internal/domain"
)

// Service implements catalog business logic.
type Service struct {
	repo Repository
}

// NewService creates a new catalog service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ListCourses returns the whole catalog.
func (s *Service) ListCourses(ctx context.Context) ([]domain.Course, error) {
	courses, err := s.repo.ListCourses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// GetCourse returns a course by id or ErrCourseNotFound.
func (s *Service) GetCourse(ctx context.Context, id string) (*domain.Course, error) {
	return s.repo.GetCourseByID(ctx, id)
}

// GetCoursesByIDs returns the courses whose ids are listed, in the order of
// ids. Unknown ids are skipped.
func (s *Service) GetCoursesByIDs(ctx context.Context, ids []string) ([]domain.Course, error) {
	courses, err := s.repo.ListCourses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}

	byID := make(map[string]domain.Course, len(courses))
	for _, c := range courses {
		byID[c.ID] = c
	}

	result := make([]domain.Course, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			result = append(result, c)
		}
	}
	return result, nil
}

// WithAbsoluteImageURLs returns copies of courses whose relative image paths
// are prefixed with baseURL. Absolute URLs are left as they are.
func WithAbsoluteImageURLs(courses []domain.Course, baseURL string) []domain.Course {
	result := make([]domain.Course, len(courses))
	for i, c := range courses {
		result[i] = WithAbsoluteImageURL(c, baseURL)
	}
	return result
}

// WithAbsoluteImageURL rewrites a single course's image path.
func WithAbsoluteImageURL(course domain.Course, baseURL string) domain.Course {
	if course.ImageURL == "" || baseURL == "" {
		return course
	}
	if u, err := url.Parse(course.ImageURL); err == nil && u.IsAbs() {
		return course
	}
	course.ImageURL = strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(course.ImageURL, "/")
	return course
}
