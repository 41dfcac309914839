// Package jsonfile loads the course catalog from a JSON document.
package jsonfile

import (
	"context"
	"fmt"

	"github.com/bissquit/coursehub/internal/catalog"
	"github.com/bissquit/coursehub/internal/domain"
	"github.com/bissquit/coursehub/internal/pkg/jsonfile"
)

// Repository implements catalog.Repository. The file is read on every call
// so edits to the catalog are picked up without a restart.
type Repository struct {
	path string
}

// NewRepository creates a repository reading the file at path.
// A missing file is an empty catalog.
func NewRepository(path string) *Repository {
	return &Repository{path: path}
}

// ListCourses returns every course in file order.
func (r *Repository) ListCourses(_ context.Context) ([]domain.Course, error) {
	return r.load()
}

// GetCourseByID returns the course with the given id.
func (r *Repository) GetCourseByID(_ context.Context, id string) (*domain.Course, error) {
	courses, err := r.load()
	if err != nil {
		return nil, err
	}
	for i := range courses {
		if courses[i].ID == id {
			return &courses[i], nil
		}
	}
	return nil, catalog.ErrCourseNotFound
}

func (r *Repository) load() ([]domain.Course, error) {
	var courses []domain.Course
	if _, err := jsonfile.Load(r.path, &courses); err != nil {
		return nil, fmt.Errorf("load courses: %w", err)
	}
	if courses == nil {
		courses = []domain.Course{}
	}
	return courses, nil
}
