package catalog

import "errors"

// Catalog errors.
var (
	ErrCourseNotFound = errors.New("course not found")
)
