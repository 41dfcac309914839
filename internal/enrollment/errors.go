package enrollment

import "errors"

// Enrollment errors.
var (
	ErrCourseIDRequired = errors.New("course id is required")
	ErrCourseNotFound   = errors.New("course not found")
	ErrAlreadyEnrolled  = errors.New("user is already enrolled in this course")
	ErrNotEnrolled      = errors.New("course not found in user's enrolled courses")
)
