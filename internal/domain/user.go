// Package domain contains the core entities shared across modules.
package domain

import (
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// User is a persisted account. Password holds the bcrypt hash, never plaintext.
type User struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	Password          string    `json:"password"`
	EnrolledCourseIDs []string  `json:"enrolledCourseIds"`
	CreatedAt         time.Time `json:"createdAt,omitzero"`
	UpdatedAt         time.Time `json:"updatedAt,omitzero"`
}

// PublicUser is the user view returned by the API.
type PublicUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Public returns the user without credentials or enrollments.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
	}
}

// IsEnrolled reports whether courseID is in the user's enrollment set.
func (u *User) IsEnrolled(courseID string) bool {
	return slices.Contains(u.EnrolledCourseIDs, courseID)
}

// Enroll appends courseID to the enrollment set.
// Returns false if the user is already enrolled.
func (u *User) Enroll(courseID string) bool {
	if u.IsEnrolled(courseID) {
		return false
	}
	u.EnrolledCourseIDs = append(u.EnrolledCourseIDs, courseID)
	return true
}

// Unenroll removes courseID from the enrollment set, keeping the order of the
// remaining ids. Returns false if courseID was not present.
func (u *User) Unenroll(courseID string) bool {
	before := len(u.EnrolledCourseIDs)
	u.EnrolledCourseIDs = slices.DeleteFunc(u.EnrolledCourseIDs, func(id string) bool {
		return id == courseID
	})
	return len(u.EnrolledCourseIDs) != before
}

// Clone returns a deep copy of the user.
func (u *User) Clone() *User {
	c := *u
	c.EnrolledCourseIDs = slices.Clone(u.EnrolledCourseIDs)
	if c.EnrolledCourseIDs == nil {
		c.EnrolledCourseIDs = []string{}
	}
	return &c
}

// NormalizeEmail trims surrounding whitespace and lower-cases the address so
// that lookups are case-insensitive. Lowering is rune by rune; "ß" and "ss"
// stay distinct.
func NormalizeEmail(email string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(email))
}

// SameEmail reports whether two addresses are equal after normalization.
func SameEmail(a, b string) bool {
	return NormalizeEmail(a) == NormalizeEmail(b)
}
