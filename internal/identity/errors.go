package identity

import "errors"

// Credential store errors.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailExists  = errors.New("user already exists")
)

// Authentication errors. Both login failures wrap ErrInvalidCredentials.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = &credentialsError{msg: "invalid email"}
	ErrInvalidPassword    = &credentialsError{msg: "invalid password"}
	ErrInvalidToken       = errors.New("invalid token")
)

type credentialsError struct {
	msg string
}

func (e *credentialsError) Error() string { return e.msg }

func (e *credentialsError) Unwrap() error { return ErrInvalidCredentials }
