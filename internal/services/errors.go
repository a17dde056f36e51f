package services

import "errors"

var (
	ErrForbidden              = errors.New("forbidden")
	ErrConflict               = errors.New("conflict")
	ErrInvalidStatus          = errors.New("invalid status")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrInvalidInput           = errors.New("invalid input")
	ErrTeacherNotFound        = errors.New("teacher not found")
	ErrStudentNotFound        = errors.New("student not found")
	ErrStorageUnavailable     = errors.New("storage service is not configured")
	ErrEmailUnavailable       = errors.New("email service is not configured")
	ErrOAuthUnavailable       = errors.New("oauth login is not configured")
	ErrInvalidCredentials     = errors.New("invalid email or password")
	ErrEmailExists            = errors.New("email already exists")
)
