package workflow

import "errors"

var (
	ErrInvalidInput  = errors.New("workflow: invalid input")
	ErrNotFound      = errors.New("workflow: not found")
	ErrConflict      = errors.New("workflow: resource conflict")
	ErrNotAuthorized = errors.New("workflow: not authorized")
)
