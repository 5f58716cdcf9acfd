package models

import "errors"

// Sentinel errors shared across layers. Handlers map these onto HTTP
// status codes; everything else is a 500.
var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidAnnotation = errors.New("invalid annotation")
	ErrEmailTaken        = errors.New("email already registered")
	ErrNotPDF            = errors.New("not a valid PDF document")
)
