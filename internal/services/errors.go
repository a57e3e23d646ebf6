package services

import "errors"

// Stage errors. Each pipeline stage wraps its failures with one of
// these sentinels so callers can classify with errors.Is while the
// wrapped detail keeps the underlying cause.
var (
	ErrUnsupportedFormat   = errors.New("unsupported document format")
	ErrRasterizationFailed = errors.New("rasterization failed")
	ErrNoExtractableText   = errors.New("no extractable text")
	ErrRetrievalFailed     = errors.New("retrieval failed")
	ErrGenerationFailed    = errors.New("generation failed")
	ErrValidationFailed    = errors.New("plan validation failed")
	ErrRenderingFailed     = errors.New("rendering failed")
)

// Request-level errors surfaced by CRUD and auth services.
var (
	ErrNotFound           = errors.New("not found")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailAlreadyInUse  = errors.New("email already in use")
)
