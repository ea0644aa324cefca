package ids

import "errors"

// ErrInvalidId is the sentinel wrapped by every identifier Validate failure,
// following the teacher's one-sentinel-per-family convention from
// internal/errors/errors.go.
var ErrInvalidId = errors.New("invalid identifier")
