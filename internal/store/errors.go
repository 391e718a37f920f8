package store

import "errors"

var (
	ErrConflict            = errors.New("conflict")
	ErrOverlap             = errors.New("overlapping confirmed booking")
	ErrNotFound            = errors.New("not found")
	ErrIdempotencyConflict = errors.New("idempotency key conflict")
)
