package models

import "errors"

// Ledger consistency errors. These are surfaced to the caller verbatim and
// never coerced to a different state.
var (
	ErrDuplicateID       = errors.New("duplicate movement id")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotFound          = errors.New("movement not found")
	ErrAlreadySettled    = errors.New("movement already settled")
	ErrNotRecorded       = errors.New("movement not recorded")
)

// ErrInvalidInput marks malformed or impossible input, such as a
// non-positive leader positions value. The caller fails immediately.
var ErrInvalidInput = errors.New("invalid input")
