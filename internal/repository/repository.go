// Package repository defines interfaces for data access operations.
// This package provides abstractions for database operations, allowing
// different backend implementations (SQLite, PostgreSQL) to be swapped
// without changing application code.
//
// The tables behind these interfaces stand in for the hosted backend the
// storefront talks to: security logs, mirrored sessions, the catalog and
// signed-in carts.
package repository

import (
	"errors"
)

// Common errors returned by repository operations.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicateKey is returned when an insert violates a uniqueness constraint.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNilDatabase is returned when a nil database connection is provided.
	ErrNilDatabase = errors.New("nil database connection")

	// ErrServiceUnavailable is returned when a service is temporarily unavailable.
	ErrServiceUnavailable = errors.New("service temporarily unavailable")
)

// PaginationOptions contains options for paginated queries.
type PaginationOptions struct {
	Limit  int
	Offset int
}

// DefaultPagination returns default pagination options.
func DefaultPagination() PaginationOptions {
	return PaginationOptions{
		Limit:  20,
		Offset: 0,
	}
}

// Normalize clamps Limit into [1, maxLimit] and Offset to be non-negative.
func (p PaginationOptions) Normalize(maxLimit int) PaginationOptions {
	if p.Limit <= 0 {
		p.Limit = DefaultPagination().Limit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
