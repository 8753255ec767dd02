package core

import "fmt"

// AmountEpsilon is the tolerance used when comparing monetary amounts.
// The store keeps NUMERIC values, so split sums may be off by float rounding.
const AmountEpsilon = 0.01

// ValidationError reports caller-supplied data that violates an invariant.
// Nothing is written to the store when one is returned.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Invalidf builds a ValidationError from a format string.
func Invalidf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// Common validation failures.
var (
	ErrEmptyTitle    = &ValidationError{Msg: "empty title"}
	ErrEmptyName     = &ValidationError{Msg: "empty name"}
	ErrInvalidAmount = &ValidationError{Msg: "invalid amount"}
	ErrInvalidMonth  = &ValidationError{Msg: "invalid month"}
	ErrInvalidYear   = &ValidationError{Msg: "invalid year"}
)

// NotFoundError reports a referenced id that is absent from the store.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Entity + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// NotFound builds a NotFoundError for the given entity and id.
func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ConflictError reports a unique-constraint violation at the store level.
// Budgets and EMI payments absorb these with upsert semantics.
type ConflictError struct {
	Table string
	Key   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s (%s)", e.Table, e.Key)
}

// TransportError reports that the store itself was unreachable or failed.
// Callers treat it like any other failed call; retry policy lives upstream.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
