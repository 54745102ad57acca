// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidNode     = errors.New("invalid node")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")

	// Concurrency errors
	ErrConflict = errors.New("concurrent modification detected")

	// Infrastructure errors
	ErrUnavailable = errors.New("service unavailable")
	ErrTimeout     = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "progress", "gamification", "roadmap"
	Op      string // Operation that failed, e.g., "CompleteNode"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Roadmap domain errors
var (
	ErrRoadmapNotFound      = NewDomainError("roadmap", "Find", ErrNotFound, "roadmap not found")
	ErrNodeNotInRoadmap     = NewDomainError("roadmap", "ResolveNode", ErrInvalidNode, "node is not part of the roadmap")
	ErrDuplicateNode        = NewDomainError("roadmap", "Validate", ErrInvalidInput, "duplicate node id")
	ErrUnknownPrerequisite  = NewDomainError("roadmap", "Validate", ErrInvalidInput, "prerequisite refers to an unknown node")
	ErrPrerequisiteCycle    = NewDomainError("roadmap", "Validate", ErrInvalidInput, "prerequisites form a cycle")
	ErrEmptyRoadmap         = NewDomainError("roadmap", "Validate", ErrEmptyValue, "roadmap has no nodes")
	ErrDuplicateRoadmap     = NewDomainError("roadmap", "Validate", ErrAlreadyExists, "duplicate roadmap id")
	ErrPrerequisitesNotMet  = NewDomainError("roadmap", "CompleteNode", ErrInvalidNode, "prerequisites not met")
	ErrInvalidRoadmapID     = NewDomainError("roadmap", "Validate", ErrInvalidID, "invalid roadmap ID")
	ErrInvalidNodeID        = NewDomainError("roadmap", "Validate", ErrInvalidID, "invalid node ID")
)

// Progress domain errors
var (
	ErrInvalidUserID     = NewDomainError("progress", "Validate", ErrInvalidID, "invalid user ID")
	ErrProgressNotFound  = NewDomainError("progress", "Find", ErrNotFound, "progress record not found")
	ErrProgressConflict  = NewDomainError("progress", "Save", ErrConflict, "progress record was modified concurrently")
	ErrStoreUnavailable  = NewDomainError("progress", "Store", ErrUnavailable, "progress store is unavailable")
	ErrRevocationBlocked = NewDomainError("progress", "Revoke", ErrStateTransition, "node completion cannot be revoked")
)

// Gamification domain errors
var (
	ErrGameStateNotFound    = NewDomainError("gamification", "Find", ErrNotFound, "game state not found")
	ErrNegativeXPDelta      = NewDomainError("gamification", "ApplyXP", ErrNegativeValue, "xp delta cannot be negative")
	ErrAchievementNotFound  = NewDomainError("gamification", "FindAchievement", ErrNotFound, "achievement not found")
	ErrAchievementDuplicate = NewDomainError("gamification", "Validate", ErrAlreadyExists, "duplicate achievement id")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsInvalidNode checks if the error reports a node/roadmap mismatch.
func IsInvalidNode(err error) bool {
	return errors.Is(err, ErrInvalidNode)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsConflict checks if the error is transient write contention.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsUnavailable checks if a dependency could not be reached.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrTimeout)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return IsConflict(err) || IsUnavailable(err)
}
