// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	ErrFlowNotFound           = errors.New("flow not found")
	ErrNoActiveFlow           = errors.New("no active flow for department")
	ErrContactNotFound        = errors.New("contact not found")
	ErrConversationNotFound   = errors.New("conversation not found")
	ErrMessageNotFound        = errors.New("message not found")
	ErrSettingNotFound        = errors.New("setting not found")
	ErrLeadLogNotFound        = errors.New("lead log not found")
	ErrBehaviorConfigNotFound = errors.New("behavior config not found")
	ErrFlowSessionNotFound    = errors.New("flow session not found")

	// ErrInvalidSortField indicates a sort field outside AllowedFlowSorts.
	ErrInvalidSortField = errors.New("invalid sort field")
)

var notFoundErrors = []error{
	ErrFlowNotFound,
	ErrNoActiveFlow,
	ErrContactNotFound,
	ErrConversationNotFound,
	ErrMessageNotFound,
	ErrSettingNotFound,
	ErrLeadLogNotFound,
	ErrBehaviorConfigNotFound,
	ErrFlowSessionNotFound,
}

// FlowError wraps flow-related errors with additional context.
type FlowError struct {
	Op         string // Operation being performed (e.g., "GetByID", "Save", "Delete")
	FlowID     string
	Department string
	Err        error
}

func (e *FlowError) Error() string {
	target := e.FlowID
	if e.Department != "" {
		target = "of department " + e.Department
	}

	return fmt.Sprintf("%s operation failed for flow %s: %v", e.Op, target, e.Err)
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

func (e *FlowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewFlowError(op, flowID string, err error) *FlowError {
	return &FlowError{Op: op, FlowID: flowID, Err: err}
}

func NewDepartmentFlowError(op, department string, err error) *FlowError {
	return &FlowError{Op: op, Department: department, Err: err}
}

// RecordError wraps errors of the other repositories.
type RecordError struct {
	Op     string // Operation being performed
	Entity string // Record kind, e.g. "contact"
	Key    string // Lookup key (id, phone, setting key)
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Entity, e.Key, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

func (e *RecordError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewRecordError(op, entity, key string, err error) *RecordError {
	return &RecordError{Op: op, Entity: entity, Key: key, Err: err}
}

// IsNotFound reports whether err means the requested record does not exist.
func IsNotFound(err error) bool {
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}

func IsFlowNotFound(err error) bool {
	return errors.Is(err, ErrFlowNotFound)
}

func IsNoActiveFlow(err error) bool {
	return errors.Is(err, ErrNoActiveFlow)
}

func IsInvalidSortField(err error) bool {
	return errors.Is(err, ErrInvalidSortField)
}
