package flow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoStartNode    = errors.New("flow has no start node")
	ErrNotStarted     = errors.New("session has not been started")
	ErrAlreadyStarted = errors.New("session already started")
	ErrNotWaiting     = errors.New("session is not waiting for input")
)

// ValidationError describes one structural problem of a flow.
type ValidationError struct {
	NodeID  string
	EdgeID  string
	Message string
}

func (e ValidationError) Error() string {
	switch {
	case e.NodeID != "":
		return fmt.Sprintf("node %s: %s", e.NodeID, e.Message)
	case e.EdgeID != "":
		return fmt.Sprintf("edge %s: %s", e.EdgeID, e.Message)
	default:
		return e.Message
	}
}

// ValidationErrors collects every problem found by Validate.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	messages := make([]string, 0, len(e))
	for _, ve := range e {
		messages = append(messages, ve.Error())
	}

	return "invalid flow: " + strings.Join(messages, "; ")
}

// IsValidationError reports whether err came from Validate.
func IsValidationError(err error) bool {
	var ve ValidationErrors

	return errors.As(err, &ve)
}
