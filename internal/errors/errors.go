// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError reports malformed client input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func NewValidation(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// NotFoundError reports that a key resolved to no record.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %q not found", e.Resource, e.Key)
}

func NewCampaignNotFound(key string) error {
	return &NotFoundError{Resource: "campaign", Key: key}
}

// InvalidStateError reports a transition that the current state forbids.
type InvalidStateError struct {
	Action string
	State  string
	Reason string
}

func (e *InvalidStateError) Error() string {
	msg := fmt.Sprintf("cannot %s campaign in state %s", e.Action, e.State)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func NewInvalidState(action, state, reason string) error {
	return &InvalidStateError{Action: action, State: state, Reason: reason}
}

// ConflictError reports a lost conditional update.
type ConflictError struct {
	ID     string
	Reason string
}

func (e *ConflictError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("campaign %s: %s", e.ID, e.Reason)
	}
	return fmt.Sprintf("campaign %s was modified concurrently", e.ID)
}

func NewConflict(id string) error {
	return &ConflictError{ID: id}
}

type ForbiddenError struct {
	Action string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("not authorized to %s this campaign", e.Action)
}

func NewForbidden(action string) error {
	return &ForbiddenError{Action: action}
}

// UnexpectedError wraps storage or infrastructure failures. Its message
// is never shown to clients.
type UnexpectedError struct {
	Op  string
	Err error
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UnexpectedError) Unwrap() error { return e.Err }

func Unexpected(op string, err error) error {
	if err == nil {
		return nil
	}
	// already classified errors pass through untouched
	if Classified(err) {
		return err
	}
	return &UnexpectedError{Op: op, Err: err}
}

// Classified reports whether err belongs to the client-facing taxonomy.
func Classified(err error) bool {
	var (
		v *ValidationError
		n *NotFoundError
		s *InvalidStateError
		c *ConflictError
		f *ForbiddenError
	)
	return errors.As(err, &v) || errors.As(err, &n) || errors.As(err, &s) ||
		errors.As(err, &c) || errors.As(err, &f)
}

// HTTPStatus maps an error to the response status code.
func HTTPStatus(err error) int {
	var (
		v *ValidationError
		n *NotFoundError
		s *InvalidStateError
		c *ConflictError
		f *ForbiddenError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &v):
		return http.StatusBadRequest
	case errors.As(err, &n):
		return http.StatusNotFound
	case errors.As(err, &f):
		return http.StatusForbidden
	case errors.As(err, &c):
		return http.StatusConflict
	case errors.As(err, &s):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the text safe to send to a client.
func PublicMessage(err error) string {
	if HTTPStatus(err) == http.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}
