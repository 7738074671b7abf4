package service

import (
	"errors"
	"fmt"

	"github.com/datachef-lab/taskify-backend/internal/task/repository"
)

// NotFoundError a referenced record does not exist
type NotFoundError struct {
	Kind string
	ID   string
	Err  error
}

func (e *NotFoundError) Error() string {
	if e.Err != nil && !errors.Is(e.Err, repository.ErrNotFound) {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return repository.ErrNotFound
}

// MissingTemplateError a join row references a template that is gone. It is
// a NotFoundError so handlers report it as 404.
type MissingTemplateError struct {
	Kind   string
	ID     string
	Parent string
}

func (e *MissingTemplateError) Error() string {
	return fmt.Sprintf("%s template %s (child of %s) does not exist", e.Kind, e.ID, e.Parent)
}

func (e *MissingTemplateError) Unwrap() error { return repository.ErrNotFound }

// ValidationError bad input from the caller
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// ConflictError the write collides with current state
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// ConfigurationError stored configuration is inconsistent
type ConfigurationError struct {
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func notFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func conflict(format string, args ...interface{}) error {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// lookup turns repository.ErrNotFound into a NotFoundError for kind/id
// and wraps anything else.
func lookup(err error, kind, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		var missing *repository.MissingNodeError
		if errors.As(err, &missing) {
			return &MissingTemplateError{
				Kind:   missing.Kind,
				ID:     missing.ID,
				Parent: missing.ParentKind + " " + missing.ParentID,
			}
		}
		return notFound(kind, id)
	}
	return fmt.Errorf("load %s %s: %w", kind, id, err)
}

// IsNotFound reports whether err is a not-found of any kind
func IsNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}

// As lets errors.As(err, **NotFoundError) match a missing template.
func (e *MissingTemplateError) As(target interface{}) bool {
	if nf, ok := target.(**NotFoundError); ok {
		*nf = &NotFoundError{Kind: e.Kind + " template", ID: e.ID}
		return true
	}
	return false
}
