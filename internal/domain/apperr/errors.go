// Package apperr defines the error kinds the chat core surfaces to callers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrBusy is returned when a send is issued while another is outstanding
	ErrBusy = errors.New("a message is already being sent")

	// ErrEmptyMessage is returned for blank send input
	ErrEmptyMessage = errors.New("message text is empty")
)

// NotFoundError reports an unknown conversation or model id
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// NotFound builds a NotFoundError for any printable id
func NotFound(kind string, id any) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: fmt.Sprint(id)}
}

// ConfigError reports a model configuration that cannot be used
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := "invalid model configuration"
	if e.Field != "" {
		msg += ": " + e.Field
	}
	if e.Reason != "" {
		msg += " " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ProviderError is a non-success answer from a completion provider
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return "API request failed: " + e.Body
	}
	return fmt.Sprintf("API error: %d %s - %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// PersistenceError wraps a failed secondary store operation
type PersistenceError struct {
	Op  string
	ID  int64
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("secondary store %s for conversation %d failed: %v", e.Op, e.ID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is or wraps a NotFoundError
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsConfig reports whether err is or wraps a ConfigError
func IsConfig(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}

// IsProvider reports whether err is or wraps a ProviderError
func IsProvider(err error) bool {
	var target *ProviderError
	return errors.As(err, &target)
}
