package codescheme

import (
	"errors"
	"fmt"
)

// ConfigurationError reports a structural inconsistency in schemes or coding
// plans. It is never a data condition and always aborts a run.
type ConfigurationError struct {
	Component string // scheme id, plan field, or config file
	Message   string
	Err       error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error in %s: %s: %v", e.Component, e.Message, e.Err)
	}
	return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError creates a ConfigurationError for the named component.
func NewConfigurationError(component, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Component: component, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a lookup miss against a scheme. Callers treat it as a
// fatal configuration inconsistency.
type NotFoundError struct {
	Scheme string
	By     string // "id", "match value", or "control code"
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("code with %s %q not found in scheme %s", e.By, e.Key, e.Scheme)
}

// IsConfiguration reports whether err (or any error in its chain) is a
// structural error: a ConfigurationError or a NotFoundError.
func IsConfiguration(err error) bool {
	if err == nil {
		return false
	}
	var ce *ConfigurationError
	if errors.As(err, &ce) {
		return true
	}
	var nf *NotFoundError
	return errors.As(err, &nf)
}
