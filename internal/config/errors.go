package config

import "fmt"

// ConfigurationError reports a missing or invalid option.
type ConfigurationError struct {
	Option string
	Reason string
	// Err is the underlying cause, if any.
	Err error
}

// Error returns the error message.
func (e *ConfigurationError) Error() string {
	if e.Option == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Option, e.Reason)
}

func improperlyConfigured(option, format string, args ...any) error {
	return &ConfigurationError{Option: option, Reason: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
