package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrTransientFetch marks a network or API failure. Callers degrade instead of failing.
	ErrTransientFetch = errors.New("transient fetch error")

	// ErrDataShape marks a malformed upstream payload. Handled like ErrTransientFetch.
	ErrDataShape = errors.New("malformed upstream payload")

	// ErrConfiguration marks a programming or configuration mistake. Never retried or degraded.
	ErrConfiguration = errors.New("configuration error")

	ErrUnsupportedNetwork = fmt.Errorf("%w: unsupported network", ErrConfiguration)
)

// ConfigError reports a missing or invalid configuration field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}

// IsDegradable reports whether err should be logged and degraded rather than returned.
func IsDegradable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConfiguration) {
		return false
	}
	return true
}
