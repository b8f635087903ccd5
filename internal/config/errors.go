package config

import "fmt"

// ConfigurationError reports missing or invalid settings, including
// credentials an external service rejected. It is never retried.
type ConfigurationError struct {
	Key    string
	Reason string
	Cause  error
}

func (e *ConfigurationError) Error() string {
	msg := "missing required config"
	if e.Key != "" {
		msg += " " + e.Key
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Cause }
