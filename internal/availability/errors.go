package availability

import "fmt"

// ConfigurationError reports a doctor schedule that cannot produce slots.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid schedule %s: %s", e.Field, e.Reason)
}

// InputError reports a missing or malformed target date.
type InputError struct {
	Value  string
	Reason string
}

func (e *InputError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid date: %s", e.Reason)
	}
	return fmt.Sprintf("invalid date %q: %s", e.Value, e.Reason)
}
