package compute

import (
	"errors"
	"fmt"
)

// ErrConfiguration marks failures caused by a missing or wrong-typed parameter.
// It is distinct from cancellation, which is not an error.
var ErrConfiguration = errors.New("compute: configuration error")

// ConfigError describes which parameter made a task unrunnable.
// errors.Is(err, ErrConfiguration) holds for every ConfigError.
type ConfigError struct {
	Parameter string
	Reason    string
	Err       error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("compute: parameter %q: %s", e.Parameter, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}
