package contracts

import (
	"errors"
	"fmt"
)

// ConfigError reports a malformed override entry.
type ConfigError struct {
	// Address is the offending key as written in the file, if known.
	Address string

	// Reason describes what is wrong with the entry.
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Address == "" {
		return fmt.Sprintf("shadow configuration invalid: %s", e.Reason)
	}
	return fmt.Sprintf("shadow configuration invalid at %s: %s", e.Address, e.Reason)
}

// IsConfigError returns true if err is or wraps a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
