package services

import (
	"strings"

	"github.com/agentstation/lbmap/pkg/constants"
	"github.com/agentstation/lbmap/pkg/errors"
)

// ValidateName checks a service or table name supplied from outside, such as
// an HTTP path or CLI argument.
func ValidateName(field, name string) error {
	if name == "" {
		return errors.NewValidationError(field, name, "must not be empty")
	}
	if len(name) > constants.MaxServiceNameLength {
		return errors.NewValidationError(field, name, "is too long")
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return errors.NewValidationError(field, name, "must not contain path separators")
	}
	return nil
}
