// Package apperr holds the sentinel errors shared by the service, HTTP and
// MCP layers. Wrap them with context; match them with errors.Is.
package apperr

import (
	"github.com/cockroachdb/errors"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrGraphNotReady   = errors.New("graph not ready")
	ErrSuperseded      = errors.New("build superseded")
)

// NotFoundf wraps ErrNotFound with a formatted subject.
func NotFoundf(format string, args ...any) error {
	return errors.Wrapf(ErrNotFound, format, args...)
}

// Invalidf wraps ErrInvalidArgument with a formatted reason and an optional
// hint for the caller.
func Invalidf(hint, format string, args ...any) error {
	err := errors.Wrapf(ErrInvalidArgument, format, args...)
	if hint != "" {
		err = errors.WithHint(err, hint)
	}
	return err
}

// Hint returns the flattened user-facing hints attached to err, if any.
func Hint(err error) string {
	return errors.FlattenHints(err)
}
