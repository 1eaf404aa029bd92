// Package emoji provides symbol constants for CLI output.
package emoji

// Symbols used for status lines on stderr.
const (
	// Success marks a completed operation.
	Success = "✓"

	// Error marks a failed operation.
	Error = "✗"

	// Stop marks a shutdown.
	Stop = "✗"

	// Info marks informational messages and hints.
	Info = "i"
)
