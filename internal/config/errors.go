package config

import (
	"errors"
	"fmt"
)

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoTarget is returned when no page URL is given.
	ErrNoTarget = errors.New("no target specified: provide at least one page URL")

	// ErrInvalidTarget matches InvalidTargetError.
	ErrInvalidTarget = errors.New("invalid target")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidConcurrency is returned when the asset concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidRateLimit is returned when the rate limit is negative.
	// Use 0 to disable throttling.
	ErrInvalidRateLimit = errors.New("invalid rate limit: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// Use 0 to keep the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)

// InvalidTargetError reports a target that is not an absolute http(s) URL.
type InvalidTargetError struct {
	Target string
}

// Error implements error.
func (e *InvalidTargetError) Error() string {
	return fmt.Sprintf("invalid target %q: must be an absolute http or https URL", e.Target)
}

// Is matches ErrInvalidTarget.
func (e *InvalidTargetError) Is(target error) bool {
	return target == ErrInvalidTarget
}
