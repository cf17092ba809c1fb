// Package utils holds small helpers shared across packages.
package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// OperationTimer provides a defer-friendly way to measure operation duration.
// Operations slower than slow are logged at warn level; slow of 0 disables the warning.
//
// Usage:
//
//	stop := utils.OperationTimer("refresh_quotes", time.Minute, log)
//	defer stop()
func OperationTimer(operation string, slow time.Duration, log zerolog.Logger) func() time.Duration {
	return operationTimer(time.Now, operation, slow, log)
}

func operationTimer(now func() time.Time, operation string, slow time.Duration, log zerolog.Logger) func() time.Duration {
	start := now()

	return func() time.Duration {
		duration := now().Sub(start)

		if slow > 0 && duration > slow {
			log.Warn().
				Str("operation", operation).
				Dur("duration_ms", duration).
				Dur("threshold_ms", slow).
				Msg("Slow operation detected")
			return duration
		}

		log.Debug().
			Str("operation", operation).
			Dur("duration_ms", duration).
			Msg("Operation completed")

		return duration
	}
}
