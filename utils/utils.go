package utils

import (
	"context"

	"github.com/sirupsen/logrus"
)

// HandleErrors logs the errors reported by background workers until ctx is done.
// Worker errors are per event and never stop the service.
func HandleErrors(ctx context.Context, errors <-chan error) {
	for {
		select {
		case err := <-errors:
			if err != nil {
				logrus.WithField("module", "worker").WithError(err).Error("Background task failed")
			}
		case <-ctx.Done():
			logrus.Info("Shutdown completed")
			return
		}
	}
}

// ClampLimit returns def when limit is not positive and max when it exceeds max.
func ClampLimit(limit, def, max int) int {
	switch {
	case limit <= 0:
		return def
	case limit > max:
		return max
	default:
		return limit
	}
}
