package testutil

import (
	"testing"

	"github.com/localnerve/jam-build-intakedb/internal/logger"
	"go.uber.org/zap/zaptest"
)

// NewLogger returns a Logger that writes through t.
func NewLogger(t testing.TB) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}
