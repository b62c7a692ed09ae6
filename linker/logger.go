package linker

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var (
	linkLogger atomic.Pointer[zap.Logger]
	nopLogger  = zap.NewNop()
)

// Logger returns the logger used for import resolution, host module sharing
// and instance lifecycle events. It is a no-op logger until SetLogger is
// called.
func Logger() *zap.Logger {
	if l := linkLogger.Load(); l != nil {
		return l
	}
	return nopLogger
}

// SetLogger replaces the linking logger. Instances created afterwards log to
// l; nil restores the no-op logger.
func SetLogger(l *zap.Logger) {
	linkLogger.Store(l)
}
