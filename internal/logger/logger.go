// Package logger provides the process-wide structured logger. Request-scoped
// logging goes through gin-middlewares (gmw.GetLogger); this package is
// reserved for startup and background messages, matching the teacher's
// common/logger split.
package logger

import (
	"fmt"
	"sync"

	glog "github.com/Laisky/go-utils/v5/log"

	"github.com/laiskytech/converse-gateway/internal/config"
)

// Logger is the package-level structured logger.
var Logger glog.Logger

var once sync.Once

func init() {
	once.Do(func() {
		level := glog.LevelInfo
		if config.DebugEnabled {
			level = glog.LevelDebug
		}

		var err error
		Logger, err = glog.NewConsoleWithName("converse-gateway", level)
		if err != nil {
			panic(fmt.Sprintf("failed to create logger: %+v", err))
		}
	})
}

// Sync flushes any buffered log entries. Safe to call at shutdown.
func Sync() {
	if Logger == nil {
		return
	}
	_ = Logger.Sync()
}
