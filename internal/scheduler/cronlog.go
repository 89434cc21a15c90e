package scheduler

import (
	"context"

	"github.com/sellcomet/eddlicense/internal/cmn/logger"
	"github.com/sellcomet/eddlicense/internal/cmn/logger/tag"
)

// cronLogger routes cron's own messages to the context logger.
type cronLogger struct {
	ctx context.Context
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	logger.Debug(logger.WithValues(l.ctx, keysAndValues...), "cron: "+msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	logger.Error(logger.WithValues(l.ctx, keysAndValues...), "cron: "+msg, tag.Error(err))
}
