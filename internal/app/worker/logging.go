package worker

import (
	"fmt"
	"log/slog"
)

// asynqLoggerAdapter routes asynq's internal logging through slog.
type asynqLoggerAdapter struct {
	logger *slog.Logger
}

func (a *asynqLoggerAdapter) Debug(args ...any) { a.logger.Debug(fmt.Sprint(args...)) }
func (a *asynqLoggerAdapter) Info(args ...any)  { a.logger.Info(fmt.Sprint(args...)) }
func (a *asynqLoggerAdapter) Warn(args ...any)  { a.logger.Warn(fmt.Sprint(args...)) }
func (a *asynqLoggerAdapter) Error(args ...any) { a.logger.Error(fmt.Sprint(args...)) }

func (a *asynqLoggerAdapter) Fatal(args ...any) {
	a.logger.Error(fmt.Sprint(args...))
	panic(fmt.Sprint(args...))
}
