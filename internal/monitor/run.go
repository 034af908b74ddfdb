package monitor

import (
	"context"
	"errors"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Run polls immediately and then every interval until ctx is canceled or a
// login is rejected. Cycles never overlap; a tick that arrives while a cycle
// is still running is skipped.
func (m *Monitor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	logger := cronLogger{m.logger}
	job := cron.NewChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)).
		Then(cron.FuncJob(func() {
			if _, err := m.Poll(ctx); errors.Is(err, ErrLoginFailed) {
				cancel(err)
			}
		}))

	c := cron.New(cron.WithLocation(m.loc), cron.WithLogger(logger))
	c.Schedule(cron.Every(m.interval), job)

	m.logger.Info("monitor started", "interval", m.interval)
	job.Run()
	if ctx.Err() == nil {
		c.Start()
		<-ctx.Done()
	}
	<-c.Stop().Done()

	if err := context.Cause(ctx); errors.Is(err, ErrLoginFailed) {
		return err
	}
	m.logger.Info("monitor stopped")
	return nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
