package reload

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// CronTrigger runs load on a cron schedule instead of (or alongside) a
// fixed interval — for operators who want reloads pinned to wall-clock
// boundaries ("check at the top of every minute") rather than a raw
// ticker. The interval-based Watcher remains §4.7's primary contract;
// this is additive, not a replacement.
type CronTrigger struct {
	c      *cron.Cron
	entry  cron.EntryID
	load   LoadFunc
	logger *slog.Logger
}

// NewCronTrigger builds a trigger that calls load whenever spec matches,
// e.g. "@every 1m" or "0 * * * *".
func NewCronTrigger(spec string, load LoadFunc, logger *slog.Logger) (*CronTrigger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := cron.New()
	t := &CronTrigger{c: c, load: load, logger: logger}
	id, err := c.AddFunc(spec, t.fire)
	if err != nil {
		return nil, err
	}
	t.entry = id
	return t, nil
}

func (t *CronTrigger) fire() {
	if err := t.load(); err != nil {
		t.logger.Warn("scheduled reload failed, retaining previous version", "error", err)
	}
}

// Start begins the cron scheduler.
func (t *CronTrigger) Start() { t.c.Start() }

// Stop halts the cron scheduler and waits for any in-flight job.
func (t *CronTrigger) Stop() { <-t.c.Stop().Done() }
