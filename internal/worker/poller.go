package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/scribed/internal/queue"
)

// Poller claims and processes tasks one at a time. Anything that escapes
// task processing is caught and logged so one bad job never stops polling.
type Poller struct {
	queue    queue.Queue
	driver   *Driver
	interval time.Duration
	log      zerolog.Logger
}

// NewPoller creates a poller that checks the queue every interval when idle.
func NewPoller(q queue.Queue, driver *Driver, interval time.Duration, log zerolog.Logger) *Poller {
	return &Poller{queue: q, driver: driver, interval: interval, log: log}
}

// Run polls until ctx is done. At most one task is processed at a time;
// horizontal scale comes from running more worker processes, arbitrated by
// the queue's atomic claim.
func (p *Poller) Run(ctx context.Context) {
	p.log.Info().Dur("interval", p.interval).Msg("poller started")

	for ctx.Err() == nil {
		task, err := p.queue.Claim(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.log.Error().Err(err).Msg("claim failed")
			}
			p.wait(ctx)
			continue
		}
		if task == nil {
			p.wait(ctx)
			continue
		}
		p.process(ctx, task)
	}

	p.log.Info().Msg("poller stopped")
}

func (p *Poller) process(ctx context.Context, task *queue.Task) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Str("task_id", task.ID).Msg("recovered from task panic")
		}
	}()
	p.driver.Process(ctx, task)
}

func (p *Poller) wait(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(p.interval):
	}
}
