// Package worker drives the task lifecycle: claim a pending task from the
// queue, run the transcription pipeline over its audio, report the outcome
// and clean up — one task at a time per process.
package worker

import (
	"context"
	"os"

	"github.com/rs/zerolog"

	"github.com/snarg/scribed/internal/metrics"
	"github.com/snarg/scribed/internal/queue"
	"github.com/snarg/scribed/internal/transcribe"
)

// Runner is the transcription pipeline as the driver sees it.
type Runner interface {
	Run(ctx context.Context, path, language string, progress func(int)) (*transcribe.Transcript, error)
}

// Driver processes one claimed task end to end against any queue transport.
type Driver struct {
	queue    queue.Queue
	pipeline Runner
	log      zerolog.Logger
}

// NewDriver creates a driver over the given queue and pipeline.
func NewDriver(q queue.Queue, pipeline Runner, log zerolog.Logger) *Driver {
	return &Driver{queue: q, pipeline: pipeline, log: log}
}

// Process handles a claimed task. Job-level failures become a failed status
// on the queue; they never propagate to the caller. The local working file
// (and the remote copy, when the transport has one) is removed on every exit
// path, including cancellation.
func (d *Driver) Process(ctx context.Context, task *queue.Task) {
	log := d.log.With().Str("task_id", task.ID).Logger()

	filePath, err := d.queue.FetchFile(ctx, task)
	if err != nil {
		log.Error().Err(err).Msg("could not retrieve task file")
		d.fail(ctx, log, task.ID, err.Error())
		return
	}
	defer d.cleanup(ctx, log, task.ID, filePath)

	// Cancellation is checked once, before heavy work starts. A task
	// cancelled here gets no completion or failure report: the queue
	// already owns that terminal state.
	if d.isCancelled(ctx, log, task.ID) {
		log.Info().Msg("task cancelled, skipping")
		metrics.TasksProcessed.WithLabelValues(queue.StatusCancelled).Inc()
		return
	}

	log.Info().Str("file", task.FileName).Msg("processing task")

	transcript, err := d.pipeline.Run(ctx, filePath, "", func(p int) {
		if err := d.queue.Progress(ctx, task.ID, p); err != nil {
			log.Warn().Err(err).Int("progress", p).Msg("progress update failed")
		}
	})
	if err != nil {
		log.Error().Err(err).Msg("task failed")
		d.fail(ctx, log, task.ID, err.Error())
		return
	}

	result := transcribe.FormatTimestamped(transcript.Spans)
	if err := d.queue.Succeed(ctx, task.ID, result); err != nil {
		// Best-effort by policy: a lost result write is logged, not raised.
		log.Error().Err(err).Msg("could not report task success")
	}
	metrics.TasksProcessed.WithLabelValues(queue.StatusCompleted).Inc()
	log.Info().Int("spans", len(transcript.Spans)).Str("language", transcript.Language).Msg("task completed")
}

func (d *Driver) isCancelled(ctx context.Context, log zerolog.Logger, taskID string) bool {
	status, err := d.queue.Status(ctx, taskID)
	if err != nil {
		// Can't tell; proceed rather than stall the task forever.
		log.Warn().Err(err).Msg("cancellation check failed")
		return false
	}
	return status == queue.StatusCancelled
}

func (d *Driver) fail(ctx context.Context, log zerolog.Logger, taskID, message string) {
	if err := d.queue.Fail(ctx, taskID, message); err != nil {
		log.Error().Err(err).Msg("could not report task failure")
	}
	metrics.TasksProcessed.WithLabelValues(queue.StatusFailed).Inc()
}

func (d *Driver) cleanup(ctx context.Context, log zerolog.Logger, taskID, filePath string) {
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", filePath).Msg("could not remove local file")
	}
	if err := d.queue.DeleteRemoteFile(ctx, taskID); err != nil {
		log.Warn().Err(err).Msg("could not delete remote file")
	}
}
