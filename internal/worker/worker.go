// Package worker drains queued webhook jobs into the pipeline.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"zoomarchive/internal/pipeline"
	"zoomarchive/internal/queue"
	"zoomarchive/internal/zoom"
)

// WebhookRunner archives one webhook meeting.
type WebhookRunner interface {
	RunWebhook(ctx context.Context, meeting zoom.Meeting) (pipeline.Summary, error)
}

// Enqueue publishes a recording.completed meeting for the worker.
func Enqueue(ctx context.Context, q queue.Queue, meeting zoom.Meeting) error {
	body, err := json.Marshal(meeting)
	if err != nil {
		return fmt.Errorf("encode meeting: %w", err)
	}
	return q.Publish(ctx, queue.Message{Type: queue.TypeRecordingCompleted, Body: body})
}

// Consume processes messages until ctx is done or the queue closes. Jobs
// run one at a time; a failed job is logged and dropped.
func Consume(ctx context.Context, q queue.Queue, runner WebhookRunner, log *slog.Logger) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("queue consume init failed: %w", err)
	}

	log.Info("worker started, waiting for messages")
	for msg := range messages {
		handle(ctx, msg, runner, log)
	}
	log.Info("worker stopped")
	return nil
}

func handle(ctx context.Context, msg queue.Message, runner WebhookRunner, log *slog.Logger) {
	if msg.Type != queue.TypeRecordingCompleted {
		log.Warn("unknown message type dropped", slog.String("type", msg.Type))
		return
	}
	var meeting zoom.Meeting
	if err := json.Unmarshal(msg.Body, &meeting); err != nil {
		log.Error("undecodable meeting dropped", slog.String("error", err.Error()))
		return
	}

	sum, err := runner.RunWebhook(ctx, meeting)
	if err != nil {
		log.Error("webhook job failed",
			slog.String("meeting_uuid", meeting.UUID),
			slog.String("error", err.Error()),
		)
		return
	}
	log.Info("webhook job done",
		slog.String("run_id", sum.RunID),
		slog.String("meeting_uuid", meeting.UUID),
		slog.Int("files_downloaded", sum.FilesDownloaded),
		slog.Int("files_failed", sum.FilesFailed),
	)
}
