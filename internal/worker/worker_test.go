package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"zoomarchive/internal/logger"
	"zoomarchive/internal/pipeline"
	"zoomarchive/internal/queue"
	"zoomarchive/internal/zoom"
)

type recordingRunner struct {
	mu   sync.Mutex
	seen []string
	fail bool
	done chan struct{}
}

func (r *recordingRunner) RunWebhook(_ context.Context, m zoom.Meeting) (pipeline.Summary, error) {
	r.mu.Lock()
	r.seen = append(r.seen, m.UUID)
	n := len(r.seen)
	r.mu.Unlock()
	if n == 2 {
		close(r.done)
	}
	if r.fail {
		return pipeline.Summary{}, errors.New("token rejected")
	}
	return pipeline.Summary{RunID: "r"}, nil
}

func TestConsumeRunsQueuedMeetings(t *testing.T) {
	for _, fail := range []bool{false, true} {
		ctx, cancel := context.WithCancel(context.Background())
		q := queue.NewInMemory(8)
		runner := &recordingRunner{fail: fail, done: make(chan struct{})}

		if err := Enqueue(ctx, q, zoom.Meeting{UUID: "m1/=="}); err != nil {
			t.Fatal(err)
		}
		_ = q.Publish(ctx, queue.Message{Type: "other", Body: []byte("x")})
		_ = q.Publish(ctx, queue.Message{Type: queue.TypeRecordingCompleted, Body: []byte("{broken")})
		if err := Enqueue(ctx, q, zoom.Meeting{UUID: "m2"}); err != nil {
			t.Fatal(err)
		}

		errc := make(chan error, 1)
		go func() { errc <- Consume(ctx, q, runner, logger.Discard()) }()

		select {
		case <-runner.done:
		case <-time.After(2 * time.Second):
			t.Fatal("jobs not processed")
		}
		cancel()
		if err := <-errc; err != nil {
			t.Fatalf("Consume: %v", err)
		}

		runner.mu.Lock()
		if len(runner.seen) != 2 || runner.seen[0] != "m1/==" || runner.seen[1] != "m2" {
			t.Errorf("seen = %v", runner.seen)
		}
		runner.mu.Unlock()
	}
}
