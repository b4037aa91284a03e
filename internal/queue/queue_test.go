package queue

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryFIFO(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	for _, body := range []string{"a", "b", "c"} {
		if err := q.Publish(ctx, Message{Type: TypeRecordingCompleted, Body: []byte(body)}); err != nil {
			t.Fatal(err)
		}
	}
	ch, err := q.Consume(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"a", "b", "c"} {
		select {
		case msg := <-ch:
			if string(msg.Body) != want || msg.Type != TypeRecordingCompleted {
				t.Fatalf("got %+v, want %s", msg, want)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out")
		}
	}
}

func TestInMemoryConsumeClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := NewInMemory(1).Consume(ctx)
	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("unexpected message")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
}

func TestInMemoryPublishRespectsContext(t *testing.T) {
	q := NewInMemory(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_ = q.Publish(ctx, Message{})
	if err := q.Publish(ctx, Message{}); err == nil {
		t.Fatal("publish on a full queue should fail once ctx expires")
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	body := `{"uuid":"a|b=="}`
	got := deserialize(serialize(Message{Type: TypeRecordingCompleted, Body: []byte(body)}))
	if got.Type != TypeRecordingCompleted || string(got.Body) != body {
		t.Errorf("got %+v", got)
	}
	if raw := deserialize("no-separator"); raw.Type != "" || string(raw.Body) != "no-separator" {
		t.Errorf("raw = %+v", raw)
	}
}
