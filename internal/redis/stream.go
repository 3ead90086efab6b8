package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/dentalreserve/internal/eventlog"
)

// StreamRecorder appends events to a capped Redis stream so other processes
// can follow bookings and calls with XREAD.
type StreamRecorder struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewStreamRecorder(client *redis.Client, stream string, maxLen int64) *StreamRecorder {
	return &StreamRecorder{
		client: client,
		stream: stream,
		maxLen: maxLen,
	}
}

func (r *StreamRecorder) Record(ctx context.Context, ev eventlog.Event) error {
	payload := string(ev.Payload)
	if payload == "" {
		payload = "{}"
	}

	err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: r.maxLen,
		Values: map[string]any{
			"type":       ev.Type,
			"subject_id": ev.SubjectID,
			"payload":    payload,
			"created_at": ev.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", r.stream, err)
	}
	return nil
}
