package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stalledPublisher struct {
	deadline time.Time
}

func (p *stalledPublisher) PublishEvent(ctx context.Context, _, _ string, _ any) error {
	p.deadline, _ = ctx.Deadline()
	<-ctx.Done()
	return ctx.Err()
}

func TestPublishIsBoundedAndOutlivesRequest(t *testing.T) {
	pub := &stalledPublisher{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	publish(ctx, pub, TopicBooks, 1, map[string]any{"type": "book.created"})
	took := time.Since(start)

	assert.WithinDuration(t, start.Add(publishTimeout), pub.deadline, 100*time.Millisecond)
	assert.GreaterOrEqual(t, took, publishTimeout-50*time.Millisecond)
	assert.Less(t, took, publishTimeout+time.Second)
}
