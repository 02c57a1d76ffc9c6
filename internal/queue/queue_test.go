package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/crowdfund-backend/internal/model"
)

func newTestQueue() *InMemoryQueue {
	q := NewInMemoryQueue(nil)
	q.Backoff = time.Millisecond
	return q
}

func TestPublishWithoutSubscribers(t *testing.T) {
	q := newTestQueue()
	err := q.Publish(TopicReleases, model.LifecycleEvent{ID: "e1"})
	assert.Error(t, err)
}

func TestPublishDeliversToEverySubscriber(t *testing.T) {
	q := newTestQueue()
	var calls atomic.Int32
	for i := 0; i < 2; i++ {
		require.NoError(t, q.Subscribe(TopicReleases, func(ctx context.Context, e model.LifecycleEvent) error {
			assert.Equal(t, "c1", e.CampaignID)
			calls.Add(1)
			return nil
		}))
	}

	require.NoError(t, q.Publish(TopicReleases, model.LifecycleEvent{ID: "e1", CampaignID: "c1"}))
	q.Wait()
	assert.Equal(t, int32(2), calls.Load())
}

func TestFailedJobIsRetried(t *testing.T) {
	q := newTestQueue()
	var attempts atomic.Int32
	require.NoError(t, q.Subscribe(TopicReleases, func(ctx context.Context, e model.LifecycleEvent) error {
		if attempts.Add(1) < 3 {
			return errors.New("gateway down")
		}
		return nil
	}))

	require.NoError(t, q.Publish(TopicReleases, model.LifecycleEvent{ID: "e1"}))
	q.Wait()
	assert.Equal(t, int32(3), attempts.Load())
}

func TestRetriesStopAtMax(t *testing.T) {
	q := newTestQueue()
	q.MaxRetries = 2
	var attempts atomic.Int32
	require.NoError(t, q.Subscribe(TopicReleases, func(ctx context.Context, e model.LifecycleEvent) error {
		attempts.Add(1)
		return errors.New("always")
	}))

	require.NoError(t, q.Publish(TopicReleases, model.LifecycleEvent{ID: "e1"}))
	q.Wait()
	assert.Equal(t, int32(3), attempts.Load())
}

func TestTopicFor(t *testing.T) {
	assert.Equal(t, TopicSuspensions, TopicFor(model.EventSuspended))
	assert.Equal(t, TopicReleases, TopicFor(model.EventReleaseRequested))
	assert.Equal(t, TopicDisbursements, TopicFor(model.EventReleased))
}

func TestRetryCountHeader(t *testing.T) {
	assert.Equal(t, 0, retryCount(nil))
	assert.Equal(t, 2, retryCount(amqp.Table{retryHeader: int32(2)}))
	assert.Equal(t, 5, retryCount(amqp.Table{retryHeader: int64(5)}))
	assert.Equal(t, 0, retryCount(amqp.Table{retryHeader: "x"}))
}
