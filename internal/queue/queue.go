package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/crowdfund-backend/internal/model"
)

const (
	TopicSuspensions   = "campaign_suspensions"
	TopicReleases      = "campaign_releases"
	TopicDisbursements = "campaign_disbursements"
)

// TopicFor routes an event type to its queue.
func TopicFor(t model.EventType) string {
	switch t {
	case model.EventSuspended:
		return TopicSuspensions
	case model.EventReleaseRequested:
		return TopicReleases
	}
	return TopicDisbursements
}

// Handler processes one event. A non-nil error asks for a retry.
type Handler func(ctx context.Context, event model.LifecycleEvent) error

// Publisher is the side of a queue the service needs.
type Publisher interface {
	Publish(topic string, event model.LifecycleEvent) error
}

type Queue interface {
	Publisher
	Subscribe(topic string, handler Handler) error
}

const (
	DefaultMaxRetries = 3
	DefaultBackoff    = 500 * time.Millisecond
)

// InMemoryQueue delivers events to in-process subscribers with retry.
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]Handler
	wg       sync.WaitGroup

	MaxRetries int
	Backoff    time.Duration
	Logger     *zap.Logger
}

func NewInMemoryQueue(logger *zap.Logger) *InMemoryQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryQueue{
		handlers:   make(map[string][]Handler),
		MaxRetries: DefaultMaxRetries,
		Backoff:    DefaultBackoff,
		Logger:     logger,
	}
}

// job wraps an event with retry info
type job struct {
	event      model.LifecycleEvent
	retryCount int
}

// Publish hands the event to every subscriber of topic.
func (q *InMemoryQueue) Publish(topic string, event model.LifecycleEvent) error {
	q.mu.Lock()
	handlers := append([]Handler(nil), q.handlers[topic]...)
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	for _, h := range handlers {
		q.wg.Add(1)
		go q.processJob(topic, h, job{event: event})
	}
	return nil
}

// processJob handles retries with linear backoff
func (q *InMemoryQueue) processJob(topic string, h Handler, j job) {
	defer q.wg.Done()
	log := q.Logger.With(zap.String("topic", topic), zap.String("event_id", j.event.ID), zap.String("campaign_id", j.event.CampaignID))

	for {
		err := h(context.Background(), j.event)
		if err == nil {
			log.Debug("event processed")
			return
		}

		j.retryCount++
		if j.retryCount > q.MaxRetries {
			log.Error("event permanently failed", zap.Int("attempts", j.retryCount), zap.Error(err))
			return
		}
		log.Warn("event failed, retrying", zap.Int("attempt", j.retryCount), zap.Error(err))
		time.Sleep(time.Duration(j.retryCount) * q.Backoff)
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// Wait blocks until every published job has finished.
func (q *InMemoryQueue) Wait() {
	q.wg.Wait()
}
