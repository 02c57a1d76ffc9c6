package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/unclebandit/crowdfund-backend/internal/model"
)

const retryHeader = "x-retry-count"

// AMQPQueue publishes and consumes lifecycle events over RabbitMQ using
// durable queues on the default exchange.
type AMQPQueue struct {
	conn *amqp.Connection

	mu      sync.Mutex // guards pubCh; amqp channels are not safe for concurrent use
	pubCh   *amqp.Channel
	declare map[string]bool

	MaxRetries int
	Logger     *zap.Logger
}

func DialAMQP(url string, logger *zap.Logger) (*AMQPQueue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return &AMQPQueue{
		conn:       conn,
		pubCh:      ch,
		declare:    make(map[string]bool),
		MaxRetries: DefaultMaxRetries,
		Logger:     logger,
	}, nil
}

func declareQueue(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(
		name,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", name, err)
	}
	return nil
}

func (q *AMQPQueue) Publish(topic string, event model.LifecycleEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return q.publish(topic, event, body, 0)
}

func (q *AMQPQueue) publish(topic string, event model.LifecycleEvent, body []byte, retries int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.declare[topic] {
		if err := declareQueue(q.pubCh, topic); err != nil {
			return err
		}
		q.declare[topic] = true
	}
	err := q.pubCh.Publish("", topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Type:         string(event.Type),
		Timestamp:    event.OccurredAt,
		Headers:      amqp.Table{retryHeader: int32(retries)},
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe starts consuming topic on its own channel. Failed deliveries
// are republished with an incremented retry header until MaxRetries is
// reached, then dropped.
func (q *AMQPQueue) Subscribe(topic string, handler Handler) error {
	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	if err := declareQueue(ch, topic); err != nil {
		return err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	msgs, err := ch.Consume(
		topic,
		"",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}

	go func() {
		for d := range msgs {
			q.handleDelivery(topic, d, handler)
		}
		q.Logger.Info("consumer stopped", zap.String("topic", topic))
	}()
	return nil
}

func (q *AMQPQueue) handleDelivery(topic string, d amqp.Delivery, handler Handler) {
	log := q.Logger.With(zap.String("topic", topic), zap.String("message_id", d.MessageId))

	var event model.LifecycleEvent
	if err := json.Unmarshal(d.Body, &event); err != nil {
		log.Error("invalid event body", zap.Error(err))
		d.Ack(false)
		return
	}

	err := handler(context.Background(), event)
	if err == nil {
		d.Ack(false)
		return
	}

	retries := retryCount(d.Headers)
	if retries >= q.MaxRetries {
		log.Error("event permanently failed", zap.Int("attempts", retries+1), zap.Error(err))
		d.Ack(false)
		return
	}
	log.Warn("event failed, requeueing", zap.Int("attempt", retries+1), zap.Error(err))
	if perr := q.publish(topic, event, d.Body, retries+1); perr != nil {
		log.Error("requeue failed", zap.Error(perr))
		d.Nack(false, true)
		return
	}
	d.Ack(false)
}

func retryCount(h amqp.Table) int {
	switch v := h[retryHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func (q *AMQPQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.pubCh.Close(); err != nil {
		q.Logger.Warn("close channel", zap.Error(err))
	}
	return q.conn.Close()
}
