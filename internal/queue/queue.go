// Package queue fans subtitle signals out to RabbitMQ so downstream
// consumers (search indexers, notification senders, the webhook worker) see
// every change without coupling to the pipeline.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/captionflow/captionflow/internal/config"
	"github.com/captionflow/captionflow/internal/signals"
	"github.com/captionflow/captionflow/pkg/models"
)

const (
	EventQueueName = "subtitle_events"
	ExchangeName   = "subtitles"
)

// SignalEvent is the wire form of a subtitle signal.
type SignalEvent struct {
	Signal        string    `json:"signal"`
	VideoID       string    `json:"video_id"`
	LanguageID    string    `json:"language_id"`
	LanguageCode  string    `json:"language_code"`
	VersionID     string    `json:"version_id,omitempty"`
	VersionNumber int       `json:"version_number,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Queue provides message queue operations
type Queue struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// New creates a new queue client. The event queue is bound to the exchange
// once per signal name, so consumers can also bind their own queues to a
// subset of signals.
func New(cfg config.QueueConfig) (*Queue, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%d%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Vhost)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	// Declare exchange
	err = channel.ExchangeDeclare(
		ExchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	// Declare queue
	_, err = channel.QueueDeclare(
		EventQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	routingKeys := []string{
		signals.SignalSubtitlesChanged,
		signals.SignalPublicTipChanged,
		signals.SignalLanguageDeleted,
	}
	for _, key := range routingKeys {
		err = channel.QueueBind(
			EventQueueName,
			key,
			ExchangeName,
			false,
			nil,
		)
		if err != nil {
			channel.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to bind queue for %s: %w", key, err)
		}
	}

	return &Queue{
		conn:    conn,
		channel: channel,
	}, nil
}

// Close closes the queue connection
func (q *Queue) Close() error {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

// PublishSignal publishes a signal event, routed by signal name.
func (q *Queue) PublishSignal(ctx context.Context, event *SignalEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = q.channel.PublishWithContext(ctx,
		ExchangeName,
		event.Signal,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// ConsumeSignals starts consuming signal events from the queue
func (q *Queue) ConsumeSignals(ctx context.Context, handler func(*SignalEvent) error) error {
	err := q.channel.Qos(
		1,     // prefetch count
		0,     // prefetch size
		false, // global
	)
	if err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := q.channel.Consume(
		EventQueueName,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}

				var event SignalEvent
				if err := json.Unmarshal(msg.Body, &event); err != nil {
					msg.Nack(false, false)
					continue
				}

				if err := handler(&event); err != nil {
					msg.Nack(false, true)
				} else {
					msg.Ack(false)
				}
			}
		}
	}()

	return nil
}

// GetQueueDepth returns the number of messages in the event queue
func (q *Queue) GetQueueDepth() (int, error) {
	info, err := q.channel.QueueInspect(EventQueueName)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect queue: %w", err)
	}

	return info.Messages, nil
}

// Publisher is the subset of Queue the bridge needs.
type Publisher interface {
	PublishSignal(ctx context.Context, event *SignalEvent) error
}

// Logger reports bridge publish failures.
type Logger interface {
	ErrorWithErr(msg string, err error)
}

// AttachBridge subscribes the queue to the signal hub. Publish failures are
// logged, never propagated: a broker outage must not fail subtitle writes.
func AttachBridge(hub *signals.Hub, publisher Publisher, logger Logger) {
	publish := func(ctx context.Context, event *SignalEvent) {
		if err := publisher.PublishSignal(ctx, event); err != nil && logger != nil {
			logger.ErrorWithErr("Failed to publish signal event", err)
		}
	}

	hub.OnSubtitlesChanged(func(ctx context.Context, language *models.SubtitleLanguage, tip *models.SubtitleVersion) {
		event := &SignalEvent{
			Signal:       signals.SignalSubtitlesChanged,
			VideoID:      language.VideoID,
			LanguageID:   language.ID,
			LanguageCode: language.LanguageCode,
		}
		if tip != nil {
			event.VersionID = tip.ID
			event.VersionNumber = tip.VersionNumber
		}
		publish(ctx, event)
	})

	hub.OnPublicTipChanged(func(ctx context.Context, language *models.SubtitleLanguage, version *models.SubtitleVersion) {
		event := &SignalEvent{
			Signal:       signals.SignalPublicTipChanged,
			VideoID:      language.VideoID,
			LanguageID:   language.ID,
			LanguageCode: language.LanguageCode,
		}
		if version != nil {
			event.VersionID = version.ID
			event.VersionNumber = version.VersionNumber
		}
		publish(ctx, event)
	})

	hub.OnLanguageDeleted(func(ctx context.Context, language *models.SubtitleLanguage) {
		publish(ctx, &SignalEvent{
			Signal:       signals.SignalLanguageDeleted,
			VideoID:      language.VideoID,
			LanguageID:   language.ID,
			LanguageCode: language.LanguageCode,
		})
	})
}
