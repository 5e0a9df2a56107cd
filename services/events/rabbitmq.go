package eventsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/showtime/portal/core"
)

const (
	dialAttempts   = 5
	dialDelay      = 500 * time.Millisecond
	maxDialDelay   = 30 * time.Second
	publishTimeout = 5 * time.Second
)

// RabbitMQPublisher publishes events to a durable topic exchange.
type RabbitMQPublisher struct {
	conn     *amqp.Connection
	exchange string
	source   string
	logger   core.Logger
}

var _ core.EventPublisher = (*RabbitMQPublisher)(nil)

// NewRabbitMQPublisher dials the broker with exponential backoff and declares the exchange.
func NewRabbitMQPublisher(ctx context.Context, conf *core.Config, logger core.Logger) (*RabbitMQPublisher, error) {
	conn, err := dialWithRetry(ctx, conf.RabbitMQ.URL, logger)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "opening channel")
	}
	defer ch.Close()

	if err = ch.ExchangeDeclare(conf.RabbitMQ.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "declaring exchange")
	}

	return &RabbitMQPublisher{
		conn:     conn,
		exchange: conf.RabbitMQ.Exchange,
		source:   conf.AppName,
		logger:   logger,
	}, nil
}

func dialWithRetry(ctx context.Context, url string, logger core.Logger) (*amqp.Connection, error) {
	var lastErr error
	for i := 1; i <= dialAttempts; i++ {
		conn, err := amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		lastErr = err

		sleep := dialDelay * time.Duration(math.Pow(2, float64(i-1)))
		if sleep > maxDialDelay {
			sleep = maxDialDelay
		}
		logger.Warn(fmt.Sprintf("rabbitmq dial failed (attempt %d), retrying in %v", i, sleep), err)

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.Wrap(ctx.Err(), "dialing rabbitmq")
		case <-timer.C:
		}
	}
	return nil, errors.Wrapf(lastErr, "dialing rabbitmq after %d attempts", dialAttempts)
}

func (p *RabbitMQPublisher) Publish(routingKey string, payload interface{}) error {
	env, err := newEnvelope(p.source, routingKey, payload)
	if err != nil {
		return errors.Wrap(err, "marshalling event")
	}
	body, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "marshalling envelope")
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return errors.Wrap(err, "opening channel")
	}
	defer ch.Close()

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.Meta.ID,
		Timestamp:    env.Meta.OccurredAt,
		Type:         routingKey,
		AppId:        p.source,
		Body:         body,
	})
	return errors.Wrapf(err, "publishing %s", routingKey)
}

func (p *RabbitMQPublisher) Close() error {
	return p.conn.Close()
}
