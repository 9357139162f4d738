package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/xavierca1/firm-backoffice/internal/infra/metrics"
	"github.com/xavierca1/firm-backoffice/internal/querycache"
)

type InvalidationMessage struct {
	Origin  string              `json:"origin"`
	Domains []querycache.Domain `json:"domains"`
	At      time.Time           `json:"at"`
}

type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher announces local writes to the other instances on whichever
// channel is live at the time of the write.
type Publisher struct {
	current func() publishChannel
	origin  string
	now     func() time.Time
}

func NewPublisher(r *RabbitMQ, origin string) *Publisher {
	return newPublisher(func() publishChannel {
		if ch := r.Current(); ch != nil {
			return ch
		}
		return nil
	}, origin)
}

func newPublisher(current func() publishChannel, origin string) *Publisher {
	return &Publisher{current: current, origin: origin, now: time.Now}
}

func (p *Publisher) Publish(ctx context.Context, domains []querycache.Domain) error {
	if len(domains) == 0 {
		return nil
	}

	body, err := json.Marshal(InvalidationMessage{Origin: p.origin, Domains: domains, At: p.now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to encode invalidation: %w", err)
	}

	ch := p.current()
	if ch == nil {
		return ErrBrokerUnavailable
	}
	err = ch.PublishWithContext(ctx,
		InvalidationExchange,
		"",
		false,
		false,
		amqp.Publishing{
			ContentType:  ContentType,
			Body:         body,
			DeliveryMode: amqp.Transient,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish invalidation: %w", err)
	}

	metrics.RecordInvalidationMessage("out")
	return nil
}

type Invalidator interface {
	Invalidate(domains ...querycache.Domain)
}

// Consumer applies invalidations published by other instances.
type Consumer struct {
	broker *RabbitMQ
	origin string
	cache  Invalidator
	log    logrus.FieldLogger
}

func NewConsumer(broker *RabbitMQ, origin string, cache Invalidator, log logrus.FieldLogger) *Consumer {
	return &Consumer{broker: broker, origin: origin, cache: cache, log: log}
}

// Start consumes until ctx is done, resubscribing on every new channel the
// broker hands out. Messages sent while this instance was disconnected are
// lost, so the whole cache is dropped once consumption resumes.
func (c *Consumer) Start(ctx context.Context) error {
	var stale Channel
	for {
		ch, err := c.broker.Wait(ctx, stale)
		if err != nil {
			return nil
		}

		err = c.consume(ctx, ch, func() {
			if stale != nil {
				c.cache.Invalidate(querycache.All()...)
				c.log.Info("invalidation consumer resumed, cache flushed")
			}
		})
		if ctx.Err() != nil {
			return nil
		}
		c.log.WithError(err).Warn("invalidation consumer interrupted")
		stale = ch
	}
}

// consume binds a private queue to the exchange and handles deliveries until
// ctx is done or the channel closes. ready runs once the subscription is live.
func (c *Consumer) consume(ctx context.Context, ch Channel, ready func()) error {
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare invalidation queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", InvalidationExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind invalidation queue: %w", err)
	}

	msgs, err := ch.Consume(q.Name, "", false, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}
	ready()

	c.log.WithField("queue", q.Name).Info("invalidation consumer started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("invalidation channel closed")
			}
			c.handle(d)
		}
	}
}

func (c *Consumer) handle(d amqp.Delivery) {
	applied, err := c.apply(d.Body)
	if err != nil {
		c.log.WithError(err).Warn("dropping malformed invalidation")
		_ = d.Nack(false, false)
		return
	}
	if applied {
		metrics.RecordInvalidationMessage("in")
	}
	_ = d.Ack(false)
}

// apply invalidates the message's domains unless this instance sent it.
func (c *Consumer) apply(body []byte) (bool, error) {
	var msg InvalidationMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return false, err
	}
	if msg.Origin == c.origin {
		return false, nil
	}
	if len(msg.Domains) == 0 {
		return false, nil
	}

	c.cache.Invalidate(msg.Domains...)
	c.log.WithFields(logrus.Fields{"origin": msg.Origin, "domains": msg.Domains}).Debug("applied remote invalidation")
	return true, nil
}
