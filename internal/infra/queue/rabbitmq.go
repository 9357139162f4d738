package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const (
	// InvalidationExchange fans cache invalidations out to every instance.
	InvalidationExchange = "ex.cache.invalidation"
	ContentType          = "application/json"
)

var ErrBrokerUnavailable = errors.New("rabbitmq is reconnecting")

// Channel is the part of *amqp.Channel the service uses.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	NotifyClose(c chan *amqp.Error) chan *amqp.Error
	Close() error
}

// Dialer opens a connection and one channel on it.
type Dialer func() (Channel, io.Closer, error)

func AMQPDialer(url string) Dialer {
	return func() (Channel, io.Closer, error) {
		conn, err := amqp.Dial(url)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("failed to open channel: %w", err)
		}
		return ch, conn, nil
	}
}

// RabbitMQ owns the broker session. Run replaces it whenever the channel
// closes; callers always ask for the current channel.
type RabbitMQ struct {
	dial       Dialer
	log        logrus.FieldLogger
	minBackoff time.Duration
	maxBackoff time.Duration

	mu      sync.Mutex
	ch      Channel
	conn    io.Closer
	closing bool
	changed chan struct{}
}

func NewRabbitMQ(url string, log logrus.FieldLogger) (*RabbitMQ, error) {
	return Connect(AMQPDialer(url), log)
}

// Connect opens the first session. A broker that is down at boot is an error.
func Connect(dial Dialer, log logrus.FieldLogger) (*RabbitMQ, error) {
	r := &RabbitMQ{
		dial:       dial,
		log:        log,
		minBackoff: time.Second,
		maxBackoff: 30 * time.Second,
		changed:    make(chan struct{}),
	}
	ch, conn, err := r.open()
	if err != nil {
		return nil, err
	}
	r.ch, r.conn = ch, conn
	return r, nil
}

func (r *RabbitMQ) open() (Channel, io.Closer, error) {
	ch, conn, err := r.dial()
	if err != nil {
		return nil, nil, err
	}
	if err := setupTopology(ch); err != nil {
		conn.Close()
		return nil, nil, err
	}
	return ch, conn, nil
}

func setupTopology(ch Channel) error {
	err := ch.ExchangeDeclare(InvalidationExchange, "fanout", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare %s: %w", InvalidationExchange, err)
	}
	return nil
}

// Current returns the live channel, or nil while reconnecting.
func (r *RabbitMQ) Current() Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ch
}

// Wait blocks until a live channel other than stale is available.
func (r *RabbitMQ) Wait(ctx context.Context, stale Channel) (Channel, error) {
	for {
		r.mu.Lock()
		ch, changed := r.ch, r.changed
		r.mu.Unlock()
		if ch != nil && ch != stale {
			return ch, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-changed:
		}
	}
}

// setLocked swaps the session and wakes every Wait. r.mu must be held.
func (r *RabbitMQ) setLocked(ch Channel, conn io.Closer) {
	r.ch, r.conn = ch, conn
	close(r.changed)
	r.changed = make(chan struct{})
}

// Run watches the channel and redials with exponential backoff after it
// closes, until ctx is done or Close is called.
func (r *RabbitMQ) Run(ctx context.Context) {
	for {
		ch := r.Current()
		if ch == nil {
			if !r.reconnect(ctx) {
				return
			}
			continue
		}

		closed := ch.NotifyClose(make(chan *amqp.Error, 1))
		select {
		case <-ctx.Done():
			return
		case amqpErr := <-closed:
			r.mu.Lock()
			if r.closing {
				r.mu.Unlock()
				return
			}
			conn := r.conn
			r.setLocked(nil, nil)
			r.mu.Unlock()

			if conn != nil {
				_ = conn.Close()
			}
			entry := r.log.WithField("component", "rabbitmq")
			if amqpErr != nil {
				entry = entry.WithField("reason", amqpErr.Reason)
			}
			entry.Warn("rabbitmq channel closed, reconnecting")
		}
	}
}

func (r *RabbitMQ) reconnect(ctx context.Context) bool {
	backoff := r.minBackoff
	for {
		ch, conn, err := r.open()
		if err == nil {
			r.mu.Lock()
			if r.closing {
				r.mu.Unlock()
				conn.Close()
				return false
			}
			r.setLocked(ch, conn)
			r.mu.Unlock()
			r.log.Info("rabbitmq reconnected")
			return true
		}

		r.log.WithError(err).WithField("retry_in", backoff.String()).Warn("rabbitmq reconnect failed")
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, r.maxBackoff)
	}
}

func (r *RabbitMQ) IsClosed() bool {
	return r.Current() == nil
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	r.closing = true
	ch, conn := r.ch, r.conn
	r.setLocked(nil, nil)
	r.mu.Unlock()

	if ch != nil {
		_ = ch.Close()
	}
	if conn == nil {
		return nil
	}
	return conn.Close()
}
