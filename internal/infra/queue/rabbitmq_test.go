package queue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/firm-backoffice/internal/querycache"
)

// fakeChannel is an in-memory broker channel that can be dropped like a
// real one when the server goes away.
type fakeChannel struct {
	mu         sync.Mutex
	deliveries chan amqp.Delivery
	closes     []chan *amqp.Error
	closed     bool
	exchanges  int
	consumers  int
	published  []amqp.Publishing
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{deliveries: make(chan amqp.Delivery, 8)}
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchanges++
	return nil
}

func (f *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	return amqp.Queue{Name: "amq.gen-test"}, nil
}

func (f *fakeChannel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	return nil
}

func (f *fakeChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, amqp.ErrClosed
	}
	f.consumers++
	return f.deliveries, nil
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return amqp.ErrClosed
	}
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) NotifyClose(c chan *amqp.Error) chan *amqp.Error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		close(c)
	} else {
		f.closes = append(f.closes, c)
	}
	return c
}

func (f *fakeChannel) Close() error {
	f.drop(nil)
	return nil
}

func (f *fakeChannel) drop(reason *amqp.Error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for _, c := range f.closes {
		if reason != nil {
			c <- reason
		}
		close(c)
	}
	close(f.deliveries)
}

func (f *fakeChannel) stats() (exchanges, consumers, published int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exchanges, f.consumers, len(f.published)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// scriptedDialer hands out the given channels in order; a nil entry fails
// that attempt.
func scriptedDialer(channels ...*fakeChannel) Dialer {
	var mu sync.Mutex
	return func() (Channel, io.Closer, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(channels) == 0 {
			return nil, nil, errors.New("connection refused")
		}
		next := channels[0]
		channels = channels[1:]
		if next == nil {
			return nil, nil, errors.New("connection refused")
		}
		return next, nopCloser{}, nil
	}
}

func TestConnect_FailsWhenBrokerIsDown(t *testing.T) {
	logger, _ := test.NewNullLogger()
	_, err := Connect(scriptedDialer(), logger)
	assert.ErrorContains(t, err, "connection refused")
}

func TestRabbitMQ_ReconnectsAndResumesInvalidation(t *testing.T) {
	logger, _ := test.NewNullLogger()
	first, second := newFakeChannel(), newFakeChannel()

	r, err := Connect(scriptedDialer(first, nil, second), logger)
	require.NoError(t, err)
	r.minBackoff, r.maxBackoff = time.Millisecond, 5*time.Millisecond

	cache := querycache.New(time.Minute)
	_, err = cache.Load(context.Background(), querycache.Calendar, "june", func(context.Context) (any, error) { return "cached", nil })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); r.Run(ctx) }()
	consumer := NewConsumer(r, "instance-b", cache, logger)
	go func() { defer wg.Done(); _ = consumer.Start(ctx) }()

	assert.Eventually(t, func() bool { _, c, _ := first.stats(); return c == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, cache.Len(querycache.Calendar), "first subscription keeps the cache")

	pub := NewPublisher(r, "instance-b")
	require.NoError(t, pub.Publish(ctx, []querycache.Domain{querycache.BlogPosts}))

	first.drop(&amqp.Error{Code: amqp.ConnectionForced, Reason: "CONNECTION_FORCED"})

	assert.Eventually(t, func() bool { return r.Current() == Channel(second) }, time.Second, time.Millisecond)
	assert.False(t, r.IsClosed())
	exchanges, _, _ := second.stats()
	assert.Equal(t, 1, exchanges, "topology is declared again")

	assert.Eventually(t, func() bool { _, c, _ := second.stats(); return c == 1 }, time.Second, time.Millisecond)
	assert.Eventually(t, func() bool { return cache.Len(querycache.Calendar) == 0 }, time.Second, time.Millisecond,
		"reads cached before the outage are dropped")

	require.NoError(t, pub.Publish(ctx, []querycache.Domain{querycache.NewsArticles}))
	_, _, firstPublished := first.stats()
	_, _, secondPublished := second.stats()
	assert.Equal(t, 1, firstPublished)
	assert.Equal(t, 1, secondPublished)

	_, err = cache.Load(context.Background(), querycache.Calendar, "june", func(context.Context) (any, error) { return "fresh", nil })
	require.NoError(t, err)
	body, _ := json.Marshal(InvalidationMessage{Origin: "instance-a", Domains: []querycache.Domain{querycache.Calendar}})
	second.deliveries <- amqp.Delivery{Acknowledger: &recordingAck{}, Body: body}
	assert.Eventually(t, func() bool { return cache.Len(querycache.Calendar) == 0 }, time.Second, time.Millisecond,
		"peer invalidations arrive on the new channel")

	cancel()
	wg.Wait()
	require.NoError(t, r.Close())
	assert.True(t, r.IsClosed())
}

func TestRabbitMQ_CloseStopsRun(t *testing.T) {
	logger, _ := test.NewNullLogger()
	ch := newFakeChannel()
	r, err := Connect(scriptedDialer(ch, newFakeChannel()), logger)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() { r.Run(context.Background()); close(done) }()

	require.Eventually(t, func() bool {
		ch.mu.Lock()
		defer ch.mu.Unlock()
		return len(ch.closes) == 1
	}, time.Second, time.Millisecond)
	require.NoError(t, r.Close())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run kept going after Close")
	}
	assert.True(t, r.IsClosed())
}
