package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/firm-backoffice/internal/querycache"
)

type MockChannel struct {
	mock.Mock
}

func (m *MockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	args := m.Called(exchange, key, msg)
	return args.Error(0)
}

type recordingCache struct {
	invalidated [][]querycache.Domain
}

func (r *recordingCache) Invalidate(domains ...querycache.Domain) {
	r.invalidated = append(r.invalidated, domains)
}

type recordingAck struct {
	acked, nacked int
}

func (a *recordingAck) Ack(tag uint64, multiple bool) error { a.acked++; return nil }
func (a *recordingAck) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked++
	return nil
}
func (a *recordingAck) Reject(tag uint64, requeue bool) error { return nil }

func TestPublisher_Publish(t *testing.T) {
	ch := new(MockChannel)
	p := newPublisher(func() publishChannel { return ch }, "instance-a")
	p.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	ch.On("PublishWithContext", InvalidationExchange, "", mock.MatchedBy(func(msg amqp.Publishing) bool {
		var decoded InvalidationMessage
		if err := json.Unmarshal(msg.Body, &decoded); err != nil {
			return false
		}
		return msg.ContentType == ContentType &&
			decoded.Origin == "instance-a" &&
			len(decoded.Domains) == 2 &&
			decoded.Domains[1] == querycache.LeadStats
	})).Return(nil).Once()

	err := p.Publish(context.Background(), []querycache.Domain{querycache.ContactSubmissions, querycache.LeadStats})
	require.NoError(t, err)
	ch.AssertExpectations(t)

	t.Run("nothing to announce", func(t *testing.T) {
		assert.NoError(t, p.Publish(context.Background(), nil))
		ch.AssertNumberOfCalls(t, "PublishWithContext", 1)
	})
}

func TestPublisher_PublishError(t *testing.T) {
	ch := new(MockChannel)
	ch.On("PublishWithContext", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("channel closed"))

	err := newPublisher(func() publishChannel { return ch }, "instance-a").Publish(context.Background(), []querycache.Domain{querycache.BlogQueue})
	assert.ErrorContains(t, err, "channel closed")

	down := newPublisher(func() publishChannel { return nil }, "instance-a")
	assert.ErrorIs(t, down.Publish(context.Background(), []querycache.Domain{querycache.BlogQueue}), ErrBrokerUnavailable)
}

func TestConsumer_Handle(t *testing.T) {
	logger, _ := test.NewNullLogger()
	body := func(origin string, domains ...querycache.Domain) []byte {
		b, _ := json.Marshal(InvalidationMessage{Origin: origin, Domains: domains})
		return b
	}

	t.Run("applies messages from other instances", func(t *testing.T) {
		cache := &recordingCache{}
		ack := &recordingAck{}
		c := NewConsumer(nil, "instance-a", cache, logger)

		c.handle(amqp.Delivery{Acknowledger: ack, Body: body("instance-b", querycache.NewsQueue, querycache.QueueStats)})

		require.Len(t, cache.invalidated, 1)
		assert.Equal(t, []querycache.Domain{querycache.NewsQueue, querycache.QueueStats}, cache.invalidated[0])
		assert.Equal(t, 1, ack.acked)
	})

	t.Run("ignores its own messages", func(t *testing.T) {
		cache := &recordingCache{}
		ack := &recordingAck{}
		c := NewConsumer(nil, "instance-a", cache, logger)

		c.handle(amqp.Delivery{Acknowledger: ack, Body: body("instance-a", querycache.NewsQueue)})

		assert.Empty(t, cache.invalidated)
		assert.Equal(t, 1, ack.acked)
	})

	t.Run("drops malformed payloads", func(t *testing.T) {
		cache := &recordingCache{}
		ack := &recordingAck{}
		c := NewConsumer(nil, "instance-a", cache, logger)

		c.handle(amqp.Delivery{Acknowledger: ack, Body: []byte("{not json")})

		assert.Empty(t, cache.invalidated)
		assert.Equal(t, 0, ack.acked)
		assert.Equal(t, 1, ack.nacked)
	})
}

func TestCacheStaysConsistentAcrossInstances(t *testing.T) {
	logger, _ := test.NewNullLogger()
	remote := querycache.New(time.Minute)

	_, err := remote.Load(context.Background(), querycache.Calendar, "june", func(context.Context) (any, error) { return "cached", nil })
	require.NoError(t, err)
	require.Equal(t, 1, remote.Len(querycache.Calendar))

	msg, _ := json.Marshal(InvalidationMessage{Origin: "instance-a", Domains: querycache.Dependents(querycache.BlogPosts)})
	c := NewConsumer(nil, "instance-b", remote, logger)
	c.handle(amqp.Delivery{Acknowledger: &recordingAck{}, Body: msg})

	assert.Equal(t, 0, remote.Len(querycache.Calendar))
}
