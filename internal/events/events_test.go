package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aegyost/dictattack/internal/attack"
	"github.com/aegyost/dictattack/internal/store"
)

type mockChannel struct {
	mock.Mock
}

func (m *mockChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	args := m.Called(exchange, key, mandatory, immediate, msg)
	return args.Error(0)
}

func fixedNow() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

func TestPublishProgress(t *testing.T) {
	ch := &mockChannel{}
	var sent amqp.Publishing
	ch.On("Publish", "dictattack", RoutingKeyProgress, false, false, mock.AnythingOfType("amqp.Publishing")).
		Run(func(args mock.Arguments) { sent = args.Get(4).(amqp.Publishing) }).
		Return(nil).
		Once()

	pub := NewAMQP(ch, "dictattack")
	pub.now = fixedNow

	p := attack.Progress{RunID: "run-1", Status: attack.StatusRunning, Tested: 100, Total: 1000, Current: "dragon"}
	require.NoError(t, pub.PublishProgress(context.Background(), "req-1", p))
	ch.AssertExpectations(t)

	assert.Equal(t, "application/json", sent.ContentType)
	assert.Equal(t, "req-1", sent.CorrelationId)
	assert.Equal(t, TypeProgress, sent.Type)
	assert.NotEmpty(t, sent.MessageId)
	assert.Equal(t, fixedNow(), sent.Timestamp)

	var ev Event
	require.NoError(t, json.Unmarshal(sent.Body, &ev))
	assert.Equal(t, TypeProgress, ev.Type)
	assert.Equal(t, "req-1", ev.RequestID)
	require.NotNil(t, ev.Progress)
	assert.Equal(t, 100, ev.Progress.Tested)
	assert.Equal(t, "dragon", ev.Progress.Current)
	assert.Nil(t, ev.Result)
}

func TestPublishResult(t *testing.T) {
	ch := &mockChannel{}
	var sent amqp.Publishing
	ch.On("Publish", "dictattack", RoutingKeyResult, false, false, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(4).(amqp.Publishing) }).
		Return(nil)

	pub := NewAMQP(ch, "dictattack")
	rec := store.Record{RequestID: "req-9", Outcome: "NOT_FOUND", Tested: 42, Algorithm: "sha1"}
	require.NoError(t, pub.PublishResult(context.Background(), rec))

	var ev Event
	require.NoError(t, json.Unmarshal(sent.Body, &ev))
	assert.Equal(t, TypeResult, ev.Type)
	assert.Equal(t, "req-9", ev.RequestID)
	require.NotNil(t, ev.Result)
	assert.Equal(t, 42, ev.Result.Tested)
}

func TestPublishErrors(t *testing.T) {
	ch := &mockChannel{}
	ch.On("Publish", mock.Anything, mock.Anything, false, false, mock.Anything).
		Return(errors.New("channel closed"))
	pub := NewAMQP(ch, "dictattack")

	err := pub.PublishProgress(context.Background(), "req-1", attack.Progress{})
	assert.ErrorContains(t, err, "channel closed")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = pub.PublishResult(ctx, store.Record{})
	assert.ErrorIs(t, err, context.Canceled)
	ch.AssertNumberOfCalls(t, "Publish", 1)
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.PublishProgress(context.Background(), "x", attack.Progress{}))
	assert.NoError(t, p.PublishResult(context.Background(), store.Record{}))
}
