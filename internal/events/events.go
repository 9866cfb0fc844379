package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"

	"github.com/aegyost/dictattack/internal/attack"
	"github.com/aegyost/dictattack/internal/store"
)

const (
	TypeProgress = "progress"
	TypeResult   = "result"

	RoutingKeyProgress = "attack.progress"
	RoutingKeyResult   = "attack.result"
)

// Event is the JSON body of every published message.
type Event struct {
	Type      string           `json:"type"`
	RequestID string           `json:"requestId"`
	Time      time.Time        `json:"time"`
	Progress  *attack.Progress `json:"progress,omitempty"`
	Result    *store.Record    `json:"result,omitempty"`
}

type Publisher interface {
	PublishProgress(ctx context.Context, requestID string, p attack.Progress) error
	PublishResult(ctx context.Context, rec store.Record) error
}

// Nop discards events. It is used when no broker is configured.
type Nop struct{}

func (Nop) PublishProgress(context.Context, string, attack.Progress) error { return nil }
func (Nop) PublishResult(context.Context, store.Record) error              { return nil }

// channel is the subset of *amqp.Channel the publisher needs.
type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type AMQP struct {
	ch       channel
	exchange string
	now      func() time.Time
}

func NewAMQP(ch channel, exchange string) *AMQP {
	return &AMQP{ch: ch, exchange: exchange, now: time.Now}
}

// DialAMQP connects to url, declares a durable topic exchange and returns a
// publisher on it along with a function closing the connection.
func DialAMQP(url, exchange string) (*AMQP, func() error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return NewAMQP(ch, exchange), conn.Close, nil
}

func (a *AMQP) PublishProgress(ctx context.Context, requestID string, p attack.Progress) error {
	return a.publish(ctx, RoutingKeyProgress, Event{
		Type:      TypeProgress,
		RequestID: requestID,
		Progress:  &p,
	})
}

func (a *AMQP) PublishResult(ctx context.Context, rec store.Record) error {
	return a.publish(ctx, RoutingKeyResult, Event{
		Type:      TypeResult,
		RequestID: rec.RequestID,
		Result:    &rec,
	})
}

func (a *AMQP) publish(ctx context.Context, key string, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ev.Time = a.now().UTC()
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := amqp.Publishing{
		ContentType:   "application/json",
		MessageId:     uuid.NewString(),
		CorrelationId: ev.RequestID,
		Timestamp:     ev.Time,
		Type:          ev.Type,
		Body:          body,
	}
	if err := a.ch.Publish(a.exchange, key, false, false, msg); err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Type, err)
	}
	return nil
}
