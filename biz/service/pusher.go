package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	segkafka "github.com/segmentio/kafka-go"
)

// Pusher delivers channel/event notifications to subscribers. Delivery is
// best-effort; callers on the mutation path log failures and move on.
type Pusher interface {
	Publish(ctx context.Context, channel, event string, payload interface{}) error
}

// ChannelPublisher is the fan-out transport (redis pub/sub in production).
type ChannelPublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// PushEvent is the envelope written to both the pub/sub channel and kafka.
type PushEvent struct {
	Channel string      `json:"channel"`
	Event   string      `json:"event"`
	Data    interface{} `json:"data"`
}

// EventPusher publishes to the pub/sub transport and mirrors every event to
// kafka so downstream consumers get a durable stream. Account channels go to
// the account topic, everything else to the market topic.
type EventPusher struct {
	channels      ChannelPublisher
	accountEvents *segkafka.Writer
	marketEvents  *segkafka.Writer
}

func NewEventPusher(channels ChannelPublisher, accountEvents, marketEvents *segkafka.Writer) *EventPusher {
	return &EventPusher{
		channels:      channels,
		accountEvents: accountEvents,
		marketEvents:  marketEvents,
	}
}

func (p *EventPusher) Publish(ctx context.Context, channel, event string, payload interface{}) error {
	body, err := json.Marshal(PushEvent{Channel: channel, Event: event, Data: payload})
	if err != nil {
		return errors.Wrap(err, "marshal push event")
	}

	if w := p.topicWriter(channel); w != nil {
		// async writer, errors surface via its completion callback
		_ = w.WriteMessages(ctx, segkafka.Message{Key: []byte(channel), Value: body})
	}

	return p.channels.Publish(ctx, channel, body)
}

func (p *EventPusher) topicWriter(channel string) *segkafka.Writer {
	if strings.HasPrefix(channel, "account-") {
		return p.accountEvents
	}
	return p.marketEvents
}
