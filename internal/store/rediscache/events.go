package rediscache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spigell/helper-matcher/internal/decisions"
)

// DefaultEventsChannel receives retraining events unless configured otherwise.
const DefaultEventsChannel = "helper-matcher.retraining"

// Publisher sends retraining events over Redis pub/sub.
type Publisher struct {
	rdb     Client
	channel string
}

var _ decisions.Publisher = (*Publisher)(nil)

// NewPublisher creates a publisher for channel.
func NewPublisher(rdb Client, channel string) *Publisher {
	if channel == "" {
		channel = DefaultEventsChannel
	}
	return &Publisher{rdb: rdb, channel: channel}
}

// Publish encodes e as JSON and sends it to the channel.
func (p *Publisher) Publish(ctx context.Context, e decisions.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", e.Type, err)
	}
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s event: %w", e.Type, err)
	}
	return nil
}
