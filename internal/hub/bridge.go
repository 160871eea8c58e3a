package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Update announces that a view's cached data was refreshed for a device.
type Update struct {
	DeviceID  string    `json:"deviceId"`
	View      string    `json:"view"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// Message is what a socket client receives.
type Message struct {
	Type      string     `json:"type"`
	View      string     `json:"view,omitempty"`
	FetchedAt *time.Time `json:"fetchedAt,omitempty"`
}

func EncodeUpdate(u Update) ([]byte, error) {
	fetchedAt := u.FetchedAt
	return json.Marshal(Message{Type: "update", View: u.View, FetchedAt: &fetchedAt})
}

type Publisher struct {
	client  *redis.Client
	channel string
}

func NewPublisher(client *redis.Client, channel string) *Publisher {
	return &Publisher{client: client, channel: channel}
}

func (p *Publisher) Publish(ctx context.Context, u Update) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode update: %w", err)
	}
	return p.client.Publish(ctx, p.channel, raw).Err()
}

// Bridge relays updates published by refresher processes to the sockets
// connected to this process.
type Bridge struct {
	client  *redis.Client
	channel string
	hub     *Hub
	log     zerolog.Logger
}

func NewBridge(client *redis.Client, channel string, h *Hub, log zerolog.Logger) *Bridge {
	return &Bridge{client: client, channel: channel, hub: h, log: log}
}

func (b *Bridge) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.Deliver([]byte(msg.Payload))
		}
	}
}

// Deliver decodes one published update and broadcasts it.
func (b *Bridge) Deliver(payload []byte) {
	var u Update
	if err := json.Unmarshal(payload, &u); err != nil || u.DeviceID == "" {
		b.log.Warn().Err(err).Msg("dropping malformed update")
		return
	}
	out, err := EncodeUpdate(u)
	if err != nil {
		return
	}
	b.hub.Broadcast(u.DeviceID, out)
}
