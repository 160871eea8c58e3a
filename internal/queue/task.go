package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const TaskRefresh = "refresh"

// Task asks a refresher to reload one view for one device.
type Task struct {
	Type     string
	View     string
	DeviceID string
}

func (t Task) values() map[string]interface{} {
	return map[string]interface{}{
		"type":   t.Type,
		"view":   t.View,
		"device": t.DeviceID,
	}
}

func DecodeTask(values map[string]interface{}) (Task, error) {
	str := func(key string) string {
		s, _ := values[key].(string)
		return s
	}
	t := Task{Type: str("type"), View: str("view"), DeviceID: str("device")}
	if t.Type == "" {
		return Task{}, fmt.Errorf("task without type")
	}
	return t, nil
}

type Producer struct {
	client *redis.Client
	stream string
}

func NewProducer(client *redis.Client, stream string) *Producer {
	return &Producer{client: client, stream: stream}
}

func (p *Producer) Enqueue(ctx context.Context, t Task) error {
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: 10000,
		Approx: true,
		Values: t.values(),
	}).Err()
}
