package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/qdice/pkg/dice"
)

// GlobalTopic carries table list updates for every client.
const GlobalTopic = "clients"

// TableTopic is the topic clients of one table subscribe to.
func TableTopic(tag string) string { return "tables/" + tag + "/clients" }

// TagOfTopic reverses TableTopic.
func TagOfTopic(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, "tables/")
	if !ok {
		return "", false
	}
	tag, ok := strings.CutSuffix(rest, "/clients")
	return tag, ok && tag != ""
}

// Publisher delivers outbound messages on a topic. Implemented by the
// WebSocket hub and the Redis pub/sub client.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// NoopPublisher drops every message.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, any) error { return nil }

// MultiPublisher fans a message out to several publishers. A failing
// publisher is logged and does not stop the others.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, topic string, payload any) error {
	for _, p := range m {
		if err := p.Publish(ctx, topic, payload); err != nil {
			log.Error().Err(err).Str("topic", topic).Msg("Publish failed")
		}
	}
	return nil
}

// topicOf routes an event to its table topic, or the global topic when it
// carries no table.
func topicOf(ev dice.Event) string {
	if ev.Table == "" {
		return GlobalTopic
	}
	return TableTopic(ev.Table)
}
