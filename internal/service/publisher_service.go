package service

import (
	"encoding/json"
	"time"

	"ai-animator-be/pkg/store"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// SessionUpdatesTopic carries every session state change; the stream hub
// subscribes and fans messages out to per-session observers.
const SessionUpdatesTopic = "SESSION_UPDATES"

type IPublisherService interface {
	PublishUpdate(eventType string, snapshot *store.Session)
}

type publisherService struct {
	topicName string
	pubSub    *gochannel.GoChannel
}

func NewPublisherService(topicName string, pubSub *gochannel.GoChannel) IPublisherService {
	return &publisherService{
		topicName: topicName,
		pubSub:    pubSub,
	}
}

// PublishUpdate emits one ordered update event. Best effort: a failed publish
// never disturbs the generation or render path, observers just miss a delta.
func (ps *publisherService) PublishUpdate(eventType string, snapshot *store.Session) {
	if snapshot == nil {
		return
	}
	event := store.UpdateEvent{
		Type:      eventType,
		SessionID: snapshot.ID,
		Snapshot:  snapshot,
		Timestamp: time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	_ = ps.pubSub.Publish(ps.topicName, message.NewMessage(watermill.NewUUID(), payload))
}
