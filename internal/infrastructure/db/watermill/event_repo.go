package watermilldb

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/hongbao-labs/packetd/internal/core/domain"
	log "github.com/sirupsen/logrus"
)

type subscriber struct {
	topic   string
	handler func(events []domain.Event)
}

// eventRepository runs the event log over a watermill in-process pub/sub.
// The full per-packet history is kept in memory and replayed to handlers on
// every save, so consumers always observe a consistent ordered stream.
type eventRepository struct {
	pubsub *gochannel.GoChannel

	lock        *sync.Mutex
	history     map[string]map[string][]domain.Event // topic -> stream id -> events
	subscribers map[string][]subscriber              // topic -> subscribers
	consuming   map[string]struct{}                  // topics with a running consumer

	ctx    context.Context
	cancel context.CancelFunc
}

func NewEventRepository(config ...interface{}) (domain.EventRepository, error) {
	if len(config) != 0 {
		return nil, fmt.Errorf("invalid config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &eventRepository{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 64},
			watermill.NopLogger{},
		),
		lock:        &sync.Mutex{},
		history:     make(map[string]map[string][]domain.Event),
		subscribers: make(map[string][]subscriber),
		consuming:   make(map[string]struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

func (e *eventRepository) Save(
	ctx context.Context, topic string, id string, events []domain.Event,
) error {
	e.lock.Lock()
	if _, ok := e.history[topic]; !ok {
		e.history[topic] = make(map[string][]domain.Event)
	}
	e.history[topic][id] = append(e.history[topic][id], events...)
	e.lock.Unlock()

	return e.pubsub.Publish(topic, toWatermillMessages(id, events)...)
}

func (e *eventRepository) RegisterEventsHandler(
	topic string, handler func(events []domain.Event),
) {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.subscribers[topic] = append(e.subscribers[topic], subscriber{
		topic:   topic,
		handler: handler,
	})

	if _, ok := e.consuming[topic]; !ok {
		if err := e.consume(topic); err != nil {
			log.WithError(err).Errorf("failed to start consumer for topic %s", topic)
			return
		}
		e.consuming[topic] = struct{}{}
	}
}

func (e *eventRepository) ClearRegisteredHandlers(topics ...string) {
	e.lock.Lock()
	defer e.lock.Unlock()

	if len(topics) == 0 {
		e.subscribers = make(map[string][]subscriber)
		return
	}

	for _, topic := range topics {
		delete(e.subscribers, topic)
	}
}

func (e *eventRepository) Close() {
	e.cancel()
	// nolint:errcheck
	e.pubsub.Close()
}

// consume dispatches the stream history to every handler of the topic each
// time a new message lands, mirroring an event-store replay.
func (e *eventRepository) consume(topic string) error {
	messages, err := e.pubsub.Subscribe(e.ctx, topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			id := msg.Metadata.Get("stream_id")

			e.lock.Lock()
			events := e.history[topic][id]
			handlers := make([]subscriber, len(e.subscribers[topic]))
			copy(handlers, e.subscribers[topic])
			e.lock.Unlock()

			if len(events) > 0 {
				for _, subscriber := range handlers {
					go subscriber.handler(events)
				}
			}
			msg.Ack()
		}
	}()
	return nil
}

func toWatermillMessages(id string, events []domain.Event) []*message.Message {
	watermillMessages := make([]*message.Message, 0, len(events))
	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}

		msg := message.NewMessage(watermill.NewUUID(), payload)
		msg.Metadata.Set("stream_id", id)
		msg.Metadata.Set("event_type", string(event.GetType()))
		watermillMessages = append(watermillMessages, msg)
	}
	return watermillMessages
}
