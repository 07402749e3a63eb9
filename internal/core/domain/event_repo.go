package domain

import "context"

type EventRepository interface {
	// Save appends events to the topic's ordered log and dispatches them to
	// the registered handlers. id scopes the dispatch to one packet history.
	Save(ctx context.Context, topic string, id string, events []Event) error
	RegisterEventsHandler(topic string, handler func(events []Event))
	ClearRegisteredHandlers(topics ...string)
	Close()
}
