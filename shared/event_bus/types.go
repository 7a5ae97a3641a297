package event_bus

import "github.com/nvidia-isaac/mission-dispatch/shared/data_structures"

// An event type whose last subscriber unsubscribes keeps its (empty)
// subscriber set in the EventBus. Publishing to an event with no subscribers
// is a no-op.
type EventBus_t struct {
	subscriptions *data_structures.SafeMap[string, *data_structures.SafeSet[Subscriber]]                    // event type -> subscribers
	handlers      *data_structures.SafeMap[Subscriber, *data_structures.SafeMap[string, SubscriberHandler]] // subscriber -> event type -> handler
}

type Subscriber struct {
	ID string // This makes the struct comparable (functions are ignored for comparison)
	// Note: HandleEvent function is stored separately to avoid comparison issues
}

// SubscriberHandler is the callback a subscriber registers for one event type
type SubscriberHandler func(event Event)

type Event interface {
	GetType() string
	GetData() interface{}
}

// DefaultPtrEvent is an Event backed by a pointer, for larger data where a
// copy on GetData would be wasteful.
type DefaultPtrEvent struct {
	Type string
	Data *interface{}
}

// DefaultEvent is an Event backed by a value, for small data.
type DefaultEvent struct {
	Type string
	Data interface{}
}
