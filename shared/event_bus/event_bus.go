package event_bus

import "github.com/nvidia-isaac/mission-dispatch/shared/data_structures"

func NewEventBus() EventBus {
	return &EventBus_t{
		subscriptions: data_structures.NewSafeMap[string, *data_structures.SafeSet[Subscriber]](),
		handlers:      data_structures.NewSafeMap[Subscriber, *data_structures.SafeMap[string, SubscriberHandler]](),
	}
}

func (eb *EventBus_t) Subscribe(eventType string, subscriber *Subscriber, handler SubscriberHandler) *Subscriber {
	if subscriber == nil {
		subscriber = NewSubscriber()
	}

	// Store the handler function under this subscriber's (eventType -> handler) map,
	// so one subscriber can hold distinct handlers for distinct event types.
	byType := eb.handlers.GetOrDefault(*subscriber, data_structures.NewSafeMap[string, SubscriberHandler]())
	byType.Set(eventType, handler)
	eb.handlers.Set(*subscriber, byType)

	// Add subscriber to the set for this event type.
	set := eb.subscriptions.GetOrDefault(eventType, data_structures.NewSafeSet[Subscriber]())
	set.Add(*subscriber)
	eb.subscriptions.Set(eventType, set)
	return subscriber
}

func (eb *EventBus_t) Unsubscribe(eventType string, subscriber *Subscriber) {
	if subscriber == nil {
		return
	}

	// Remove subscriber from the event type's set.
	if set, ok := eb.subscriptions.Get(eventType); ok {
		set.Remove(*subscriber)
	}

	// Remove only this event type's handler; the subscriber may still be
	// registered for other event types.
	if byType, ok := eb.handlers.Get(*subscriber); ok {
		byType.Delete(eventType)
	}
}

func (eb *EventBus_t) Publish(event Event) {
	if event == nil {
		return
	}

	eventType := event.GetType()
	if set, ok := eb.subscriptions.Get(eventType); ok {
		for sub := range set.Iterate() {
			if byType, ok := eb.handlers.Get(sub); ok {
				if handler, ok := byType.Get(eventType); ok {
					go handler(event)
				}
			}
		}
	}
}

func (eb *EventBus_t) PublishData(eventType string, data interface{}) {
	eb.Publish(NewDefaultEvent(eventType, data))
}
