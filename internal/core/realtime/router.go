package realtime

// Bindings maps each Event to an optional Handler.
type Bindings [eventCount]Handler

// Bound returns the events that have a handler, in declaration order.
func (b Bindings) Bound() []Event {
	var out []Event
	for e, h := range b {
		if h != nil {
			out = append(out, Event(e))
		}
	}
	return out
}

// bind registers a listener on sub for each bound event and returns the end
// of the registration chain. Unbound events are never passed to On.
// Deliveries are dropped once live reports false.
func (b Bindings) bind(sub Subscription, live func() bool) Subscription {
	for e, h := range b {
		if h == nil {
			continue
		}
		handler := h
		next := sub.On(Event(e), func(p Payload) {
			if !live() {
				return
			}
			handler(p)
		})
		if next != nil {
			sub = next
		}
	}
	return sub
}

// unbind stops listening for every bound event.
func (b Bindings) unbind(sub Subscription) {
	for _, e := range b.Bound() {
		if next := sub.StopListening(e); next != nil {
			sub = next
		}
	}
}
