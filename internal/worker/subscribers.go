package worker

// EventSubscriber attaches its handlers to the event dispatcher.
type EventSubscriber interface {
	RegisterHandlers()
}

// StartEventHandlers registers every subscriber. Nil entries are ignored.
func StartEventHandlers(subscribers ...EventSubscriber) {
	for _, s := range subscribers {
		if s == nil {
			continue
		}
		s.RegisterHandlers()
	}
}
