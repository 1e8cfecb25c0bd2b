package events

import "github.com/kelindar/event"

// SubscribeToChannel forwards events of type T into ch for consumers that
// select over a channel, such as the /api/events stream. The publisher never
// blocks: a full channel drops the event.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}
