package stream

import "github.com/roach88/rqe/internal/ir"

// Collector records every event of a stream. Delivery is synchronous, so
// after the producer returns the collector holds everything sent so far.
type Collector struct {
	events []Event
}

// Collect attaches a Collector to s.
func Collect(s *Stream) *Collector {
	c := &Collector{}
	_ = s.SendTo(func(evt Event) error {
		c.events = append(c.events, evt)
		return nil
	})
	return c
}

// Events returns all events received so far.
func (c *Collector) Events() []Event { return c.events }

// Items returns the items of all item events, in order.
func (c *Collector) Items() []ir.IRObject {
	var out []ir.IRObject
	for _, evt := range c.events {
		if evt.Type == TypeItem {
			out = append(out, evt.Item)
		}
	}
	return out
}

// Types returns the event types in order.
func (c *Collector) Types() []EventType {
	out := make([]EventType, len(c.events))
	for i, evt := range c.events {
		out[i] = evt.Type
	}
	return out
}

// Finished reports whether a terminal event was received.
func (c *Collector) Finished() bool {
	n := len(c.events)
	return n > 0 && c.events[n-1].Type.Terminal()
}

// Err returns the ErrorDetails of a fail event, or nil.
func (c *Collector) Err() *ErrorDetails {
	for _, evt := range c.events {
		if evt.Type == TypeFail {
			return evt.Error
		}
	}
	return nil
}
