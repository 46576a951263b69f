package stream

import (
	"errors"
	"iter"

	"github.com/roach88/rqe/internal/ir"
)

// Receiver consumes events. Returning ErrBackpressureStop (or any other
// error) closes the stream and is reported back to the producer.
type Receiver func(Event) error

// Stream is a push-based, single-consumer event stream.
//
// Events put before a receiver is attached are kept in a FIFO backlog and
// flushed by SendTo. After a done or fail event the stream is closed and
// further Puts return ErrClosed.
type Stream struct {
	backlog  []Event
	receiver Receiver
	closed   bool
	onClose  []func()
}

// New creates an open stream with no receiver.
func New() *Stream {
	return &Stream{backlog: make([]Event, 0, 8)}
}

// Put sends an event. It returns ErrClosed if the stream is already
// closed and the receiver's error if the receiver rejected the event.
func (s *Stream) Put(evt Event) error {
	if s.closed {
		return ErrClosed
	}
	if evt.Type.Terminal() {
		s.closed = true
	}

	if s.receiver == nil {
		s.backlog = append(s.backlog, evt)
		// Terminal event waits in the backlog; close hooks fire on flush.
		return nil
	}

	err := s.receiver(evt)
	if err != nil && !s.closed {
		s.closed = true
	}
	if s.closed {
		s.fireClose()
	}
	return err
}

// Item sends an item event.
func (s *Stream) Item(item ir.IRObject) error { return s.Put(Item(item)) }

// Done sends a done event and closes the stream.
func (s *Stream) Done() error { return s.Put(Done()) }

// Fail sends a fail event and closes the stream.
func (s *Stream) Fail(details *ErrorDetails) error { return s.Put(Fail(details)) }

// FailErr sends a fail event built from err.
func (s *Stream) FailErr(err error) error { return s.Put(Fail(ToErrorDetails(err))) }

// Restart sends a restart event.
func (s *Stream) Restart() error { return s.Put(Restart()) }

// SendTo attaches the receiver and flushes any backlog into it.
func (s *Stream) SendTo(r Receiver) error {
	if s.receiver != nil {
		return ErrAlreadyReceiving
	}
	s.receiver = r

	backlog := s.backlog
	s.backlog = nil
	for _, evt := range backlog {
		if err := r(evt); err != nil {
			s.closed = true
			s.fireClose()
			if errors.Is(err, ErrBackpressureStop) {
				return nil
			}
			return err
		}
	}
	if s.closed {
		s.fireClose()
	}
	return nil
}

// Close closes the stream without sending a terminal event. Buffered
// events are kept for a late receiver.
func (s *Stream) Close() {
	if s.closed {
		return
	}
	s.closed = true
	if s.receiver != nil {
		s.fireClose()
	}
}

// IsClosed reports whether the stream accepts no more events.
func (s *Stream) IsClosed() bool { return s.closed }

// OnClose registers fn to run once when the stream closes with a receiver
// attached.
func (s *Stream) OnClose(fn func()) {
	s.onClose = append(s.onClose, fn)
}

func (s *Stream) fireClose() {
	hooks := s.onClose
	s.onClose = nil
	for _, fn := range hooks {
		fn()
	}
}

// Map returns a stream that receives src's events transformed by fn.
// When fn returns false the event is dropped. Terminal events are passed
// through fn as well, so fn must keep their type. If the returned stream
// is closed by its consumer, src sees ErrBackpressureStop.
func Map(src *Stream, fn func(Event) (Event, bool)) *Stream {
	dst := New()
	_ = src.SendTo(func(evt Event) error {
		mapped, ok := fn(evt)
		if !ok {
			return nil
		}
		if err := dst.Put(mapped); err != nil {
			return ErrBackpressureStop
		}
		return nil
	})
	return dst
}

// MapItems applies fn to every item event.
func MapItems(src *Stream, fn func(ir.IRObject) ir.IRObject) *Stream {
	return Map(src, func(evt Event) (Event, bool) {
		if evt.Type == TypeItem {
			evt.Item = fn(evt.Item)
		}
		return evt, true
	})
}

// Pipe forwards every event of src into dst.
func Pipe(src, dst *Stream) error {
	return src.SendTo(func(evt Event) error {
		if err := dst.Put(evt); err != nil {
			return ErrBackpressureStop
		}
		return nil
	})
}

// FromItems returns a stream holding the items followed by done.
func FromItems(items ...ir.IRObject) *Stream {
	s := New()
	for _, item := range items {
		_ = s.Item(item)
	}
	_ = s.Done()
	return s
}

// FromSeq drains seq into a new stream followed by done.
func FromSeq(seq iter.Seq[ir.IRObject]) *Stream {
	s := New()
	for item := range seq {
		if err := s.Item(item); err != nil {
			return s
		}
	}
	_ = s.Done()
	return s
}

// Failed returns a stream holding a single fail event.
func Failed(details *ErrorDetails) *Stream {
	s := New()
	_ = s.Fail(details)
	return s
}
