// Package events implements the transport between test producers and the
// aggregator: an ordered, unbounded, multiple-producer single-consumer channel
// of events tagged with the producer that sent them.
package events

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/emirpasic/gods/queues/linkedlistqueue"

	"github.com/ethereum-optimism/infra/op-scripttest/types"
)

// ErrChannelClosed is returned by every send once the receiver is gone.
var ErrChannelClosed = errors.New("test channel closed")

// Envelope is an event together with the producer that sent it.
type Envelope struct {
	ProducerID int
	Event      types.Event
}

type channel struct {
	mu       sync.Mutex
	queue    *linkedlistqueue.Queue
	senders  int
	rxClosed bool
	notify   chan struct{}
}

// producer is shared by all sender handles with the same id.
type producer struct {
	id     int
	output bytes.Buffer
}

// NewChannel creates a channel with one sender handle (producer 0).
func NewChannel() (*Sender, *Receiver) {
	ch := &channel{
		queue:   linkedlistqueue.New(),
		senders: 1,
		notify:  make(chan struct{}, 1),
	}
	return &Sender{ch: ch, producer: &producer{}}, &Receiver{ch: ch}
}

func (c *channel) wake() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// must hold c.mu
func (c *channel) flushLocked(p *producer) {
	if p.output.Len() == 0 {
		return
	}
	data := bytes.Clone(p.output.Bytes())
	p.output.Reset()
	c.queue.Enqueue(Envelope{ProducerID: p.id, Event: types.OutputEvent{Data: data}})
}

// Sender is a handle producers use to send events. It is safe for concurrent use.
// The channel stays open while at least one handle has not been closed.
type Sender struct {
	ch       *channel
	producer *producer

	closeOnce sync.Once
	closed    bool
}

// ID returns the producer id of this handle.
func (s *Sender) ID() int {
	return s.producer.id
}

// Send enqueues e. If e requires stdio sync, output buffered by this producer
// is delivered first as an OutputEvent.
func (s *Sender) Send(e types.Event) error {
	s.ch.mu.Lock()
	defer s.ch.mu.Unlock()

	if s.closed {
		return fmt.Errorf("send %s on closed sender: %w", e.Kind(), ErrChannelClosed)
	}
	if s.ch.rxClosed {
		return ErrChannelClosed
	}
	if types.RequiresStdioSync(e) {
		s.ch.flushLocked(s.producer)
	}
	s.ch.queue.Enqueue(Envelope{ProducerID: s.producer.id, Event: e})
	s.ch.wake()
	return nil
}

// Clone returns a new handle for the same producer. Cloning a closed handle
// yields a closed handle.
func (s *Sender) Clone() *Sender {
	return s.clone(s.producer)
}

// Producer returns a new handle for a distinct producer id. Like Clone, it
// yields a closed handle when s is closed.
func (s *Sender) Producer(id int) *Sender {
	return s.clone(&producer{id: id})
}

func (s *Sender) clone(p *producer) *Sender {
	s.ch.mu.Lock()
	defer s.ch.mu.Unlock()
	h := &Sender{ch: s.ch, producer: p}
	if s.closed {
		h.closed = true
		h.closeOnce.Do(func() {})
		return h
	}
	s.ch.senders++
	return h
}

// Close releases the handle. Buffered output is delivered before the handle
// goes away. Closing twice is a no-op.
func (s *Sender) Close() {
	s.closeOnce.Do(func() {
		s.ch.mu.Lock()
		defer s.ch.mu.Unlock()
		if !s.ch.rxClosed {
			s.ch.flushLocked(s.producer)
		}
		s.closed = true
		s.ch.senders--
		s.ch.wake()
	})
}

// Output returns a writer for free-form script output. Writes are buffered
// until the next event that requires stdio sync.
func (s *Sender) Output() io.Writer {
	return outputWriter{s}
}

type outputWriter struct {
	s *Sender
}

func (w outputWriter) Write(p []byte) (int, error) {
	ch := w.s.ch
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.rxClosed || w.s.closed {
		return 0, ErrChannelClosed
	}
	return w.s.producer.output.Write(p)
}

// Receiver is the single consuming end of the channel.
type Receiver struct {
	ch *channel
}

// Recv returns the next envelope. ok is false once every sender handle is
// closed and the queue is drained. An error is returned only when ctx is done.
func (r *Receiver) Recv(ctx context.Context) (Envelope, bool, error) {
	for {
		r.ch.mu.Lock()
		if v, ok := r.ch.queue.Dequeue(); ok {
			r.ch.mu.Unlock()
			return v.(Envelope), true, nil
		}
		done := r.ch.senders == 0
		r.ch.mu.Unlock()
		if done {
			return Envelope{}, false, nil
		}

		select {
		case <-r.ch.notify:
		case <-ctx.Done():
			return Envelope{}, false, ctx.Err()
		}
	}
}

// Close marks the consumer as gone. Pending events are discarded and every
// later send fails with ErrChannelClosed.
func (r *Receiver) Close() {
	r.ch.mu.Lock()
	defer r.ch.mu.Unlock()
	r.ch.rxClosed = true
	r.ch.queue.Clear()
}
