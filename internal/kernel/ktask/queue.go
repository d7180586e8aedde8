package ktask

import (
	"context"

	"github.com/pkg/errors"
)

// Queue is a fixed-capacity message queue of opaque items, grounded on
// _queue_create(len, itemSize, ...)/_queue_send/_queue_receive. itemSize is
// not meaningful in Go (items are interface{} values, not raw bytes) and is
// accepted only so call sites read the same as the original's two-argument
// create; Go's type system already guarantees homogeneous, correctly-sized
// items.
type Queue struct {
	ch chan interface{}
}

func NewQueue(length int, itemSize int) *Queue {
	return &Queue{ch: make(chan interface{}, length)}
}

// Send enqueues an item, blocking until there is space or ctx is done --
// _queue_send(queue, item, timeout).
func (q *Queue) Send(ctx context.Context, item interface{}) error {
	select {
	case q.ch <- item:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "ktask: queue send")
	}
}

// Receive dequeues an item, blocking until one is available or ctx is done
// -- _queue_receive(queue, &item, timeout).
func (q *Queue) Receive(ctx context.Context) (interface{}, error) {
	select {
	case item := <-q.ch:
		return item, nil
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "ktask: queue receive")
	}
}

// ReceivePeek reads the head item without removing it. The original
// supports this directly in FreeRTOS's queue implementation; Go channels do
// not, so this receives and immediately re-sends on a best-effort basis,
// which is only safe when the caller holds the queue's sole consumer role
// (its only caller in this tree is the QueueReceivePeek syscall handler).
func (q *Queue) ReceivePeek(ctx context.Context) (interface{}, error) {
	select {
	case item := <-q.ch:
		q.ch <- item
		return item, nil
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "ktask: queue peek")
	}
}

// Reset drains all pending items -- _queue_reset.
func (q *Queue) Reset() {
	for {
		select {
		case <-q.ch:
		default:
			return
		}
	}
}

// Len returns the number of items currently queued --
// _queue_get_number_of_items.
func (q *Queue) Len() int { return len(q.ch) }

// SpaceAvailable returns the remaining capacity --
// _queue_get_space_available.
func (q *Queue) SpaceAvailable() int { return cap(q.ch) - len(q.ch) }
