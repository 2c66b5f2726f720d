package domain

import (
	"context"
	"sync"

	"github.com/gammazero/deque"
)

// MessageQueue is the append-only output of the synchronization loops. Push never
// blocks; Pop hands messages out in arrival order.
type MessageQueue struct {
	queue  deque.Deque[*OrderBookMessage]
	mu     sync.Mutex
	notify chan struct{}
}

func NewMessageQueue() *MessageQueue {
	return &MessageQueue{
		queue:  deque.Deque[*OrderBookMessage]{},
		notify: make(chan struct{}, 1),
	}
}

func (q *MessageQueue) Push(msg *OrderBookMessage) {
	q.mu.Lock()
	q.queue.PushBack(msg)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Pop waits for the next message or for ctx to be done.
func (q *MessageQueue) Pop(ctx context.Context) (*OrderBookMessage, error) {
	for {
		q.mu.Lock()
		if q.queue.Len() > 0 {
			msg := q.queue.PopFront()
			q.mu.Unlock()
			return msg, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.notify:
		}
	}
}

func (q *MessageQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.queue.Len()
}
