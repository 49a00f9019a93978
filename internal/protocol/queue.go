package protocol

import (
	"sync"

	"github.com/wagiedev/agentsession-go/internal/message"
)

// Inbound is one item on the controller's outbound message stream: either a
// decoded non-control message or a per-frame error.
type Inbound struct {
	Message message.Message
	Err     error
}

// inboundQueue is an unbounded FIFO between the read loop and the consumer,
// so routing control responses never waits on a slow consumer.
type inboundQueue struct {
	mu     sync.Mutex
	items  []Inbound
	closed bool
	notify chan struct{}
}

func newInboundQueue() *inboundQueue {
	return &inboundQueue{notify: make(chan struct{}, 1)}
}

func (q *inboundQueue) push(item Inbound) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()

	q.signal()
}

// close marks the queue finished. Items already pushed are still delivered.
func (q *inboundQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.signal()
}

func (q *inboundQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// pump moves items to out in order until the queue is closed and drained, or
// stop is closed. It always closes out.
func (q *inboundQueue) pump(out chan<- Inbound, stop <-chan struct{}) {
	defer close(out)

	for {
		q.mu.Lock()

		if len(q.items) == 0 {
			closed := q.closed
			q.mu.Unlock()

			if closed {
				return
			}

			select {
			case <-q.notify:
				continue
			case <-stop:
				return
			}
		}

		item := q.items[0]
		q.items[0] = Inbound{}
		q.items = q.items[1:]
		q.mu.Unlock()

		select {
		case out <- item:
		case <-stop:
			return
		}
	}
}
