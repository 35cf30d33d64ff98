package mock

import (
	"slices"
	"sync"
	"time"

	"github.com/kart-io/legalstudy/pkg/id"
)

// Message is one queued message.
type Message struct {
	ID         string    `json:"id"`
	Queue      string    `json:"queue"`
	Body       []byte    `json:"body"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Queue holds named FIFO queues.
type Queue struct {
	*Base

	mu        sync.Mutex
	queues    map[string][]Message
	published int64
	consumed  int64
}

var _ Service = (*Queue)(nil)

// NewQueue returns a broker with no queues.
func NewQueue(name string) *Queue {
	return &Queue{
		Base:   NewBase(name),
		queues: make(map[string][]Message),
	}
}

// Reset drops every queue and restores the toggles.
func (q *Queue) Reset() {
	q.Base.Reset()
	q.mu.Lock()
	q.queues = make(map[string][]Message)
	q.published, q.consumed = 0, 0
	q.mu.Unlock()
}

// Publish appends body to queue and returns the message id.
func (q *Queue) Publish(queue string, body []byte) (string, error) {
	if err := q.Guard("publish"); err != nil {
		return "", err
	}
	msg := Message{
		ID:         id.New(),
		Queue:      queue,
		Body:       slices.Clone(body),
		EnqueuedAt: time.Now(),
	}
	q.mu.Lock()
	q.queues[queue] = append(q.queues[queue], msg)
	q.published++
	q.mu.Unlock()
	return msg.ID, nil
}

// Consume removes and returns the oldest message of queue, or fails with
// ErrQueueEmpty.
func (q *Queue) Consume(queue string) (Message, error) {
	if err := q.Guard("consume"); err != nil {
		return Message{}, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	msgs := q.queues[queue]
	if len(msgs) == 0 {
		return Message{}, ErrQueueEmpty.WithMessagef("queue %q is empty", queue)
	}
	msg := msgs[0]
	q.queues[queue] = msgs[1:]
	q.consumed++
	return msg, nil
}

// Len returns the number of pending messages in queue.
func (q *Queue) Len(queue string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queues[queue])
}

// Purge drops every pending message of queue and returns how many there were.
func (q *Queue) Purge(queue string) (int, error) {
	if err := q.Guard("purge"); err != nil {
		return 0, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.queues[queue])
	delete(q.queues, queue)
	return n, nil
}

// Counters returns the published and consumed totals.
func (q *Queue) Counters() (published, consumed int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.published, q.consumed
}
