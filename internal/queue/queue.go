package queue

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrQueueClosed   = errors.New("queue is closed")
	ErrQueueFull     = errors.New("queue is full")
	ErrAlreadyQueued = errors.New("a scheduled run is already queued")
)

type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// Request asks the worker to perform one scraping run.
type Request struct {
	ID        string    `json:"id"`
	Trigger   Trigger   `json:"trigger"`
	Priority  int       `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRequest builds a request; manual runs jump ahead of scheduled ones.
func NewRequest(trigger Trigger) *Request {
	priority := 0
	if trigger == TriggerManual {
		priority = 10
	}
	return &Request{
		ID:        uuid.New().String(),
		Trigger:   trigger,
		Priority:  priority,
		CreatedAt: time.Now(),
	}
}

type Queue interface {
	Push(req *Request) error
	Pop(ctx context.Context) (*Request, error)
	Size() int
	Close() error
}

// InMemoryQueue is a bounded priority queue of run requests. At most one
// scheduled request waits at a time; further ones are coalesced.
type InMemoryQueue struct {
	mu       sync.Mutex
	requests []*Request
	maxSize  int
	notify   chan struct{}
	done     chan struct{}
	closed   bool
}

func NewInMemoryQueue(maxSize int) *InMemoryQueue {
	return &InMemoryQueue{
		maxSize: maxSize,
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (q *InMemoryQueue) Push(req *Request) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if q.maxSize > 0 && len(q.requests) >= q.maxSize {
		return ErrQueueFull
	}
	if req.Trigger == TriggerScheduled {
		for _, pending := range q.requests {
			if pending.Trigger == TriggerScheduled {
				return ErrAlreadyQueued
			}
		}
	}

	q.requests = append(q.requests, req)
	q.sortByPriority()
	q.signal()

	return nil
}

// Pop blocks until a request is available, the queue is closed and drained,
// or ctx is done.
func (q *InMemoryQueue) Pop(ctx context.Context) (*Request, error) {
	for {
		q.mu.Lock()
		if len(q.requests) > 0 {
			req := q.requests[0]
			q.requests = q.requests[1:]
			if len(q.requests) > 0 {
				q.signal()
			}
			q.mu.Unlock()
			return req, nil
		}
		if q.closed {
			q.mu.Unlock()
			return nil, ErrQueueClosed
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.notify:
		case <-q.done:
		}
	}
}

func (q *InMemoryQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.requests)
}

func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.done)
	}
	return nil
}

func (q *InMemoryQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// sortByPriority orders by descending priority, FIFO within a priority.
func (q *InMemoryQueue) sortByPriority() {
	sort.SliceStable(q.requests, func(i, j int) bool {
		return q.requests[i].Priority > q.requests[j].Priority
	})
}
