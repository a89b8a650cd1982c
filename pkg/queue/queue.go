package queue

import (
	"sort"
	"sync"
	"time"
)

// RetryRequest is a unit of work that failed and should be attempted again at RetryAt.
type RetryRequest[T any] struct {
	Key        string
	Payload    T
	RetryAt    time.Time
	RetryCount int
	MaxRetries int
	LastError  string
}

// Exhausted reports whether the request has used all its attempts.
func (r *RetryRequest[T]) Exhausted() bool {
	return r.MaxRetries > 0 && r.RetryCount >= r.MaxRetries
}

// Queue holds retry requests keyed by Key. Enqueueing a key that is already
// waiting replaces the earlier request.
type Queue[T any] struct {
	items map[string]*RetryRequest[T]
	mu    sync.Mutex
}

func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{
		items: make(map[string]*RetryRequest[T]),
	}
}

func (q *Queue[T]) Enqueue(req *RetryRequest[T]) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items[req.Key] = req
}

// Dequeue removes and returns the earliest request due at now, or nil.
func (q *Queue[T]) Dequeue(now time.Time) *RetryRequest[T] {
	q.mu.Lock()
	defer q.mu.Unlock()

	var next *RetryRequest[T]
	for _, req := range q.items {
		if req.RetryAt.After(now) {
			continue
		}
		if next == nil || req.RetryAt.Before(next.RetryAt) {
			next = req
		}
	}
	if next != nil {
		delete(q.items, next.Key)
	}
	return next
}

// DrainDue removes and returns every request due at now, earliest first.
func (q *Queue[T]) DrainDue(now time.Time) []*RetryRequest[T] {
	q.mu.Lock()
	defer q.mu.Unlock()

	var due []*RetryRequest[T]
	for key, req := range q.items {
		if !req.RetryAt.After(now) {
			due = append(due, req)
			delete(q.items, key)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].RetryAt.Before(due[j].RetryAt) })
	return due
}

func (q *Queue[T]) Remove(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.items[key]
	delete(q.items, key)
	return ok
}

func (q *Queue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// GetAll returns a snapshot of waiting requests ordered by RetryAt.
func (q *Queue[T]) GetAll() []RetryRequest[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	result := make([]RetryRequest[T], 0, len(q.items))
	for _, req := range q.items {
		result = append(result, *req)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].RetryAt.Before(result[j].RetryAt) })
	return result
}
