package queue

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dgnsrekt/narrate/internal/tasks"
)

var (
	// ErrQueueFull is returned when the queue is at capacity.
	ErrQueueFull = errors.New("queue is full")

	// ErrQueueClosed is returned when operations are attempted on a closed queue.
	ErrQueueClosed = errors.New("queue is closed")
)

// Stats tracks queue activity.
type Stats struct {
	TotalEnqueued  int64
	TotalDequeued  int64
	TotalDropped   int64
	TotalDuplicate int64
	PriorityCount  int64
	CurrentSize    int
	PeakSize       int
	LastEnqueue    time.Time
	LastDequeue    time.Time
}

// SubmitQueue hands files to submission workers.
type SubmitQueue struct {
	mu      sync.Mutex
	items   itemHeap
	waiting map[string]struct{}
	maxSize int
	seq     uint64
	closed  bool
	stats   Stats

	// ready holds a token while items are available.
	ready chan struct{}
}

// New creates a queue holding at most maxSize files. A non-positive maxSize
// means unbounded.
func New(maxSize int) *SubmitQueue {
	q := &SubmitQueue{
		waiting: make(map[string]struct{}),
		maxSize: maxSize,
		ready:   make(chan struct{}, 1),
	}
	heap.Init(&q.items)
	return q
}

// Enqueue adds f. It reports false when f is already waiting.
func (q *SubmitQueue) Enqueue(f tasks.File, priority bool) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false, ErrQueueClosed
	}
	key := f.Key()
	if _, ok := q.waiting[key]; ok {
		q.stats.TotalDuplicate++
		return false, nil
	}
	if q.maxSize > 0 && q.items.Len() >= q.maxSize {
		q.stats.TotalDropped++
		return false, ErrQueueFull
	}

	q.seq++
	heap.Push(&q.items, &queueItem{file: f, priority: priority, seq: q.seq})
	q.waiting[key] = struct{}{}

	q.stats.TotalEnqueued++
	if priority {
		q.stats.PriorityCount++
	}
	q.stats.LastEnqueue = time.Now()
	q.stats.CurrentSize = q.items.Len()
	if q.stats.CurrentSize > q.stats.PeakSize {
		q.stats.PeakSize = q.stats.CurrentSize
	}

	q.signal()
	return true, nil
}

// Dequeue blocks until a file is available, the queue is closed, or ctx ends.
func (q *SubmitQueue) Dequeue(ctx context.Context) (tasks.File, error) {
	for {
		q.mu.Lock()
		if q.items.Len() > 0 {
			item := heap.Pop(&q.items).(*queueItem)
			delete(q.waiting, item.file.Key())
			q.stats.TotalDequeued++
			q.stats.LastDequeue = time.Now()
			q.stats.CurrentSize = q.items.Len()
			if q.items.Len() > 0 {
				q.signal()
			}
			q.mu.Unlock()
			return item.file, nil
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return tasks.File{}, ErrQueueClosed
		}

		select {
		case <-ctx.Done():
			return tasks.File{}, ctx.Err()
		case <-q.ready:
		}
	}
}

// Remove drops a waiting file. It reports whether the file was queued.
func (q *SubmitQueue) Remove(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.waiting[key]; !ok {
		return false
	}
	for i, item := range q.items {
		if item.file.Key() == key {
			heap.Remove(&q.items, i)
			break
		}
	}
	delete(q.waiting, key)
	q.stats.CurrentSize = q.items.Len()
	return true
}

// Len returns the number of waiting files.
func (q *SubmitQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Stats returns a copy of the queue statistics.
func (q *SubmitQueue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.stats
	s.CurrentSize = q.items.Len()
	return s
}

// Close stops the queue. Waiting files are still handed out; once drained,
// Dequeue returns ErrQueueClosed.
func (q *SubmitQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ready)
}

// signal must be called with mu held.
func (q *SubmitQueue) signal() {
	if q.closed {
		return
	}
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

type queueItem struct {
	file     tasks.File
	priority bool
	seq      uint64
	index    int
}

type itemHeap []*queueItem

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *itemHeap) Push(x any) {
	item := x.(*queueItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}
