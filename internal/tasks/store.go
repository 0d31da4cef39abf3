package tasks

import (
	"sort"
	"sync"
	"time"
)

// Store holds the per-file task state and the active poll timers keyed by
// backend task id. All mutation goes through its methods.
type Store struct {
	mu     sync.Mutex
	tasks  map[string]*FileTask
	timers map[string]func()
	now    func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		tasks:  make(map[string]*FileTask),
		timers: make(map[string]func()),
		now:    time.Now,
	}
}

// Upsert merges opts into the entry for key, creating an idle entry first
// when none exists.
func (s *Store) Upsert(key string, opts ...Option) FileTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[key]
	if !ok {
		t = &FileTask{Key: key, Status: StatusIdle}
		s.tasks[key] = t
	}
	for _, opt := range opts {
		opt(t)
	}
	t.UpdatedAt = s.now()
	return *t
}

// apply merges opts only while the entry for key still belongs to taskID and
// has not reached a terminal status. It reports whether anything changed.
func (s *Store) apply(key, taskID string, opts ...Option) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[key]
	if !ok || t.TaskID != taskID || t.Status.IsTerminal() {
		return false
	}
	for _, opt := range opts {
		opt(t)
	}
	t.UpdatedAt = s.now()
	return true
}

// begin marks key as uploading with any previous attempt cleared, stopping
// that attempt's timer. It refuses while an upload for key is in flight.
func (s *Store) begin(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[key]
	if !ok {
		t = &FileTask{Key: key}
		s.tasks[key] = t
	}
	if t.Status == StatusUploading {
		return false
	}
	if t.TaskID != "" {
		s.stopTimerLocked(t.TaskID)
	}
	t.Status = StatusUploading
	t.TaskID = ""
	t.AudioURL = ""
	t.ErrorMessage = ""
	t.UpdatedAt = s.now()
	return true
}

// Remove deletes the entry for key, stopping the timer bound to its task
// first. Removing a missing key does nothing.
func (s *Store) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[key]
	if !ok {
		return
	}
	if t.TaskID != "" {
		s.stopTimerLocked(t.TaskID)
	}
	delete(s.tasks, key)
}

// Get returns a copy of the entry for key.
func (s *Store) Get(key string) (FileTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[key]
	if !ok {
		return FileTask{}, false
	}
	return *t, true
}

// Snapshot returns copies of all entries ordered by key.
func (s *Store) Snapshot() []FileTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]FileTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Len returns the number of tracked files.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// setTimer registers stop as the timer for taskID. A timer already registered
// for the same task is stopped so that at most one exists per task.
func (s *Store) setTimer(taskID string, stop func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopTimerLocked(taskID)
	s.timers[taskID] = stop
}

// stopTimer stops and forgets the timer for taskID. Safe to call repeatedly.
func (s *Store) stopTimer(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked(taskID)
}

func (s *Store) stopTimerLocked(taskID string) {
	stop, ok := s.timers[taskID]
	if !ok {
		return
	}
	delete(s.timers, taskID)
	stop()
}

// stopAll stops every registered timer.
func (s *Store) stopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.timers {
		s.stopTimerLocked(id)
	}
}

// ActiveTimers returns the task ids that currently have a poll timer.
func (s *Store) ActiveTimers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.timers))
	for id := range s.timers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasTimer reports whether taskID has an active poll timer.
func (s *Store) HasTimer(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[taskID]
	return ok
}
