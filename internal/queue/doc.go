// Package queue provides the bounded, priority-aware submission queue that
// feeds discovered PDFs to the task tracker.
//
// Files enqueued with priority (picked by the user) are handed out before
// files found by the folder watcher. Within a priority class the order is
// FIFO. A file that is already waiting is not queued twice.
package queue
