package service

import (
	"sync"
)

type queueEntry struct {
	cmd           *CommandData
	executing     bool
	nextAttemptAt int64
}

// CommandQueue is the owned arena of pending commands, keyed by the
// dedup tuple with the dequeue order of CommandData.Compare layered on
// top. All access goes through the single internal lock.
type CommandQueue struct {
	mu      sync.Mutex
	entries map[CommandKey]*queueEntry
}

func NewCommandQueue() *CommandQueue {
	return &CommandQueue{entries: make(map[CommandKey]*queueEntry)}
}

// Add enqueues the command unless queue-equal work is already present.
// The existing in-flight entry wins: the duplicate is discarded and
// false returned so the caller can watch the original instead.
func (q *CommandQueue) Add(cmd *CommandData) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	key := cmd.Key()
	if _, ok := q.entries[key]; ok {
		return false
	}
	q.entries[key] = &queueEntry{cmd: cmd}
	return true
}

// Poll dequeues the next eligible command per the total order:
// foreground first, then priority, then creation id. Entries backing
// off until a later time and entries already executing are skipped.
// The returned command stays in the queue, marked executing, until
// Done or Requeue.
func (q *CommandQueue) Poll(now int64) *CommandData {
	q.mu.Lock()
	defer q.mu.Unlock()
	var best *queueEntry
	for _, entry := range q.entries {
		if entry.executing || entry.nextAttemptAt > now {
			continue
		}
		if best == nil || entry.cmd.Compare(best.cmd) < 0 {
			best = entry
		}
	}
	if best == nil {
		return nil
	}
	best.executing = true
	return best.cmd
}

// Done removes a finished command, terminal or succeeded.
func (q *CommandQueue) Done(cmd *CommandData) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.entries, cmd.Key())
}

// Requeue returns a retryable command to PENDING, eligible again at
// nextAttemptAt.
func (q *CommandQueue) Requeue(cmd *CommandData, nextAttemptAt int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	entry, ok := q.entries[cmd.Key()]
	if !ok {
		entry = &queueEntry{cmd: cmd}
		q.entries[cmd.Key()] = entry
	}
	entry.executing = false
	entry.nextAttemptAt = nextAttemptAt
}

func (q *CommandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Contains reports whether queue-equal work is present.
func (q *CommandQueue) Contains(cmd *CommandData) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.entries[cmd.Key()]
	return ok
}

// Snapshot returns the queued commands for persistence, in no
// particular order.
func (q *CommandQueue) Snapshot() []*CommandData {
	q.mu.Lock()
	defer q.mu.Unlock()
	commands := make([]*CommandData, 0, len(q.entries))
	for _, entry := range q.entries {
		commands = append(commands, entry.cmd)
	}
	return commands
}
