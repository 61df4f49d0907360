// Package scheduler implements minilang's cooperative preemption hook: a
// per-context counter the VM decrements at well-known suspension points,
// swapping the current continuation out to a scheduler-supplied queue when
// it hits zero.
package scheduler

import (
	"sync"

	"github.com/google/uuid"

	"github.com/minilang/ml/values"
)

// DefaultQuantum is the default number of preemption-point opcodes a task
// runs before being swapped out, chosen generously so single-task scripts
// never observe a swap.
const DefaultQuantum = 10000

// Runner is anything that can be resumed with a seed value: in practice a
// *vm.Frame, but kept abstract here so package scheduler has no dependency
// on package vm (the frame's scheduler pointer would otherwise be an
// import cycle).
type Runner interface {
	Resume(value *values.Value) error
}

// Task pairs a resumable continuation with the value to resume it with. ID
// is assigned once, at Enqueue time, so a task keeps a stable identity as
// it travels through a Queue and (for WorkStealingQueue) possibly across
// threads - useful for tracing and debug output, with no shared counter
// state to coordinate.
type Task struct {
	ID     uuid.UUID
	Runner Runner
	Value  *values.Value
}

// Queue is the pluggable swap-out destination an outer driver picks tasks
// back up from. Single-threaded embeddings use the
// trivial InlineQueue; multi-threaded embeddings install a WorkStealing
// queue instead.
type Queue interface {
	Push(Task)
	Pop() (Task, bool)
}

// InlineQueue is a plain FIFO drained synchronously by the same goroutine
// that enqueued it.
type InlineQueue struct {
	mu    sync.Mutex
	tasks []Task
}

func (q *InlineQueue) Push(t Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, t)
}

func (q *InlineQueue) Pop() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return Task{}, false
	}
	t := q.tasks[0]
	q.tasks = q.tasks[1:]
	return t, true
}

// WorkStealingQueue is a minimal multi-producer/multi-consumer queue for
// threaded embeddings: one VM goroutine per OS thread, each draining this
// shared queue. It is a plain mutex-guarded deque rather than a lock-free
// structure; the per-thread VMs only need to share a queue, not a
// particular stealing algorithm.
type WorkStealingQueue struct {
	mu    sync.Mutex
	tasks []Task
}

func (q *WorkStealingQueue) Push(t Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, t)
}

// Pop takes from the back (LIFO for the owning thread's own pushes, gives
// better locality). A thread taking from another's backlog uses Steal,
// which takes from the front.
func (q *WorkStealingQueue) Pop() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return Task{}, false
	}
	last := len(q.tasks) - 1
	t := q.tasks[last]
	q.tasks = q.tasks[:last]
	return t, true
}

// Steal takes from the front of another thread's queue.
func (q *WorkStealingQueue) Steal() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return Task{}, false
	}
	t := q.tasks[0]
	q.tasks = q.tasks[1:]
	return t, true
}

// Scheduler owns one context's preemption counter and swap-out queue. It
// is safe for concurrent Tick calls only in the sense that the counter
// itself is guarded; the VM loop using a given Scheduler is still expected
// to be single-owner.
type Scheduler struct {
	mu      sync.Mutex
	quantum int
	counter int
	queue   Queue
}

// New creates a Scheduler with the given quantum and queue. A nil queue
// defaults to an InlineQueue.
func New(quantum int, q Queue) *Scheduler {
	if quantum <= 0 {
		quantum = DefaultQuantum
	}
	if q == nil {
		q = &InlineQueue{}
	}
	return &Scheduler{quantum: quantum, counter: quantum, queue: q}
}

// Tick decrements the preemption counter, resetting and returning true
// when it is exhausted, at which point the VM enqueues the current
// continuation and returns.
func (s *Scheduler) Tick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter--
	if s.counter <= 0 {
		s.counter = s.quantum
		return true
	}
	return false
}

// Enqueue pushes a swapped-out continuation onto the scheduler's queue,
// assigning it a fresh task ID, and returns that ID.
func (s *Scheduler) Enqueue(r Runner, v *values.Value) uuid.UUID {
	id := uuid.New()
	s.queue.Push(Task{ID: id, Runner: r, Value: v})
	return id
}

// Drain resumes every queued task in turn until the queue is empty,
// stopping early and returning the first error a resumed task raises. This
// is the outer driver for the common single-threaded, inline-queue case.
func (s *Scheduler) Drain() error {
	for {
		t, ok := s.queue.Pop()
		if !ok {
			return nil
		}
		if err := t.Runner.Resume(t.Value); err != nil {
			return err
		}
	}
}

// SetQueue installs q as the scheduler's swap-out destination, e.g. a
// WorkStealingQueue shared by several per-thread Schedulers.
func (s *Scheduler) SetQueue(q Queue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = q
}
