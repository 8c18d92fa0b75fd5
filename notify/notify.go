// Package notify batches relationship change notifications.
//
// Every mutation of the graph enqueues the (identifier, field) pairs it
// touched. Pairs are deduplicated until the batch is flushed, either
// synchronously when the outermost mutation returns or later through a
// host provided Scheduler.
package notify

import (
	"slices"

	"github.com/syssam/relgraph/identity"
)

// Notifier receives change notifications.
type Notifier interface {
	NotifyChange(id *identity.Identifier, field string)
}

// NotifierFunc is an adapter to allow the use of ordinary functions as Notifier.
type NotifierFunc func(id *identity.Identifier, field string)

// NotifyChange calls f(id, field).
func (f NotifierFunc) NotifyChange(id *identity.Identifier, field string) {
	f(id, field)
}

// Scheduler runs a flush after the current unit of work.
type Scheduler interface {
	Schedule(fn func())
}

// SchedulerFunc is an adapter to allow the use of ordinary functions as Scheduler.
type SchedulerFunc func(fn func())

// Schedule calls f(fn).
func (f SchedulerFunc) Schedule(fn func()) {
	f(fn)
}

// Queue is a Scheduler that defers work until Drain is called. Hosts call
// Drain at the end of each tick of their own loop.
type Queue struct {
	tasks []func()
}

// Schedule appends fn to the queue.
func (q *Queue) Schedule(fn func()) {
	q.tasks = append(q.tasks, fn)
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int { return len(q.tasks) }

// Drain runs queued tasks, including tasks scheduled while draining, until
// the queue is empty.
func (q *Queue) Drain() {
	for len(q.tasks) > 0 {
		fn := q.tasks[0]
		q.tasks = q.tasks[1:]
		fn()
	}
	q.tasks = nil
}

// Option configures a Batcher.
type Option func(*Batcher)

// WithScheduler defers flushes to s. Without a scheduler, a batch is
// flushed as soon as it is released.
func WithScheduler(s Scheduler) Option {
	return func(b *Batcher) {
		b.scheduler = s
	}
}

type fields struct {
	keys []string
	set  map[string]struct{}
}

// Batcher coalesces change notifications. A Batcher is owned by a single
// graph and is not safe for concurrent use.
type Batcher struct {
	notifier  Notifier
	scheduler Scheduler

	pending map[*identity.Identifier]*fields
	order   []*identity.Identifier
	holds   int
	// willFlush is set while a flush is scheduled and not yet run.
	willFlush bool
}

// NewBatcher returns a batcher delivering to n. A nil n discards notifications.
func NewBatcher(n Notifier, opts ...Option) *Batcher {
	b := &Batcher{
		notifier: n,
		pending:  make(map[*identity.Identifier]*fields),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Enqueue records a change of field on id. Repeated changes of the same
// pair are delivered once.
func (b *Batcher) Enqueue(id *identity.Identifier, field string) {
	f, ok := b.pending[id]
	if !ok {
		f = &fields{set: make(map[string]struct{})}
		b.pending[id] = f
		b.order = append(b.order, id)
	}
	if _, ok := f.set[field]; !ok {
		f.set[field] = struct{}{}
		f.keys = append(f.keys, field)
	}
	if b.holds == 0 {
		b.schedule()
	}
}

// Hold delays flushing until the matching Release. Holds nest.
func (b *Batcher) Hold() {
	b.holds++
}

// Release ends a Hold. Releasing the outermost hold schedules a flush of
// everything enqueued meanwhile.
func (b *Batcher) Release() {
	if b.holds == 0 {
		return
	}
	b.holds--
	if b.holds == 0 && len(b.order) > 0 {
		b.schedule()
	}
}

func (b *Batcher) schedule() {
	if b.willFlush {
		return
	}
	b.willFlush = true
	if b.scheduler == nil {
		b.Flush()
		return
	}
	b.scheduler.Schedule(b.Flush)
}

// Flush delivers every pending notification in first-enqueue order.
// The pending set is cleared before the first callback runs, so a callback
// that mutates the graph starts a new batch. Flush does nothing while a
// hold is active; the final Release schedules it again.
func (b *Batcher) Flush() {
	b.willFlush = false
	if b.holds > 0 || len(b.order) == 0 {
		return
	}
	pending, order := b.pending, b.order
	b.pending = make(map[*identity.Identifier]*fields)
	b.order = nil
	if b.notifier == nil {
		return
	}
	for _, id := range order {
		for _, field := range pending[id].keys {
			b.notifier.NotifyChange(id, field)
		}
	}
}

// Disconnect drops pending notifications for id. It is called when the
// resource is removed and nobody is left to receive them.
func (b *Batcher) Disconnect(id *identity.Identifier) {
	if _, ok := b.pending[id]; !ok {
		return
	}
	delete(b.pending, id)
	b.order = slices.DeleteFunc(b.order, func(x *identity.Identifier) bool { return x == id })
}

// Pending returns the number of pending (identifier, field) pairs.
func (b *Batcher) Pending() int {
	n := 0
	for _, f := range b.pending {
		n += len(f.keys)
	}
	return n
}
