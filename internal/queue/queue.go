// Package queue implements the intrusive circular doubly-linked ring used to
// hold tasks in the ready set, the sleep set and per-task waiter sets.
//
// Elements carry their own links, so an element can be a member of at most
// one queue at a time. The queue imposes no ordering beyond insertion order.
package queue

import (
	"errors"
	"log/slog"

	"ppos/internal/logging"
)

var (
	ErrNilQueue      = errors.New("queue: nil queue")
	ErrNilElement    = errors.New("queue: nil element")
	ErrAlreadyLinked = errors.New("queue: element already in a queue")
	ErrNotFound      = errors.New("queue: element not in queue")
)

// Link holds the intrusive prev/next pointers of a queued element.
// Both are unset iff the element is not a member of any queue.
type Link[T any] struct {
	prev, next T
}

// Elem is implemented by pointer types that embed a Link to themselves.
type Elem[T any] interface {
	comparable
	Link() *Link[T]
}

// Next returns the element after this one in its ring.
func (l *Link[T]) Next() T { return l.next }

// Prev returns the element before this one in its ring.
func (l *Link[T]) Prev() T { return l.prev }

// Queue is a circular ring addressed by its head. The zero value is an empty
// queue ready to use.
type Queue[T Elem[T]] struct {
	head T
	log  *slog.Logger
}

// SetLogger enables trace records for append and remove.
func (q *Queue[T]) SetLogger(l *slog.Logger) { q.log = l }

// Linked reports whether elem is currently a member of some queue.
func Linked[T Elem[T]](elem T) bool {
	var zero T
	if elem == zero {
		return false
	}
	l := elem.Link()
	return l.prev != zero || l.next != zero
}

// Head returns the first element, or the zero value if the queue is empty.
func (q *Queue[T]) Head() T { return q.head }

// Empty reports whether the queue has no elements.
func (q *Queue[T]) Empty() bool {
	var zero T
	return q.head == zero
}

// Len walks the ring and returns the number of elements.
func (q *Queue[T]) Len() int {
	if q == nil || q.Empty() {
		return 0
	}

	n := 1
	for e := q.head.Link().next; e != q.head; e = e.Link().next {
		n++
	}
	return n
}

// Append inserts elem at the tail of the queue.
func (q *Queue[T]) Append(elem T) error {
	var zero T
	if q == nil {
		return ErrNilQueue
	}
	if elem == zero {
		return ErrNilElement
	}
	if Linked(elem) {
		return ErrAlreadyLinked
	}

	l := elem.Link()
	if q.Empty() {
		q.head = elem
		l.prev, l.next = elem, elem
	} else {
		tail := q.head.Link().prev
		l.prev, l.next = tail, q.head
		tail.Link().next = elem
		q.head.Link().prev = elem
	}

	if q.log != nil {
		logging.Trace(q.log, "queue append", "elem", elem, "len", q.Len())
	}
	return nil
}

// Remove unlinks elem from the queue and clears its links.
func (q *Queue[T]) Remove(elem T) error {
	var zero T
	if q == nil {
		return ErrNilQueue
	}
	if elem == zero {
		return ErrNilElement
	}
	if !q.Contains(elem) {
		return ErrNotFound
	}

	l := elem.Link()
	if l.next == elem {
		q.head = zero
	} else {
		l.prev.Link().next = l.next
		l.next.Link().prev = l.prev
		if q.head == elem {
			q.head = l.next
		}
	}
	l.prev, l.next = zero, zero

	if q.log != nil {
		logging.Trace(q.log, "queue remove", "elem", elem, "len", q.Len())
	}
	return nil
}

// Contains searches the ring for elem starting at the head.
func (q *Queue[T]) Contains(elem T) bool {
	if q == nil || q.Empty() {
		return false
	}

	e := q.head
	for {
		if e == elem {
			return true
		}
		e = e.Link().next
		if e == q.head {
			return false
		}
	}
}

// Each calls fn for every element in ring order until fn returns false.
// fn must not modify the queue; use Slice for that.
func (q *Queue[T]) Each(fn func(T) bool) {
	if q == nil || q.Empty() {
		return
	}

	e := q.head
	for {
		next := e.Link().next
		if !fn(e) {
			return
		}
		if next == q.head {
			return
		}
		e = next
	}
}

// Slice returns the elements in ring order.
func (q *Queue[T]) Slice() []T {
	out := make([]T, 0, q.Len())
	q.Each(func(e T) bool {
		out = append(out, e)
		return true
	})
	return out
}
