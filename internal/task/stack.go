package task

import (
	"log/slog"
	"sync"

	humanize "github.com/dustin/go-humanize"
)

// DefaultStackSize mirrors the stack size of the classic ucontext runtime.
// The goroutine behind a context grows on demand; the size is advisory and
// reported to the ledger.
const DefaultStackSize = 64 * 1024

// StackLedger is told about every stack record when it is allocated and
// released. Register may refuse an allocation.
type StackLedger interface {
	Register(id ID, size int) (handle int, err error)
	Deregister(handle int)
}

type stack struct {
	size     int
	handle   int
	ledger   StackLedger
	released bool
}

func allocStack(id ID, opts StackOptions) (*stack, error) {
	size := opts.Size
	if size <= 0 {
		size = DefaultStackSize
	}

	st := &stack{size: size, ledger: opts.Ledger}
	if st.ledger != nil {
		h, err := st.ledger.Register(id, size)
		if err != nil {
			return nil, err
		}
		st.handle = h
	}
	return st, nil
}

func (s *stack) release() {
	if s.released {
		return
	}
	s.released = true
	if s.ledger != nil {
		s.ledger.Deregister(s.handle)
	}
}

// Ledger is the default StackLedger. It tracks live stack records and can cap
// how many exist at once.
type Ledger struct {
	mu     sync.Mutex
	limit  int
	next   int
	live   map[int]ledgerEntry
	logger *slog.Logger
}

type ledgerEntry struct {
	id   ID
	size int
}

// NewLedger creates a ledger. limit <= 0 means unlimited.
func NewLedger(limit int, logger *slog.Logger) *Ledger {
	return &Ledger{
		limit:  limit,
		live:   make(map[int]ledgerEntry),
		logger: logger.With("component", "stack"),
	}
}

// Register records a new stack for task id.
func (l *Ledger) Register(id ID, size int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.limit > 0 && len(l.live) >= l.limit {
		l.logger.Warn("stack limit reached", "task", id, "limit", l.limit)
		return 0, ErrStackExhausted
	}

	l.next++
	l.live[l.next] = ledgerEntry{id: id, size: size}
	l.logger.Debug("stack registered", "task", id, "handle", l.next, "size", humanize.IBytes(uint64(size)))
	return l.next, nil
}

// Deregister drops a stack record. Unknown handles are ignored.
func (l *Ledger) Deregister(handle int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.live[handle]
	if !ok {
		l.logger.Warn("deregister of unknown stack", "handle", handle)
		return
	}
	delete(l.live, handle)
	l.logger.Debug("stack deregistered", "task", e.id, "handle", handle)
}

// Live returns the number of stacks currently registered.
func (l *Ledger) Live() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.live)
}

// LiveBytes returns the total advisory size of live stacks.
func (l *Ledger) LiveBytes() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	var n uint64
	for _, e := range l.live {
		n += uint64(e.size)
	}
	return n
}
