// Package history keeps a linear undo/redo log of immutable snapshots.
package history

// Log is an ordered list of snapshots with a cursor marking the live one.
// The log always holds at least one snapshot. Snapshots are stored as given,
// so T should be a value that is never mutated after it is pushed.
type Log[T any] struct {
	snapshots []T
	cursor    int
	limit     int
}

type Option func(*config)

type config struct {
	limit int
}

// WithLimit caps the number of retained snapshots; the oldest are dropped
// first. Zero or a negative value keeps every snapshot.
func WithLimit(n int) Option {
	return func(c *config) {
		c.limit = n
	}
}

// New starts a log holding only initial.
func New[T any](initial T, opts ...Option) *Log[T] {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.limit < 0 {
		cfg.limit = 0
	}
	return &Log[T]{
		snapshots: []T{initial},
		limit:     cfg.limit,
	}
}

// Push discards every snapshot after the cursor, appends s and moves the
// cursor onto it.
func (l *Log[T]) Push(s T) {
	l.snapshots = append(l.snapshots[:l.cursor+1], s)
	l.cursor = len(l.snapshots) - 1
	if l.limit > 0 && len(l.snapshots) > l.limit {
		drop := len(l.snapshots) - l.limit
		l.snapshots = append([]T(nil), l.snapshots[drop:]...)
		l.cursor -= drop
	}
}

// Undo steps the cursor back and returns the snapshot it lands on. At the
// oldest snapshot it reports false and does nothing.
func (l *Log[T]) Undo() (T, bool) {
	if !l.CanUndo() {
		var zero T
		return zero, false
	}
	l.cursor--
	return l.snapshots[l.cursor], true
}

// Redo steps the cursor forward. At the newest snapshot it reports false and
// does nothing.
func (l *Log[T]) Redo() (T, bool) {
	if !l.CanRedo() {
		var zero T
		return zero, false
	}
	l.cursor++
	return l.snapshots[l.cursor], true
}

func (l *Log[T]) Current() T {
	return l.snapshots[l.cursor]
}

func (l *Log[T]) CanUndo() bool {
	return l.cursor > 0
}

func (l *Log[T]) CanRedo() bool {
	return l.cursor < len(l.snapshots)-1
}

func (l *Log[T]) Cursor() int {
	return l.cursor
}

func (l *Log[T]) Len() int {
	return len(l.snapshots)
}

// Reset replaces the whole log with a single snapshot.
func (l *Log[T]) Reset(initial T) {
	l.snapshots = []T{initial}
	l.cursor = 0
}

// Snapshots returns a copy of the retained snapshots, oldest first.
func (l *Log[T]) Snapshots() []T {
	out := make([]T, len(l.snapshots))
	copy(out, l.snapshots)
	return out
}
