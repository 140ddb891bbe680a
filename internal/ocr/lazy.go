package ocr

import "sync"

// Lazy builds a heavy collaborator on first use and caches the outcome,
// including a failed initialization.
type Lazy[T any] struct {
	once sync.Once
	init func() (T, error)
	val  T
	err  error
}

func NewLazy[T any](init func() (T, error)) *Lazy[T] {
	return &Lazy[T]{init: init}
}

// Ready wraps an already-built value.
func Ready[T any](v T) *Lazy[T] {
	return NewLazy(func() (T, error) { return v, nil })
}

func (l *Lazy[T]) Get() (T, error) {
	l.once.Do(func() {
		l.val, l.err = l.init()
	})
	return l.val, l.err
}
