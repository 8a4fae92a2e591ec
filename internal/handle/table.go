// Package handle issues opaque integer tokens for values owned by a process,
// so that callers on the far side of a language boundary never see a raw
// pointer. Tokens carry a generation counter: once an entry is removed its
// token stops resolving, even after the slot is reused.
package handle

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

// ErrInvalid is returned for tokens that were never issued, have already been
// removed, or belong to another table.
var ErrInvalid = errors.New("handle: invalid token")

// Token identifies a live table entry. The zero Token is never issued, and
// issued tokens always fit in a positive int64.
type Token uint64

// maxGen keeps the top bit of every token clear.
const maxGen = math.MaxInt32

func newToken(gen uint32, index int) Token {
	return Token(uint64(gen)<<32 | uint64(index+1))
}

func (t Token) split() (gen uint32, index int, ok bool) {
	low := uint32(t)
	if low == 0 {
		return 0, 0, false
	}
	return uint32(t >> 32), int(low - 1), true
}

func (t Token) String() string {
	gen, index, ok := t.split()
	if !ok {
		return "handle(invalid)"
	}
	return fmt.Sprintf("handle(%d@%d)", index, gen)
}

type slot[T any] struct {
	gen   uint32
	used  bool
	value T
}

// Table is an arena of values addressed by generation-checked tokens. The zero
// value is ready to use and safe for concurrent access.
type Table[T any] struct {
	mu    sync.Mutex
	slots []slot[T]
	free  []int
	live  int
}

// Insert stores v and returns a fresh token for it.
func (t *Table[T]) Insert(v T) Token {
	t.mu.Lock()
	defer t.mu.Unlock()

	var index int
	if n := len(t.free); n > 0 {
		index = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		if len(t.slots) >= math.MaxUint32-1 {
			panic("handle: table exhausted")
		}
		t.slots = append(t.slots, slot[T]{})
		index = len(t.slots) - 1
	}

	s := &t.slots[index]
	s.gen++
	if s.gen == 0 || s.gen > maxGen {
		s.gen = 1
	}
	s.used = true
	s.value = v
	t.live++
	return newToken(s.gen, index)
}

// Get resolves tok without removing it.
func (t *Table[T]) Get(tok Token) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.lookupLocked(tok)
	if err != nil {
		var zero T
		return zero, err
	}
	return s.value, nil
}

// Remove resolves tok and invalidates it. A second Remove with the same token
// returns ErrInvalid.
func (t *Table[T]) Remove(tok Token) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var zero T
	s, err := t.lookupLocked(tok)
	if err != nil {
		return zero, err
	}
	v := s.value
	t.releaseLocked(tok)
	return v, nil
}

// Drain removes every live entry and returns the values in slot order.
func (t *Table[T]) Drain() []T {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]T, 0, t.live)
	for i := range t.slots {
		s := &t.slots[i]
		if !s.used {
			continue
		}
		out = append(out, s.value)
		t.releaseLocked(newToken(s.gen, i))
	}
	return out
}

// Len reports the number of live entries.
func (t *Table[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live
}

func (t *Table[T]) lookupLocked(tok Token) (*slot[T], error) {
	gen, index, ok := tok.split()
	if !ok || index >= len(t.slots) {
		return nil, fmt.Errorf("%w: %s", ErrInvalid, tok)
	}
	s := &t.slots[index]
	if !s.used || s.gen != gen {
		return nil, fmt.Errorf("%w: %s", ErrInvalid, tok)
	}
	return s, nil
}

func (t *Table[T]) releaseLocked(tok Token) {
	_, index, _ := tok.split()
	s := &t.slots[index]
	var zero T
	s.value = zero
	s.used = false
	t.free = append(t.free, index)
	t.live--
}
