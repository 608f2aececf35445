// Package stack supplies the near end of the collector's root range.
//
// A Go goroutine stack can move and cannot be scanned from Go code, so
// mutators keep the addresses they want rooted on a ShadowStack: an
// off-heap, downward-growing array of words. Its Bottom is passed to
// Collector.Init and the ShadowStack itself is the Provider consulted by
// every collection.
package stack

import (
	"errors"
	"fmt"

	"github.com/joshuapare/markgc/internal/buf"
	"github.com/joshuapare/markgc/internal/osmem"
	"github.com/joshuapare/markgc/internal/scan"
)

var (
	// ErrOverflow indicates a push onto a full shadow stack.
	ErrOverflow = errors.New("stack: overflow")

	// ErrUnderflow indicates a pop from an empty shadow stack.
	ErrUnderflow = errors.New("stack: underflow")

	// ErrBadSlot indicates a slot that is not currently on the stack.
	ErrBadSlot = errors.New("stack: slot not in use")
)

// Provider reports the current top of the mutator's stack: the lowest
// address still in use. The root range is [StackTop(), bottom).
type Provider interface {
	StackTop() uintptr
}

// Fixed is a Provider that always reports the same address.
type Fixed uintptr

// StackTop implements Provider.
func (f Fixed) StackTop() uintptr { return uintptr(f) }

// Func adapts a function to a Provider.
type Func func() uintptr

// StackTop implements Provider.
func (f Func) StackTop() uintptr { return f() }

// Slot names one pushed word by its byte offset in the stack.
type Slot int

// ShadowStack is an explicit root stack in off-heap memory.
// Not thread-safe.
type ShadowStack struct {
	mem     []byte
	release func() error
	base    uintptr
	sp      int // offset of the top word; len(mem) when empty
}

// NewShadowStack maps a stack with room for words entries.
func NewShadowStack(words int) (*ShadowStack, error) {
	size, ok := buf.MulOverflowSafe(words, buf.WordSize)
	if !ok || size == 0 {
		return nil, fmt.Errorf("stack: invalid size %d words", words)
	}
	mem, release, err := osmem.Map(size)
	if err != nil {
		return nil, fmt.Errorf("stack: %w", err)
	}
	return &ShadowStack{
		mem:     mem,
		release: release,
		base:    scan.Addr(mem),
		sp:      len(mem),
	}, nil
}

// Bottom returns the high end of the stack, the exclusive end of the root range.
func (s *ShadowStack) Bottom() uintptr {
	return s.base + uintptr(len(s.mem))
}

// StackTop implements Provider.
func (s *ShadowStack) StackTop() uintptr {
	return s.base + uintptr(s.sp)
}

// Depth returns the number of words on the stack.
func (s *ShadowStack) Depth() int {
	return (len(s.mem) - s.sp) / buf.WordSize
}

// Push stores v on top of the stack and returns its slot.
func (s *ShadowStack) Push(v uintptr) (Slot, error) {
	if s.sp < buf.WordSize {
		return 0, fmt.Errorf("push at depth %d: %w", s.Depth(), ErrOverflow)
	}
	s.sp -= buf.WordSize
	buf.PutWord(s.mem, s.sp, v)
	return Slot(s.sp), nil
}

// Pop removes and returns the top word. The vacated word is zeroed.
func (s *ShadowStack) Pop() (uintptr, error) {
	if s.sp >= len(s.mem) {
		return 0, ErrUnderflow
	}
	v := buf.Word(s.mem, s.sp)
	buf.PutWord(s.mem, s.sp, 0)
	s.sp += buf.WordSize
	return v, nil
}

// PopN removes n words.
func (s *ShadowStack) PopN(n int) error {
	for range n {
		if _, err := s.Pop(); err != nil {
			return err
		}
	}
	return nil
}

// Set overwrites a live slot.
func (s *ShadowStack) Set(slot Slot, v uintptr) error {
	if !s.live(slot) {
		return fmt.Errorf("set slot %d: %w", slot, ErrBadSlot)
	}
	buf.PutWord(s.mem, int(slot), v)
	return nil
}

// Get reads a live slot.
func (s *ShadowStack) Get(slot Slot) (uintptr, error) {
	if !s.live(slot) {
		return 0, fmt.Errorf("get slot %d: %w", slot, ErrBadSlot)
	}
	return buf.Word(s.mem, int(slot)), nil
}

func (s *ShadowStack) live(slot Slot) bool {
	off := int(slot)
	return off >= s.sp && off+buf.WordSize <= len(s.mem) && off%buf.WordSize == 0
}

// Words returns the live words from top to bottom.
func (s *ShadowStack) Words() []uintptr {
	out := make([]uintptr, 0, s.Depth())
	for off := s.sp; off < len(s.mem); off += buf.WordSize {
		out = append(out, buf.Word(s.mem, off))
	}
	return out
}

// Close unmaps the stack. The stack must not be used afterwards.
func (s *ShadowStack) Close() error {
	if s.mem == nil {
		return nil
	}
	s.mem = nil
	s.sp = 0
	return s.release()
}
