package stack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/markgc/internal/scan"
)

func newTestStack(t *testing.T, words int) *ShadowStack {
	t.Helper()
	s, err := NewShadowStack(words)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestShadowStack_Empty(t *testing.T) {
	s := newTestStack(t, 16)

	assert.Equal(t, s.Bottom(), s.StackTop(), "empty stack has an empty root range")
	assert.Zero(t, s.Depth())
	assert.Zero(t, s.Bottom()%scan.WordSize)

	_, err := s.Pop()
	require.ErrorIs(t, err, ErrUnderflow)
}

func TestShadowStack_PushGrowsDown(t *testing.T) {
	s := newTestStack(t, 16)
	bottom := s.Bottom()

	_, err := s.Push(0xaaaa)
	require.NoError(t, err)
	_, err = s.Push(0xbbbb)
	require.NoError(t, err)

	assert.Equal(t, bottom-2*scan.WordSize, s.StackTop())
	assert.Equal(t, 2, s.Depth())
	assert.Equal(t, []uintptr{0xbbbb, 0xaaaa}, s.Words())

	// The words are readable at their real addresses.
	assert.Equal(t, uintptr(0xbbbb), scan.Load(s.StackTop()))
	assert.Equal(t, uintptr(0xaaaa), scan.Load(s.StackTop()+scan.WordSize))
}

func TestShadowStack_PopZeroes(t *testing.T) {
	s := newTestStack(t, 4)
	_, err := s.Push(0x1234)
	require.NoError(t, err)
	top := s.StackTop()

	v, err := s.Pop()
	require.NoError(t, err)
	assert.Equal(t, uintptr(0x1234), v)
	assert.Zero(t, scan.Load(top), "popped word must not linger")
	assert.Equal(t, s.Bottom(), s.StackTop())
}

func TestShadowStack_Overflow(t *testing.T) {
	s := newTestStack(t, 2)
	_, err := s.Push(1)
	require.NoError(t, err)
	_, err = s.Push(2)
	require.NoError(t, err)

	_, err = s.Push(3)
	require.ErrorIs(t, err, ErrOverflow)
	assert.Equal(t, 2, s.Depth())
}

func TestShadowStack_SetAndGet(t *testing.T) {
	s := newTestStack(t, 8)
	slot, err := s.Push(1)
	require.NoError(t, err)
	_, err = s.Push(2)
	require.NoError(t, err)

	require.NoError(t, s.Set(slot, 42))
	v, err := s.Get(slot)
	require.NoError(t, err)
	assert.Equal(t, uintptr(42), v)

	require.NoError(t, s.PopN(2))
	require.ErrorIs(t, s.Set(slot, 1), ErrBadSlot, "popped slot is no longer live")
	_, err = s.Get(slot)
	require.ErrorIs(t, err, ErrBadSlot)
	require.ErrorIs(t, s.PopN(1), ErrUnderflow)
}

func TestShadowStack_InvalidSize(t *testing.T) {
	_, err := NewShadowStack(0)
	require.Error(t, err)
	_, err = NewShadowStack(-1)
	require.Error(t, err)
}

func TestProviders(t *testing.T) {
	assert.Equal(t, uintptr(0x8000), Fixed(0x8000).StackTop())

	calls := 0
	p := Func(func() uintptr { calls++; return 0x9000 })
	assert.Equal(t, uintptr(0x9000), p.StackTop())
	assert.Equal(t, 1, calls)

	var _ Provider = (*ShadowStack)(nil)
}
