package sweep

import (
	"errors"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/markgc/gc/heap"
	"github.com/joshuapare/markgc/gc/registry"
)

type fixture struct {
	t         *testing.T
	heap      *heap.Heap
	reg       *registry.Registry
	finalized map[uintptr]int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	h := heap.New(nil)
	t.Cleanup(func() { _ = h.Close() })
	reg := registry.New(0)
	reg.Init(0)
	return &fixture{t: t, heap: h, reg: reg, finalized: make(map[uintptr]int)}
}

func (f *fixture) alloc(size uintptr, alive bool) uintptr {
	f.t.Helper()
	addr, err := f.heap.Acquire(size)
	require.NoError(f.t, err)
	_, err = f.reg.Insert(registry.Record{
		Addr:  addr,
		Size:  size,
		Alive: alive,
		Finalizer: func(p unsafe.Pointer, sz uintptr) {
			assert.Equal(f.t, size, sz)
			assert.True(f.t, f.heap.Owns(uintptr(p)), "finalizer must run before release")
			f.finalized[uintptr(p)]++
		},
	})
	require.NoError(f.t, err)
	return addr
}

func TestReset_ClearsAllMarks(t *testing.T) {
	f := newFixture(t)
	for range 4 {
		f.alloc(16, true)
	}

	Reset(f.reg)

	f.reg.Each(func(_ registry.Index, rec *registry.Record) bool {
		assert.False(t, rec.Alive)
		return true
	})
}

func TestRun_ReclaimsUnmarkedOnly(t *testing.T) {
	f := newFixture(t)
	live1 := f.alloc(16, true)
	dead1 := f.alloc(32, false)
	live2 := f.alloc(16, true)
	dead2 := f.alloc(48, false)

	st, err := Run(f.reg, f.heap)
	require.NoError(t, err)

	assert.Equal(t, Stats{Visited: 4, Survivors: 2, Reclaimed: 2, ReclaimedBytes: 80, Finalized: 2}, st)
	assert.Equal(t, map[uintptr]int{dead1: 1, dead2: 1}, f.finalized)
	assert.False(t, f.heap.Owns(dead1))
	assert.False(t, f.heap.Owns(dead2))
	assert.True(t, f.heap.Owns(live1))
	assert.True(t, f.heap.Owns(live2))
	assert.Equal(t, 2, f.reg.Len())

	_, ok := f.reg.Find(dead1)
	assert.False(t, ok, "reclaimed record must be unlinked")
}

func TestRun_NilFinalizer(t *testing.T) {
	f := newFixture(t)
	addr, err := f.heap.Acquire(16)
	require.NoError(t, err)
	_, err = f.reg.Insert(registry.Record{Addr: addr, Size: 16})
	require.NoError(t, err)

	st, err := Run(f.reg, f.heap)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Reclaimed)
	assert.Zero(t, st.Finalized)
	assert.Zero(t, f.reg.Len())
}

func TestRun_ReclaimEverything(t *testing.T) {
	f := newFixture(t)
	for range 10 {
		f.alloc(24, false)
	}

	st, err := Run(f.reg, f.heap)
	require.NoError(t, err)
	assert.Equal(t, 10, st.Reclaimed)
	assert.Equal(t, registry.None, f.reg.Head())
	assert.Zero(t, f.heap.Stats().LiveBlocks)
}

func TestRun_SurvivorsUntouched(t *testing.T) {
	f := newFixture(t)
	addr := f.alloc(16, true)
	before := *f.reg.Get(f.reg.Head())

	_, err := Run(f.reg, f.heap)
	require.NoError(t, err)

	i, ok := f.reg.Find(addr)
	require.True(t, ok)
	after := f.reg.Get(i)
	assert.Equal(t, before.Addr, after.Addr)
	assert.Equal(t, before.Size, after.Size)
	assert.True(t, after.Alive, "sweep does not reset marks")
	assert.Empty(t, f.finalized)
}

// TestRun_FinalizerReservesRecords checks that records reserved from inside
// a finalizer are not visited by the running sweep.
func TestRun_FinalizerReservesRecords(t *testing.T) {
	f := newFixture(t)
	var reserved []registry.Index
	for range 3 {
		addr, err := f.heap.Acquire(16)
		require.NoError(t, err)
		_, err = f.reg.Insert(registry.Record{
			Addr: addr,
			Size: 16,
			Finalizer: func(unsafe.Pointer, uintptr) {
				a, err := f.heap.Acquire(16)
				require.NoError(t, err)
				i, err := f.reg.Reserve(registry.Record{Addr: a, Size: 16})
				require.NoError(t, err)
				reserved = append(reserved, i)
			},
		})
		require.NoError(t, err)
	}

	st, err := Run(f.reg, f.heap)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Visited)
	assert.Equal(t, 3, st.Reclaimed)
	require.Len(t, reserved, 3)
	for _, i := range reserved {
		rec := f.reg.Get(i)
		require.NotNil(t, rec)
		assert.True(t, f.heap.Owns(rec.Addr), "reserved block must survive the sweep")
	}
	assert.Zero(t, f.reg.Len())
	assert.Equal(t, 3, f.reg.Occupied())
}

type failingReleaser struct{ err error }

func (r failingReleaser) Release(uintptr) error { return r.err }

func TestRun_ReleaseErrorsJoined(t *testing.T) {
	f := newFixture(t)
	f.alloc(16, false)
	f.alloc(16, false)
	relErr := errors.New("release failed")

	st, err := Run(f.reg, failingReleaser{err: relErr})
	require.ErrorIs(t, err, relErr)
	assert.Equal(t, 2, st.Reclaimed)
	assert.Zero(t, f.reg.Len(), "records are unlinked even when release fails")
	assert.Len(t, f.finalized, 2)
}
