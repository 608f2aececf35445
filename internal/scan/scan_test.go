package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/markgc/internal/osmem"
)

func mapped(t *testing.T, size int) []byte {
	t.Helper()
	data, cleanup, err := osmem.Map(size)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cleanup() })
	return data
}

func TestWordsVisitsEveryAlignedWord(t *testing.T) {
	mem := mapped(t, osmem.PageSize())
	base := Addr(mem)
	for i := uintptr(0); i < 4; i++ {
		Store(base+i*WordSize, 100+i)
	}

	var got []uintptr
	n := Words(base, base+4*WordSize, func(w uintptr) { got = append(got, w) })

	assert.Equal(t, 4, n)
	assert.Equal(t, []uintptr{100, 101, 102, 103}, got)
}

func TestWordsSkipsTrailingPartialWord(t *testing.T) {
	mem := mapped(t, osmem.PageSize())
	base := Addr(mem)

	n := Words(base, base+2*WordSize+WordSize/2, func(uintptr) {})
	assert.Equal(t, 2, n)
}

func TestWordsEmptyAndInvertedRanges(t *testing.T) {
	mem := mapped(t, osmem.PageSize())
	base := Addr(mem)

	assert.Zero(t, Words(base, base, func(uintptr) { t.Fatal("visited empty range") }))
	assert.Zero(t, Words(base+WordSize, base, func(uintptr) { t.Fatal("visited inverted range") }))
}

func TestWordsAlignsStart(t *testing.T) {
	mem := mapped(t, osmem.PageSize())
	base := Addr(mem)
	Store(base+WordSize, 7)

	var got []uintptr
	Words(base+1, base+2*WordSize, func(w uintptr) { got = append(got, w) })
	assert.Equal(t, []uintptr{7}, got)
}

func TestWordsDebugPanicsOnUnalignedStart(t *testing.T) {
	mem := mapped(t, osmem.PageSize())
	base := Addr(mem)

	Debug = true
	defer func() { Debug = false }()

	assert.Panics(t, func() { Words(base+1, base+WordSize*2, func(uintptr) {}) })
}

func TestClearAndBytes(t *testing.T) {
	mem := mapped(t, osmem.PageSize())
	base := Addr(mem)
	for i := range 32 {
		mem[i] = 0xff
	}

	Clear(base, 16)
	assert.Equal(t, make([]byte, 16), mem[:16])
	assert.Equal(t, byte(0xff), mem[16])

	assert.Nil(t, Bytes(base, 0))
	assert.Len(t, Bytes(base, 24), 24)
}

func TestAddrAndPointer(t *testing.T) {
	mem := mapped(t, osmem.PageSize())
	base := Addr(mem)
	require.NotZero(t, base)
	assert.Equal(t, base, uintptr(Pointer(base)))
	assert.Zero(t, Addr(nil))
}
