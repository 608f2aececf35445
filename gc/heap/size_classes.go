package heap

import (
	"math"

	"github.com/joshuapare/markgc/internal/scan"
)

// SizeClassConfig defines the block size class strategy.
type SizeClassConfig struct {
	// Name for this configuration (for stats and benchmarking)
	Name string

	// Small block settings (linear increments)
	SmallMin       uintptr // Smallest block handed out
	SmallMax       uintptr // Max for linear increments
	SmallIncrement uintptr // Step between small classes; must be a multiple of the word size

	// Medium block settings (geometric growth)
	MediumMax    uintptr // Largest class; bigger requests get a dedicated mapping
	GrowthFactor float64 // Growth factor between medium classes
}

// Predefined configurations.
var (
	// ConfigWords: one class per word up to 512 bytes, then 1.5x up to 16KB.
	ConfigWords = SizeClassConfig{
		Name:           "Words",
		SmallMin:       2 * scan.WordSize,
		SmallMax:       512,
		SmallIncrement: scan.WordSize,
		MediumMax:      16384,
		GrowthFactor:   1.5,
	}

	// ConfigCoarse: fewer classes, more internal fragmentation.
	ConfigCoarse = SizeClassConfig{
		Name:           "Coarse",
		SmallMin:       2 * scan.WordSize,
		SmallMax:       512,
		SmallIncrement: 32,
		MediumMax:      16384,
		GrowthFactor:   2.0,
	}

	// DefaultConfig is used when Options.Classes is nil.
	DefaultConfig = ConfigWords
)

// sizeClassTable holds the computed block size of every class, ascending.
type sizeClassTable struct {
	config SizeClassConfig
	sizes  []uintptr
}

func newSizeClassTable(config SizeClassConfig) *sizeClassTable {
	table := &sizeClassTable{
		config: config,
		sizes:  make([]uintptr, 0, 96),
	}

	step := alignWord(config.SmallIncrement)
	if step == 0 {
		step = scan.WordSize
	}

	// Linear classes
	size := alignWord(config.SmallMin)
	if size == 0 {
		size = scan.WordSize
	}
	for ; size < config.SmallMax; size += step {
		table.sizes = append(table.sizes, size)
	}

	// Geometric classes
	if size < config.MediumMax {
		factor := config.GrowthFactor
		if factor <= 1 {
			factor = 2
		}
		for size < config.MediumMax {
			table.sizes = append(table.sizes, size)
			next := alignWord(uintptr(math.Ceil(float64(size) * factor)))
			if next <= size {
				next = size + scan.WordSize // Ensure progress
			}
			size = next
		}
	}
	if last := alignWord(config.MediumMax); len(table.sizes) == 0 || table.sizes[len(table.sizes)-1] < last {
		table.sizes = append(table.sizes, last)
	}
	return table
}

// classFor returns the smallest class whose blocks hold n bytes.
// Returns numClasses() when n needs a dedicated mapping.
func (t *sizeClassTable) classFor(n uintptr) int {
	lo, hi := 0, len(t.sizes)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if t.sizes[mid] < n {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

func (t *sizeClassTable) blockSize(class int) uintptr {
	return t.sizes[class]
}

func (t *sizeClassTable) numClasses() int {
	return len(t.sizes)
}

// String returns the configuration name.
func (t *sizeClassTable) String() string {
	return t.config.Name
}

func alignWord(n uintptr) uintptr {
	return scan.AlignUp(n)
}
