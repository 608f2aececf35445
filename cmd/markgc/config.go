package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/inhies/go-bytesize"
	"gopkg.in/yaml.v3"

	"github.com/joshuapare/markgc/gc"
	"github.com/joshuapare/markgc/gc/heap"
	"github.com/joshuapare/markgc/gc/stack"
)

// Config is the --config file layout. Size fields take plain byte counts or
// units ("256KB", "64MB").
type Config struct {
	Heap       HeapConfig   `yaml:"heap"`
	StackWords int          `yaml:"stack_words"`
	MaxRecords int          `yaml:"max_records"`
	Stress     StressConfig `yaml:"stress"`
}

// HeapConfig maps onto heap.Options.
type HeapConfig struct {
	ChunkSize string `yaml:"chunk_size"`
	MaxBytes  string `yaml:"max_bytes"`
	Classes   string `yaml:"classes"` // "words" or "coarse"
}

// StressConfig holds the stress command defaults; flags override them.
type StressConfig struct {
	Workers int    `yaml:"workers"`
	Objects int    `yaml:"objects"`
	Slots   int    `yaml:"slots"`
	Roots   int    `yaml:"roots"`
	Rounds  int    `yaml:"rounds"`
	Seed    uint64 `yaml:"seed"`
}

func defaultConfig() *Config {
	return &Config{
		StackWords: 4096,
		Stress: StressConfig{
			Workers: 4,
			Objects: 500,
			Slots:   4,
			Roots:   16,
			Rounds:  10,
			Seed:    1,
		},
	}
}

// loadConfig reads path over the defaults. An empty path returns the defaults.
func loadConfig(path string) (*Config, error) {
	c := defaultConfig()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return c, nil
}

func (c *Config) validate() error {
	if c.StackWords <= 0 {
		return fmt.Errorf("stack_words must be positive, got %d", c.StackWords)
	}
	if c.MaxRecords < 0 {
		return fmt.Errorf("max_records must not be negative, got %d", c.MaxRecords)
	}
	if _, err := c.heapOptions(); err != nil {
		return err
	}
	return nil
}

func (c *Config) heapOptions() (*heap.Options, error) {
	chunk, err := parseSize(c.Heap.ChunkSize)
	if err != nil {
		return nil, fmt.Errorf("heap.chunk_size: %w", err)
	}
	maxBytes, err := parseSize(c.Heap.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("heap.max_bytes: %w", err)
	}

	opts := &heap.Options{ChunkSize: chunk, MaxBytes: maxBytes}
	switch strings.ToLower(c.Heap.Classes) {
	case "", "words":
	case "coarse":
		classes := heap.ConfigCoarse
		opts.Classes = &classes
	default:
		return nil, fmt.Errorf("heap.classes: unknown preset %q", c.Heap.Classes)
	}
	return opts, nil
}

// parseSize accepts "", a plain byte count, or a size with a unit.
func parseSize(s string) (uintptr, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return toUintptr(n)
	}
	b, err := bytesize.Parse(s)
	if err != nil {
		return 0, fmt.Errorf("bad size %q: %w", s, err)
	}
	return toUintptr(uint64(b))
}

func toUintptr(n uint64) (uintptr, error) {
	if uint64(uintptr(n)) != n {
		return 0, fmt.Errorf("size %d does not fit in an address", n)
	}
	return uintptr(n), nil
}

// formatSize renders a byte count for human output.
func formatSize(n uintptr) string {
	return bytesize.ByteSize(n).String()
}

// newCollector builds an initialized collector rooted on a fresh shadow
// stack. The caller closes both.
func (c *Config) newCollector() (*gc.Collector, *stack.ShadowStack, error) {
	hopts, err := c.heapOptions()
	if err != nil {
		return nil, nil, err
	}
	ss, err := stack.NewShadowStack(c.StackWords)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create shadow stack: %w", err)
	}
	col, err := gc.New(&gc.Options{
		Heap:       hopts,
		MaxRecords: c.MaxRecords,
		Provider:   ss,
	})
	if err != nil {
		_ = ss.Close()
		return nil, nil, err
	}
	if err := col.Init(ss.Bottom()); err != nil {
		_ = col.Close()
		_ = ss.Close()
		return nil, nil, err
	}
	return col, ss, nil
}
