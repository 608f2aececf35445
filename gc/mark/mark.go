// Package mark implements the conservative mark phase.
//
// Every word-aligned word in the root range is treated as a candidate
// address. A candidate that falls in [start, start+size] of a record that is
// not yet marked marks that record, and the record's own bytes are then
// scanned the same way. Nothing checks that a candidate really is a pointer,
// so stale bit patterns can keep blocks alive (false retention); a reachable
// block is never missed.
//
// Discovered records are kept on an explicit worklist instead of recursing,
// so deep or adversarial graphs do not grow the goroutine stack. The set of
// marked records is the same as with depth-first recursion: a record is
// marked the first time any scanned word points into it and is scanned
// exactly once per cycle.
package mark

import (
	"github.com/joshuapare/markgc/gc/registry"
	"github.com/joshuapare/markgc/internal/scan"
)

// Stats describes one mark phase.
type Stats struct {
	RootWords    int  // Words read from the root range
	HeapWords    int  // Words read from marked blocks
	Marked       int  // Records marked reachable
	Probes       int  // Candidate-versus-record containment tests
	MaxWorklist  int  // Largest worklist length seen
	EmptyRootSet bool // Root range was empty or inverted
}

// Marker holds the state of one mark phase.
type Marker struct {
	reg   *registry.Registry
	work  []registry.Index
	stats Stats
}

// New returns a marker over reg.
func New(reg *registry.Registry) *Marker {
	return &Marker{reg: reg}
}

// Run marks every record reachable from [top, bottom). Alive flags must have
// been reset beforehand; records already marked are neither re-marked nor
// rescanned.
func Run(reg *registry.Registry, top, bottom uintptr) Stats {
	m := New(reg)
	m.Roots(top, bottom)
	m.Drain()
	return m.stats
}

// Roots scans the root range and queues every record it reaches.
func (m *Marker) Roots(top, bottom uintptr) {
	if top >= bottom {
		m.stats.EmptyRootSet = true
		return
	}
	m.stats.RootWords += scan.Words(top, bottom, m.visit)
}

// Drain scans queued records until the worklist is empty.
func (m *Marker) Drain() {
	for len(m.work) > 0 {
		i := m.work[len(m.work)-1]
		m.work = m.work[:len(m.work)-1]

		rec := m.reg.Get(i)
		start, end := rec.Addr, rec.End()
		m.stats.HeapWords += scan.Words(start, end, m.visit)
	}
}

// Stats returns the counters accumulated so far.
func (m *Marker) Stats() Stats {
	return m.stats
}

// visit tests one candidate word against every unmarked record. A word on a
// boundary between two adjacent blocks marks both.
func (m *Marker) visit(word uintptr) {
	for i := m.reg.Head(); i != registry.None; i = m.reg.Next(i) {
		rec := m.reg.Get(i)
		if rec.Alive {
			continue
		}
		m.stats.Probes++
		if !rec.Contains(word) {
			continue
		}
		rec.Alive = true
		m.stats.Marked++
		m.work = append(m.work, i)
		if len(m.work) > m.stats.MaxWorklist {
			m.stats.MaxWorklist = len(m.work)
		}
	}
}
