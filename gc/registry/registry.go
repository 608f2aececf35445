package registry

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// Registry is the set of tracked allocation records plus the stack bottom
// that bounds the root scan.
type Registry struct {
	// StackBottom is the far end of the root range, set by Init.
	StackBottom uintptr

	records []Record
	free    *roaring.Bitmap // Vacant slots below len(records)
	head    Index
	linked  int // Records on the list
	used    int // Occupied slots (linked or reserved)
	max     int // Capacity limit, 0 = unlimited
}

// New creates an empty registry. maxRecords caps the number of occupied
// slots; 0 means unlimited.
func New(maxRecords int) *Registry {
	return &Registry{
		free: roaring.New(),
		head: None,
		max:  maxRecords,
	}
}

// Init stores the stack bottom and empties the table.
func (r *Registry) Init(stackBottom uintptr) {
	r.StackBottom = stackBottom
	r.records = r.records[:0]
	r.free.Clear()
	r.head = None
	r.linked, r.used = 0, 0
}

// Insert stores rec in a free slot and links it at the head of the list.
func (r *Registry) Insert(rec Record) (Index, error) {
	i, err := r.Reserve(rec)
	if err != nil {
		return None, err
	}
	r.link(i)
	return i, nil
}

// Reserve stores rec in a free slot without linking it.
func (r *Registry) Reserve(rec Record) (Index, error) {
	if r.max > 0 && r.used >= r.max {
		return None, fmt.Errorf("reserve (%d/%d slots): %w", r.used, r.max, ErrTableFull)
	}

	var i Index
	if !r.free.IsEmpty() {
		i = Index(r.free.Minimum())
		r.free.Remove(uint32(i))
	} else {
		if uint64(len(r.records)) >= uint64(None) {
			return None, fmt.Errorf("reserve: %w", ErrTableFull)
		}
		i = Index(len(r.records))
		r.records = append(r.records, Record{})
	}

	rec.prev, rec.next = None, None
	rec.used, rec.linked = true, false
	r.records[i] = rec
	r.used++
	return i, nil
}

// Link puts a reserved record at the head of the list.
func (r *Registry) Link(i Index) error {
	rec, err := r.lookup(i)
	if err != nil {
		return err
	}
	if rec.linked {
		return fmt.Errorf("link %d: %w", i, ErrLinked)
	}
	r.link(i)
	return nil
}

func (r *Registry) link(i Index) {
	rec := &r.records[i]
	rec.prev = None
	rec.next = r.head
	if r.head != None {
		r.records[r.head].prev = i
	}
	r.head = i
	rec.linked = true
	r.linked++
}

// Remove unlinks the record (if linked) and frees its slot. The caller must
// read anything it needs from the record first.
func (r *Registry) Remove(i Index) error {
	rec, err := r.lookup(i)
	if err != nil {
		return err
	}
	if rec.linked {
		if rec.prev != None {
			r.records[rec.prev].next = rec.next
		} else {
			r.head = rec.next
		}
		if rec.next != None {
			r.records[rec.next].prev = rec.prev
		}
		r.linked--
	}
	r.records[i] = Record{prev: None, next: None}
	r.free.Add(uint32(i))
	r.used--
	return nil
}

// Get returns the record in slot i, or nil when the slot is vacant.
// The pointer is invalidated by the next Insert or Reserve.
func (r *Registry) Get(i Index) *Record {
	rec, err := r.lookup(i)
	if err != nil {
		return nil
	}
	return rec
}

func (r *Registry) lookup(i Index) (*Record, error) {
	if i == None || int(i) >= len(r.records) || !r.records[i].used {
		return nil, fmt.Errorf("index %d: %w", i, ErrBadIndex)
	}
	return &r.records[i], nil
}

// Head returns the first linked record, or None.
func (r *Registry) Head() Index {
	return r.head
}

// Next returns the record linked after i, or None.
func (r *Registry) Next(i Index) Index {
	return r.records[i].next
}

// Len returns the number of linked records.
func (r *Registry) Len() int {
	return r.linked
}

// Occupied returns the number of occupied slots, linked or reserved.
func (r *Registry) Occupied() int {
	return r.used
}

// Cap returns the number of slots in the table, occupied or vacant.
func (r *Registry) Cap() int {
	return len(r.records)
}

// Each calls fn for every linked record in list order until fn returns false.
// fn must not insert or remove records.
func (r *Registry) Each(fn func(Index, *Record) bool) {
	for i := r.head; i != None; i = r.records[i].next {
		if !fn(i, &r.records[i]) {
			return
		}
	}
}

// Find returns the linked record whose block starts at addr.
func (r *Registry) Find(addr uintptr) (Index, bool) {
	found := None
	r.Each(func(i Index, rec *Record) bool {
		if rec.Addr == addr {
			found = i
			return false
		}
		return true
	})
	return found, found != None
}

// Indices returns the set of linked record indices.
func (r *Registry) Indices() *roaring.Bitmap {
	set := roaring.New()
	r.Each(func(i Index, _ *Record) bool {
		set.Add(uint32(i))
		return true
	})
	return set
}
