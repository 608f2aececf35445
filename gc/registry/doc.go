// Package registry holds the allocation records tracked by the collector.
//
// Records live in an arena-backed table and are addressed by stable Index
// values rather than pointers. Linked records form a doubly linked list
// (prev/next are indices) so linking and unlinking are O(1). Free slots are
// kept in a Roaring bitmap and the lowest free slot is reused first.
//
// A record can also be reserved without being linked. The collector uses
// this for allocations made while a sweep is in progress: the record exists
// (so the allocation is accounted for) but the sweep cannot see it until
// Link is called.
//
// Registry instances are not thread-safe.
package registry
