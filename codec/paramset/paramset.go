/*
NAME
  paramset.go

DESCRIPTION
  paramset.go provides the identifier-keyed parameter-set bookkeeping
  shared by the H.264 and H.265 importers: duplicate detection, ascending-
  id insertion with neighbor-walk splicing, and used/unused tracking.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package paramset provides a generic, identifier-keyed registry for NAL
// parameter sets (SPS/PPS/VPS and HEVC SEI arrays), used by codec/avc and
// codec/hevc to track the active and pending decoder-configuration
// records.
package paramset

import (
	"bytes"
	"sort"
)

// Entry is one stored parameter set: its raw NAL bytes (including the NAL
// header), and whether it is currently part of the active configuration.
type Entry struct {
	ID    int
	Bytes []byte
	Used  bool
}

// Result classifies the outcome of checking whether a new parameter set
// can be appended to a Set, per spec.md section 4.3.
type Result int

const (
	// Duplicate: a byte-identical entry for this id already exists.
	Duplicate Result = iota
	// Possible: the id is new, or matches but the caller has determined
	// the new bytes are compatible with the existing record and may
	// simply replace it.
	Possible
	// NewDCRRequired: the id collides with incompatible bytes, or a
	// profile/bit-depth/chroma mismatch makes the records incompatible.
	NewDCRRequired
	// NewSampleEntryRequired: (SPS only) compatible decoder profile but a
	// new cropped visual geometry.
	NewSampleEntryRequired
)

// Set holds the parameter sets of one kind (e.g. all SPS, or all PPS) for
// one decoder-configuration record.
type Set struct {
	entries map[int]*Entry
	order   []int // ascending id order of currently-known ids.
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{entries: make(map[int]*Entry)}
}

// Find returns the entry for id, if any.
func (s *Set) Find(id int) (*Entry, bool) {
	e, ok := s.entries[id]
	return e, ok
}

// CheckDuplicate reports whether a byte-identical entry for id already
// exists. It does not mutate the set.
func (s *Set) CheckDuplicate(id int, data []byte) bool {
	e, ok := s.entries[id]
	return ok && bytes.Equal(e.Bytes, data)
}

// Classify implements spec.md section 4.3's check_appendable: Possible if
// id is unseen, Duplicate if byte-identical to the existing entry, and
// NewDCRRequired if id collides with different bytes. It does not mutate
// the set; the caller still calls Insert to register the new bytes.
func (s *Set) Classify(id int, data []byte) Result {
	e, ok := s.entries[id]
	if !ok {
		return Possible
	}
	if bytes.Equal(e.Bytes, data) {
		return Duplicate
	}
	return NewDCRRequired
}

// Has reports whether any entry is registered for id.
func (s *Set) Has(id int) bool {
	_, ok := s.entries[id]
	return ok
}

// Insert adds a new parameter set for id, or replaces an existing one with
// different bytes, splicing the id into ascending order via a
// neighbor walk (find the nearest lower or higher existing id and insert
// next to it) the first time id is seen. Any previous entry for id is
// marked unused and dropped from the set at once; only the newest entry
// for an id is kept.
func (s *Set) Insert(id int, data []byte) *Entry {
	stored := make([]byte, len(data))
	copy(stored, data)
	if prev, ok := s.entries[id]; ok {
		prev.Used = false
		e := &Entry{ID: id, Bytes: stored, Used: true}
		s.entries[id] = e
		return e
	}
	e := &Entry{ID: id, Bytes: stored, Used: true}
	s.entries[id] = e
	s.spliceOrder(id)
	return e
}

// spliceOrder inserts a newly-seen id into the ascending order slice via a
// neighbor walk rather than a full re-sort.
func (s *Set) spliceOrder(id int) {
	i := sort.SearchInts(s.order, id)
	s.order = append(s.order, 0)
	copy(s.order[i+1:], s.order[i:])
	s.order[i] = id
}

// MarkUsed marks the entry for id as used when its bytes equal data;
// otherwise it inserts data as the entry for id, replacing any existing one.
func (s *Set) MarkUsed(id int, data []byte) {
	e, ok := s.entries[id]
	if !ok || !bytes.Equal(e.Bytes, data) {
		s.Insert(id, data)
		return
	}
	e.Used = true
}

// Ordered returns the currently-used entries in ascending id order.
func (s *Set) Ordered() []*Entry {
	out := make([]*Entry, 0, len(s.order))
	for _, id := range s.order {
		if e, ok := s.entries[id]; ok && e.Used {
			out = append(out, e)
		}
	}
	return out
}

// All returns every stored entry (used and unused) in ascending id order,
// for diagnostics.
func (s *Set) All() []*Entry {
	out := make([]*Entry, 0, len(s.order))
	for _, id := range s.order {
		if e, ok := s.entries[id]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Prune removes entries marked unused, rebuilding the order slice. This is
// invoked when the owning decoder-configuration record is rebuilt.
func (s *Set) Prune() {
	newOrder := s.order[:0]
	for _, id := range s.order {
		e, ok := s.entries[id]
		if !ok {
			continue
		}
		if !e.Used {
			delete(s.entries, id)
			continue
		}
		newOrder = append(newOrder, id)
	}
	s.order = newOrder
}
