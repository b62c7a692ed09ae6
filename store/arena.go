package store

import (
	"github.com/wippyai/wasm-embed/errors"
)

// arena is a slot table with generation counters and a free list. A freed
// slot bumps its generation, so handles to the previous occupant stop
// resolving even after the slot is reused.
type arena struct {
	slots    []slot
	freeList []uint32
	live     int
}

type slot struct {
	value    any
	gen      uint32
	borrowed bool
	valid    bool
}

func newArena() arena {
	return arena{
		slots:    make([]slot, 0, 64),
		freeList: make([]uint32, 0, 16),
	}
}

func (a *arena) insert(v any) (index, gen uint32) {
	a.live++
	if n := len(a.freeList); n > 0 {
		index = a.freeList[n-1]
		a.freeList = a.freeList[:n-1]
		s := &a.slots[index]
		s.value = v
		s.valid = true
		return index, s.gen
	}
	a.slots = append(a.slots, slot{value: v, gen: 1, valid: true})
	return uint32(len(a.slots) - 1), 1
}

// lookup returns the live slot for (index, gen) or a stale handle error.
func (a *arena) lookup(index, gen uint32) (*slot, error) {
	if int(index) >= len(a.slots) {
		return nil, errors.StaleHandle(errors.PhaseStore, "handle")
	}
	s := &a.slots[index]
	if !s.valid || s.gen != gen {
		return nil, errors.StaleHandle(errors.PhaseStore, "handle")
	}
	return s, nil
}

func (a *arena) remove(index, gen uint32) (any, error) {
	s, err := a.lookup(index, gen)
	if err != nil {
		return nil, err
	}
	if s.borrowed {
		return nil, errors.BorrowConflict(errors.PhaseStore, "object")
	}
	v := s.value
	s.value = nil
	s.valid = false
	s.gen++
	a.freeList = append(a.freeList, index)
	a.live--
	return v, nil
}

// drain invalidates every slot and returns the live values in slot order.
func (a *arena) drain() []any {
	var values []any
	for i := range a.slots {
		s := &a.slots[i]
		if s.valid {
			values = append(values, s.value)
		}
		s.value = nil
		s.valid = false
		s.gen++
	}
	a.slots = nil
	a.freeList = nil
	a.live = 0
	return values
}
