package inventory

import "fmt"

// Slot is a single storage cell. An empty slot has a nil Kind and a zero
// Count; a non-empty slot never holds more than Kind.MaxStackSize().
type Slot struct {
	Kind  Kind
	Count int
}

func (s Slot) Empty() bool { return s.Kind == nil }

// Store is a fixed-length ordered sequence of slots. Slots are only mutated
// through the Store's own methods, which keep the slot invariant intact
// between calls.
//
// A Store is not safe for concurrent use; callers serialize access (the world
// loop owns every store it exposes).
type Store struct {
	slots []Slot
	refs  []*SlotRef

	observers map[int]func(slot int)
	nextObs   int
}

// NewStore returns a store with size empty slots. A zero-sized store is legal
// and accepts nothing.
func NewStore(size int) *Store {
	if size < 0 {
		panic(fmt.Sprintf("inventory: negative store size %d", size))
	}
	return &Store{slots: make([]Slot, size)}
}

// Size is the number of slots.
func (s *Store) Size() int { return len(s.slots) }

func (s *Store) KindAt(i int) Kind {
	s.check(i)
	return s.slots[i].Kind
}

func (s *Store) CountAt(i int) int {
	s.check(i)
	return s.slots[i].Count
}

func (s *Store) SlotAt(i int) Slot {
	s.check(i)
	return s.slots[i]
}

// Slots returns a copy of every slot in index order.
func (s *Store) Slots() []Slot {
	out := make([]Slot, len(s.slots))
	copy(out, s.slots)
	return out
}

// OnChange registers fn to be called with the slot index after every
// mutation. The returned func unregisters it.
func (s *Store) OnChange(fn func(slot int)) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	if s.observers == nil {
		s.observers = map[int]func(int){}
	}
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	return func() { delete(s.observers, id) }
}

func (s *Store) notify(slot int) {
	if len(s.observers) == 0 {
		return
	}
	// Registration order keeps notifications deterministic.
	for id := 0; id < s.nextObs; id++ {
		if fn, ok := s.observers[id]; ok {
			fn(slot)
		}
	}
}

// SpaceRemainingInSlot is the room left on the stack in slot i, or 0 if the
// slot is empty.
func (s *Store) SpaceRemainingInSlot(i int) int {
	s.check(i)
	sl := s.slots[i]
	if sl.Kind == nil {
		return 0
	}
	if r := maxStack(sl.Kind) - sl.Count; r > 0 {
		return r
	}
	return 0
}

// HasSpaceFor reports whether some slot can take at least one more k.
func (s *Store) HasSpaceFor(k Kind) bool {
	return s.findSlot(k, -1) >= 0
}

// MaxAcceptable is the total number of k the store could take right now.
func (s *Store) MaxAcceptable(k Kind) int {
	if !s.HasSpaceFor(k) {
		return 0
	}
	limit := maxStack(k)
	total := 0
	for _, sl := range s.slots {
		switch {
		case sl.Kind == nil:
			total += limit
		case same(sl.Kind, k) && sl.Count < limit:
			total += limit - sl.Count
		}
	}
	return total
}

// ItemsContained sums the counts of every slot holding k.
func (s *Store) ItemsContained(k Kind) int {
	if k == nil {
		return 0
	}
	total := 0
	for _, sl := range s.slots {
		if same(sl.Kind, k) {
			total += sl.Count
		}
	}
	return total
}

// AddToSlot adds up to n of k to slot i and returns how many were added. A
// slot holding a different kind takes nothing.
func (s *Store) AddToSlot(i int, k Kind, n int) int {
	s.check(i)
	if k == nil || n <= 0 {
		return 0
	}
	sl := &s.slots[i]
	var added int
	switch {
	case sl.Kind == nil:
		added = min(n, maxStack(k))
		if added == 0 {
			return 0
		}
		sl.Kind = k
		sl.Count = added
	case same(sl.Kind, k):
		added = min(n, s.SpaceRemainingInSlot(i))
		if added == 0 {
			return 0
		}
		sl.Count += added
	default:
		return 0
	}
	s.notify(i)
	return added
}

// AddToAnySlot spreads up to n of k across the store using the slot
// selection rule: existing stacks with room first, then empty slots, lowest
// index first.
func (s *Store) AddToAnySlot(k Kind, n int) int {
	return s.addToAnySlotSkipping(k, n, -1)
}

// addToAnySlotSkipping is AddToAnySlot with slot skip left out of the
// selection. A negative skip leaves every slot eligible.
func (s *Store) addToAnySlotSkipping(k Kind, n int, skip int) int {
	added := 0
	for added < n {
		i := s.findSlot(k, skip)
		if i < 0 {
			break
		}
		got := s.AddToSlot(i, k, n-added)
		if got == 0 {
			break
		}
		added += got
	}
	return added
}

// AddToPreferredSlot tries slot i first and routes any remainder through
// AddToAnySlot.
func (s *Store) AddToPreferredSlot(i int, k Kind, n int) int {
	return s.addToPreferredSlotSkipping(i, k, n, -1)
}

func (s *Store) addToPreferredSlotSkipping(i int, k Kind, n int, skip int) int {
	added := s.AddToSlot(i, k, n)
	if added < n {
		added += s.addToAnySlotSkipping(k, n-added, skip)
	}
	return added
}

// RemoveFromSlot removes up to n items from slot i, clearing the slot when it
// reaches zero. Observers are notified even when nothing changed.
func (s *Store) RemoveFromSlot(i int, n int) {
	s.check(i)
	sl := &s.slots[i]
	if n > 0 {
		sl.Count -= min(n, sl.Count)
	}
	if sl.Count == 0 {
		sl.Kind = nil
	}
	s.notify(i)
}

// SetSlot overwrites slot i without capacity checks. It exists for restoring
// trusted saved state; a nil kind or non-positive count clears the slot.
func (s *Store) SetSlot(i int, k Kind, n int) {
	s.check(i)
	if k == nil || n <= 0 {
		s.slots[i] = Slot{}
	} else {
		s.slots[i] = Slot{Kind: k, Count: n}
	}
	s.notify(i)
}

// AddItems and MaxAcceptable make the whole store a Destination.
func (s *Store) AddItems(k Kind, n int) int { return s.AddToAnySlot(k, n) }

func (s *Store) findSlot(k Kind, skip int) int {
	if k == nil {
		return -1
	}
	if i := s.findStack(k, skip); i >= 0 {
		return i
	}
	return s.findEmpty(skip)
}

func (s *Store) findStack(k Kind, skip int) int {
	if k == nil {
		return -1
	}
	limit := maxStack(k)
	for i, sl := range s.slots {
		if i != skip && same(sl.Kind, k) && sl.Count < limit {
			return i
		}
	}
	return -1
}

func (s *Store) findEmpty(skip int) int {
	for i, sl := range s.slots {
		if i != skip && sl.Kind == nil {
			return i
		}
	}
	return -1
}

func (s *Store) check(i int) {
	if i < 0 || i >= len(s.slots) {
		panic(fmt.Sprintf("inventory: slot index %d out of range [0,%d)", i, len(s.slots)))
	}
}
