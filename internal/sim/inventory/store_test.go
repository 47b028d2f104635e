package inventory

import (
	"strings"
	"testing"
)

type testKind struct {
	name string
	max  int
}

func (k *testKind) MaxStackSize() int { return k.max }
func (k *testKind) String() string    { return k.name }

func newKind(name string, max int) *testKind { return &testKind{name: name, max: max} }

func TestStore_AddToAnySlotFillsAscending(t *testing.T) {
	ore := newKind("ORE", 10)
	s := NewStore(4)

	added := s.AddToAnySlot(ore, 25)
	if added != 25 {
		t.Fatalf("added=%d want 25", added)
	}
	want := []int{10, 10, 5, 0}
	for i, w := range want {
		if got := s.CountAt(i); got != w {
			t.Fatalf("slot %d count=%d want %d", i, got, w)
		}
	}
	if s.KindAt(3) != nil {
		t.Fatalf("slot 3 should stay empty")
	}
}

func TestStore_AddToAnySlotPrefersExistingStack(t *testing.T) {
	ore := newKind("ORE", 10)
	wood := newKind("WOOD", 10)
	s := NewStore(3)
	s.AddToSlot(0, wood, 1)
	s.AddToSlot(2, ore, 4)

	if got := s.AddToAnySlot(ore, 8); got != 8 {
		t.Fatalf("added=%d want 8", got)
	}
	if s.CountAt(2) != 10 || s.CountAt(1) != 2 || s.KindAt(1) != Kind(ore) {
		t.Fatalf("unexpected layout: %+v", s.Slots())
	}
}

func TestStore_AddToAnySlotStopsWhenFull(t *testing.T) {
	ore := newKind("ORE", 10)
	s := NewStore(2)
	if got := s.AddToAnySlot(ore, 1000); got != 20 {
		t.Fatalf("added=%d want 20", got)
	}
	if s.HasSpaceFor(ore) {
		t.Fatalf("full store should report no space")
	}
	if got := s.AddToAnySlot(ore, 1); got != 0 {
		t.Fatalf("added=%d want 0", got)
	}
}

func TestStore_ZeroStackKindTerminates(t *testing.T) {
	weird := newKind("WEIRD", 0)
	s := NewStore(2)
	if got := s.AddToAnySlot(weird, 5); got != 0 {
		t.Fatalf("added=%d want 0", got)
	}
	if s.KindAt(0) != nil {
		t.Fatalf("slot should stay empty")
	}
}

func TestStore_AddToSlot(t *testing.T) {
	ore := newKind("ORE", 10)
	wood := newKind("WOOD", 10)
	s := NewStore(2)

	if got := s.AddToSlot(0, ore, 15); got != 10 {
		t.Fatalf("empty slot add=%d want 10", got)
	}
	if got := s.AddToSlot(0, ore, 3); got != 0 {
		t.Fatalf("full slot add=%d want 0", got)
	}
	if got := s.AddToSlot(0, wood, 3); got != 0 {
		t.Fatalf("different kind add=%d want 0", got)
	}
	if got := s.AddToSlot(1, ore, 0); got != 0 || s.KindAt(1) != nil {
		t.Fatalf("zero add must not claim the slot: got=%d slot=%+v", got, s.SlotAt(1))
	}
	if got := s.AddToSlot(1, ore, -4); got != 0 {
		t.Fatalf("negative add=%d want 0", got)
	}
	s.RemoveFromSlot(0, 4)
	if got := s.AddToSlot(0, ore, 9); got != 4 {
		t.Fatalf("partial add=%d want 4", got)
	}
}

func TestStore_AddToPreferredSlotOverflows(t *testing.T) {
	ore := newKind("ORE", 10)
	s := NewStore(3)
	s.AddToSlot(0, ore, 7)

	if got := s.AddToPreferredSlot(2, ore, 15); got != 15 {
		t.Fatalf("added=%d want 15", got)
	}
	// Slot 2 first, then the existing stack in slot 0, then empty slot 1.
	if s.CountAt(2) != 10 || s.CountAt(0) != 10 || s.CountAt(1) != 2 {
		t.Fatalf("unexpected layout: %+v", s.Slots())
	}
}

func TestStore_CapacityQueries(t *testing.T) {
	ore := newKind("ORE", 10)
	wood := newKind("WOOD", 5)
	s := NewStore(3)
	s.AddToSlot(0, ore, 6)
	s.AddToSlot(1, wood, 5)

	if got := s.SpaceRemainingInSlot(0); got != 4 {
		t.Fatalf("space slot0=%d want 4", got)
	}
	if got := s.SpaceRemainingInSlot(2); got != 0 {
		t.Fatalf("space on empty slot=%d want 0", got)
	}
	if got := s.MaxAcceptable(ore); got != 14 {
		t.Fatalf("max acceptable ore=%d want 14", got)
	}
	if got := s.MaxAcceptable(wood); got != 5 {
		t.Fatalf("max acceptable wood=%d want 5", got)
	}
	if got := s.ItemsContained(ore); got != 6 {
		t.Fatalf("contained=%d want 6", got)
	}
	if s.HasSpaceFor(nil) || s.MaxAcceptable(nil) != 0 {
		t.Fatalf("nil kind must never fit")
	}

	s.AddToSlot(2, ore, 10)
	if s.HasSpaceFor(wood) {
		t.Fatalf("wood stack is full and no slot is empty")
	}
	if got := s.MaxAcceptable(wood); got != 0 {
		t.Fatalf("max acceptable wood=%d want 0", got)
	}
}

func TestStore_RemoveFromSlot(t *testing.T) {
	ore := newKind("ORE", 10)
	s := NewStore(1)
	s.AddToSlot(0, ore, 5)

	s.RemoveFromSlot(0, 2)
	if s.CountAt(0) != 3 {
		t.Fatalf("count=%d want 3", s.CountAt(0))
	}
	s.RemoveFromSlot(0, -1)
	if s.CountAt(0) != 3 {
		t.Fatalf("negative remove changed count to %d", s.CountAt(0))
	}
	s.RemoveFromSlot(0, 99)
	if s.CountAt(0) != 0 || s.KindAt(0) != nil {
		t.Fatalf("slot should be cleared: %+v", s.SlotAt(0))
	}
}

func TestStore_RemoveAlwaysNotifies(t *testing.T) {
	s := NewStore(2)
	var fired []int
	s.OnChange(func(slot int) { fired = append(fired, slot) })

	s.RemoveFromSlot(1, 0)
	s.RemoveFromSlot(0, 3)
	if len(fired) != 2 || fired[0] != 1 || fired[1] != 0 {
		t.Fatalf("unexpected notifications: %v", fired)
	}
}

func TestStore_AddNotifiesOnlyOnChange(t *testing.T) {
	ore := newKind("ORE", 10)
	wood := newKind("WOOD", 10)
	s := NewStore(1)
	calls := 0
	cancel := s.OnChange(func(int) { calls++ })

	s.AddToSlot(0, ore, 4)
	s.AddToSlot(0, wood, 4)
	s.AddToSlot(0, ore, 0)
	if calls != 1 {
		t.Fatalf("calls=%d want 1", calls)
	}
	cancel()
	s.AddToSlot(0, ore, 1)
	if calls != 1 {
		t.Fatalf("cancelled observer still called")
	}
}

func TestStore_SetSlotBypassesCapacity(t *testing.T) {
	ore := newKind("ORE", 10)
	s := NewStore(2)
	s.SetSlot(1, ore, 40)
	if s.CountAt(1) != 40 || s.KindAt(1) != Kind(ore) {
		t.Fatalf("restore not applied: %+v", s.SlotAt(1))
	}
	s.SetSlot(1, ore, 0)
	if s.KindAt(1) != nil {
		t.Fatalf("zero count must clear the slot")
	}
}

func TestStore_ZeroSize(t *testing.T) {
	ore := newKind("ORE", 10)
	s := NewStore(0)
	if s.HasSpaceFor(ore) || s.MaxAcceptable(ore) != 0 || s.AddToAnySlot(ore, 5) != 0 {
		t.Fatalf("zero-size store must accept nothing")
	}
}

func TestStore_IndexOutOfRangePanics(t *testing.T) {
	s := NewStore(2)
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic")
		}
		if msg, _ := r.(string); !strings.Contains(msg, "out of range") {
			t.Fatalf("unexpected panic: %v", r)
		}
	}()
	s.AddToSlot(2, newKind("ORE", 1), 1)
}

func TestStore_RefIdentity(t *testing.T) {
	s := NewStore(3)
	if s.Ref(1) != s.Ref(1) {
		t.Fatalf("refs must be stable")
	}
	rel := s.Ref(1).RelatedSources()
	if len(rel) != 2 || rel[0] != Source(s.Ref(0)) || rel[1] != Source(s.Ref(2)) {
		t.Fatalf("unexpected related sources: %v", rel)
	}
	if got := NewStore(1).Ref(0).RelatedSources(); len(got) != 0 {
		t.Fatalf("single slot store has no siblings: %v", got)
	}
}
