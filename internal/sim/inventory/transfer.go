package inventory

import "math"

// MoveBetween moves everything source holds into destination. When both are
// containers holding different kinds it first tries to swap their contents.
// It returns the number of items that left source.
func MoveBetween(source Source, destination Destination) int {
	if source == nil || destination == nil || same(source, destination) {
		return 0
	}
	if a, ok := source.(Container); ok {
		if b, ok := destination.(Container); ok {
			ak, bk := a.Item(), b.Item()
			if ak != nil && bk != nil && !same(ak, bk) {
				if n := swap(a, b); n > 0 {
					return n
				}
			}
		}
	}
	if source.Item() == nil {
		return 0
	}
	return transfer(source, destination, source.Number())
}

// MoveTo moves at most n items from source to destination, never swapping.
func MoveTo(source Source, destination Destination, n int) int {
	if source == nil || destination == nil || same(source, destination) {
		return 0
	}
	return transfer(source, destination, n)
}

// MoveStackTo moves everything source holds to destination, never swapping.
func MoveStackTo(source Source, destination Destination) int {
	if source == nil {
		return 0
	}
	return MoveTo(source, destination, source.Number())
}

// MoveAllFromInventoryTo collects every stack of kind from source and its
// related sources into destination. A nil kind means the kind source holds
// at call time. Related sources are visited in the order source reports them.
func MoveAllFromInventoryTo(source Source, destination Destination, kind Kind) int {
	if source == nil || destination == nil {
		return 0
	}
	if kind == nil {
		kind = source.Item()
	}
	if kind == nil {
		return 0
	}
	total := 0
	if same(source.Item(), kind) {
		total += MoveStackTo(source, destination)
	}
	for _, rel := range source.RelatedSources() {
		if rel == nil || same(rel, source) || same(rel, destination) {
			continue
		}
		if !same(rel.Item(), kind) {
			continue
		}
		total += MoveStackTo(rel, destination)
	}
	return total
}

// HalfOf is the share lifted by a split pickup: half the stack, rounding
// halves up, and at least one item when the stack is non-empty.
func HalfOf(n int) int {
	if n <= 0 {
		return 0
	}
	return int(math.Round(float64(n)/2 + 0.1))
}

// swap exchanges the contents of a and b. Both sides are emptied before the
// capacity check, so each side may take the other's stack into the room its
// own stack just vacated. If either side cannot take the other's stack both
// are restored and swap returns 0.
func swap(a, b Container) int {
	ak, an := a.Item(), a.Number()
	bk, bn := b.Item(), b.Number()

	a.RemoveItems(an)
	b.RemoveItems(bn)

	if an <= b.MaxAcceptable(ak) && bn <= a.MaxAcceptable(bk) {
		a.AddItems(bk, bn)
		b.AddItems(ak, an)
		return an
	}

	a.AddItems(ak, an)
	b.AddItems(bk, bn)
	return 0
}

func transfer(source Source, destination Destination, n int) int {
	k := source.Item()
	if k == nil || n <= 0 {
		return 0
	}
	if held := source.Number(); n > held {
		n = held
	}
	moved := addFrom(source, destination, k, n)
	if moved <= 0 {
		return 0
	}
	source.RemoveItems(moved)
	return moved
}

// addFrom adds n of k to destination. When source is a slot of the store
// destination writes into, overflow never lands back in the source slot.
func addFrom(source Source, destination Destination, k Kind, n int) int {
	if src, ok := source.(*SlotRef); ok {
		switch d := destination.(type) {
		case *SlotRef:
			if d.store == src.store {
				return d.store.addToPreferredSlotSkipping(d.index, k, n, src.index)
			}
		case *Store:
			if d == src.store {
				return d.addToAnySlotSkipping(k, n, src.index)
			}
		}
	}
	return destination.AddItems(k, n)
}
