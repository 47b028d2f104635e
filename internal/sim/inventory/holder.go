package inventory

// Source is a holder that can yield items.
type Source interface {
	// Item is the kind currently held, or nil.
	Item() Kind
	// Number is how many of Item are held.
	Number() int
	// RemoveItems takes n items away; n should not exceed Number.
	RemoveItems(n int)
	// RelatedSources lists other sources in the same logical inventory
	// (sibling slots). It never includes the source itself.
	RelatedSources() []Source
}

// Destination is a holder that can accept items.
type Destination interface {
	// MaxAcceptable is how many of k could be added right now. Destinations
	// with no limit return math.MaxInt.
	MaxAcceptable(k Kind) int
	// AddItems adds up to n of k and returns how many were taken.
	AddItems(k Kind, n int) int
}

// Container is both a Source and a Destination. Moves between two containers
// may swap their contents.
type Container interface {
	Source
	Destination
}

// SlotRef exposes one slot of a Store as a Container. Refs are obtained from
// Store.Ref so each slot has a single stable identity.
type SlotRef struct {
	store *Store
	index int
}

var _ Container = (*SlotRef)(nil)

// Ref returns the holder for slot i. Repeated calls return the same pointer.
func (s *Store) Ref(i int) *SlotRef {
	s.check(i)
	if s.refs == nil {
		s.refs = make([]*SlotRef, len(s.slots))
	}
	if s.refs[i] == nil {
		s.refs[i] = &SlotRef{store: s, index: i}
	}
	return s.refs[i]
}

func (r *SlotRef) Item() Kind        { return r.store.KindAt(r.index) }
func (r *SlotRef) Number() int       { return r.store.CountAt(r.index) }
func (r *SlotRef) RemoveItems(n int) { r.store.RemoveFromSlot(r.index, n) }

// MaxAcceptable counts the whole store, since AddItems overflows into the
// rest of it.
func (r *SlotRef) MaxAcceptable(k Kind) int { return r.store.MaxAcceptable(k) }

// AddItems fills this slot first, then the rest of the store.
func (r *SlotRef) AddItems(k Kind, n int) int {
	return r.store.AddToPreferredSlot(r.index, k, n)
}

// RelatedSources returns the sibling slots in index order.
func (r *SlotRef) RelatedSources() []Source {
	n := r.store.Size()
	if n <= 1 {
		return nil
	}
	out := make([]Source, 0, n-1)
	for i := 0; i < n; i++ {
		if i == r.index {
			continue
		}
		out = append(out, r.store.Ref(i))
	}
	return out
}
