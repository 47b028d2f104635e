package inventory

import (
	"errors"
	"fmt"
)

// ErrStranded reports items that could not be put back where they came from.
var ErrStranded = errors.New("inventory: items stranded in hand")

// StrandedError carries the kind and count left behind in an ephemeral
// holder. It matches ErrStranded with errors.Is.
type StrandedError struct {
	Kind  Kind
	Count int
}

func (e *StrandedError) Error() string {
	return fmt.Sprintf("%v: %d item(s) could not be returned", ErrStranded, e.Count)
}

func (e *StrandedError) Unwrap() error { return ErrStranded }

// Ephemeral is a one-slot container for items that are momentarily detached
// from any permanent store, such as the stack held on a cursor between a
// pickup and a place.
//
// Callers are expected to leave it empty at the end of every interaction;
// ReturnTo reports what could not be put back instead of discarding it.
type Ephemeral struct {
	store *Store
}

var _ Container = (*Ephemeral)(nil)

func NewEphemeral() *Ephemeral {
	return &Ephemeral{store: NewStore(1)}
}

func (e *Ephemeral) Item() Kind                 { return e.store.KindAt(0) }
func (e *Ephemeral) Number() int                { return e.store.CountAt(0) }
func (e *Ephemeral) RemoveItems(n int)          { e.store.RemoveFromSlot(0, n) }
func (e *Ephemeral) RelatedSources() []Source   { return nil }
func (e *Ephemeral) MaxAcceptable(k Kind) int   { return e.store.MaxAcceptable(k) }
func (e *Ephemeral) AddItems(k Kind, n int) int { return e.store.AddToSlot(0, k, n) }

func (e *Ephemeral) Empty() bool { return e.store.KindAt(0) == nil }

// Store exposes the backing one-slot store for observers and persistence.
func (e *Ephemeral) Store() *Store { return e.store }

// ReturnTo moves everything held into dst and reports the amount moved. If
// anything is left a *StrandedError describes it; the items stay in the
// holder so the caller can pick another resolution.
func (e *Ephemeral) ReturnTo(dst Destination) (int, error) {
	if e.Empty() {
		return 0, nil
	}
	moved := 0
	if dst != nil {
		moved = MoveStackTo(e, dst)
	}
	if e.Empty() {
		return moved, nil
	}
	return moved, &StrandedError{Kind: e.Item(), Count: e.Number()}
}
