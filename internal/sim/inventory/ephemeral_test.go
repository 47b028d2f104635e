package inventory

import (
	"errors"
	"testing"
)

func TestEphemeral_LiftAndPlace(t *testing.T) {
	ore := newKind("ORE", 10)
	bag := NewStore(3)
	bag.AddToSlot(1, ore, 7)
	cursor := NewEphemeral()

	if got := MoveBetween(bag.Ref(1), cursor); got != 7 {
		t.Fatalf("lift moved=%d want 7", got)
	}
	if bag.KindAt(1) != nil || cursor.Number() != 7 {
		t.Fatalf("lift left bag=%+v cursor=%d", bag.Slots(), cursor.Number())
	}
	if got := MoveBetween(cursor, bag.Ref(2)); got != 7 {
		t.Fatalf("place moved=%d want 7", got)
	}
	if !cursor.Empty() || bag.CountAt(2) != 7 {
		t.Fatalf("place left bag=%+v cursor=%d", bag.Slots(), cursor.Number())
	}
}

func TestEphemeral_HoldsOneStack(t *testing.T) {
	ore := newKind("ORE", 10)
	wood := newKind("WOOD", 10)
	e := NewEphemeral()
	if got := e.AddItems(ore, 25); got != 10 {
		t.Fatalf("added=%d want 10", got)
	}
	if got := e.MaxAcceptable(wood); got != 0 {
		t.Fatalf("max acceptable for other kind=%d want 0", got)
	}
	if len(e.RelatedSources()) != 0 {
		t.Fatalf("ephemeral holder has no related sources")
	}
}

func TestEphemeral_ReturnTo(t *testing.T) {
	ore := newKind("ORE", 10)
	bag := NewStore(2)
	cursor := NewEphemeral()
	cursor.AddItems(ore, 6)

	moved, err := cursor.ReturnTo(bag)
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if moved != 6 || !cursor.Empty() || bag.ItemsContained(ore) != 6 {
		t.Fatalf("moved=%d cursor=%d bag=%d", moved, cursor.Number(), bag.ItemsContained(ore))
	}

	moved, err = cursor.ReturnTo(bag)
	if moved != 0 || err != nil {
		t.Fatalf("empty return: moved=%d err=%v", moved, err)
	}
}

func TestEphemeral_ReturnToStranded(t *testing.T) {
	ore := newKind("ORE", 10)
	wood := newKind("WOOD", 10)
	bag := NewStore(1)
	bag.AddToSlot(0, ore, 9)
	cursor := NewEphemeral()
	cursor.AddItems(ore, 5)

	moved, err := cursor.ReturnTo(bag)
	if moved != 1 {
		t.Fatalf("moved=%d want 1", moved)
	}
	if !errors.Is(err, ErrStranded) {
		t.Fatalf("expected ErrStranded, got %v", err)
	}
	var se *StrandedError
	if !errors.As(err, &se) || se.Count != 4 || se.Kind != Kind(ore) {
		t.Fatalf("unexpected stranded error: %#v", err)
	}
	if cursor.Number() != 4 {
		t.Fatalf("stranded items must stay in hand, got %d", cursor.Number())
	}

	other := NewEphemeral()
	other.AddItems(wood, 2)
	if _, err := other.ReturnTo(nil); !errors.Is(err, ErrStranded) {
		t.Fatalf("nil destination should strand, got %v", err)
	}
}
