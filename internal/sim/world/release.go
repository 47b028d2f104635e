package world

import (
	"errors"
	"fmt"

	"stackcraft.ai/internal/protocol"
	"stackcraft.ai/internal/sim/inventory"
	"stackcraft.ai/internal/sim/tuning"
)

// release ends an interaction: whatever is in hand goes back to where it was
// lifted from, then anywhere in the agent's inventory. Leftovers follow the
// stranded policy and are never silently discarded.
func (w *World) release(a *Agent, nowTick uint64) (moved int, code, msg string) {
	if a.Cursor.Empty() {
		a.origin = nil
		return 0, "", ""
	}
	origin := a.origin
	a.origin = nil

	var err error
	if origin != nil {
		var n int
		n, err = a.Cursor.ReturnTo(origin)
		moved += n
	}
	if origin == nil || err != nil {
		var n int
		n, err = a.Cursor.ReturnTo(a.Inv)
		moved += n
	}
	if err == nil {
		return moved, "", ""
	}

	var se *inventory.StrandedError
	if !errors.As(err, &se) {
		return moved, protocol.ErrInternal, err.Error()
	}
	item := itemID(se.Kind)
	w.logger.Printf("agent %s: %d %s could not be returned to inventory", a.ID, se.Count, item)

	switch w.tune.StrandedPolicy {
	case tuning.StrandedKeep:
		w.audit(AuditEntry{Tick: nowTick, Actor: a.ID, Action: "STRANDED", From: protocol.HolderCursor, Item: item, Count: se.Count, Reason: tuning.StrandedKeep})
		return moved, protocol.ErrStranded, fmt.Sprintf("%d %s kept in hand", se.Count, item)
	default:
		dropped := inventory.MoveStackTo(a.Cursor, w.groundDrop(a.ID, nowTick))
		w.audit(AuditEntry{Tick: nowTick, Actor: a.ID, Action: "STRANDED", From: protocol.HolderCursor, To: protocol.HolderGround, Item: item, Count: dropped, Reason: tuning.StrandedDrop})
		return moved, protocol.ErrStranded, fmt.Sprintf("%d %s dropped on the ground", dropped, item)
	}
}
