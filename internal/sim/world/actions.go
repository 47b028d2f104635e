package world

import (
	"fmt"
	"strings"

	"stackcraft.ai/internal/protocol"
	"stackcraft.ai/internal/sim/inventory"
)

// opError is a request failure reported in the op result.
type opError struct {
	code string
	msg  string
}

func (e *opError) Error() string { return e.code + ": " + e.msg }

func badRequest(format string, args ...any) *opError {
	return &opError{code: protocol.ErrBadRequest, msg: fmt.Sprintf(format, args...)}
}

func invalidTarget(format string, args ...any) *opError {
	return &opError{code: protocol.ErrInvalidTarget, msg: fmt.Sprintf(format, args...)}
}

func (w *World) applyAct(a *Agent, act protocol.ActMsg, nowTick uint64) {
	for _, op := range act.Ops {
		var res protocol.OpResult
		if a.opsThisTick >= w.tune.RateLimits.OpsPerTick {
			res = protocol.OpResult{Code: protocol.ErrRateLimit, Message: "too many ops this tick"}
		} else {
			a.opsThisTick++
			res = w.applyOp(a, op, nowTick)
		}
		res.ID = op.ID
		res.Op = op.Op
		a.results = append(a.results, res)
	}
}

func (w *World) applyOp(a *Agent, op protocol.InvOp, nowTick uint64) protocol.OpResult {
	entry := AuditEntry{
		Tick:   nowTick,
		Actor:  a.ID,
		Action: op.Op,
		From:   describe(op.From),
		To:     describe(op.To),
	}

	moved, err := w.dispatch(a, op, nowTick, &entry)

	res := protocol.OpResult{Moved: moved}
	if err != nil {
		res.Code = err.code
		res.Message = err.msg
		entry.Code = err.code
		entry.Reason = err.msg
	}
	entry.Count = moved
	w.audit(entry)
	return res
}

func (w *World) dispatch(a *Agent, op protocol.InvOp, nowTick uint64, entry *AuditEntry) (int, *opError) {
	switch op.Op {
	case protocol.OpMove, protocol.OpMoveN, protocol.OpSplit:
		src, err := w.resolveSource(a, op.From)
		if err != nil {
			return 0, err
		}
		dst, err := w.resolveDest(a, op.To, nowTick)
		if err != nil {
			return 0, err
		}
		entry.Item = itemID(src.Item())
		if src.Item() == nil {
			return 0, &opError{code: protocol.ErrNoResource, msg: "source is empty"}
		}
		held := a.Cursor.Item()
		var moved int
		switch op.Op {
		case protocol.OpMove:
			moved = inventory.MoveBetween(src, dst)
		case protocol.OpMoveN:
			if op.Count <= 0 {
				return 0, badRequest("count must be > 0")
			}
			moved = inventory.MoveTo(src, dst, op.Count)
		default:
			moved = inventory.MoveTo(src, dst, inventory.HalfOf(src.Number()))
		}
		w.noteLift(a, src, dst, held)
		if moved == 0 {
			return 0, &opError{code: protocol.ErrNoSpace, msg: "destination cannot take these items"}
		}
		return moved, nil

	case protocol.OpCollect:
		src, err := w.resolveSource(a, op.From)
		if err != nil {
			return 0, err
		}
		to := op.To
		if to == nil {
			to = &protocol.HolderRef{Holder: protocol.HolderCursor}
		}
		dst, err := w.resolveDest(a, to, nowTick)
		if err != nil {
			return 0, err
		}
		var kind inventory.Kind
		if op.Item != "" {
			def, ok := w.catalogs.Items.Lookup(op.Item)
			if !ok {
				return 0, badRequest("unknown item %s", op.Item)
			}
			kind = def
		} else if c, ok := dst.(*inventory.Ephemeral); ok && !c.Empty() {
			// Collecting into a hand that already holds something gathers
			// more of that kind.
			kind = c.Item()
		}
		if kind == nil {
			kind = src.Item()
		}
		if kind == nil {
			return 0, &opError{code: protocol.ErrNoResource, msg: "nothing to collect"}
		}
		entry.Item = itemID(kind)
		held := a.Cursor.Item()
		moved := inventory.MoveAllFromInventoryTo(src, dst, kind)
		w.noteLift(a, src, dst, held)
		if moved == 0 {
			return 0, &opError{code: protocol.ErrNoResource, msg: "no matching items could be collected"}
		}
		return moved, nil

	case protocol.OpDrop:
		from := op.From
		if from == nil {
			from = &protocol.HolderRef{Holder: protocol.HolderCursor}
		}
		src, err := w.resolveSource(a, from)
		if err != nil {
			return 0, err
		}
		if src.Item() == nil {
			return 0, &opError{code: protocol.ErrNoResource, msg: "nothing to drop"}
		}
		entry.From = describe(from)
		entry.To = protocol.HolderGround
		entry.Item = itemID(src.Item())
		n := src.Number()
		if op.Count > 0 {
			n = op.Count
		}
		moved := inventory.MoveTo(src, w.groundDrop(a.ID, nowTick), n)
		if a.Cursor.Empty() {
			a.origin = nil
		}
		return moved, nil

	case protocol.OpPickup:
		id := ""
		if op.From != nil {
			id = op.From.GroundID
		}
		g := w.ground[id]
		if g == nil {
			return 0, invalidTarget("no ground item %q", id)
		}
		entry.From = describe(&protocol.HolderRef{Holder: protocol.HolderGround, GroundID: id})
		entry.To = protocol.HolderInventory
		entry.Item = itemID(g.Item())
		moved := inventory.MoveStackTo(g, a.Inv)
		if moved == 0 {
			return 0, &opError{code: protocol.ErrNoSpace, msg: "inventory is full"}
		}
		return moved, nil

	case protocol.OpRelease:
		entry.From = protocol.HolderCursor
		entry.Item = itemID(a.Cursor.Item())
		moved, code, msg := w.release(a, nowTick)
		if code != "" {
			return moved, &opError{code: code, msg: msg}
		}
		return moved, nil

	case protocol.OpOpen:
		c, err := w.ensureContainer(op.ContainerID)
		if err != nil {
			return 0, invalidTarget("%v", err)
		}
		entry.To = describe(&protocol.HolderRef{Holder: protocol.HolderContainer, ContainerID: c.ID})
		a.open[c.ID] = true
		a.dirty = true
		return 0, nil

	case protocol.OpClose:
		if !a.open[op.ContainerID] {
			return 0, invalidTarget("container %q is not open", op.ContainerID)
		}
		delete(a.open, op.ContainerID)
		a.dirty = true
		return 0, nil

	default:
		return 0, badRequest("unknown op %q", op.Op)
	}
}

// noteLift remembers where the hand's items came from and forgets it once
// the hand is empty. held is the kind in hand before the move.
func (w *World) noteLift(a *Agent, src inventory.Source, dst inventory.Destination, held inventory.Kind) {
	switch {
	case a.Cursor.Empty():
		a.origin = nil
	case dst == inventory.Destination(a.Cursor):
		if ref, ok := src.(*inventory.SlotRef); ok {
			a.origin = ref
		} else if !inventory.SameKind(held, a.Cursor.Item()) {
			a.origin = nil
		}
	case src == inventory.Source(a.Cursor) && !inventory.SameKind(held, a.Cursor.Item()):
		// Swapped: the hand now holds what the destination had.
		if ref, ok := dst.(*inventory.SlotRef); ok {
			a.origin = ref
		} else {
			a.origin = nil
		}
	}
}

func (w *World) resolveSource(a *Agent, ref *protocol.HolderRef) (inventory.Source, *opError) {
	if ref == nil {
		return nil, badRequest("missing source holder")
	}
	switch ref.Holder {
	case protocol.HolderCursor:
		return a.Cursor, nil
	case protocol.HolderGround:
		g := w.ground[ref.GroundID]
		if g == nil {
			return nil, invalidTarget("no ground item %q", ref.GroundID)
		}
		return g, nil
	}
	store, err := w.resolveStore(a, ref)
	if err != nil {
		return nil, err
	}
	if ref.Slot == nil {
		return nil, badRequest("source %s needs a slot", ref.Holder)
	}
	return w.slotRef(store, *ref.Slot)
}

func (w *World) resolveDest(a *Agent, ref *protocol.HolderRef, nowTick uint64) (inventory.Destination, *opError) {
	if ref == nil {
		return nil, badRequest("missing destination holder")
	}
	switch ref.Holder {
	case protocol.HolderCursor:
		return a.Cursor, nil
	case protocol.HolderGround:
		return w.groundDrop(a.ID, nowTick), nil
	}
	store, err := w.resolveStore(a, ref)
	if err != nil {
		return nil, err
	}
	if ref.Slot == nil {
		if ref.Holder == protocol.HolderSlot || ref.Holder == protocol.HolderContainerSlot {
			return nil, badRequest("%s needs a slot", ref.Holder)
		}
		return store, nil
	}
	return w.slotRef(store, *ref.Slot)
}

func (w *World) resolveStore(a *Agent, ref *protocol.HolderRef) (*inventory.Store, *opError) {
	switch ref.Holder {
	case protocol.HolderInventory, protocol.HolderSlot:
		return a.Inv, nil
	case protocol.HolderContainer, protocol.HolderContainerSlot:
		c := w.containers[ref.ContainerID]
		if c == nil || !a.open[ref.ContainerID] {
			return nil, invalidTarget("container %q is not open", ref.ContainerID)
		}
		return c.Store, nil
	default:
		return nil, badRequest("unknown holder %q", ref.Holder)
	}
}

// slotRef checks wire-supplied indices before they reach the store, which
// panics on out-of-range access.
func (w *World) slotRef(s *inventory.Store, i int) (*inventory.SlotRef, *opError) {
	if i < 0 || i >= s.Size() {
		return nil, badRequest("slot %d out of range [0,%d)", i, s.Size())
	}
	return s.Ref(i), nil
}

func describe(ref *protocol.HolderRef) string {
	if ref == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(ref.Holder)
	switch {
	case ref.ContainerID != "":
		b.WriteString(":" + ref.ContainerID)
	case ref.GroundID != "":
		b.WriteString(":" + ref.GroundID)
	}
	if ref.Slot != nil {
		fmt.Fprintf(&b, "[%d]", *ref.Slot)
	}
	return b.String()
}
