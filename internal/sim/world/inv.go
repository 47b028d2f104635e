package world

import (
	"encoding/json"
	"sort"

	"stackcraft.ai/internal/protocol"
	"stackcraft.ai/internal/sim/inventory"
)

// flush pushes this tick's ACK and, for agents whose view changed, a fresh
// INV to every connected client.
func (w *World) flush(nowTick uint64) {
	groundDirty := w.groundDirty
	w.groundDirty = false

	for id, a := range w.agents {
		cl := w.clients[id]
		if cl == nil {
			continue
		}
		if len(a.results) > 0 {
			ack := protocol.AckMsg{
				Type:            protocol.TypeAck,
				ProtocolVersion: protocol.Version,
				Tick:            nowTick,
				Results:         append([]protocol.OpResult(nil), a.results...),
			}
			if b, err := json.Marshal(ack); err == nil {
				sendLatest(cl.Out, b)
			}
		}
		if !a.dirty && !groundDirty {
			continue
		}
		a.dirty = false
		b, err := json.Marshal(w.buildInv(a, nowTick))
		if err != nil {
			continue
		}
		sendLatest(cl.Out, b)
	}
}

// buildInv is the full inventory view of one agent.
func (w *World) buildInv(a *Agent, nowTick uint64) protocol.InvMsg {
	inv := storeView("", a.Inv)
	msg := protocol.InvMsg{
		Type:            protocol.TypeInv,
		ProtocolVersion: protocol.Version,
		Tick:            nowTick,
		Inventory:       &inv,
	}
	if !a.Cursor.Empty() {
		msg.Cursor = &protocol.ItemStack{Item: itemID(a.Cursor.Item()), Count: a.Cursor.Number()}
	}

	open := make([]string, 0, len(a.open))
	for id := range a.open {
		open = append(open, id)
	}
	sort.Strings(open)
	for _, id := range open {
		if c := w.containers[id]; c != nil {
			msg.Containers = append(msg.Containers, storeView(id, c.Store))
		}
	}

	for _, g := range w.groundItems() {
		msg.Ground = append(msg.Ground, protocol.GroundRef{GroundID: g.ID, Item: itemID(g.Kind), Count: g.Count})
	}
	return msg
}

func storeView(id string, s *inventory.Store) protocol.StoreView {
	v := protocol.StoreView{ContainerID: id, Size: s.Size(), Slots: []protocol.SlotStack{}}
	for i, sl := range s.Slots() {
		if sl.Empty() {
			continue
		}
		v.Slots = append(v.Slots, protocol.SlotStack{Slot: i, Item: itemID(sl.Kind), Count: sl.Count})
	}
	return v
}
