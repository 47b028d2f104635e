package world

import (
	"fmt"
	"sort"

	"stackcraft.ai/internal/persistence/snapshot"
	"stackcraft.ai/internal/sim/inventory"
)

// Snapshot captures the world at tick. It must run on the world loop, or
// after Run has returned.
func (w *World) Snapshot(tick uint64) snapshot.SnapshotV1 {
	starter := make(map[string]int, len(w.tune.StarterItems))
	for k, v := range w.tune.StarterItems {
		starter[k] = v
	}
	snap := snapshot.SnapshotV1{
		Header:            snapshot.Header{Version: 1, WorldID: w.cfg.ID, Tick: tick},
		TickRate:          w.tune.TickRateHz,
		InventorySize:     w.tune.InventorySize,
		StrandedPolicy:    w.tune.StrandedPolicy,
		StarterItems:      starter,
		ItemPaletteDigest: w.catalogs.Items.PaletteDigest,
		NextAgentNum:      w.nextAgentNum.Load(),
		NextGroundNum:     w.nextGroundNum.Load(),
	}

	agentIDs := make([]string, 0, len(w.agents))
	for id := range w.agents {
		agentIDs = append(agentIDs, id)
	}
	sort.Strings(agentIDs)
	for _, id := range agentIDs {
		a := w.agents[id]
		av := snapshot.AgentV1{ID: a.ID, Name: a.Name, ResumeToken: a.ResumeToken, Inventory: slotsV1(a.Inv)}
		if !a.Cursor.Empty() {
			av.Cursor = &snapshot.SlotV1{Item: itemID(a.Cursor.Item()), Count: a.Cursor.Number()}
		}
		snap.Agents = append(snap.Agents, av)
	}

	cids := make([]string, 0, len(w.containers))
	for id := range w.containers {
		cids = append(cids, id)
	}
	sort.Strings(cids)
	for _, id := range cids {
		c := w.containers[id]
		snap.Containers = append(snap.Containers, snapshot.ContainerV1{ID: c.ID, Type: c.Type, Size: c.Store.Size(), Slots: slotsV1(c.Store)})
	}

	for _, g := range w.groundItems() {
		snap.Ground = append(snap.Ground, snapshot.GroundItemV1{ID: g.ID, Item: g.Kind.ID, Count: g.Count, DroppedBy: g.DroppedBy, Tick: g.Tick})
	}
	return snap
}

func slotsV1(s *inventory.Store) []snapshot.SlotV1 {
	out := []snapshot.SlotV1{}
	for i, sl := range s.Slots() {
		if sl.Empty() {
			continue
		}
		out = append(out, snapshot.SlotV1{Slot: i, Item: itemID(sl.Kind), Count: sl.Count})
	}
	return out
}

// RestoreSnapshot replaces the world state with snap. It must be called
// before Run. Saved contents are trusted and written with SetSlot, so a
// stack larger than today's max_stack survives a catalog change.
func (w *World) RestoreSnapshot(snap snapshot.SnapshotV1) error {
	if snap.Header.Version != 1 {
		return fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	if snap.ItemPaletteDigest != "" && snap.ItemPaletteDigest != w.catalogs.Items.PaletteDigest {
		w.logger.Printf("snapshot item palette digest differs from catalog; resolving items by id")
	}

	// Build into fresh maps so a bad snapshot leaves the world untouched.
	agents := map[string]*Agent{}
	containers := map[string]*Container{}
	ground := map[string]*GroundItem{}

	for _, av := range snap.Agents {
		if av.ID == "" {
			return fmt.Errorf("snapshot agent with empty id")
		}
		a := w.newAgent(av.ID, av.Name)
		a.ResumeToken = av.ResumeToken
		if err := w.fillStore(a.Inv, av.Inventory); err != nil {
			return fmt.Errorf("agent %s: %w", av.ID, err)
		}
		if av.Cursor != nil {
			def, ok := w.catalogs.Items.Lookup(av.Cursor.Item)
			if !ok {
				return fmt.Errorf("agent %s cursor: unknown item %s", av.ID, av.Cursor.Item)
			}
			a.Cursor.Store().SetSlot(0, def, av.Cursor.Count)
		}
		agents[a.ID] = a
	}
	for _, cv := range snap.Containers {
		if cv.Size < 0 {
			return fmt.Errorf("container %s: negative size", cv.ID)
		}
		c := w.newContainer(cv.ID, cv.Type, cv.Size)
		containers[c.ID] = c
		if err := w.fillStore(c.Store, cv.Slots); err != nil {
			return fmt.Errorf("container %s: %w", cv.ID, err)
		}
	}
	for _, gv := range snap.Ground {
		def, ok := w.catalogs.Items.Lookup(gv.Item)
		if !ok {
			return fmt.Errorf("ground %s: unknown item %s", gv.ID, gv.Item)
		}
		if gv.Count <= 0 {
			continue
		}
		ground[gv.ID] = &GroundItem{ID: gv.ID, Kind: def, Count: gv.Count, DroppedBy: gv.DroppedBy, Tick: gv.Tick, w: w}
	}

	w.agents = agents
	w.containers = containers
	w.ground = ground
	w.clients = map[string]*clientState{}
	w.groundDirty = true
	w.tick.Store(snap.Header.Tick + 1)
	w.nextAgentNum.Store(snap.NextAgentNum)
	w.nextGroundNum.Store(snap.NextGroundNum)
	return nil
}

func (w *World) fillStore(s *inventory.Store, slots []snapshot.SlotV1) error {
	for _, sl := range slots {
		if sl.Slot < 0 || sl.Slot >= s.Size() {
			return fmt.Errorf("slot %d out of range [0,%d)", sl.Slot, s.Size())
		}
		def, ok := w.catalogs.Items.Lookup(sl.Item)
		if !ok {
			return fmt.Errorf("unknown item %s", sl.Item)
		}
		s.SetSlot(sl.Slot, def, sl.Count)
	}
	return nil
}
