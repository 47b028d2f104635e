package world

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"stackcraft.ai/internal/sim/catalogs"
	"stackcraft.ai/internal/sim/inventory"
)

// GroundItem is a stack lying in the world. It is a Source only: items on
// the ground are picked up, never added to.
type GroundItem struct {
	ID        string
	Kind      *catalogs.ItemDef
	Count     int
	DroppedBy string
	Tick      uint64

	w *World
}

var _ inventory.Source = (*GroundItem)(nil)

func (g *GroundItem) Item() inventory.Kind {
	if g.Count <= 0 || g.Kind == nil {
		return nil
	}
	return g.Kind
}

func (g *GroundItem) Number() int                        { return g.Count }
func (g *GroundItem) RelatedSources() []inventory.Source { return nil }

func (g *GroundItem) RemoveItems(n int) {
	if n <= 0 {
		return
	}
	g.Count -= min(n, g.Count)
	if g.w == nil {
		return
	}
	if g.Count == 0 {
		delete(g.w.ground, g.ID)
	}
	g.w.groundDirty = true
}

// GroundDrop is the world-drop target: it accepts any amount and turns each
// drop into a new ground item.
type GroundDrop struct {
	w     *World
	actor string
	tick  uint64
}

var _ inventory.Destination = GroundDrop{}

func (d GroundDrop) MaxAcceptable(k inventory.Kind) int {
	if _, ok := k.(*catalogs.ItemDef); !ok {
		return 0
	}
	return math.MaxInt
}

func (d GroundDrop) AddItems(k inventory.Kind, n int) int {
	def, ok := k.(*catalogs.ItemDef)
	if !ok || def == nil || n <= 0 {
		return 0
	}
	d.w.spawnGround(def, n, d.actor, d.tick)
	return n
}

func (w *World) groundDrop(actor string, tick uint64) GroundDrop {
	return GroundDrop{w: w, actor: actor, tick: tick}
}

func (w *World) spawnGround(def *catalogs.ItemDef, n int, actor string, tick uint64) *GroundItem {
	id := fmt.Sprintf("G%d", w.nextGroundNum.Add(1))
	g := &GroundItem{ID: id, Kind: def, Count: n, DroppedBy: actor, Tick: tick, w: w}
	w.ground[id] = g
	w.groundDirty = true
	return g
}

// groundItems lists ground items in spawn order.
func (w *World) groundItems() []*GroundItem {
	out := make([]*GroundItem, 0, len(w.ground))
	for _, g := range w.ground {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return groundNum(out[i].ID) < groundNum(out[j].ID) })
	return out
}

func groundNum(id string) uint64 {
	if len(id) < 2 {
		return 0
	}
	n, _ := strconv.ParseUint(id[1:], 10, 64)
	return n
}
