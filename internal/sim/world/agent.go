package world

import (
	"stackcraft.ai/internal/protocol"
	"stackcraft.ai/internal/sim/inventory"
)

type Agent struct {
	ID   string
	Name string

	// ResumeToken is a transport-level token used for reconnects.
	ResumeToken string

	Inv    *inventory.Store
	Cursor *inventory.Ephemeral

	// origin is where the items in hand were lifted from. RELEASE puts them
	// back there first.
	origin inventory.Destination

	// Containers this agent has opened, by id.
	open map[string]bool

	dirty       bool
	opsThisTick int
	results     []protocol.OpResult
}

func (w *World) newAgent(id, name string) *Agent {
	a := &Agent{
		ID:     id,
		Name:   name,
		Inv:    inventory.NewStore(w.tune.InventorySize),
		Cursor: inventory.NewEphemeral(),
		open:   map[string]bool{},
	}
	mark := func(int) { a.dirty = true }
	a.Inv.OnChange(mark)
	a.Cursor.Store().OnChange(mark)
	return a
}

// Agent returns the agent with id, or nil. Callers outside the world loop
// must only use it while the loop is stopped.
func (w *World) Agent(id string) *Agent { return w.agents[id] }

// Connected reports whether agent id has a live connection. Same caveat as
// Agent.
func (w *World) Connected(id string) bool {
	_, ok := w.clients[id]
	return ok
}
