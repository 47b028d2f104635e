package world

import (
	"fmt"
	"strings"

	"stackcraft.ai/internal/sim/inventory"
)

// Container is a world storage block such as a chest. Its id carries the
// container type before an '@', e.g. "CHEST@12,64,-3".
type Container struct {
	ID    string
	Type  string
	Store *inventory.Store
}

func containerType(id string) (string, error) {
	typ, rest, ok := strings.Cut(id, "@")
	if !ok || typ == "" || rest == "" {
		return "", fmt.Errorf("container id %q must look like TYPE@location", id)
	}
	return typ, nil
}

// ensureContainer returns the container with id, creating it empty on first
// use. The type must exist in the container catalog.
func (w *World) ensureContainer(id string) (*Container, error) {
	if c := w.containers[id]; c != nil {
		return c, nil
	}
	typ, err := containerType(id)
	if err != nil {
		return nil, err
	}
	def, ok := w.catalogs.Containers.Defs[typ]
	if !ok {
		return nil, fmt.Errorf("unknown container type %s", typ)
	}
	c := w.newContainer(id, typ, def.Slots)
	w.containers[id] = c
	return c, nil
}

func (w *World) newContainer(id, typ string, size int) *Container {
	c := &Container{ID: id, Type: typ, Store: inventory.NewStore(size)}
	c.Store.OnChange(func(int) {
		for _, a := range w.agents {
			if a.open[id] {
				a.dirty = true
			}
		}
	})
	return c
}
