package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// DefaultMaxStack applies to items that do not set max_stack.
const DefaultMaxStack = 100

type Catalogs struct {
	Items      ItemCatalog
	Containers ContainerCatalog
}

type ItemCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]*ItemDef
	PaletteDigest string
	DefsDigest    string
}

// ItemDef describes one item type. Pointers handed out by the catalog are the
// item kinds used by inventories, so a def must not be copied once loaded.
type ItemDef struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category"` // "MATERIAL","TOOL","CONSUMABLE"
	MaxStack    int    `json:"max_stack,omitempty"`
	SellPrice   int    `json:"sell_price,omitempty"`
}

func (d *ItemDef) MaxStackSize() int { return d.MaxStack }
func (d *ItemDef) String() string    { return d.ID }

type ContainerCatalog struct {
	Defs   map[string]ContainerDef
	Digest string
}

type ContainerDef struct {
	Type  string `json:"type"`
	Slots int    `json:"slots"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := LoadItems(filepath.Join(configDir, "items.json"), &c.Items); err != nil {
		return nil, err
	}
	if err := loadContainers(filepath.Join(configDir, "containers.json"), &c.Containers); err != nil {
		return nil, err
	}
	return &c, nil
}

// Lookup resolves an item id to its kind.
func (c *ItemCatalog) Lookup(id string) (*ItemDef, bool) {
	if c == nil || c.Defs == nil {
		return nil, false
	}
	d, ok := c.Defs[id]
	return d, ok
}

// MustLookup is Lookup for ids already validated against the catalog.
func (c *ItemCatalog) MustLookup(id string) *ItemDef {
	d, ok := c.Lookup(id)
	if !ok {
		panic(fmt.Sprintf("catalogs: unknown item %q", id))
	}
	return d
}

func LoadItems(path string, out *ItemCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := ParseItems(raw, out); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}

// ParseItems validates raw against the item schema and fills out.
func ParseItems(raw []byte, out *ItemCatalog) error {
	if err := validate(itemsSchema, raw); err != nil {
		return err
	}
	out.DefsDigest = sha256Hex(raw)

	var defs []ItemDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return err
	}
	out.Defs = make(map[string]*ItemDef, len(defs))
	for i := range defs {
		d := defs[i]
		if d.ID == "" {
			return fmt.Errorf("empty id")
		}
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("duplicate id %s", d.ID)
		}
		if d.MaxStack <= 0 {
			d.MaxStack = DefaultMaxStack
		}
		out.Defs[d.ID] = &d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

func loadContainers(path string, out *ContainerCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		// Allow missing: only player inventories exist then.
		if os.IsNotExist(err) {
			out.Digest = sha256Hex(nil)
			out.Defs = map[string]ContainerDef{}
			return nil
		}
		return err
	}
	if err := validate(containersSchema, raw); err != nil {
		return fmt.Errorf("containers.json: %w", err)
	}
	out.Digest = sha256Hex(raw)

	var defs []ContainerDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("containers.json: %w", err)
	}
	out.Defs = map[string]ContainerDef{}
	for _, d := range defs {
		if d.Type == "" {
			return fmt.Errorf("containers.json: empty type")
		}
		out.Defs[d.Type] = d
	}
	return nil
}

func validate(schema *jsonschema.Schema, raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return schema.Validate(v)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
