package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// FileSuffix is appended to the tick number to name snapshot files.
const FileSuffix = ".snap.zst"

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	TickRate       int            `json:"tick_rate_hz"`
	InventorySize  int            `json:"inventory_size"`
	StrandedPolicy string         `json:"stranded_policy"`
	StarterItems   map[string]int `json:"starter_items,omitempty"`

	// Digest of the item palette the item ids below were written against.
	ItemPaletteDigest string `json:"item_palette_digest"`

	NextAgentNum  uint64 `json:"next_agent_num"`
	NextGroundNum uint64 `json:"next_ground_num"`

	Agents     []AgentV1      `json:"agents"`
	Containers []ContainerV1  `json:"containers"`
	Ground     []GroundItemV1 `json:"ground,omitempty"`
}

type SlotV1 struct {
	Slot  int    `json:"slot"`
	Item  string `json:"item"`
	Count int    `json:"count"`
}

type AgentV1 struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	ResumeToken string   `json:"resume_token,omitempty"`
	Inventory   []SlotV1 `json:"inventory"`

	// Items still in hand when the snapshot was taken (keep policy).
	Cursor *SlotV1 `json:"cursor,omitempty"`
}

type ContainerV1 struct {
	ID    string   `json:"id"`
	Type  string   `json:"type"`
	Size  int      `json:"size"`
	Slots []SlotV1 `json:"slots"`
}

type GroundItemV1 struct {
	ID        string `json:"id"`
	Item      string `json:"item"`
	Count     int    `json:"count"`
	DroppedBy string `json:"dropped_by,omitempty"`
	Tick      uint64 `json:"tick"`
}

// ItemTotals sums every item across agents, cursors, containers and the
// ground. Two snapshots of a closed world must have equal totals.
func (s SnapshotV1) ItemTotals() map[string]int {
	out := map[string]int{}
	add := func(slots []SlotV1) {
		for _, sl := range slots {
			out[sl.Item] += sl.Count
		}
	}
	for _, a := range s.Agents {
		add(a.Inventory)
		if a.Cursor != nil {
			out[a.Cursor.Item] += a.Cursor.Count
		}
	}
	for _, c := range s.Containers {
		add(c.Slots)
	}
	for _, g := range s.Ground {
		out[g.Item] += g.Count
	}
	return out
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := encode(f, snap); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func encode(f *os.File, snap SnapshotV1) error {
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return enc.Close()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The header line is repeated inside the gob body.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// ReadHeader decodes only the leading header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

// PathFor names the snapshot file for tick under dir.
func PathFor(dir string, tick uint64) string {
	return filepath.Join(dir, strconv.FormatUint(tick, 10)+FileSuffix)
}

// List returns the snapshot files under dir ordered by tick.
func List(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	type entry struct {
		path string
		tick uint64
	}
	var found []entry
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), FileSuffix) {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(e.Name(), FileSuffix), 10, 64)
		if err != nil {
			continue
		}
		found = append(found, entry{path: filepath.Join(dir, e.Name()), tick: tick})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].tick < found[j].tick })
	out := make([]string, len(found))
	for i, e := range found {
		out[i] = e.path
	}
	return out, nil
}

// Latest returns the newest snapshot under dir, or "" if there is none.
func Latest(dir string) string {
	paths, err := List(dir)
	if err != nil || len(paths) == 0 {
		return ""
	}
	return paths[len(paths)-1]
}
