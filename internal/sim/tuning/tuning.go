package tuning

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Stranded item policies.
const (
	StrandedDrop = "drop"
	StrandedKeep = "keep"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz         int `yaml:"tick_rate_hz"`
	InventorySize      int `yaml:"inventory_size"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`

	// SnapshotKeep bounds how many snapshots stay in the snapshot dir (0 = all).
	SnapshotKeep int `yaml:"snapshot_keep"`

	// ArchiveEveryTicks copies snapshots at multiples of this tick into
	// archives/ where pruning never reaches them (0 = off).
	ArchiveEveryTicks int `yaml:"archive_every_ticks"`

	StrandedPolicy string         `yaml:"stranded_policy"`
	StarterItems   map[string]int `yaml:"starter_items"`

	RateLimits RateLimits `yaml:"rate_limits"`
}

type RateLimits struct {
	OpsPerTick int `yaml:"ops_per_tick"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:    "1.0",
		TickRateHz:         20,
		InventorySize:      20,
		SnapshotEveryTicks: 6000,
		StrandedPolicy:     StrandedDrop,
		RateLimits:         RateLimits{OpsPerTick: 16},
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Normalize(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// Normalize fills zero values from Defaults and rejects values the world
// cannot run with.
func (t *Tuning) Normalize() error {
	d := Defaults()
	if t.ProtocolVersion == "" {
		t.ProtocolVersion = d.ProtocolVersion
	}
	if t.TickRateHz <= 0 {
		t.TickRateHz = d.TickRateHz
	}
	if t.InventorySize < 0 {
		return fmt.Errorf("inventory_size must be >= 0, got %d", t.InventorySize)
	}
	if t.SnapshotEveryTicks < 0 {
		t.SnapshotEveryTicks = 0
	}
	if t.SnapshotKeep < 0 {
		t.SnapshotKeep = 0
	}
	if t.ArchiveEveryTicks < 0 {
		t.ArchiveEveryTicks = 0
	}
	t.StrandedPolicy = strings.ToLower(strings.TrimSpace(t.StrandedPolicy))
	switch t.StrandedPolicy {
	case "":
		t.StrandedPolicy = d.StrandedPolicy
	case StrandedDrop, StrandedKeep:
	default:
		return fmt.Errorf("unknown stranded_policy %q", t.StrandedPolicy)
	}
	for item, n := range t.StarterItems {
		if n <= 0 {
			delete(t.StarterItems, item)
		}
	}
	if t.RateLimits.OpsPerTick <= 0 {
		t.RateLimits.OpsPerTick = d.RateLimits.OpsPerTick
	}
	return nil
}
