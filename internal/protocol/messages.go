package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	AgentName       string            `json:"agent_name"`
	Capabilities    HelloCapabilities `json:"capabilities"`
	Auth            *HelloAuth        `json:"auth,omitempty"`
}

type HelloCapabilities struct {
	MaxQueue int `json:"max_queue,omitempty"`
}

type HelloAuth struct {
	Token string `json:"token,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id,omitempty"`
	AgentID         string         `json:"agent_id"`
	ResumeToken     string         `json:"resume_token"`
	WorldParams     WorldParams    `json:"world_params"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type WorldParams struct {
	TickRateHz    int `json:"tick_rate_hz"`
	InventorySize int `json:"inventory_size"`
	OpsPerTick    int `json:"ops_per_tick"`
}

type CatalogDigests struct {
	ItemPalette      DigestRef `json:"item_palette"`
	ItemDefsDigest   string    `json:"item_defs_digest"`
	ContainersDigest string    `json:"containers_digest"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// CATALOG (server -> client)
type CatalogMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Name            string `json:"name"`
	Digest          string `json:"digest"`
	Data            any    `json:"data"`
}

// Inventory op names.
const (
	OpMove    = "MOVE"    // swap-aware move of the whole stack
	OpMoveN   = "MOVE_N"  // move at most Count items
	OpSplit   = "SPLIT"   // move half the stack
	OpCollect = "COLLECT" // gather every matching stack of the source's inventory
	OpDrop    = "DROP"    // throw the stack on the ground
	OpPickup  = "PICKUP"  // ground item into the player inventory
	OpRelease = "RELEASE" // end of interaction: settle whatever is in hand
	OpOpen    = "OPEN"
	OpClose   = "CLOSE"
)

// Holder names used in HolderRef.
const (
	HolderInventory     = "INVENTORY"
	HolderSlot          = "SLOT"
	HolderCursor        = "CURSOR"
	HolderContainer     = "CONTAINER"
	HolderContainerSlot = "CONTAINER_SLOT"
	HolderGround        = "GROUND"
)

// HolderRef names one participant of a move.
type HolderRef struct {
	Holder      string `json:"holder"`
	ContainerID string `json:"container_id,omitempty"`
	GroundID    string `json:"ground_id,omitempty"`
	Slot        *int   `json:"slot,omitempty"`
}

type InvOp struct {
	ID    string     `json:"id"`
	Op    string     `json:"op"`
	From  *HolderRef `json:"from,omitempty"`
	To    *HolderRef `json:"to,omitempty"`
	Count int        `json:"count,omitempty"`
	Item  string     `json:"item,omitempty"`

	ContainerID string `json:"container_id,omitempty"`
}

// ACT (client -> server)
type ActMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Tick            uint64  `json:"tick"`
	AgentID         string  `json:"agent_id"`
	Ops             []InvOp `json:"ops"`
}

// ACK (server -> client)
type AckMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Tick            uint64     `json:"tick"`
	Results         []OpResult `json:"results"`
}

type OpResult struct {
	ID      string `json:"id"`
	Op      string `json:"op"`
	Moved   int    `json:"moved"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

type ItemStack struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

type SlotStack struct {
	Slot  int    `json:"slot"`
	Item  string `json:"item"`
	Count int    `json:"count"`
}

// INV (server -> client)
type InvMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Tick            uint64      `json:"tick"`
	Inventory       *StoreView  `json:"inventory,omitempty"`
	Cursor          *ItemStack  `json:"cursor,omitempty"`
	Containers      []StoreView `json:"containers,omitempty"`
	Ground          []GroundRef `json:"ground,omitempty"`
}

// StoreView lists the non-empty slots of a store.
type StoreView struct {
	ContainerID string      `json:"container_id,omitempty"`
	Size        int         `json:"size"`
	Slots       []SlotStack `json:"slots"`
}

type GroundRef struct {
	GroundID string `json:"ground_id"`
	Item     string `json:"item"`
	Count    int    `json:"count"`
}
