package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"stackcraft.ai/internal/persistence/snapshot"
	"stackcraft.ai/internal/sim/catalogs"
	"stackcraft.ai/internal/sim/tuning"
	"stackcraft.ai/internal/sim/world"
)

// SQLiteIndex is a queryable read model of audits and snapshots. Writes are
// queued and applied by one goroutine so the world loop never waits on disk.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Uint64
}

type reqKind int

const (
	reqAudit reqKind = iota + 1
	reqSnapshot
	reqFlush
)

type req struct {
	kind reqKind

	audit    world.AuditEntry
	snapshot snapshotRow
	done     chan struct{}
}

type snapshotRow struct {
	Tick       uint64
	Path       string
	Agents     int
	Containers int
	Ground     int
	Items      int
	Slots      []slotRow
}

type slotRow struct {
	Owner string // agent id, container id, or agent id + "/cursor"
	Slot  int
	Item  string
	Count int
}

// AuditRow is one indexed audit entry.
type AuditRow struct {
	Seq int `json:"seq"`
	world.AuditEntry
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS audits (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			from_holder TEXT,
			to_holder TEXT,
			item TEXT,
			count INTEGER NOT NULL,
			code TEXT,
			reason TEXT,
			PRIMARY KEY(tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_actor_tick ON audits(actor, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_item_tick ON audits(item, tick);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			agents INTEGER NOT NULL,
			containers INTEGER NOT NULL,
			ground INTEGER NOT NULL,
			items INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS slot_state (
			owner TEXT NOT NULL,
			slot INTEGER NOT NULL,
			item TEXT NOT NULL,
			count INTEGER NOT NULL,
			tick INTEGER NOT NULL,
			PRIMARY KEY(owner, slot)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Dropped counts writes discarded because the queue was full.
func (s *SQLiteIndex) Dropped() uint64 { return s.dropped.Load() }

func (s *SQLiteIndex) enqueue(r req) {
	select {
	case s.ch <- r:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
		s.dropped.Add(1)
	}
}

func (s *SQLiteIndex) WriteAudit(entry world.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	s.enqueue(req{kind: reqAudit, audit: entry})
	return nil
}

// RecordSnapshot indexes a written snapshot file and replaces the slot state
// table with the snapshot's contents.
func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := snapshotRow{
		Tick:       snap.Header.Tick,
		Path:       path,
		Agents:     len(snap.Agents),
		Containers: len(snap.Containers),
		Ground:     len(snap.Ground),
	}
	for _, n := range snap.ItemTotals() {
		r.Items += n
	}
	for _, a := range snap.Agents {
		for _, sl := range a.Inventory {
			r.Slots = append(r.Slots, slotRow{Owner: a.ID, Slot: sl.Slot, Item: sl.Item, Count: sl.Count})
		}
		if a.Cursor != nil {
			r.Slots = append(r.Slots, slotRow{Owner: a.ID + "/cursor", Item: a.Cursor.Item, Count: a.Cursor.Count})
		}
	}
	for _, c := range snap.Containers {
		for _, sl := range c.Slots {
			r.Slots = append(r.Slots, slotRow{Owner: c.ID, Slot: sl.Slot, Item: sl.Item, Count: sl.Count})
		}
	}
	s.enqueue(req{kind: reqSnapshot, snapshot: r})
}

// Flush waits until every write queued before the call is committed.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqFlush, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpsertCatalog stores the item and container catalogs and the tuning in
// effect, keyed by name with their digests.
func (s *SQLiteIndex) UpsertCatalog(cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv

	defs := make([]*catalogs.ItemDef, 0, len(cats.Items.Palette))
	for _, id := range cats.Items.Palette {
		defs = append(defs, cats.Items.Defs[id])
	}
	if b, _ := json.Marshal(defs); len(b) > 0 {
		rows = append(rows, kv{name: "items_defs", digest: cats.Items.DefsDigest, json: b})
	}
	if b, _ := json.Marshal(cats.Items.Palette); len(b) > 0 {
		rows = append(rows, kv{name: "items_palette", digest: cats.Items.PaletteDigest, json: b})
	}
	{
		cdefs := make([]catalogs.ContainerDef, 0, len(cats.Containers.Defs))
		for _, d := range cats.Containers.Defs {
			cdefs = append(cdefs, d)
		}
		sort.Slice(cdefs, func(i, j int) bool { return cdefs[i].Type < cdefs[j].Type })
		if b, _ := json.Marshal(cdefs); len(b) > 0 {
			rows = append(rows, kv{name: "containers", digest: cats.Containers.Digest, json: b})
		}
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.name == "" || r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CatalogDigest returns the stored digest for a catalog name.
func (s *SQLiteIndex) CatalogDigest(ctx context.Context, name string) (string, error) {
	var d string
	err := s.db.QueryRowContext(ctx, `SELECT digest FROM catalogs WHERE name=?`, name).Scan(&d)
	return d, err
}

// QueryAudits returns the newest audit rows first. An empty agentID matches
// every actor; limit <= 0 means 100.
func (s *SQLiteIndex) QueryAudits(ctx context.Context, agentID string, limit int) ([]AuditRow, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT tick,seq,actor,action,COALESCE(from_holder,''),COALESCE(to_holder,''),COALESCE(item,''),count,COALESCE(code,''),COALESCE(reason,'') FROM audits`
	args := []any{}
	if agentID != "" {
		q += ` WHERE actor=?`
		args = append(args, agentID)
	}
	q += ` ORDER BY tick DESC, seq DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AuditRow
	for rows.Next() {
		var r AuditRow
		var tick int64
		if err := rows.Scan(&tick, &r.Seq, &r.Actor, &r.Action, &r.From, &r.To, &r.Item, &r.Count, &r.Code, &r.Reason); err != nil {
			return nil, err
		}
		r.Tick = uint64(tick)
		out = append(out, r)
	}
	return out, rows.Err()
}

// SlotState is one row of the latest indexed inventory contents.
type SlotState struct {
	Owner string `json:"owner"`
	Slot  int    `json:"slot"`
	Item  string `json:"item"`
	Count int    `json:"count"`
	Tick  uint64 `json:"tick"`
}

// QuerySlots lists the slot state of one owner (agent or container id).
func (s *SQLiteIndex) QuerySlots(ctx context.Context, owner string) ([]SlotState, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT owner,slot,item,count,tick FROM slot_state WHERE owner=? ORDER BY slot`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SlotState
	for rows.Next() {
		var r SlotState
		var tick int64
		if err := rows.Scan(&r.Owner, &r.Slot, &r.Item, &r.Count, &tick); err != nil {
			return nil, err
		}
		r.Tick = uint64(tick)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertAudit, _ := s.db.Prepare(`INSERT OR REPLACE INTO audits(tick,seq,actor,action,from_holder,to_holder,item,count,code,reason) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,path,agents,containers,ground,items) VALUES(?,?,?,?,?,?)`)
	insertSlot, _ := s.db.Prepare(`INSERT OR REPLACE INTO slot_state(owner,slot,item,count,tick) VALUES(?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertAudit, insertSnapshot, insertSlot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		lastAuditTick uint64
		auditSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			// If we can't start a tx, we can't do much; sleep a bit.
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		if r.kind == reqFlush {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqAudit:
			a := r.audit
			if a.Tick != lastAuditTick {
				lastAuditTick = a.Tick
				auditSeq = 0
			}
			seq := auditSeq
			auditSeq++
			if insertAudit == nil {
				continue
			}
			if _, err := tx.Stmt(insertAudit).Exec(int64(a.Tick), seq, a.Actor, a.Action, a.From, a.To, a.Item, a.Count, a.Code, a.Reason); err != nil {
				rollback()
				continue
			}
			opCount++

		case reqSnapshot:
			sn := r.snapshot
			if insertSnapshot == nil || insertSlot == nil {
				continue
			}
			if _, err := tx.Stmt(insertSnapshot).Exec(int64(sn.Tick), sn.Path, sn.Agents, sn.Containers, sn.Ground, sn.Items); err != nil {
				rollback()
				continue
			}
			if _, err := tx.Exec(`DELETE FROM slot_state`); err != nil {
				rollback()
				continue
			}
			ok := true
			for _, sl := range sn.Slots {
				if _, err := tx.Stmt(insertSlot).Exec(sl.Owner, sl.Slot, sl.Item, sl.Count, int64(sn.Tick)); err != nil {
					ok = false
					break
				}
			}
			if !ok {
				rollback()
				continue
			}
			// Snapshot state lands atomically.
			commit()
			continue
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}
