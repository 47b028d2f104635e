package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"stackcraft.ai/internal/persistence/archive"
	persistlog "stackcraft.ai/internal/persistence/log"
	"stackcraft.ai/internal/persistence/snapshot"
	"stackcraft.ai/internal/sim/catalogs"
	"stackcraft.ai/internal/sim/tuning"
	"stackcraft.ai/internal/sim/world"
	"stackcraft.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "world_1", "world id")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable indexing (audits + catalogs + snapshot metadata)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	snapDir := filepath.Join(worldDir, "snapshots")
	_ = os.MkdirAll(snapDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = snapshot.Latest(snapDir)
	}

	// Tuning is required for a fresh world; a resume can fall back to defaults.
	tune, err := tuning.Load(tp)
	if err != nil {
		if snapshotToLoad == "" || !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	var snap *snapshot.SnapshotV1
	if snapshotToLoad != "" {
		s, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if s.Header.WorldID != "" && s.Header.WorldID != *worldID {
			logger.Fatalf("snapshot world id mismatch: flag=%s snap=%s", *worldID, s.Header.WorldID)
		}
		// Slot layout must match what was saved.
		tune.TickRateHz = s.TickRate
		tune.InventorySize = s.InventorySize
		snap = &s
	}

	w, err := world.New(world.WorldConfig{ID: *worldID, Tuning: tune}, cats)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	if snap != nil {
		if err := w.RestoreSnapshot(*snap); err != nil {
			logger.Fatalf("restore snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s tick=%d", filepath.Base(snapshotToLoad), w.CurrentTick())
	}

	// Optional: read-model index (does not affect the world).
	idx, err := openRuntimeIndex(worldDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalog(cats, w.Tuning()); err != nil {
			logger.Printf("index: upsert catalog: %v", err)
		}
	}

	auditLog := persistlog.NewAuditLogger(worldDir)
	defer auditLog.Close()
	if idx != nil {
		w.SetAuditLogger(multiAuditLogger{a: auditLog, b: idx})
	} else {
		w.SetAuditLogger(auditLog)
	}

	sw := &snapshotWriter{
		logger:       logger,
		worldDir:     worldDir,
		keep:         w.Tuning().SnapshotKeep,
		archiveEvery: w.Tuning().ArchiveEveryTicks,
	}
	if idx != nil {
		sw.rec = idx
	}

	ctx, cancel := signalContext()
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	// Snapshot writer.
	snapCh := make(chan snapshot.SnapshotV1, 2)
	w.SetSnapshotSink(snapCh)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case s := <-snapCh:
				sw.write(s)
			}
		}
	})

	g.Go(func() error {
		if err := w.Run(gctx); err != nil && err != context.Canceled {
			return fmt.Errorf("world stopped: %w", err)
		}
		return nil
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		fmt.Fprintf(rw, "# HELP stackcraft_world_tick Current world tick.\n")
		fmt.Fprintf(rw, "# TYPE stackcraft_world_tick gauge\n")
		fmt.Fprintf(rw, "stackcraft_world_tick{world=%q} %d\n", *worldID, w.CurrentTick())

		if idx != nil {
			fmt.Fprintf(rw, "# HELP stackcraft_index_dropped_total Index writes dropped because the queue was full.\n")
			fmt.Fprintf(rw, "# TYPE stackcraft_index_dropped_total counter\n")
			fmt.Fprintf(rw, "stackcraft_index_dropped_total{world=%q} %d\n", *worldID, idx.Dropped())
		}
	})
	mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{
			"world_id": *worldID,
			"tick":     w.CurrentTick(),
		})
	})
	mux.HandleFunc("/v1/ws", ws.NewServer(w, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		<-gctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		return srv.Shutdown(ctx2)
	})
	g.Go(func() error {
		logger.Printf("listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("ListenAndServe: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Printf("shutdown: %v", err)
	}

	// The world loop has exited; its state is safe to read from here.
	if tick := w.CurrentTick(); tick > 0 {
		sw.write(w.Snapshot(tick - 1))
	}
	if idx != nil {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		if err := idx.Flush(ctx2); err != nil {
			logger.Printf("index flush: %v", err)
		}
	}
}

type snapshotRecorder interface {
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
}

// snapshotWriter persists snapshots off the world goroutine, then archives
// and prunes the snapshot dir.
type snapshotWriter struct {
	logger       *log.Logger
	worldDir     string
	keep         int
	archiveEvery int
	rec          snapshotRecorder
}

func (sw *snapshotWriter) dir() string { return filepath.Join(sw.worldDir, "snapshots") }

func (sw *snapshotWriter) write(snap snapshot.SnapshotV1) {
	path := snapshot.PathFor(sw.dir(), snap.Header.Tick)
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		sw.logger.Printf("snapshot write: %v", err)
		return
	}
	sw.logger.Printf("snapshot tick=%d agents=%d ground=%d", snap.Header.Tick, len(snap.Agents), len(snap.Ground))
	if sw.rec != nil {
		sw.rec.RecordSnapshot(path, snap)
	}

	if archived, ok, err := archive.ArchiveSnapshot(sw.worldDir, path, snap, sw.archiveEvery); err != nil {
		sw.logger.Printf("archive snapshot: %v", err)
	} else if ok {
		sw.logger.Printf("archived snapshot %s", archived)
	}
	removed, err := archive.Prune(sw.dir(), sw.keep)
	if err != nil {
		sw.logger.Printf("prune snapshots: %v", err)
	}
	for _, p := range removed {
		sw.logger.Printf("pruned snapshot %s", filepath.Base(p))
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

type multiAuditLogger struct {
	a world.AuditLogger
	b world.AuditLogger
}

func (m multiAuditLogger) WriteAudit(entry world.AuditEntry) error {
	var errA, errB error
	if m.a != nil {
		errA = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		errB = m.b.WriteAudit(entry)
	}
	return errors.Join(errA, errB)
}
