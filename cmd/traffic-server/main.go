// Command traffic-server serves a shared traffic area over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/traffic-control/internal/api"
	"github.com/banshee-data/traffic-control/internal/config"
	"github.com/banshee-data/traffic-control/internal/monitoring"
	"github.com/banshee-data/traffic-control/internal/store"
	"github.com/banshee-data/traffic-control/internal/traffic"
	"github.com/banshee-data/traffic-control/internal/version"
)

var (
	listen        = flag.String("listen", ":8080", "Listen address")
	configPath    = flag.String("config", "", "Path to a JSON config for the grid shape")
	dbPath        = flag.String("db", "", "SQLite database for snapshots (disabled when empty)")
	capacity      = flag.Int("capacity", 1, "Slots per cell")
	width         = flag.Int("width", 10, "Grid width")
	height        = flag.Int("height", 5, "Grid height")
	restoreLatest = flag.Bool("restore-latest", false, "Restore the newest snapshot on startup")
	showVersion   = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("traffic-server", version.String())
		return
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg := config.DefaultSimulationConfig()
	if *configPath != "" {
		loaded, err := config.LoadSimulationConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		cfg = loaded
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "capacity":
			cfg.SetCapacity(*capacity)
		case "width":
			cfg.SetWidth(*width)
		case "height":
			cfg.SetHeight(*height)
		case "db":
			cfg.SetDBPath(*dbPath)
		}
	})
	cfg.Targets = nil
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	area := traffic.NewArea(cfg.GetCapacity(), cfg.GetWidth(), cfg.GetHeight())
	ctrl := traffic.NewController(traffic.NewControlLogic(area))

	var db *store.DB
	if path := cfg.GetDBPath(); path != "" {
		var err error
		db, err = store.Open(path)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()
	}

	if *restoreLatest {
		if db == nil {
			log.Fatal("-restore-latest requires -db")
		}
		if err := restoreNewest(ctrl, store.NewSnapshotStore(db)); err != nil {
			log.Fatalf("failed to restore snapshot: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler, err := newHandler(ctx, ctrl, db)
	if err != nil {
		log.Fatalf("failed to build routes: %v", err)
	}

	server := &http.Server{
		Addr:    *listen,
		Handler: handler,
	}

	go func() {
		monitoring.Logf("serving %dx%d area (capacity %d) on %s", cfg.GetWidth(), cfg.GetHeight(), cfg.GetCapacity(), *listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}

	if db != nil {
		if err := persistShutdown(ctrl, store.NewSnapshotStore(db)); err != nil {
			log.Printf("failed to save shutdown snapshot: %v", err)
		}
	}
	log.Printf("Graceful shutdown complete")
}

// newHandler assembles the API routes, plus the debug routes and snapshot
// endpoints when db is set, behind the logging middleware. The stream hub runs
// until ctx is done.
func newHandler(ctx context.Context, ctrl *traffic.Controller, db *store.DB) (http.Handler, error) {
	var snaps *store.SnapshotStore
	if db != nil {
		snaps = store.NewSnapshotStore(db)
	}
	srv := api.NewServer(ctrl, snaps)
	go srv.Hub().Run(ctx)
	mux := srv.ServeMux()
	if db != nil {
		if err := db.AttachAdminRoutes(mux); err != nil {
			return nil, err
		}
	}
	return api.LoggingMiddleware(mux), nil
}

// restoreNewest loads the newest snapshot. An empty store is not an error.
func restoreNewest(ctrl *traffic.Controller, snaps *store.SnapshotStore) error {
	latest, err := snaps.Latest()
	if errors.Is(err, store.ErrSnapshotNotFound) {
		monitoring.Logf("no snapshot to restore")
		return nil
	}
	if err != nil {
		return err
	}
	return ctrl.Do(func(l *traffic.ControlLogic) error {
		snap, err := store.Restore(l.TrafficArea(), snaps, latest.SnapshotID)
		if err != nil {
			return err
		}
		monitoring.Logf("restored snapshot %s (%d occupied slots)", snap.SnapshotID, snap.OccupiedSlots)
		return nil
	})
}

func persistShutdown(ctrl *traffic.Controller, snaps *store.SnapshotStore) error {
	return ctrl.Do(func(l *traffic.ControlLogic) error {
		snap, err := store.Persist(l.TrafficArea(), snaps, "shutdown")
		if err != nil {
			return err
		}
		monitoring.Logf("saved shutdown snapshot %s", snap.SnapshotID)
		return nil
	})
}
