// Command traffic-sim runs a batch of clients across a traffic area and
// reports how many reached their targets.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"

	"github.com/banshee-data/traffic-control/internal/api"
	"github.com/banshee-data/traffic-control/internal/config"
	"github.com/banshee-data/traffic-control/internal/monitoring"
	"github.com/banshee-data/traffic-control/internal/plot"
	"github.com/banshee-data/traffic-control/internal/render"
	"github.com/banshee-data/traffic-control/internal/sim"
	"github.com/banshee-data/traffic-control/internal/store"
	"github.com/banshee-data/traffic-control/internal/traffic"
	"github.com/banshee-data/traffic-control/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to a JSON simulation config")
	capacity    = flag.Int("capacity", 1, "Slots per cell")
	width       = flag.Int("width", 10, "Grid width")
	height      = flag.Int("height", 5, "Grid height")
	clients     = flag.Int("clients", 3, "Number of clients to admit")
	steps       = flag.Int("steps", 100, "Maximum number of rounds")
	interval    = flag.Duration("interval", 0, "Pause between rounds")
	dbPath      = flag.String("db", "", "SQLite database for the run log and final snapshot")
	plotDir     = flag.String("plot-dir", "", "Directory for trajectory plots")
	serverURL   = flag.String("server", "", "Drive a remote traffic-server instead of a local grid")
	tui         = flag.Bool("tui", false, "Show the grid live in the terminal")
	dump        = flag.Bool("dump", false, "Print the grid before and after the run")
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("traffic-sim", version.String())
		return
	}

	cfg, err := buildConfig()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := runOptions{serverURL: *serverURL, dump: *dump}

	if *tui {
		screen, err := tcell.NewScreen()
		if err != nil {
			log.Fatalf("failed to create screen: %v", err)
		}
		if err := screen.Init(); err != nil {
			log.Fatalf("failed to initialise screen: %v", err)
		}
		// Log lines would tear the display.
		monitoring.SetLogger(nil)
		opts.screen = screen

		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		defer cancel()
		go pollQuit(screen, cancel)
	}

	res, err := run(ctx, cfg, os.Stdout, opts)
	if opts.screen != nil {
		opts.screen.Fini()
	}
	if res != nil {
		printSummary(os.Stdout, res)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("simulation failed: %v", err)
	}
}

// buildConfig loads -config when given, then applies any flags set on the
// command line on top of it.
func buildConfig() (*config.SimulationConfig, error) {
	cfg := config.DefaultSimulationConfig()
	if *configPath != "" {
		loaded, err := config.LoadSimulationConfig(*configPath)
		if err != nil {
			return nil, err
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
		case "clients":
			cfg.SetClients(*clients)
		case "steps":
			cfg.SetMaxSteps(*steps)
		case "interval":
			cfg.SetStepInterval(*interval)
		case "db":
			cfg.SetDBPath(*dbPath)
		case "plot-dir":
			cfg.SetPlotDir(*plotDir)
		}
	})

	// Default targets follow the grid shape, which flags may have changed.
	if *configPath == "" {
		cfg.Targets = nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type runOptions struct {
	serverURL string
	dump      bool
	screen    tcell.Screen
}

// run wires the controller, recorders and outputs around one simulation.
func run(ctx context.Context, cfg *config.SimulationConfig, out io.Writer, opts runOptions) (*sim.Result, error) {
	if opts.serverURL != "" {
		if cfg.GetDBPath() != "" || opts.dump || opts.screen != nil {
			return nil, fmt.Errorf("-db, -dump and -tui need a local grid and cannot be used with -server")
		}
		return runRemote(ctx, cfg, opts.serverURL)
	}

	area := traffic.NewArea(cfg.GetCapacity(), cfg.GetWidth(), cfg.GetHeight())
	ctrl := traffic.NewController(traffic.NewControlLogic(area))
	s := sim.New(ctrl, cfg)

	if opts.dump {
		fmt.Fprint(out, ctrl.Dump())
	}

	var (
		runs  *store.RunStore
		snaps *store.SnapshotStore
		rec   *store.Run
	)
	if path := cfg.GetDBPath(); path != "" {
		db, err := store.Open(path)
		if err != nil {
			return nil, err
		}
		defer db.Close()

		runs = store.NewRunStore(db)
		snaps = store.NewSnapshotStore(db)
		rec = &store.Run{
			Capacity: cfg.GetCapacity(),
			Width:    cfg.GetWidth(),
			Height:   cfg.GetHeight(),
			Clients:  cfg.GetClients(),
		}
		if err := runs.InsertRun(rec); err != nil {
			return nil, err
		}
		s.AddRecorder(runs.Recorder(rec.RunID))
		monitoring.Logf("recording run %s to %s", rec.RunID, path)
	}

	plotter, err := startPlotter(cfg)
	if err != nil {
		return nil, err
	}
	if plotter != nil {
		s.AddRecorder(plotter)
	}

	if opts.screen != nil {
		live := render.NewLive(opts.screen, ctrl.Grid, cfg.GetTargets())
		live.Refresh("starting")
		s.AddRecorder(live)
	}

	res, runErr := s.Run(ctx)
	if res == nil {
		return nil, runErr
	}

	if runs != nil {
		var snap *store.Snapshot
		err := ctrl.Do(func(l *traffic.ControlLogic) error {
			var err error
			snap, err = store.Persist(l.TrafficArea(), snaps, "simulation")
			return err
		})
		if err != nil {
			return res, err
		}
		if err := runs.FinishRun(rec.RunID, res, snap.SnapshotID); err != nil {
			return res, err
		}
	}

	if err := generatePlots(plotter); err != nil {
		return res, err
	}

	if opts.dump {
		fmt.Fprint(out, ctrl.Dump())
	}
	return res, runErr
}

func runRemote(ctx context.Context, cfg *config.SimulationConfig, serverURL string) (*sim.Result, error) {
	s := sim.New(api.NewClient(serverURL, nil), cfg)
	plotter, err := startPlotter(cfg)
	if err != nil {
		return nil, err
	}
	if plotter != nil {
		s.AddRecorder(plotter)
	}
	res, runErr := s.Run(ctx)
	if res == nil {
		return nil, runErr
	}
	if err := generatePlots(plotter); err != nil {
		return res, err
	}
	return res, runErr
}

func startPlotter(cfg *config.SimulationConfig) (*plot.TrajectoryPlotter, error) {
	dir := cfg.GetPlotDir()
	if dir == "" {
		return nil, nil
	}
	tp := plot.NewTrajectoryPlotter(cfg.GetWidth(), cfg.GetHeight())
	if err := tp.Start(dir); err != nil {
		return nil, err
	}
	return tp, nil
}

func generatePlots(tp *plot.TrajectoryPlotter) error {
	if tp == nil {
		return nil
	}
	n, err := tp.Generate()
	if err != nil {
		return fmt.Errorf("failed to generate plots: %w", err)
	}
	monitoring.Logf("wrote %d plots", n)
	return nil
}

func printSummary(out io.Writer, res *sim.Result) {
	fmt.Fprintf(out, "rounds=%d moves=%d arrived=%d/%d rejected=%d stalled=%t\n",
		res.Rounds, res.Moves, len(res.Arrived), len(res.Paths), len(res.Rejected), res.Stalled)
}

func pollQuit(screen tcell.Screen, cancel context.CancelFunc) {
	for {
		ev := screen.PollEvent()
		if ev == nil {
			return
		}
		if key, ok := ev.(*tcell.EventKey); ok {
			if key.Key() == tcell.KeyEscape || key.Key() == tcell.KeyCtrlC || key.Rune() == 'q' {
				cancel()
				return
			}
		}
	}
}
