package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	soilie "github.com/mikeCplus/SOILIE-3D"
	"github.com/mikeCplus/SOILIE-3D/internal/manifest"
	"github.com/mikeCplus/SOILIE-3D/internal/relstore"
	scenelayout "github.com/mikeCplus/SOILIE-3D/scene_layout"

	"go.viam.com/rdk/logging"
)

// pipeline carries the flags and shared state each step needs.
type pipeline struct {
	dataDir      string
	manifestPath string
	mode         scenelayout.AggregationMode
	seed         int64
	dbPath       string
	writePCD     bool
	objects      []string
	cfg          scenelayout.Config
	logger       logging.Logger
}

var steps = map[string]func(context.Context, *pipeline) error{
	"collect":     runCollect,
	"aggregate":   runAggregate,
	"sizes":       runSizes,
	"reconstruct": runReconstruct,
}

const validSteps = "collect, aggregate, sizes, reconstruct"

func main() {
	step := flag.String("step", "", "step to run: "+validSteps)
	dataDir := flag.String("data-dir", "data", "directory for per-scene and corpus artifacts")
	manifestPath := flag.String("manifest", "", "path to dataset manifest JSON (required for collect)")
	mode := flag.String("mode", "average", "relation aggregation mode: average or sample")
	seed := flag.Int64("seed", 0, "random seed; 0 uses the current time")
	dbPath := flag.String("db", "", "path to sqlite relation database (optional)")
	configPath := flag.String("config", "", "path to pipeline config JSON (optional)")
	writePCD := flag.Bool("pcd", false, "also dump per-object PCD files during collect")
	flag.Parse()

	logger := logging.NewLogger("soilie-cli")

	if *step == "" {
		logger.Fatal("-step flag is required; valid steps: " + validSteps)
	}
	run, ok := steps[*step]
	if !ok {
		logger.Fatalf("unknown step %q; valid steps: %s", *step, validSteps)
	}

	cfg := scenelayout.DefaultConfig()
	if *configPath != "" {
		loaded, err := scenelayout.LoadConfig(*configPath)
		if err != nil {
			logger.Fatal(err)
		}
		cfg = loaded
	}
	// One seed drives every stochastic stage of the run: the solver's
	// permutation shuffle, sampling-mode table draws, and registry colors.
	runSeed := resolveSeed(*seed, cfg.Solver.Seed)
	cfg.Solver.Seed = runSeed

	p := &pipeline{
		dataDir:      *dataDir,
		manifestPath: *manifestPath,
		seed:         runSeed,
		dbPath:       *dbPath,
		writePCD:     *writePCD,
		objects:      flag.Args(),
		cfg:          cfg,
		logger:       logger,
	}
	switch *mode {
	case "average":
		p.mode = scenelayout.Averaging
	case "sample":
		p.mode = scenelayout.Sampling
	default:
		logger.Fatalf("unknown mode %q; valid modes: average, sample", *mode)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Infof("=== Running step: %s ===", *step)
	if err := run(ctx, p); err != nil {
		logger.Fatal(err)
	}
	logger.Infof("Step %s completed successfully", *step)
}

// resolveSeed settles the run's seed once: an explicit flag wins, then a
// config-file seed, then the wall clock.
func resolveSeed(flagSeed, cfgSeed int64) int64 {
	if flagSeed != 0 {
		return flagSeed
	}
	if cfgSeed != 0 {
		return cfgSeed
	}
	return time.Now().UnixNano()
}

func (p *pipeline) rng() *rand.Rand {
	return rand.New(rand.NewSource(p.seed)) //nolint:gosec
}

func runCollect(ctx context.Context, p *pipeline) error {
	if p.manifestPath == "" {
		return errors.New("-manifest flag is required for collect")
	}
	m, err := manifest.Load(p.manifestPath)
	if err != nil {
		return err
	}

	reg := scenelayout.NewRegistry(p.seed)
	opts := soilie.SceneOptions{WritePCD: p.writePCD}
	for _, ref := range m.Scenes {
		scene, err := soilie.SceneFromManifest(ref)
		if err != nil {
			return err
		}
		if _, err := soilie.ProcessScene(ctx, scene, reg, p.dataDir, opts, p.logger); err != nil {
			return err
		}
	}

	logFile, err := os.Create(filepath.Join(p.dataDir, soilie.ObjectsLogFile))
	if err != nil {
		return fmt.Errorf("create objects log: %w", err)
	}
	defer logFile.Close()
	if err := reg.WriteLog(logFile); err != nil {
		return fmt.Errorf("write objects log: %w", err)
	}

	p.logger.Infof("collected %d scenes, %d distinct objects", len(m.Scenes), reg.Len())
	return nil
}

func runAggregate(_ context.Context, p *pipeline) error {
	csvPaths, err := filepath.Glob(filepath.Join(p.dataDir, "*", "*.csv"))
	if err != nil {
		return err
	}
	if len(csvPaths) == 0 {
		return fmt.Errorf("no per-frame triplet files under %s", p.dataDir)
	}

	records, err := soilie.GatherTriplets(csvPaths, filepath.Join(p.dataDir, soilie.TripletsFile))
	if err != nil {
		return err
	}
	table, err := soilie.AverageCorpus(records, p.dataDir)
	if err != nil {
		return err
	}
	p.logger.Infof("aggregated %d observations into %d relations", len(records), len(table))

	if p.dbPath != "" {
		store, err := relstore.Open(p.dbPath)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.SaveTable(table); err != nil {
			return err
		}
		p.logger.Infof("saved relation table to %s", p.dbPath)
	}
	return nil
}

func runSizes(_ context.Context, p *pipeline) error {
	threeDPaths, err := filepath.Glob(filepath.Join(p.dataDir, "*", "*.3d"))
	if err != nil {
		return err
	}
	if len(threeDPaths) == 0 {
		return fmt.Errorf("no 3D point dumps under %s", p.dataDir)
	}

	sizes, err := soilie.ApproximateSizes(threeDPaths, filepath.Join(p.dataDir, soilie.SizesFile), p.cfg.Sizes)
	if err != nil {
		return err
	}
	p.logger.Infof("estimated sizes for %d objects", len(sizes))

	if p.dbPath != "" {
		store, err := relstore.Open(p.dbPath)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.SaveSizes(sizes); err != nil {
			return err
		}
		p.logger.Infof("saved size estimates to %s", p.dbPath)
	}
	return nil
}

func runReconstruct(_ context.Context, p *pipeline) error {
	if len(p.objects) < 3 {
		return fmt.Errorf("reconstruct needs at least 3 object names as arguments, got %d", len(p.objects))
	}

	var table scenelayout.TripletTable
	var sizes map[string]scenelayout.SizeEstimate
	if p.dbPath != "" {
		store, err := relstore.Open(p.dbPath)
		if err != nil {
			return err
		}
		defer store.Close()
		if table, err = store.LoadTable(); err != nil {
			return err
		}
		if sizes, err = store.LoadSizes(); err != nil {
			return err
		}
	}
	if len(table) == 0 {
		var err error
		table, err = soilie.LoadTripletTable(p.dataDir, p.mode, p.rng(), p.logger)
		if err != nil {
			return err
		}
	}
	if len(sizes) == 0 {
		loaded, err := soilie.ReadSizesCSV(filepath.Join(p.dataDir, soilie.SizesFile))
		if err == nil {
			sizes = loaded
		} else if !errors.Is(err, os.ErrNotExist) {
			p.logger.Warnf("size table unusable, proceeding without: %v", err)
		}
	}

	solver := scenelayout.NewSolver(table, sizes, p.cfg.Solver, p.logger)
	layout, err := solver.Reconstruct(p.objects)
	if err != nil {
		if errors.Is(err, scenelayout.ErrInsufficientData) {
			return fmt.Errorf("relation table cannot place %v: %w", p.objects, err)
		}
		return err
	}

	outPath := filepath.Join(p.dataDir, soilie.LayoutFile)
	if err := soilie.WriteLayoutJSON(outPath, layout); err != nil {
		return err
	}

	p.logger.Infof("placed %d objects (scale %.4f), layout written to %s",
		len(layout.Positions), layout.Scale, outPath)
	for _, g := range layout.Geometries(sizes) {
		pt := g.Pose().Point()
		p.logger.Infof("  %s: center=(%.3f, %.3f, %.3f)", g.Label(), pt.X, pt.Y, pt.Z)
	}
	return nil
}
