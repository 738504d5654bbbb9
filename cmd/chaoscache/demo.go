package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"github.com/zeusync/chaoscache/internal/core/adapter"
	"github.com/zeusync/chaoscache/internal/core/adapter/geometry"
	"github.com/zeusync/chaoscache/internal/core/adapter/rigid"
	"github.com/zeusync/chaoscache/internal/core/manager"
	"github.com/zeusync/chaoscache/internal/core/physics"
	"github.com/zeusync/chaoscache/internal/core/solver"
	"github.com/zeusync/chaoscache/internal/core/storage"
	"github.com/zeusync/chaoscache/internal/injector"
)

type demoOptions struct {
	ticks   int
	dt      float64
	breakAt int
	out     string
	store   string
}

// NewDemoCmd creates the demo subcommand.
func NewDemoCmd() *cobra.Command {
	opts := demoOptions{}
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Record a crate and a breaking wall, then replay them",
		Long: `Run a small scene on the built-in solver: a sliding crate and a wall
cluster that breaks mid-recording. The recording is replayed on a fresh
solver and the final positions of both runs are printed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDemo(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().IntVar(&opts.ticks, "ticks", 20, "solver ticks per run")
	cmd.Flags().Float64Var(&opts.dt, "dt", 1.0/30, "solver step in seconds")
	cmd.Flags().IntVar(&opts.breakAt, "break-at", 10, "tick at which the wall breaks")
	cmd.Flags().StringVar(&opts.out, "out", "", "write the recorded collection to this asset file")
	cmd.Flags().StringVar(&opts.store, "store", "", "write each recorded cache into this store directory")
	return cmd
}

// demoScene owns one solver and the components living in it.
type demoScene struct {
	solver *solver.Local
	crate  *rigid.Component
	wall   *geometry.Component
}

func newDemoScene(name string) *demoScene {
	s := solver.NewLocal(name)
	crate := s.AddParticle(solver.Particle{
		LinearVelocity: physics.Vec3{X: 5},
		Mass:           1,
		State:          solver.StateDynamic,
	})
	wall := s.AddParticle(solver.Particle{Mass: 2, State: solver.StateDynamic})
	left := s.AddChild(wall, solver.Particle{
		Transform:      physics.FromTranslation(physics.Vec3{Y: -1}),
		LinearVelocity: physics.Vec3{Y: -2},
		Mass:           1,
		State:          solver.StateDynamic,
	})
	right := s.AddChild(wall, solver.Particle{
		Transform:      physics.FromTranslation(physics.Vec3{Y: 1}),
		LinearVelocity: physics.Vec3{Y: 2},
		Mass:           1,
		State:          solver.StateDynamic,
	})
	return &demoScene{
		solver: s,
		crate:  rigid.NewComponent("crate", s, physics.Identity(), crate),
		wall: geometry.NewComponent("wall", s,
			physics.FromTranslation(physics.Vec3{Z: 3}),
			[]solver.ParticleHandle{wall, left, right}),
	}
}

func (d *demoScene) components() []adapter.Component {
	return []adapter.Component{d.crate, d.wall}
}

func demoConfig() (*manager.Config, error) {
	if configFile != "" {
		return manager.LoadConfig(configFile)
	}
	cfg := manager.DefaultConfig()
	cfg.Collection = "demo"
	cfg.LogLevel = "warn"
	cfg.Observed = []manager.ObservedConfig{
		{Component: "crate", Cache: "crate", Mode: manager.ModeRecord},
		{Component: "wall", Cache: "wall", Mode: manager.ModeRecord},
	}
	return cfg, nil
}

func runDemo(ctx context.Context, w io.Writer, opts demoOptions) error {
	if opts.ticks <= 0 || opts.dt <= 0 {
		return oops.Code("DEMO_INVALID").With("ticks", opts.ticks).With("dt", opts.dt).
			Errorf("ticks and dt must be positive")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := demoConfig()
	if err != nil {
		return err
	}

	rec := newDemoScene("record")
	scene := manager.NewScene(rec.components()...)
	m, err := injector.InitializeManager(cfg, scene)
	if err != nil {
		return oops.Code("DEMO_SETUP_FAILED").Wrap(err)
	}
	if err := m.SetAllMode(manager.ModeRecord); err != nil {
		return err
	}

	if err := run(ctx, m, rec, opts, true); err != nil {
		return err
	}
	fmt.Fprintln(w, "recorded:")
	printScene(w, rec)

	if err := m.SetAllMode(manager.ModePlay); err != nil {
		return err
	}
	play := newDemoScene("playback")
	for _, c := range play.components() {
		scene.Add(c)
	}
	if err := m.ResetAllComponentTransforms(); err != nil {
		return err
	}
	if err := run(ctx, m, play, opts, false); err != nil {
		return err
	}
	fmt.Fprintln(w, "replayed:")
	printScene(w, play)

	if len(m.Failures()) > 0 {
		for _, f := range m.Failures() {
			fmt.Fprintln(w, "inactive:", f)
		}
	}

	if opts.out != "" {
		if err := saveCollection(m, opts.out); err != nil {
			return err
		}
		fmt.Fprintln(w, "saved", opts.out)
	}
	if opts.store != "" {
		dir, err := storage.NewDir(opts.store)
		if err != nil {
			return err
		}
		n, err := storage.SaveCollection(ctx, dir, m.Collection())
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "stored %d caches in %s\n", n, dir.Root())
	}
	return nil
}

// run drives one session. Only the recording run breaks the wall; the
// replay gets its break from the cached events.
func run(ctx context.Context, m *manager.Manager, d *demoScene, opts demoOptions, breakWall bool) error {
	if err := m.BeginPlay(ctx); err != nil {
		return err
	}
	defer m.EndPlay()

	for tick := range opts.ticks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if breakWall && tick == opts.breakAt {
			d.solver.BreakCluster(d.wall.Handles()[0])
		}
		if err := d.solver.Advance(opts.dt); err != nil {
			return oops.Code("SOLVER_ADVANCE_FAILED").With("tick", tick).Wrap(err)
		}
		m.Update(opts.dt)
	}
	return nil
}

func printScene(w io.Writer, d *demoScene) {
	for _, h := range append([]solver.ParticleHandle{d.crate.Handle()}, d.wall.Handles()...) {
		p, ok := d.solver.Particle(h)
		if !ok {
			continue
		}
		t := p.Transform.Translation
		fmt.Fprintf(w, "  particle %d: (%.3f, %.3f, %.3f) %s disabled=%t\n", h, t.X, t.Y, t.Z, p.State, p.Disabled)
	}
}

func saveCollection(m *manager.Manager, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return oops.Code("ASSET_WRITE_FAILED").With("path", path).Wrap(err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = oops.Code("ASSET_WRITE_FAILED").With("path", path).Wrap(cerr)
		}
	}()
	return m.Collection().Save(f)
}
