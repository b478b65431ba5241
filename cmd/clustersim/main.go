package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/san-kum/clustersim/internal/cluster"
	"github.com/san-kum/clustersim/internal/comm"
	"github.com/san-kum/clustersim/internal/config"
	"github.com/san-kum/clustersim/internal/metrics"
	"github.com/san-kum/clustersim/internal/orbit"
	"github.com/san-kum/clustersim/internal/profile"
	"github.com/san-kum/clustersim/internal/sim"
	"github.com/san-kum/clustersim/internal/storage"
	"github.com/san-kum/clustersim/internal/tui"
	"github.com/san-kum/clustersim/internal/viz"
)

var (
	dataDir    string
	logLevel   string
	configFile string
	preset     string
	steps      int
	dt         float64
	ranks      int
	workers    int
	field      string
	points     int

	log = logrus.New()
)

var errNoSubhalo = errors.New("configuration has a single halo")

func main() {
	rootCmd := &cobra.Command{
		Use:   "clustersim",
		Short: "galaxy cluster merger initial conditions and trajectories",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			log.SetLevel(lvl)
			log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
			return nil
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".clustersim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level")

	addConfigFlags := func(cmd *cobra.Command) {
		cmd.Flags().StringVarP(&configFile, "config", "c", "", "config file (YAML)")
		cmd.Flags().StringVarP(&preset, "preset", "p", "", "use a preset configuration")
		cmd.Flags().IntVar(&steps, "steps", config.DefaultSteps, "number of steps")
		cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "time step")
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "initialize the mesh and run the coupled step loop",
		RunE:  runSimulation,
	}
	addConfigFlags(runCmd)
	runCmd.Flags().IntVar(&ranks, "ranks", 1, "in-process ranks")
	runCmd.Flags().IntVar(&workers, "workers", 0, "per-rank block workers (0 = one per CPU)")

	resumeCmd := &cobra.Command{
		Use:   "resume [run_id]",
		Short: "continue a run from its last checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE:  resumeRun,
	}
	resumeCmd.Flags().IntVar(&steps, "steps", config.DefaultSteps, "additional steps")
	resumeCmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "time step")
	resumeCmd.Flags().IntVar(&ranks, "ranks", 1, "in-process ranks")
	resumeCmd.Flags().IntVar(&workers, "workers", 0, "per-rank block workers (0 = one per CPU)")

	orbitCmd := &cobra.Command{
		Use:   "orbit",
		Short: "integrate the halo trajectory without the mesh",
		RunE:  integrateOrbit,
	}
	addConfigFlags(orbitCmd)

	profileCmd := &cobra.Command{
		Use:   "profile [main|sub]",
		Short: "plot a halo profile column",
		Args:  cobra.MaximumNArgs(1),
		RunE:  plotProfile,
	}
	addConfigFlags(profileCmd)
	profileCmd.Flags().StringVarP(&field, "field", "f", "density", "profile column")
	profileCmd.Flags().IntVar(&points, "points", 80, "sample radii")

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the stored halo separation of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "watch the subhalo orbit in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			mainTbl, subTbl, err := loadTables(cfg)
			if err != nil {
				return err
			}
			return tui.Run(cfg, mainTbl, subTbl)
		},
	}
	addConfigFlags(liveCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("available presets:")
			for _, p := range config.ListPresets() {
				fmt.Printf("  %s\n", p)
			}
		},
	}

	rootCmd.AddCommand(runCmd, resumeCmd, orbitCmd, profileCmd, plotCmd, liveCmd, listCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves the preset, then the config file, then explicit flags.
// The returned name labels the run directory.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	cfg := config.DefaultConfig()
	name := "single"

	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, "", fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		name = preset
	}
	if configFile != "" {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load config: %w", err)
		}
		name = strings.TrimSuffix(filepath.Base(configFile), filepath.Ext(configFile))
	}

	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, name, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("steps") {
		cfg.Run.Steps = steps
	}
	if flags.Changed("dt") {
		cfg.Run.Dt = dt
	}
	if flags.Lookup("ranks") != nil && flags.Changed("ranks") {
		cfg.Run.Ranks = ranks
	}
	if flags.Lookup("workers") != nil && flags.Changed("workers") {
		cfg.Run.Workers = workers
	}
}

// loadTables builds the halo profiles on this process, without a group.
func loadTables(cfg *config.Config) (mainTbl, subTbl *profile.Table, err error) {
	mainTbl, err = haloTable(cfg.Halos.Main, true)
	if err != nil {
		return nil, nil, fmt.Errorf("main profile: %w", err)
	}
	if cfg.Problem.NumHalo == 2 {
		subTbl, err = haloTable(cfg.Halos.Sub, cfg.Problem.SubhaloGas)
		if err != nil {
			return nil, nil, fmt.Errorf("sub profile: %w", err)
		}
	}
	return mainTbl, subTbl, nil
}

func haloTable(h config.HaloConfig, withGas bool) (*profile.Table, error) {
	if h.Profile != "" {
		return profile.FileLoader{}.Load(h.Profile, withGas)
	}
	if h.Hernquist == nil {
		return nil, errors.New("halo has no profile source")
	}
	return h.Hernquist.Table()
}

type execution struct {
	cfg  *config.Config
	traj cluster.TrajectorySink
	ckpt sim.Checkpointer
	// from resumes a checkpointed run instead of initializing the mesh.
	from *storage.Checkpoint
}

// execute runs the step loop on cfg.Run.Ranks in-process ranks sharing one
// mesh and returns rank 0's result and driver.
func (e execution) execute(ctx context.Context) (*sim.Result, *sim.Driver, error) {
	m, err := sim.NewMesh(e.cfg.Mesh)
	if err != nil {
		return nil, nil, err
	}

	var root *sim.Driver
	setup := func(ctx context.Context, cm comm.Communicator) (*sim.Driver, error) {
		opts := cluster.Options{Config: e.cfg, Comm: cm, Log: log}
		if e.from != nil {
			opts.Checkpoint = &e.from.Orbit
		}
		if cm.Rank() == 0 {
			opts.Trajectory = e.traj
		}
		c, err := cluster.New(opts)
		if err != nil {
			return nil, err
		}
		d := sim.NewDriver(c, m, sim.OptionsFrom(e.cfg.Run), log)
		if cm.Rank() == 0 {
			root = d
			d.AddMetric(metrics.NewTotalMass())
			d.AddMetric(metrics.NewTotalMomentum())
			d.AddMetric(metrics.NewEnergyDrift())
			d.AddMetric(metrics.NewStability())
			d.AddMetric(metrics.NewPericentre())
			d.SetCheckpointer(e.ckpt)
			if e.cfg.Run.Steps > 0 {
				from := 0
				if e.from != nil {
					from = e.from.Step
				}
				d.AddObserver(newProgress(os.Stdout, from, e.cfg.Run.Steps))
			}
		}
		if e.from != nil {
			return d, d.Restore(ctx, e.from)
		}
		return d, d.Init(ctx)
	}

	if e.cfg.Run.Ranks <= 1 {
		d, err := setup(ctx, comm.Self())
		if err != nil {
			return nil, nil, err
		}
		res, err := d.Run(ctx)
		return res, d, err
	}

	res, err := sim.RunGroup(ctx, comm.NewLocalGroup(e.cfg.Run.Ranks),
		func(ctx context.Context, member *comm.Member) (*sim.Driver, error) {
			return setup(ctx, member)
		})
	return res, root, err
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, name, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	run, err := st.Create(name, cfg)
	if err != nil {
		return err
	}
	traj := run.Trajectory()
	defer traj.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("running %s with %d rank(s)...\n", name, cfg.Run.Ranks)
	start := time.Now()
	res, d, err := execution{cfg: cfg, traj: traj, ckpt: run}.execute(ctx)
	if err != nil {
		return err
	}

	meta := storage.RunMetadata{Preset: name}
	if err := finishRun(run, cfg, res, d, &meta); err != nil {
		return err
	}
	if err := traj.Close(); err != nil {
		return err
	}
	printSummary(run.ID, res, time.Since(start))
	return nil
}

func resumeRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	run, err := st.Open(args[0])
	if err != nil {
		return err
	}
	cfg, err := run.Config()
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	cp, err := run.LoadCheckpoint()
	if err != nil {
		return err
	}

	meta := storage.RunMetadata{}
	if prev, err := st.Load(run.ID); err == nil {
		meta = *prev
	}
	meta.ResumedAt = cp.Step

	traj := run.Trajectory()
	defer traj.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("resuming %s at step %d (t = %g)...\n", run.ID, cp.Step, cp.Time)
	start := time.Now()
	res, d, err := execution{cfg: cfg, traj: traj, ckpt: run, from: cp}.execute(ctx)
	if err != nil {
		return err
	}
	if err := finishRun(run, cfg, res, d, &meta); err != nil {
		return err
	}
	if err := traj.Close(); err != nil {
		return err
	}
	printSummary(run.ID, res, time.Since(start))
	return nil
}

// finishRun writes the closing checkpoint and the run metadata.
func finishRun(run *storage.Run, cfg *config.Config, res *sim.Result, d *sim.Driver, meta *storage.RunMetadata) error {
	if err := run.SaveCheckpoint(d.Checkpoint()); err != nil {
		return err
	}

	meta.NumHalo = cfg.Problem.NumHalo
	meta.Fixed = cfg.Problem.MainClusterFixed
	meta.Magnetic = cfg.Magnetic.Enabled
	meta.Dt = cfg.Run.Dt
	meta.Steps = res.Steps
	meta.Time = res.Time
	meta.Blocks = len(d.Mesh().Blocks)
	meta.Ranks = cfg.Run.Ranks
	meta.Metrics = res.Metrics
	meta.Timestamp = time.Time{}
	if n := len(res.Sweeps); n > 0 {
		meta.Refinement = make(map[string]int)
		for dec, count := range res.Sweeps[n-1].Counts {
			meta.Refinement[dec.String()] = count
		}
	}
	return run.SaveMetadata(*meta)
}

func printSummary(id string, res *sim.Result, elapsed time.Duration) {
	rows := []viz.KV{
		{Label: "run id", Value: id},
		{Label: "steps", Value: fmt.Sprintf("%d", res.Steps)},
		viz.Float("time", res.Time),
		{Label: "elapsed", Value: elapsed.Round(time.Millisecond).String()},
	}
	for _, name := range []string{"total_mass", "total_momentum", "energy_drift", "stability", "pericentre"} {
		if v, ok := res.Metrics[name]; ok {
			rows = append(rows, viz.Float(name, v))
		}
	}
	fmt.Println(viz.Pairs("completed", rows))

	if len(res.Separations) > 1 && res.Separations[0] > 0 {
		fmt.Println(asciigraph.Plot(res.Separations,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption("halo separation vs step"),
		))
	}
}

func integrateOrbit(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Problem.NumHalo != 2 {
		return errNoSubhalo
	}
	mainTbl, subTbl, err := loadTables(cfg)
	if err != nil {
		return err
	}
	mainHalo, subHalo := cluster.InitialHalos(cfg)
	in, err := orbit.New(mainTbl, subTbl, mainHalo, subHalo, cfg.Problem.MainClusterFixed)
	if err != nil {
		return err
	}

	seps := make([]float64, 0, cfg.Run.Steps+1)
	seps = append(seps, in.Distance())
	for n := 0; n < cfg.Run.Steps; n++ {
		if err := in.Step(cfg.Run.Dt); err != nil {
			return err
		}
		seps = append(seps, in.Distance())
	}

	peri, apo := math.Inf(1), 0.0
	for _, s := range seps {
		peri = math.Min(peri, s)
		apo = math.Max(apo, s)
	}
	st := in.State()
	fmt.Println(viz.Pairs("orbit", []viz.KV{
		{Label: "steps", Value: fmt.Sprintf("%d", cfg.Run.Steps)},
		viz.Float("time", float64(cfg.Run.Steps)*cfg.Run.Dt),
		viz.Float("pericentre", peri),
		viz.Float("apocentre", apo),
		{Label: "sub position", Value: fmt.Sprintf("(%.1f, %.1f, %.1f)", st.Sub.Pos[0], st.Sub.Pos[1], st.Sub.Pos[2])},
	}))
	fmt.Println(asciigraph.Plot(seps,
		asciigraph.Height(15),
		asciigraph.Width(80),
		asciigraph.Caption("separation vs step"),
	))
	return nil
}

func plotProfile(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	f, err := profile.ParseField(field)
	if err != nil {
		return err
	}
	halo := "main"
	if len(args) > 0 {
		halo = args[0]
	}

	var tbl *profile.Table
	switch halo {
	case "main":
		tbl, err = haloTable(cfg.Halos.Main, true)
	case "sub":
		if cfg.Problem.NumHalo != 2 {
			return errNoSubhalo
		}
		tbl, err = haloTable(cfg.Halos.Sub, cfg.Problem.SubhaloGas)
	default:
		return fmt.Errorf("unknown halo %q (want main or sub)", halo)
	}
	if err != nil {
		return err
	}
	if points < 2 {
		return fmt.Errorf("need at least 2 points, got %d", points)
	}

	r0 := tbl.Radius()[0]
	lr0, lr1 := math.Log10(r0), math.Log10(tbl.RMax())
	data := make([]float64, 0, points)
	for n := 0; n < points; n++ {
		r := math.Pow(10, lr0+(lr1-lr0)*float64(n)/float64(points-1))
		if v := tbl.Query(f, r); v > 0 {
			data = append(data, math.Log10(v))
		}
	}
	if len(data) == 0 {
		return fmt.Errorf("%s column of the %s halo is empty", f, halo)
	}

	fmt.Println(viz.Pairs(halo+" halo", []viz.KV{
		{Label: "samples", Value: fmt.Sprintf("%d", tbl.Len())},
		viz.Float("r_max", tbl.RMax()),
		viz.Float("mass", tbl.Mass()),
	}))
	fmt.Println(asciigraph.Plot(data,
		asciigraph.Height(15),
		asciigraph.Width(80),
		asciigraph.Caption(fmt.Sprintf("log10 %s vs log10 r", f)),
	))
	return nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	run, err := st.Open(args[0])
	if err != nil {
		return err
	}
	cfg, err := run.Config()
	if err != nil {
		return err
	}
	if cfg.Problem.NumHalo != 2 {
		return errNoSubhalo
	}

	sub, err := run.LoadTrajectory("sub")
	if err != nil {
		return err
	}
	if len(sub) == 0 {
		return fmt.Errorf("no trajectory to plot")
	}
	// A pinned main cluster is never logged and sits in the domain centre.
	mainRows, err := run.LoadTrajectory("main")
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	center := orbit.Vec3(cfg.Mesh.Center())

	seps := make([]float64, len(sub))
	for n, row := range sub {
		c := center
		if n < len(mainRows) {
			c = mainRows[n].Halo.Pos
		}
		seps[n] = math.Sqrt(sq(row.Halo.Pos[0]-c[0]) + sq(row.Halo.Pos[1]-c[1]) + sq(row.Halo.Pos[2]-c[2]))
	}

	fmt.Printf("run: %s\n", run.ID)
	fmt.Printf("samples: %d (t = %g to %g)\n\n", len(sub), sub[0].Time, sub[len(sub)-1].Time)
	fmt.Println(asciigraph.Plot(seps,
		asciigraph.Height(15),
		asciigraph.Width(80),
		asciigraph.Caption("halo separation vs step"),
	))
	return nil
}

func sq(x float64) float64 { return x * x }

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPRESET\tTIME\tHALOS\tSTEPS\tDT\tRANKS\tBLOCKS")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%g\t%d\t%d\n",
			run.ID,
			run.Preset,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.NumHalo,
			run.Steps,
			run.Dt,
			run.Ranks,
			run.Blocks,
		)
	}
	return w.Flush()
}
