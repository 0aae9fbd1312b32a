// Package pipeline runs the artifact figure end to end: every configured
// sequence variant is built, simulated on the phantom and reconstructed,
// and the results are assembled into one figure.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/MRsources/Article-MAGMA24-RMRI/internal/models"
	"github.com/MRsources/Article-MAGMA24-RMRI/pkg/config"
	"github.com/MRsources/Article-MAGMA24-RMRI/pkg/phantom"
	"github.com/MRsources/Article-MAGMA24-RMRI/pkg/reconstruction"
	"github.com/MRsources/Article-MAGMA24-RMRI/pkg/sequence"
	"github.com/MRsources/Article-MAGMA24-RMRI/pkg/simulation"
	"github.com/MRsources/Article-MAGMA24-RMRI/pkg/tse"
	"github.com/MRsources/Article-MAGMA24-RMRI/pkg/visualization"
)

// PhantomSource builds the phantom for a variant at its resolution and
// field of view.
type PhantomSource func(n int, fov float64) (*phantom.Phantom, error)

// Result is the outcome of one variant.
type Result struct {
	Params         tse.Params
	Build          *tse.Result
	Reconstruction *reconstruction.Result
	Metrics        reconstruction.ArtifactMetrics
	Elapsed        time.Duration
}

// Runner holds everything shared by the variants of one run.
type Runner struct {
	cfg     *config.Config
	limits  sequence.Limits
	phantom PhantomSource
	logger  *zap.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithPhantomSource replaces the configured brain phantom.
func WithPhantomSource(src PhantomSource) Option {
	return func(r *Runner) { r.phantom = src }
}

// NewRunner returns a Runner for cfg. The configuration is expected to be
// valid.
func NewRunner(cfg *config.Config, opts ...Option) *Runner {
	r := &Runner{
		cfg:    cfg,
		limits: cfg.Limits(),
		logger: zap.NewNop(),
	}
	r.phantom = func(n int, fov float64) (*phantom.Phantom, error) {
		return phantom.Brain(n, fov, cfg.Phantom.Tissues, cfg.Phantom.Ellipses)
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Check builds the sequence for p and reports its timing without
// simulating it.
func (r *Runner) Check(p tse.Params) (*tse.Result, error) {
	res, err := tse.Build(p, r.limits)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", p.Name, err)
	}
	r.report(p, res)
	return res, nil
}

// BuildAndReconstruct runs one variant: build, timing report, simulation
// and reconstruction.
func (r *Runner) BuildAndReconstruct(ctx context.Context, p tse.Params) (*Result, error) {
	start := time.Now()
	log := r.logger.With(zap.String("variant", p.Name))

	built, err := r.Check(p)
	if err != nil {
		return nil, err
	}

	ph, err := r.phantom(p.Resolution, p.FOV)
	if err != nil {
		return nil, fmt.Errorf("phantom for %s: %w", p.Name, err)
	}

	sim := simulation.New(
		simulation.WithLogger(log),
		simulation.WithOptions(simulation.Options{
			Workers:          r.cfg.Simulation.Workers,
			SpinsPerVoxel:    r.cfg.Simulation.SpinsPerVoxel,
			SpinsAcrossSlice: r.cfg.Simulation.SpinsAcrossSlice,
			Slab:             r.cfg.Simulation.SlabFactor * p.SliceThickness,
			Seed:             r.cfg.Simulation.Seed,
		}))
	signal, err := sim.Simulate(ctx, built.Sequence, ph)
	if err != nil {
		return nil, fmt.Errorf("simulate %s: %w", p.Name, err)
	}

	rec, err := reconstruction.Reconstruct(signal, built.Schedule)
	if err != nil {
		return nil, fmt.Errorf("reconstruct %s: %w", p.Name, err)
	}

	res := &Result{
		Params:         p,
		Build:          built,
		Reconstruction: rec,
		Metrics:        reconstruction.ComputeMetrics(rec),
		Elapsed:        time.Since(start),
	}
	log.Info("variant reconstructed",
		zap.Int("peak_row", res.Metrics.PeakRow),
		zap.Int("peak_col", res.Metrics.PeakCol),
		zap.Float64("ghost_fraction", res.Metrics.GhostFraction),
		zap.Float64("kspace_high_frequency", res.Metrics.KSpaceHighFrequency),
		zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

// report logs the timing check and echo time of a built sequence.
func (r *Runner) report(p tse.Params, res *tse.Result) {
	log := r.logger.With(zap.String("variant", p.Name))
	if len(res.Violations) == 0 {
		log.Info("timing check passed", zap.Int("blocks", len(res.Sequence.Blocks())))
	}
	for _, v := range res.Violations {
		log.Warn("timing check failed", zap.String("violation", v.String()))
	}
	if res.Timing.Clamped {
		log.Info("echo time clamped to minimum",
			zap.Float64("requested_te", res.Timing.Requested),
			zap.Float64("effective_te", res.Timing.Effective))
	}
}

// Run processes every configured variant in order. Results are returned in
// variant order; the first failure stops the run.
func (r *Runner) Run(ctx context.Context) ([]*Result, error) {
	var results []*Result
	for i, p := range r.cfg.VariantParams() {
		r.logger.Debug("processing variant", zap.Int("index", i), zap.String("variant", p.Name))
		res, err := r.BuildAndReconstruct(ctx, p)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}

	if r.cfg.Output.SaveIntermediaryResults {
		r.saveIntermediary(results)
	}
	return results, nil
}

// Figure lays the results out in two rows: magnitude images on top and
// log k-space below.
func (r *Runner) Figure(results []*Result) *visualization.Figure {
	fig := visualization.NewFigure(len(results), r.cfg.Output.PanelScale)
	for _, res := range results {
		fig.AddPanel(res.Params.Label, res.Reconstruction.Image)
	}
	for i, res := range results {
		fig.AddPanel(panelLabel(len(results)+i), res.Reconstruction.KSpaceLog)
	}
	return fig
}

// saveIntermediary writes the image and k-space of every variant.
// Failures are logged, not returned.
func (r *Runner) saveIntermediary(results []*Result) {
	dir := r.cfg.Output.IntermediaryDir
	for i, res := range results {
		base := filepath.Join(dir, fmt.Sprintf("%02d_%s", i+1, res.Params.Name))
		panels := []struct {
			suffix string
			data   *models.Grid
		}{
			{"_image.png", res.Reconstruction.Image},
			{"_kspace.png", res.Reconstruction.KSpaceLog},
		}
		for _, panel := range panels {
			if err := visualization.SavePanel(panel.data, r.cfg.Output.PanelScale, base+panel.suffix); err != nil {
				r.logger.Warn("failed to save intermediary result",
					zap.String("variant", res.Params.Name), zap.Error(err))
			}
		}
	}
}

// panelLabel returns "a)", "b)", ... for i = 0, 1, ...
func panelLabel(i int) string {
	return fmt.Sprintf("%c)", 'a'+rune(i))
}
