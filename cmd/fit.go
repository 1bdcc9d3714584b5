package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sedfit/internal/catalog"
	"github.com/sells-group/sedfit/internal/fit"
	"github.com/sells-group/sedfit/internal/model"
	"github.com/sells-group/sedfit/internal/prior"
	"github.com/sells-group/sedfit/internal/sink"
	"github.com/sells-group/sedfit/internal/store"
)

var fitFlags struct {
	grid     string
	manifest string
	catalog  string
	workers  int
	seed     uint64
	buffered bool
	limit    int
}

var fitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Fit a catalog against a model grid",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cmd.Flags().Changed("workers") {
			cfg.Batch.Workers = fitFlags.workers
		}
		if cmd.Flags().Changed("seed") {
			cfg.Seed = fitFlags.seed
		}
		if fitFlags.buffered {
			cfg.Output.RunningIO = false
		}
		if err := cfg.Validate("fit"); err != nil {
			return err
		}

		grid, err := loadGrid(ctx, fitFlags.grid, fitFlags.manifest)
		if err != nil {
			return err
		}
		cat, err := loadCatalog(ctx, fitFlags.catalog, grid.NFilters(), fitFlags.limit)
		if err != nil {
			return err
		}

		fitter, err := newFitter(grid)
		if err != nil {
			return err
		}
		// Reject bad settings or stars before a run is recorded.
		if err := fitter.Validate(cat); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		return runFit(ctx, st, fitter, cat)
	},
}

func init() {
	f := fitCmd.Flags()
	f.StringVar(&fitFlags.grid, "grid", "", "model grid CSV")
	f.StringVar(&fitFlags.manifest, "manifest", "grid.yaml", "grid manifest YAML")
	f.StringVar(&fitFlags.catalog, "catalog", "", "catalog CSV")
	f.IntVar(&fitFlags.workers, "workers", 1, "parallel workers (overrides batch.workers)")
	f.Uint64Var(&fitFlags.seed, "seed", 0, "random seed (overrides seed)")
	f.BoolVar(&fitFlags.buffered, "buffered", false, "write all results once at the end")
	f.IntVar(&fitFlags.limit, "limit", 0, "fit only the first N stars (0 = all)")
	_ = fitCmd.MarkFlagRequired("grid")
	_ = fitCmd.MarkFlagRequired("catalog")
	rootCmd.AddCommand(fitCmd)
}

func loadGrid(ctx context.Context, gridPath, manifestPath string) (*model.Grid, error) {
	m, err := catalog.LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(gridPath)
	if err != nil {
		return nil, eris.Wrapf(err, "open grid %s", gridPath)
	}
	defer f.Close()
	return catalog.ReadGrid(ctx, f, m)
}

func loadCatalog(ctx context.Context, path string, nfilt, limit int) (*model.Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open catalog %s", path)
	}
	defer f.Close()

	cat, err := catalog.ReadCatalog(ctx, f, nfilt)
	if err != nil {
		return nil, err
	}
	if limit > 0 && limit < cat.Len() {
		cat.Observations = cat.Observations[:limit]
	}
	return cat, nil
}

func newFitter(grid *model.Grid) (*fit.Fitter, error) {
	fitCfg, err := cfg.FitterConfig()
	if err != nil {
		return nil, err
	}
	priors, err := cfg.Priors()
	if err != nil {
		return nil, err
	}
	lnprior, err := prior.GridPrior(grid, cfg.GridOptions())
	if err != nil {
		return nil, err
	}
	return fit.New(grid, fitCfg,
		fit.WithPriors(priors),
		fit.WithGridPrior(lnprior),
		fit.WithLogger(zap.L().With(zap.String("component", "fit"))),
	)
}

// runFit records a run, fits the catalog into it and marks the run complete
// or failed. An interrupted run is marked failed; records already streamed
// are kept.
func runFit(ctx context.Context, st store.Store, fitter *fit.Fitter, cat *model.Catalog) error {
	log := zap.L().With(zap.String("component", "fit"))

	run, err := st.CreateRun(ctx, cat.Len(), cfg.Output.NDraws, cfg.Seed)
	if err != nil {
		return err
	}
	log = log.With(zap.String("run_id", run.ID))

	var out sink.Sink
	if cfg.Output.RunningIO {
		out = sink.NewStreaming(st, run.ID, cfg.RetryPolicy())
	} else {
		out = sink.NewBuffered(st, run.ID, cfg.RetryPolicy())
	}

	summary, runErr := fitter.Run(ctx, cat, out, cfg.Seed)
	if err := out.Close(ctx); err != nil && runErr == nil {
		runErr = err
	}

	status := model.RunStatusComplete
	if runErr != nil {
		status = model.RunStatusFailed
	}
	if err := st.FinishRun(context.WithoutCancel(ctx), run.ID, status); err != nil {
		log.Error("failed to record run status", zap.Error(err))
	}
	if runErr != nil {
		return eris.Wrapf(runErr, "run %s", run.ID)
	}

	log.Info("fit complete",
		zap.Int("stars", summary.Stars),
		zap.Int("chunks", summary.Chunks),
		zap.Duration("elapsed", summary.Elapsed),
	)
	return nil
}
