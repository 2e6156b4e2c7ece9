package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/draftiq/scoutsync/internal/archive"
	"github.com/draftiq/scoutsync/internal/monitoring"
	"github.com/draftiq/scoutsync/internal/orchestrator"
	"github.com/draftiq/scoutsync/internal/quality"
	"github.com/draftiq/scoutsync/internal/reconcile"
	"github.com/draftiq/scoutsync/internal/source"
	"github.com/draftiq/scoutsync/internal/stages"
	"github.com/draftiq/scoutsync/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "scoutsync.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// pipelineEnv bundles the wired pipeline and its backing store.
type pipelineEnv struct {
	Store   store.Store
	Orch    *orchestrator.Orchestrator
	Quality *quality.Engine
	Recon   *reconcile.Engine
	Alerter *monitoring.Alerter
}

func (e *pipelineEnv) Close() {
	_ = e.Store.Close()
}

// initPipeline builds the full stage graph from configuration.
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}

	table, err := reconcile.LoadTable(cfg.Reconcile.AuthorityPath)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	reconEngine := reconcile.NewEngine(st, table, cfg.Reconcile.SimilarityThreshold)
	ruleCache := quality.NewCache(st)
	qualityEngine := quality.NewEngine(ruleCache, st, cfg.Quality.MinSampleSize)
	archiver := archive.NewFileArchiver(cfg.Archive.Dir)
	alerter := monitoring.NewAlerter(cfg.Monitoring)

	var collectors []source.Collector
	rates := make(map[string]float64)
	for _, sc := range cfg.Sources {
		switch sc.Type {
		case "csv":
			collectors = append(collectors, source.NewCSVCollector(sc.Name, sc.Path))
		case "xlsx":
			collectors = append(collectors, source.NewXLSXCollector(sc.Name, sc.Path, sc.Sheet))
		default:
			st.Close() //nolint:errcheck
			return nil, eris.Errorf("unsupported source type: %s", sc.Type)
		}
		rates[sc.Name] = sc.RateLimit
	}

	mode, err := orchestrator.ParseFailureMode(cfg.Pipeline.FailureMode)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	orch := orchestrator.New(orchestrator.Options{
		FailureMode:  mode,
		MaxRetries:   cfg.Pipeline.MaxRetries,
		RetryDelay:   time.Duration(cfg.Pipeline.RetryDelaySecs) * time.Second,
		StageTimeout: time.Duration(cfg.Pipeline.StageTimeoutSecs) * time.Second,
		HistorySize:  cfg.Pipeline.HistorySize,
		Notify:       alerter.Notify,
	})

	regs := []struct {
		stage orchestrator.Stage
		order int
	}{
		{stages.NewCollectStage(collectors, rates), 10},
		{stages.NewReconcileStage(reconEngine), 20},
		{stages.NewQualityStage(qualityEngine, ruleCache, st), 30},
		{stages.NewArchiveStage(st, archiver), 40},
	}
	for _, r := range regs {
		if err := orch.Register(r.stage, r.order); err != nil {
			st.Close() //nolint:errcheck
			return nil, err
		}
	}

	zap.L().Info("pipeline initialized",
		zap.Int("sources", len(collectors)),
		zap.String("failure_mode", string(mode)),
		zap.String("store", cfg.Store.Driver),
	)

	return &pipelineEnv{
		Store:   st,
		Orch:    orch,
		Quality: qualityEngine,
		Recon:   reconEngine,
		Alerter: alerter,
	}, nil
}
