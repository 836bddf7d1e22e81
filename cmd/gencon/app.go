package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"

	"gencon/internal/blob"
	"gencon/internal/config"
	"gencon/internal/core"
	"gencon/internal/observability"
	"gencon/internal/platform/logger"
	"gencon/internal/sequence"
	"gencon/pkg/domain"
)

// app holds the services one command invocation works against.
type app struct {
	cfg       *config.Config
	logger    *logger.Logger
	rollups   domain.RollupStore
	tracker   domain.SaveTracker
	sequences *sequence.Service
	registry  *prometheus.Registry
	expvar    *observability.ExpvarMetricsRecorder
	editor    *core.Editor
}

func newApp(ctx context.Context, cfg *config.Config, extra ...core.Option) (a *app, err error) {
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	a = &app{cfg: cfg, logger: log, registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			_ = a.close()
			a = nil
		}
	}()

	a.rollups, err = core.OpenRollupStore(ctx, core.StorageDriver(cfg.Persistence.Driver), cfg.Persistence.Path, cfg.Persistence.DSN)
	if err != nil {
		return a, fmt.Errorf("open rollup store: %w", err)
	}
	a.tracker, err = core.OpenSaveTracker(ctx, core.SaveStateDriver(cfg.SaveState.Driver), cfg.SaveState.RedisURL, cfg.SaveState.Prefix)
	if err != nil {
		return a, fmt.Errorf("open save tracker: %w", err)
	}
	store, err := blob.Open(ctx, blob.Config{
		Driver: blob.Driver(cfg.Blob.Driver),
		Root:   cfg.Blob.Root,
		S3: blob.S3Config{
			Bucket:          cfg.Blob.S3.Bucket,
			Region:          cfg.Blob.S3.Region,
			Endpoint:        cfg.Blob.S3.Endpoint,
			AccessKeyID:     cfg.Blob.S3.AccessKeyID,
			SecretAccessKey: cfg.Blob.S3.SecretAccessKey,
			PathStyle:       cfg.Blob.S3.PathStyle,
		},
	})
	if err != nil {
		return a, fmt.Errorf("open blob store: %w", err)
	}
	seqOpts := []sequence.Option{sequence.WithLogger(log)}
	if cfg.Blob.Strict {
		seqOpts = append(seqOpts, sequence.WithStrict())
	}
	a.sequences = sequence.New(store, seqOpts...)

	metrics := observability.MultiMetrics{}
	a.expvar = observability.NewExpvarMetricsRecorder("")
	metrics = append(metrics, a.expvar)
	if cfg.Metrics.Namespace != "" {
		prom, err := observability.NewPrometheusRecorder(cfg.Metrics.Namespace, a.registry)
		if err != nil {
			return a, fmt.Errorf("register metrics: %w", err)
		}
		metrics = append(metrics, prom)
	}

	opts := []core.Option{
		core.WithRollupStore(a.rollups),
		core.WithSaveTracker(a.tracker),
		core.WithSequenceService(a.sequences),
		core.WithLogger(log),
		core.WithMetrics(metrics),
		core.WithAutosave(cfg.Autosave.Throttle, cfg.Autosave.Debounce),
		core.WithPauseTimeout(cfg.Pause.SafetyTimeout),
		core.WithInstanceCacheSize(cfg.History.InstanceCacheSize),
	}
	if cfg.History.Freeze == "deep" {
		opts = append(opts, core.WithDeepFreeze())
	}
	opts = append(opts, extra...)
	a.editor, err = core.NewEditor(opts...)
	if err != nil {
		return a, fmt.Errorf("build editor: %w", err)
	}
	return a, nil
}

// close stops autosave and releases every backend that holds a connection.
func (a *app) close() error {
	if a.editor != nil {
		a.editor.Close()
	}
	var errs []error
	for _, v := range []any{a.tracker, a.rollups} {
		if c, ok := v.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	a.logger.Sync()
	return errors.Join(errs...)
}

// keepSequences collects every sequence md5 referenced by a stored rollup.
func (a *app) keepSequences(ctx context.Context) (map[string]bool, error) {
	projects, err := a.rollups.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	keep := make(map[string]bool)
	for _, p := range projects {
		rollup, err := a.rollups.LoadRollup(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", p.ID, err)
		}
		for _, b := range rollup.Blocks {
			if b.Sequence.MD5 == "" {
				continue
			}
			pseudo, err := sequence.ParsePseudoMD5(b.Sequence.MD5)
			if err != nil {
				return nil, fmt.Errorf("block %s: %w", b.ID, err)
			}
			keep[pseudo.Hash] = true
		}
	}
	return keep, nil
}
