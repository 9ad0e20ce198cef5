package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/indexlegal/honoris/internal/classifier"
	"github.com/indexlegal/honoris/internal/evidence"
	"github.com/indexlegal/honoris/internal/persist"
	"github.com/indexlegal/honoris/internal/pipeline"
	"github.com/indexlegal/honoris/internal/store"
)

// appEnv holds everything an analysis front end needs. Store and Dispatcher
// are nil in local mode.
type appEnv struct {
	Classifier *classifier.Classifier
	Evidence   *evidence.Lookup
	Store      store.Store
	Dispatcher *persist.Dispatcher
	Analyzer   *pipeline.Analyzer
}

// Persistent reports whether analyses are being logged.
func (e *appEnv) Persistent() bool {
	return e.Dispatcher != nil
}

// Close releases the queue and the store.
func (e *appEnv) Close() {
	if e.Dispatcher != nil {
		_ = e.Dispatcher.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initApp builds the classifier, evidence lookup and persistence for a front
// end tagged with source. Store problems degrade to local mode.
func initApp(ctx context.Context, source string) (*appEnv, error) {
	cls, err := classifier.FromConfig(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.APIKey() == "" {
		zap.L().Warn("no API key configured, classification requests will fail",
			zap.String("provider", cfg.Classifier.Provider))
	}

	env := &appEnv{Classifier: cls, Evidence: evidence.FromConfig(cfg)}
	opts := []pipeline.Option{}
	if env.Evidence != nil {
		opts = append(opts, pipeline.WithEvidence(env.Evidence))
	} else {
		zap.L().Info("lawcrawler disabled, responses carry no evidence")
	}

	st, err := openStore(ctx)
	switch {
	case err != nil:
		zap.L().Error("store unavailable, running in local mode", zap.Error(err))
	case st == nil:
		zap.L().Info("no store credentials, running in local mode")
	default:
		d, err := persist.FromConfig(ctx, *cfg, st)
		if err != nil {
			_ = st.Close()
			zap.L().Error("persistence queue unavailable, running in local mode", zap.Error(err))
			break
		}
		env.Store = st
		env.Dispatcher = d
		opts = append(opts, pipeline.WithSink(d))
		zap.L().Info("persistence active",
			zap.String("mode", cfg.Persistence.Mode),
			zap.String("queue", cfg.Persistence.Queue),
		)
	}

	env.Analyzer = pipeline.New(cls, source, opts...)
	return env, nil
}

// openStore opens and migrates the configured store. It returns a nil store
// and nil error when no credentials are configured.
func openStore(ctx context.Context) (store.Store, error) {
	creds, ok, err := cfg.ResolveStore()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	st, err := store.Open(ctx, creds, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// runWithWorker runs fn alongside the persistence worker. Only fn returning
// stops the worker, so entries persisted while fn drains in-flight work after
// ctx is cancelled are still flushed before runWithWorker returns.
func (e *appEnv) runWithWorker(ctx context.Context, fn func(ctx context.Context) error) error {
	if e.Dispatcher == nil || !e.Dispatcher.Async() {
		return fn(ctx)
	}

	workerCtx, stopWorker := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWorker()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.Dispatcher.Run(workerCtx) })
	g.Go(func() error {
		defer stopWorker()
		return fn(gctx)
	})
	return g.Wait()
}
