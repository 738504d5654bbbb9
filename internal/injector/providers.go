package injector

import (
	"github.com/google/wire"
	"github.com/zeusync/chaoscache/internal/core/adapter"
	"github.com/zeusync/chaoscache/internal/core/adapter/geometry"
	"github.com/zeusync/chaoscache/internal/core/adapter/rigid"
	"github.com/zeusync/chaoscache/internal/core/cache"
	"github.com/zeusync/chaoscache/internal/core/manager"
	"github.com/zeusync/chaoscache/internal/core/observability/log"
	"github.com/zeusync/chaoscache/internal/core/observability/metrics"
)

var ProviderSet = wire.NewSet(
	ProvideLogger,
	wire.Bind(new(log.Log), new(*log.Logger)),
	ProvideMetrics,
	ProvideRegistry,
	ProvideCollection,
	ProvideManager,
)

func ProvideLogger(cfg *manager.Config) *log.Logger {
	return log.New(log.ParseLevel(cfg.LogLevel))
}

func ProvideMetrics(cfg *manager.Config) (*metrics.Collector, error) {
	return metrics.NewCollector(cfg.Metrics)
}

// ProvideRegistry returns a registry holding the built-in adapters.
func ProvideRegistry(logger log.Log) (*adapter.Registry, error) {
	r := adapter.NewRegistry()
	for _, a := range []adapter.Adapter{rigid.New(logger), geometry.New(logger)} {
		if err := r.Register(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func ProvideCollection(cfg *manager.Config, logger log.Log, m *metrics.Collector) *cache.Collection {
	return cache.NewCollection(cfg.Collection,
		cache.WithCollectionLogger(logger),
		cache.WithCollectionMetrics(m),
		cache.WithParallelFlush(cfg.ParallelFlush),
	)
}

func ProvideManager(
	cfg *manager.Config,
	scene manager.Resolver,
	logger log.Log,
	m *metrics.Collector,
	registry *adapter.Registry,
	collection *cache.Collection,
) (*manager.Manager, error) {
	return manager.FromConfig(cfg, scene,
		manager.WithLogger(logger),
		manager.WithMetrics(m),
		manager.WithRegistry(registry),
		manager.WithCollection(collection),
	)
}
