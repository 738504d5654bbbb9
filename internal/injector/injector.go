//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"
	"github.com/zeusync/chaoscache/internal/core/manager"
)

func InitializeManager(cfg *manager.Config, scene manager.Resolver) (*manager.Manager, error) {
	wire.Build(ProviderSet)
	return nil, nil
}
