//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"
)

// InitializeApplication builds the gateway from environment configuration.
// The returned cleanup closes the database pool and the Redis client.
func InitializeApplication() (*Application, func(), error) {
	wire.Build(AppSet)
	return nil, nil, nil
}
