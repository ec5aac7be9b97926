// Package di contains dependency injection tokens for the api context.
package di

import (
	"github.com/fd1az/flasharb/business/api/app"
	"github.com/fd1az/flasharb/business/api/infra/rest"
	"github.com/fd1az/flasharb/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Server = di.NewToken[*rest.Server]("api.Server")
)

// Private dependency tokens - internal to api module
var (
	Service = di.NewToken[*app.Service]("api:service")
	Handler = di.NewToken[*rest.Handler]("api:handler")
)

// Helper functions for type-safe access
func GetServer(c di.ServiceRegistry) *rest.Server {
	return di.GetToken(c, Server)
}

func GetService(c di.ServiceRegistry) *app.Service {
	return di.GetToken(c, Service)
}

func GetHandler(c di.ServiceRegistry) *rest.Handler {
	return di.GetToken(c, Handler)
}
