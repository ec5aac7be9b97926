// Package di contains dependency injection tokens for the autotrade context.
package di

import (
	"github.com/fd1az/flasharb/business/autotrade/app"
	"github.com/fd1az/flasharb/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Scheduler = di.NewToken[*app.Scheduler]("autotrade.Scheduler")
)

// Helper functions for type-safe access
func GetScheduler(c di.ServiceRegistry) *app.Scheduler {
	return di.GetToken(c, Scheduler)
}
