// Package di contains dependency injection tokens for the arbitrage context.
package di

import (
	"github.com/fd1az/flasharb/business/arbitrage/app"
	"github.com/fd1az/flasharb/internal/di"
	"github.com/fd1az/flasharb/internal/wsconn"
)

// Public service tokens - exposed to other modules
var (
	Store     = di.NewToken[app.OpportunityStore]("arbitrage.Store")
	Scanner   = di.NewToken[*app.Scanner]("arbitrage.Scanner")
	StreamHub = di.NewToken[*wsconn.Hub]("arbitrage.StreamHub")
)

// Private dependency tokens - internal to arbitrage module
var (
	Detector  = di.NewToken[*app.Detector]("arbitrage:detector")
	Reporters = di.NewToken[app.Reporters]("arbitrage:reporters")
)

// Helper functions for type-safe access
func GetStore(c di.ServiceRegistry) app.OpportunityStore {
	return di.GetToken(c, Store)
}

func GetScanner(c di.ServiceRegistry) *app.Scanner {
	return di.GetToken(c, Scanner)
}

func GetStreamHub(c di.ServiceRegistry) *wsconn.Hub {
	return di.GetToken(c, StreamHub)
}

func GetDetector(c di.ServiceRegistry) *app.Detector {
	return di.GetToken(c, Detector)
}

func GetReporters(c di.ServiceRegistry) app.Reporters {
	return di.GetToken(c, Reporters)
}
