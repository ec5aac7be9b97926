// Package di contains dependency injection tokens for the execution context.
package di

import (
	"github.com/fd1az/flasharb/business/execution/app"
	"github.com/fd1az/flasharb/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Executor = di.NewToken[*app.Executor]("execution.Executor")
)

// Private dependency tokens - internal to execution module
var (
	Settlement  = di.NewToken[app.Settlement]("execution:settlement")
	SigningKeys = di.NewToken[app.SigningKeys]("execution:signingKeys")
)

// Helper functions for type-safe access
func GetExecutor(c di.ServiceRegistry) *app.Executor {
	return di.GetToken(c, Executor)
}

func GetSettlement(c di.ServiceRegistry) app.Settlement {
	return di.GetToken(c, Settlement)
}

func GetSigningKeys(c di.ServiceRegistry) app.SigningKeys {
	return di.GetToken(c, SigningKeys)
}
