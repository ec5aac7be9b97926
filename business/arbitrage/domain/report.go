package domain

import (
	"time"

	"github.com/shopspring/decimal"

	pricingDomain "github.com/fd1az/flasharb/business/pricing/domain"
)

// ScanReport describes one completed scan cycle.
type ScanReport struct {
	Seq       uint64        `json:"seq"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`

	Quotes    []pricingDomain.PriceQuote `json:"quotes"`
	NativeUSD decimal.Decimal            `json:"nativeUsd"`
	GasUSD    decimal.Decimal            `json:"gasUsd"`
	GasFailed bool                       `json:"gasFailed"`

	Detected int      `json:"detected"`
	Upserted int      `json:"upserted"`
	Swept    []string `json:"swept"`

	Opportunities []Opportunity `json:"opportunities"`
	Stats         Stats         `json:"stats"`
}
