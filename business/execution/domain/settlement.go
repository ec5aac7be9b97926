package domain

import "github.com/shopspring/decimal"

// Order is what the settlement contract receives. TokenA is borrowed and
// spent on the buy route; TokenB is bought and sold back on the sell route.
type Order struct {
	TokenA       string
	TokenB       string
	AmountIn     decimal.Decimal // whole units of TokenA
	BuyRoute     string          // exchange id
	SellRoute    string          // exchange id
	MinProfit    decimal.Decimal // whole units of TokenA
	UseFlashloan bool
}

// Receipt is the confirmed outcome of a submitted transaction.
type Receipt struct {
	TxHash  string
	Success bool
	GasUsed uint64
}
