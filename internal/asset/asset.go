// Package asset models the ERC20 tokens the coordinator quotes and trades,
// and exact token amounts. Raw values are big.Int in the token's smallest
// unit; decimal.Decimal is only used at boundaries (quotes, config, sizing).
package asset

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ID identifies a token by chain and contract address. It is comparable
// and used as a map key; the symbol is display metadata.
type ID struct {
	chainID uint64
	address common.Address
}

// NewID panics on the zero address; the coordinator never trades the native coin directly.
func NewID(chainID uint64, addr common.Address) ID {
	if addr == (common.Address{}) {
		panic("asset: zero token address")
	}
	return ID{chainID: chainID, address: addr}
}

func (id ID) ChainID() uint64 {
	return id.chainID
}

func (id ID) Address() common.Address {
	return id.address
}

func (id ID) String() string {
	return fmt.Sprintf("%d:%s", id.chainID, id.address.Hex())
}

// Asset is a token: identity, ticker and precision.
type Asset struct {
	id       ID
	symbol   string
	decimals uint8
}

// NewAsset panics on an empty symbol or implausible decimals.
func NewAsset(id ID, symbol string, decimals uint8) *Asset {
	if symbol == "" {
		panic("asset: empty symbol")
	}
	if decimals > 30 {
		panic("asset: suspicious decimals (>30)")
	}
	return &Asset{id: id, symbol: symbol, decimals: decimals}
}

func (a *Asset) ID() ID {
	return a.id
}

// Symbol is the upper-case ticker ("WETH", "USDC").
func (a *Asset) Symbol() string {
	return a.symbol
}

func (a *Asset) Decimals() uint8 {
	return a.decimals
}

func (a *Asset) Address() common.Address {
	return a.id.address
}

func (a *Asset) String() string {
	return a.symbol
}

// Same reports whether a and other are the same token.
func (a *Asset) Same(other *Asset) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.id == other.id
}
