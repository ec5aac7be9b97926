package asset

import "github.com/ethereum/go-ethereum/common"

const ChainIDEthereum = 1

// Mainnet addresses of the tokens configured by default.
var (
	AddrUSDCEthereum = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	AddrUSDTEthereum = common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")
	AddrWETHEthereum = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	AddrWBTCEthereum = common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599")
)

var (
	WETH = NewAsset(NewID(ChainIDEthereum, AddrWETHEthereum), "WETH", 18)
	USDC = NewAsset(NewID(ChainIDEthereum, AddrUSDCEthereum), "USDC", 6)
	USDT = NewAsset(NewID(ChainIDEthereum, AddrUSDTEthereum), "USDT", 6)
	WBTC = NewAsset(NewID(ChainIDEthereum, AddrWBTCEthereum), "WBTC", 8)
)

// DefaultRegistry is a mainnet registry with the default tokens. Tests use it.
func DefaultRegistry() *Registry {
	r := NewRegistry(ChainIDEthereum)
	for _, a := range []*Asset{WETH, USDC, USDT, WBTC} {
		_ = r.Register(a)
	}
	return r
}
