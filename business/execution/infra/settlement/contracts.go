package settlement

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SettlementABI is the flashloan settlement contract surface. Both methods
// take the same params tuple; estimateProfit is a view returning the
// expected profit in tokenA base units (negative when the route loses).
const SettlementABI = `[
	{
		"name": "estimateProfit",
		"type": "function",
		"stateMutability": "view",
		"inputs": [{"name": "params", "type": "tuple", "components": [
			{"name": "tokenA", "type": "address"},
			{"name": "tokenB", "type": "address"},
			{"name": "amountIn", "type": "uint256"},
			{"name": "buyRouter", "type": "address"},
			{"name": "sellRouter", "type": "address"},
			{"name": "minProfit", "type": "uint256"},
			{"name": "useFlashloan", "type": "bool"}
		]}],
		"outputs": [{"name": "profit", "type": "int256"}]
	},
	{
		"name": "executeArbitrage",
		"type": "function",
		"stateMutability": "nonpayable",
		"inputs": [{"name": "params", "type": "tuple", "components": [
			{"name": "tokenA", "type": "address"},
			{"name": "tokenB", "type": "address"},
			{"name": "amountIn", "type": "uint256"},
			{"name": "buyRouter", "type": "address"},
			{"name": "sellRouter", "type": "address"},
			{"name": "minProfit", "type": "uint256"},
			{"name": "useFlashloan", "type": "bool"}
		]}],
		"outputs": []
	}
]`

// arbitrageParams mirrors the params tuple; field names follow the ABI components.
type arbitrageParams struct {
	TokenA       common.Address
	TokenB       common.Address
	AmountIn     *big.Int
	BuyRouter    common.Address
	SellRouter   common.Address
	MinProfit    *big.Int
	UseFlashloan bool
}
