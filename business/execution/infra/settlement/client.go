// Package settlement submits arbitrage orders to the on-chain settlement
// contract, or simulates them in dry-run mode.
package settlement

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/flasharb/business/execution/app"
	"github.com/fd1az/flasharb/business/execution/domain"
	"github.com/fd1az/flasharb/internal/apm"
	"github.com/fd1az/flasharb/internal/apperror"
	"github.com/fd1az/flasharb/internal/asset"
	"github.com/fd1az/flasharb/internal/circuitbreaker"
	"github.com/fd1az/flasharb/internal/logger"
)

const (
	tracerName = "settlement"
	meterName  = "settlement"

	defaultGasLimit     = uint64(400_000)
	defaultPollInterval = 2 * time.Second
)

var _ app.Settlement = (*Client)(nil)

// Chain is the slice of ethclient the settlement client needs.
type Chain interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Config configures the settlement client.
type Config struct {
	Address      common.Address
	ChainID      *big.Int
	Routers      map[string]common.Address // exchange id -> router
	Tokens       *asset.Registry
	GasLimit     uint64 // used when estimation fails
	PollInterval time.Duration
}

type clientMetrics struct {
	submitted metric.Int64Counter
	reverted  metric.Int64Counter
	confirm   metric.Float64Histogram
}

// Client signs and sends EIP-1559 transactions to the settlement contract.
type Client struct {
	chain  Chain
	config Config
	abi    abi.ABI
	cb     *circuitbreaker.CircuitBreaker[[]byte]
	logger logger.LoggerInterface

	// serializes nonce lookup and broadcast
	sendMu sync.Mutex

	tracer  trace.Tracer
	metrics *clientMetrics
}

// NewClient creates a settlement client.
func NewClient(chain Chain, cfg Config, log logger.LoggerInterface) (*Client, error) {
	parsed, err := abi.JSON(strings.NewReader(SettlementABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse settlement ABI: %w", err)
	}
	if cfg.ChainID == nil || cfg.Tokens == nil {
		return nil, errors.New("settlement: chain id and token registry are required")
	}
	if cfg.GasLimit == 0 {
		cfg.GasLimit = defaultGasLimit
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}

	c := &Client{
		chain:  chain,
		config: cfg,
		abi:    parsed,
		cb:     circuitbreaker.New[[]byte](circuitbreaker.DefaultConfig("settlement-rpc")),
		logger: log,
		tracer: otel.Tracer(tracerName),
	}
	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	return c, nil
}

func (c *Client) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	c.metrics = &clientMetrics{}

	c.metrics.submitted, err = meter.Int64Counter(
		"settlement_submitted_total",
		metric.WithDescription("Transactions broadcast to the settlement contract"),
	)
	if err != nil {
		return err
	}

	c.metrics.reverted, err = meter.Int64Counter(
		"settlement_reverted_total",
		metric.WithDescription("Settlement transactions mined with a failed status"),
	)
	if err != nil {
		return err
	}

	c.metrics.confirm, err = meter.Float64Histogram(
		"settlement_confirmation_ms",
		metric.WithDescription("Time from submission to receipt in milliseconds"),
		metric.WithUnit("ms"),
	)
	return err
}

// params converts an order to the contract tuple.
func (c *Client) params(order domain.Order) (arbitrageParams, *asset.Asset, error) {
	tokenA, ok := c.config.Tokens.ByAddress(common.HexToAddress(order.TokenA))
	if !ok {
		return arbitrageParams{}, nil, fmt.Errorf("settlement: unknown token %s", order.TokenA)
	}
	buy, ok := c.config.Routers[order.BuyRoute]
	if !ok {
		return arbitrageParams{}, nil, fmt.Errorf("settlement: no router for %s", order.BuyRoute)
	}
	sell, ok := c.config.Routers[order.SellRoute]
	if !ok {
		return arbitrageParams{}, nil, fmt.Errorf("settlement: no router for %s", order.SellRoute)
	}

	amountIn, err := asset.FromDecimal(tokenA, order.AmountIn)
	if err != nil {
		return arbitrageParams{}, nil, fmt.Errorf("settlement: amount: %w", err)
	}
	minProfit, err := asset.FromDecimal(tokenA, decimal.Max(order.MinProfit, decimal.Zero))
	if err != nil {
		return arbitrageParams{}, nil, fmt.Errorf("settlement: min profit: %w", err)
	}

	return arbitrageParams{
		TokenA:       tokenA.Address(),
		TokenB:       common.HexToAddress(order.TokenB),
		AmountIn:     amountIn.Raw(),
		BuyRouter:    buy,
		SellRouter:   sell,
		MinProfit:    minProfit.Raw(),
		UseFlashloan: order.UseFlashloan,
	}, tokenA, nil
}

// EstimateProfit calls estimateProfit and returns whole TokenA units.
func (c *Client) EstimateProfit(ctx context.Context, order domain.Order) (decimal.Decimal, error) {
	ctx, span := apm.Start(ctx, c.tracer, "settlement.EstimateProfit")
	defer span.End()

	p, tokenA, err := c.params(order)
	if err != nil {
		apm.Fail(span, err, "invalid order")
		return decimal.Zero, err
	}
	data, err := c.abi.Pack("estimateProfit", p)
	if err != nil {
		return decimal.Zero, fmt.Errorf("settlement: pack estimateProfit: %w", err)
	}

	out, err := c.cb.Execute(func() ([]byte, error) {
		return c.chain.CallContract(ctx, ethereum.CallMsg{To: &c.config.Address, Data: data}, nil)
	})
	if err != nil {
		apm.Fail(span, err, "estimateProfit failed")
		code := apperror.CodeContractCallFailed
		if circuitbreaker.IsOpen(err) {
			code = apperror.CodeCircuitOpen
		}
		return decimal.Zero, apperror.New(code, apperror.WithCause(err), apperror.WithContext("estimateProfit"))
	}

	vals, err := c.abi.Unpack("estimateProfit", out)
	if err != nil || len(vals) != 1 {
		return decimal.Zero, fmt.Errorf("settlement: unpack estimateProfit: %w", err)
	}
	raw, ok := vals[0].(*big.Int)
	if !ok {
		return decimal.Zero, fmt.Errorf("settlement: unexpected estimateProfit output %T", vals[0])
	}
	return decimal.NewFromBigInt(raw, -int32(tokenA.Decimals())), nil
}

// Submit signs executeArbitrage with key and broadcasts it.
func (c *Client) Submit(ctx context.Context, key *ecdsa.PrivateKey, order domain.Order) (string, error) {
	ctx, span := apm.Start(ctx, c.tracer, "settlement.Submit",
		attribute.String("buy", order.BuyRoute),
		attribute.String("sell", order.SellRoute),
	)
	defer span.End()

	p, _, err := c.params(order)
	if err != nil {
		apm.Fail(span, err, "invalid order")
		return "", err
	}
	data, err := c.abi.Pack("executeArbitrage", p)
	if err != nil {
		return "", fmt.Errorf("settlement: pack executeArbitrage: %w", err)
	}

	from := crypto.PubkeyToAddress(key.PublicKey)

	tip, err := c.chain.SuggestGasTipCap(ctx)
	if err != nil {
		return "", fmt.Errorf("settlement: tip cap: %w", err)
	}
	head, err := c.chain.HeaderByNumber(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("settlement: latest header: %w", err)
	}
	baseFee := head.BaseFee
	if baseFee == nil {
		baseFee = new(big.Int)
	}
	feeCap := new(big.Int).Add(new(big.Int).Mul(baseFee, big.NewInt(2)), tip)

	gas, err := c.chain.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &c.config.Address, Data: data})
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "insufficient funds") {
			return "", err
		}
		c.logger.Warn(ctx, "settlement gas estimate failed, using default", "error", err, "limit", c.config.GasLimit)
		gas = c.config.GasLimit
	}
	// 20% headroom
	gas = gas * 12 / 10

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	nonce, err := c.chain.PendingNonceAt(ctx, from)
	if err != nil {
		return "", fmt.Errorf("settlement: nonce: %w", err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.config.ChainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &c.config.Address,
		Value:     new(big.Int),
		Data:      data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.config.ChainID), key)
	if err != nil {
		return "", fmt.Errorf("settlement: sign: %w", err)
	}

	_, err = c.cb.Execute(func() ([]byte, error) {
		return nil, c.chain.SendTransaction(ctx, signed)
	})
	if err != nil {
		apm.Fail(span, err, "send failed")
		return "", err
	}

	c.metrics.submitted.Add(ctx, 1)
	hash := signed.Hash().Hex()
	span.SetAttributes(attribute.String("tx_hash", hash))
	c.logger.Info(ctx, "settlement transaction sent", "tx", hash, "nonce", nonce, "gas", gas)
	return hash, nil
}

// WaitReceipt polls for the receipt until it is mined or ctx is done.
func (c *Client) WaitReceipt(ctx context.Context, txHash string) (domain.Receipt, error) {
	ctx, span := apm.Start(ctx, c.tracer, "settlement.WaitReceipt", attribute.String("tx_hash", txHash))
	defer span.End()

	start := time.Now()
	hash := common.HexToHash(txHash)

	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.chain.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			c.metrics.confirm.Record(ctx, float64(time.Since(start).Milliseconds()))
			ok := receipt.Status == types.ReceiptStatusSuccessful
			if !ok {
				c.metrics.reverted.Add(ctx, 1)
			}
			return domain.Receipt{TxHash: txHash, Success: ok, GasUsed: receipt.GasUsed}, nil
		case !errors.Is(err, ethereum.NotFound):
			c.logger.Debug(ctx, "receipt lookup failed", "tx", txHash, "error", err)
		}

		select {
		case <-ctx.Done():
			apm.Fail(span, ctx.Err(), "receipt wait ended")
			return domain.Receipt{}, ctx.Err()
		case <-ticker.C:
		}
	}
}
