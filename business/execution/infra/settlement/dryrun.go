package settlement

import (
	"context"
	"crypto/ecdsa"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fd1az/flasharb/business/execution/app"
	"github.com/fd1az/flasharb/business/execution/domain"
	"github.com/fd1az/flasharb/internal/logger"
)

var _ app.Settlement = (*DryRun)(nil)

// DryRun simulates settlement: every order confirms successfully after Delay.
// Nothing is signed or broadcast.
type DryRun struct {
	delay   time.Duration
	gasUsed uint64
	logger  logger.LoggerInterface

	mu      sync.Mutex
	pending map[string]time.Time
}

// NewDryRun creates a simulated settlement.
func NewDryRun(delay time.Duration, gasUsed uint64, log logger.LoggerInterface) *DryRun {
	return &DryRun{
		delay:   delay,
		gasUsed: gasUsed,
		logger:  log,
		pending: make(map[string]time.Time),
	}
}

// EstimateProfit echoes the order's minimum profit.
func (d *DryRun) EstimateProfit(ctx context.Context, order domain.Order) (decimal.Decimal, error) {
	return order.MinProfit, nil
}

// Submit returns a synthetic transaction hash.
func (d *DryRun) Submit(ctx context.Context, key *ecdsa.PrivateKey, order domain.Order) (string, error) {
	hash := crypto.Keccak256Hash([]byte(uuid.NewString())).Hex()

	d.mu.Lock()
	d.pending[hash] = time.Now()
	d.mu.Unlock()

	d.logger.Info(ctx, "dry-run settlement",
		"tx", hash,
		"from", crypto.PubkeyToAddress(key.PublicKey).Hex(),
		"amount", order.AmountIn.String(),
		"buy", order.BuyRoute,
		"sell", order.SellRoute,
	)
	return hash, nil
}

// WaitReceipt confirms a submitted hash once Delay has passed since submission.
func (d *DryRun) WaitReceipt(ctx context.Context, txHash string) (domain.Receipt, error) {
	d.mu.Lock()
	sent, ok := d.pending[txHash]
	d.mu.Unlock()

	if !ok {
		<-ctx.Done()
		return domain.Receipt{}, ctx.Err()
	}

	timer := time.NewTimer(time.Until(sent.Add(d.delay)))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return domain.Receipt{}, ctx.Err()
	case <-timer.C:
	}

	d.mu.Lock()
	delete(d.pending, txHash)
	d.mu.Unlock()
	return domain.Receipt{TxHash: txHash, Success: true, GasUsed: d.gasUsed}, nil
}
