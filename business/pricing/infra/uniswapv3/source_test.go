package uniswapv3

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/flasharb/business/pricing/domain"
	"github.com/fd1az/flasharb/internal/apperror"
	"github.com/fd1az/flasharb/internal/asset"
	"github.com/fd1az/flasharb/internal/logger"
)

// sequenceQuoter answers successive quoter calls from a script; a nil entry reverts.
type sequenceQuoter struct {
	method  abi.Method
	answers []*big.Int

	mu    sync.Mutex
	calls int
}

func newSequenceQuoter(t *testing.T, answers ...*big.Int) *sequenceQuoter {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(QuoterV2ABI))
	if err != nil {
		t.Fatal(err)
	}
	return &sequenceQuoter{method: parsed.Methods["quoteExactInputSingle"], answers: answers}
}

func (q *sequenceQuoter) CallContract(_ context.Context, _ ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.calls
	q.calls++
	if i >= len(q.answers) || q.answers[i] == nil {
		return nil, errors.New("execution reverted")
	}
	return q.method.Outputs.Pack(q.answers[i], big.NewInt(0), uint32(1), big.NewInt(90_000))
}

func newSource(t *testing.T, caller ContractCaller, tiers ...int) *Source {
	t.Helper()
	s, err := NewSource(caller, Config{
		ExchangeID: "uniswap_v3",
		Quoter:     common.HexToAddress("0x61fFE014bA17989E743c5F6cB21bF9697530B21e"),
		FeeTiers:   tiers,
	}, logger.Discard())
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	return s
}

func TestSource_PicksBestFeeTier(t *testing.T) {
	quoter := newSequenceQuoter(t,
		big.NewInt(3_001_000_000), // 0.05%
		nil,                       // 0.30% reverts
		big.NewInt(3_004_500_000), // 1.00%
	)
	s := newSource(t, quoter, FeeTier005, FeeTier030, FeeTier100)

	q, err := s.FetchPrice(context.Background(), domain.NewTokenPair(asset.WETH, asset.USDC))
	if err != nil {
		t.Fatalf("FetchPrice: %v", err)
	}

	if !q.Price.Equal(decimal.RequireFromString("3004.5")) {
		t.Errorf("price = %s, want 3004.5", q.Price)
	}
	if !q.Liquidity.IsZero() {
		t.Errorf("liquidity = %s, want unknown (0)", q.Liquidity)
	}
	if quoter.calls != 3 {
		t.Errorf("calls = %d, want 3", quoter.calls)
	}
}

func TestSource_AllTiersFail(t *testing.T) {
	s := newSource(t, newSequenceQuoter(t), FeeTier005, FeeTier030)

	_, err := s.FetchPrice(context.Background(), domain.NewTokenPair(asset.WETH, asset.USDC))
	if apperror.GetCode(err) != apperror.CodePoolNotFound {
		t.Errorf("err = %v, want POOL_NOT_FOUND", err)
	}
}

func TestNewSource_DefaultFeeTiers(t *testing.T) {
	s := newSource(t, newSequenceQuoter(t))
	if len(s.feeTiers) != len(DefaultFeeTiers) {
		t.Errorf("feeTiers = %v", s.feeTiers)
	}
}
