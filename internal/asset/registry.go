package asset

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Registry is a thread-safe index of the tokens the coordinator trades.
// Symbols are unique within a registry; one registry serves one chain.
type Registry struct {
	chainID  uint64
	byID     map[ID]*Asset
	bySymbol map[string]*Asset
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry for chainID.
func NewRegistry(chainID uint64) *Registry {
	return &Registry{
		chainID:  chainID,
		byID:     make(map[ID]*Asset),
		bySymbol: make(map[string]*Asset),
	}
}

// ChainID returns the chain this registry serves.
func (r *Registry) ChainID() uint64 {
	return r.chainID
}

// Register adds an asset. Duplicate ids or symbols are rejected.
func (r *Registry) Register(a *Asset) error {
	if a == nil {
		return ErrNilAsset
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[a.ID()]; exists {
		return fmt.Errorf("asset: %s already registered", a.ID())
	}
	sym := strings.ToUpper(a.Symbol())
	if _, exists := r.bySymbol[sym]; exists {
		return fmt.Errorf("asset: symbol %s already registered", sym)
	}

	r.byID[a.ID()] = a
	r.bySymbol[sym] = a
	return nil
}

// RegisterToken builds and registers an ERC20 token on the registry's chain.
func (r *Registry) RegisterToken(address, symbol string, decimals uint8) (*Asset, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("asset: invalid address %q for %s", address, symbol)
	}
	a := NewAsset(NewID(r.chainID, common.HexToAddress(address)), strings.ToUpper(symbol), decimals)
	if err := r.Register(a); err != nil {
		return nil, err
	}
	return a, nil
}

// Get retrieves an asset by its ID.
func (r *Registry) Get(id ID) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	return a, ok
}

// BySymbol retrieves an asset by ticker, case-insensitively.
func (r *Registry) BySymbol(symbol string) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.bySymbol[strings.ToUpper(symbol)]
	return a, ok
}

// ByAddress retrieves a token by contract address.
func (r *Registry) ByAddress(address common.Address) (*Asset, bool) {
	return r.Get(NewID(r.chainID, address))
}
