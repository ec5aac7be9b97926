// Package keys resolves actor signing keys from configuration.
package keys

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/fd1az/flasharb/business/execution/app"
	"github.com/fd1az/flasharb/internal/apperror"
)

const parsedKeyCacheSize = 128

var _ app.SigningKeys = (*Keyring)(nil)

// Keyring maps actor ids to hex-encoded private keys. Parsed keys are kept
// in an LRU so hex decoding happens once per actor.
type Keyring struct {
	raw    map[string]string
	parsed *lru.Cache[string, *ecdsa.PrivateKey]
}

// NewKeyring creates a keyring. Actor ids are case-insensitive.
func NewKeyring(raw map[string]string) (*Keyring, error) {
	parsed, err := lru.New[string, *ecdsa.PrivateKey](parsedKeyCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create key cache: %w", err)
	}

	keys := make(map[string]string, len(raw))
	for actor, key := range raw {
		keys[strings.ToLower(actor)] = key
	}
	return &Keyring{raw: keys, parsed: parsed}, nil
}

// SigningKey returns the actor's key or SIGNING_KEY_MISSING.
func (k *Keyring) SigningKey(ctx context.Context, actorID string) (*ecdsa.PrivateKey, error) {
	actor := strings.ToLower(actorID)
	if key, ok := k.parsed.Get(actor); ok {
		return key, nil
	}

	hexKey, ok := k.raw[actor]
	if !ok || hexKey == "" {
		return nil, apperror.New(apperror.CodeSigningKeyMissing, apperror.WithContext(actorID))
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		// A malformed key is as unusable as a missing one.
		return nil, apperror.New(apperror.CodeSigningKeyMissing,
			apperror.WithCause(err),
			apperror.WithContext(actorID),
		)
	}
	k.parsed.Add(actor, key)
	return key, nil
}

