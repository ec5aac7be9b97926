package keys

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/fd1az/flasharb/internal/apperror"
)

func TestKeyring_SigningKey(t *testing.T) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	hexKey := "0x" + hex.EncodeToString(crypto.FromECDSA(priv))

	kr, err := NewKeyring(map[string]string{"Alice": hexKey, "bob": "0xnothex"})
	if err != nil {
		t.Fatalf("NewKeyring: %v", err)
	}

	tests := []struct {
		name     string
		actor    string
		wantCode apperror.Code
	}{
		{"configured", "alice", ""},
		{"case_insensitive", "ALICE", ""},
		{"missing", "carol", apperror.CodeSigningKeyMissing},
		{"malformed", "bob", apperror.CodeSigningKeyMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := kr.SigningKey(context.Background(), tt.actor)
			if tt.wantCode != "" {
				if apperror.GetCode(err) != tt.wantCode {
					t.Fatalf("err = %v, want %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("SigningKey: %v", err)
			}
			if crypto.PubkeyToAddress(key.PublicKey) != crypto.PubkeyToAddress(priv.PublicKey) {
				t.Error("wrong key returned")
			}
		})
	}

	if kr.parsed.Len() != 1 {
		t.Errorf("parsed cache = %d entries, want 1", kr.parsed.Len())
	}
}
