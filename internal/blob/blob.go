// Package blob handles encrypted document payloads. The notice store keeps
// only pointers (IPFS hashes or storage keys); the bytes live behind one of
// the Storage implementations or a public IPFS gateway.
package blob

import (
	"context"
	"errors"
	"strings"

	"github.com/mr-tron/base58"
)

var (
	ErrInvalidPointer = errors.New("blob: invalid content pointer")
	ErrNotFound       = errors.New("blob: not found")
)

// Storage stores document payloads by opaque key.
type Storage interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// ValidateIPFSHash checks a CIDv0 pointer: base58-encoded sha2-256
// multihash, 46 characters starting with "Qm".
func ValidateIPFSHash(hash string) error {
	hash = strings.TrimSpace(hash)
	if len(hash) != 46 || !strings.HasPrefix(hash, "Qm") {
		return ErrInvalidPointer
	}
	raw, err := base58.Decode(hash)
	if err != nil {
		return ErrInvalidPointer
	}
	// 0x12 = sha2-256, 0x20 = 32-byte digest.
	if len(raw) != 34 || raw[0] != 0x12 || raw[1] != 0x20 {
		return ErrInvalidPointer
	}
	return nil
}
