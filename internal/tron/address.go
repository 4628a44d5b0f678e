package tron

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/mr-tron/base58"
)

// addressPrefix is the TRON mainnet version byte (base58 addresses start with "T").
const addressPrefix = 0x41

var ErrInvalidAddress = errors.New("tron: invalid address")

// ValidateAddress checks that addr is a well-formed base58check TRON address.
func ValidateAddress(addr string) error {
	_, err := decodeAddress(addr)
	return err
}

// CanonicalAddress returns the storage form of a wallet address: the
// validated base58 string exactly as supplied. Casing is significant in
// base58check, so the original casing is preserved rather than folded.
func CanonicalAddress(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if _, err := decodeAddress(addr); err != nil {
		return "", err
	}
	return addr, nil
}

// CompareKey returns the form used for equality checks between stored and
// presented addresses. Historical write paths lowercased addresses before
// persisting them, which cannot be undone, so comparisons are folded to
// lower case while storage keeps original casing where it survived.
func CompareKey(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// SameAddress reports whether two addresses refer to the same wallet under
// the comparison policy above.
func SameAddress(a, b string) bool {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return false
	}
	return CompareKey(a) == CompareKey(b)
}

// HexAddress converts a base58check address to its 21-byte hex form used by
// the raw node API.
func HexAddress(addr string) (string, error) {
	raw, err := decodeAddress(addr)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

func decodeAddress(addr string) ([]byte, error) {
	addr = strings.TrimSpace(addr)
	if len(addr) != 34 || !strings.HasPrefix(addr, "T") {
		return nil, ErrInvalidAddress
	}
	decoded, err := base58.Decode(addr)
	if err != nil {
		return nil, ErrInvalidAddress
	}
	if len(decoded) != 25 || decoded[0] != addressPrefix {
		return nil, ErrInvalidAddress
	}
	payload, checksum := decoded[:21], decoded[21:]
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	for i := 0; i < 4; i++ {
		if checksum[i] != second[i] {
			return nil, ErrInvalidAddress
		}
	}
	return payload, nil
}

// EncodeAddress converts a 21-byte payload back to base58check form.
func EncodeAddress(payload []byte) (string, error) {
	if len(payload) != 21 || payload[0] != addressPrefix {
		return "", ErrInvalidAddress
	}
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	full := make([]byte, 0, 25)
	full = append(full, payload...)
	full = append(full, second[:4]...)
	return base58.Encode(full), nil
}
