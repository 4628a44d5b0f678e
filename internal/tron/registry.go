package tron

import (
	"context"
	"errors"
	"fmt"
)

// Registry reads notice contract state used as ground truth during
// reconciliation.
type Registry struct {
	client *Client
}

func NewRegistry(client *Client) *Registry {
	return &Registry{client: client}
}

// OwnerOf returns the wallet that holds the given token. For Alert tokens
// this is the served recipient.
func (r *Registry) OwnerOf(ctx context.Context, tokenID string) (string, error) {
	param, err := EncodeUint(tokenID)
	if err != nil {
		return "", err
	}
	word, err := r.client.CallContract(ctx, "ownerOf(uint256)", param)
	if err != nil {
		return "", err
	}
	addr, err := DecodeAddressWord(word)
	if err != nil {
		return "", fmt.Errorf("tron: ownerOf(%s): %w", tokenID, err)
	}
	return addr, nil
}

// TotalSupply returns the number of minted tokens, used to bound scans for
// missing records.
func (r *Registry) TotalSupply(ctx context.Context) (uint64, error) {
	word, err := r.client.CallContract(ctx, "totalSupply()")
	if err != nil {
		return 0, err
	}
	return decodeUintWord(word)
}

func decodeUintWord(word string) (uint64, error) {
	var n uint64
	if _, err := fmt.Sscanf(wordTail(word, 16), "%x", &n); err != nil {
		return 0, errors.New("tron: malformed uint word")
	}
	return n, nil
}

func wordTail(word string, n int) string {
	if len(word) <= n {
		return word
	}
	return word[len(word)-n:]
}
