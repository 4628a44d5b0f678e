package blob

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultGateway  = "https://gateway.pinata.cloud/ipfs"
	maxDocumentSize = 32 << 20
)

// Gateway fetches encrypted documents from an IPFS HTTP gateway by content
// hash.
type Gateway struct {
	baseURL string
	httpc   *http.Client
}

// GatewayOption configures Gateway.
type GatewayOption func(*Gateway)

// WithGatewayURL overrides the gateway base URL.
func WithGatewayURL(url string) GatewayOption {
	return func(g *Gateway) {
		if strings.TrimSpace(url) != "" {
			g.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithGatewayHTTPClient overrides the HTTP client (tests).
func WithGatewayHTTPClient(h *http.Client) GatewayOption {
	return func(g *Gateway) {
		if h != nil {
			g.httpc = h
		}
	}
}

func NewGateway(opts ...GatewayOption) *Gateway {
	g := &Gateway{
		baseURL: defaultGateway,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Fetch retrieves the payload for a validated content hash.
func (g *Gateway) Fetch(ctx context.Context, ipfsHash string) ([]byte, error) {
	if err := ValidateIPFSHash(ipfsHash); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		g.baseURL+"/"+strings.TrimSpace(ipfsHash), nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("blob: gateway status %d", resp.StatusCode)
	}
}
