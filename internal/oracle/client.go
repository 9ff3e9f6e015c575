package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Client wraps REST access to the price oracle service.
type Client struct {
	BaseURL     string
	QuoteSymbol string
	HTTPClient  *http.Client

	limiter *rate.Limiter

	mu     sync.RWMutex
	cached map[string]cachedPrice
	ttl    time.Duration
}

type cachedPrice struct {
	price float64
	at    time.Time
}

// NewClient builds an oracle REST client. rps bounds outbound request rate so
// a large strategy count cannot hammer the upstream service.
func NewClient(baseURL, quoteSymbol string, rps float64) *Client {
	if rps <= 0 {
		rps = 10
	}
	return &Client{
		BaseURL:     baseURL,
		QuoteSymbol: quoteSymbol,
		HTTPClient:  &http.Client{Timeout: 10 * time.Second},
		limiter:     rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		cached:      make(map[string]cachedPrice),
		ttl:         2 * time.Second,
	}
}

// GetTokenPrice returns the USD price for a token id.
func (c *Client) GetTokenPrice(ctx context.Context, tokenID string) (float64, error) {
	return c.fetch(ctx, tokenID)
}

// GetQuoteAssetPrice returns the USD price of the quote asset.
func (c *Client) GetQuoteAssetPrice(ctx context.Context) (float64, error) {
	return c.fetch(ctx, c.QuoteSymbol)
}

func (c *Client) fetch(ctx context.Context, id string) (float64, error) {
	c.mu.RLock()
	if hit, ok := c.cached[id]; ok && time.Since(hit.at) < c.ttl {
		c.mu.RUnlock()
		return hit.price, nil
	}
	c.mu.RUnlock()

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}

	params := url.Values{}
	params.Set("ids", id)
	u := fmt.Sprintf("%s/price?%s", c.BaseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: oracle status %d", ErrPriceUnavailable, res.StatusCode)
	}

	var resp struct {
		Data map[string]struct {
			Price float64 `json:"price"`
		} `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return 0, fmt.Errorf("%w: decode: %v", ErrPriceUnavailable, err)
	}

	entry, ok := resp.Data[id]
	if !ok || entry.Price <= 0 {
		return 0, fmt.Errorf("%w: no price for %s", ErrPriceUnavailable, id)
	}

	c.mu.Lock()
	c.cached[id] = cachedPrice{price: entry.Price, at: time.Now()}
	c.mu.Unlock()

	return entry.Price, nil
}
