package oracle

import (
	"context"
	"errors"
)

// ErrPriceUnavailable marks a transient fetch failure; the caller skips the
// current evaluation and retries on its next interval.
var ErrPriceUnavailable = errors.New("price unavailable")

// Oracle supplies USD prices for tokens and for the quote asset.
type Oracle interface {
	GetTokenPrice(ctx context.Context, tokenID string) (float64, error)
	GetQuoteAssetPrice(ctx context.Context) (float64, error)
}
