package bidding

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/bidwatch/internal/core/domain"
	"github.com/vietddude/bidwatch/internal/indexing/metrics"
	"github.com/vietddude/bidwatch/internal/infra/cache"
	"github.com/vietddude/bidwatch/internal/infra/storage"
)

// DefaultHighestBidTTL bounds how stale a cached highest bid can be.
const DefaultHighestBidTTL = 30 * time.Second

// HighestBidKey is the cache key of an auction's highest bid.
func HighestBidKey(auctionID string) string {
	return "bids:highest:" + auctionID
}

// Resolver answers "what is the highest bid" from cache, then chain, then
// the bid store.
type Resolver struct {
	cache  cache.Store
	ledger Ledger
	bids   storage.BidRepository
	ttl    time.Duration
	log    *slog.Logger
}

// NewResolver creates a resolver. A zero ttl uses DefaultHighestBidTTL.
func NewResolver(c cache.Store, ledger Ledger, bids storage.BidRepository, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = DefaultHighestBidTTL
	}
	return &Resolver{
		cache:  c,
		ledger: ledger,
		bids:   bids,
		ttl:    ttl,
		log:    slog.Default().With("component", "resolver"),
	}
}

// Resolve returns the highest bid, or nil when the auction has none. Only
// store failures are returned as errors.
func (r *Resolver) Resolve(ctx context.Context, auctionID string) (*domain.HighestBid, error) {
	key := HighestBidKey(auctionID)

	if hb := r.fromCache(ctx, key); hb != nil {
		metrics.HighestBidLookups.WithLabelValues("cache").Inc()
		return hb, nil
	}

	if r.ledger != nil {
		if hb := r.ledger.GetHighestBidFromContract(ctx, auctionID); hb != nil {
			metrics.HighestBidLookups.WithLabelValues("chain").Inc()
			r.store(ctx, key, hb)
			return hb, nil
		}
	}

	bid, err := r.bids.GetHighest(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load highest bid: %w", err)
	}
	if bid == nil {
		metrics.HighestBidLookups.WithLabelValues("none").Inc()
		return nil, nil
	}

	metrics.HighestBidLookups.WithLabelValues("store").Inc()
	hb := &domain.HighestBid{
		Bidder:         bid.BidderPublicKey,
		AmountStroops:  bid.AmountStroops,
		AmountXLM:      bid.AmountXLM,
		LedgerSequence: bid.LedgerSequence,
	}
	r.store(ctx, key, hb)
	return hb, nil
}

// Invalidate drops the cached highest bid of an auction.
func (r *Resolver) Invalidate(ctx context.Context, auctionID string) {
	if err := r.cache.Delete(ctx, HighestBidKey(auctionID)); err != nil {
		r.log.Warn("Failed to invalidate highest bid", "auction", auctionID, "error", err)
	}
}

func (r *Resolver) fromCache(ctx context.Context, key string) *domain.HighestBid {
	data, found, err := r.cache.Get(ctx, key)
	if err != nil {
		r.log.Warn("Cache read failed", "key", key, "error", err)
		return nil
	}
	if !found {
		return nil
	}
	var hb domain.HighestBid
	if err := json.Unmarshal(data, &hb); err != nil {
		r.log.Warn("Discarding corrupt cache entry", "key", key, "error", err)
		return nil
	}
	return &hb
}

func (r *Resolver) store(ctx context.Context, key string, hb *domain.HighestBid) {
	data, err := json.Marshal(hb)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, key, data, r.ttl); err != nil {
		r.log.Warn("Cache write failed", "key", key, "error", err)
	}
}
