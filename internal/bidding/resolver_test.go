package bidding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/bidwatch/internal/core/domain"
	"github.com/vietddude/bidwatch/internal/infra/cache"
	"github.com/vietddude/bidwatch/internal/infra/storage/memory"
)

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("cache down")
}

func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("cache down")
}

func (brokenCache) Delete(context.Context, string) error { return errors.New("cache down") }

func TestResolver_Tiers(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryStorage()
	bids := memory.NewBidRepo(store)
	c := cache.NewMemoryStore()
	ledger := &fakeLedger{highest: map[string]*domain.HighestBid{}}
	r := NewResolver(c, ledger, bids, time.Minute)

	// Nothing anywhere
	hb, err := r.Resolve(ctx, "A")
	if err != nil || hb != nil {
		t.Fatalf("expected nil highest bid, got %+v (%v)", hb, err)
	}

	// Store tier, earliest wins on equal amounts
	t0 := time.Unix(1_700_000_000, 0).UTC()
	_ = bids.Create(ctx, &domain.Bid{AuctionID: "A", BidderPublicKey: "G_LATE", AmountStroops: 200, AmountXLM: "0.00002", TransactionHash: "h2", CreatedAt: t0.Add(time.Minute)})
	_ = bids.Create(ctx, &domain.Bid{AuctionID: "A", BidderPublicKey: "G_EARLY", AmountStroops: 200, AmountXLM: "0.00002", TransactionHash: "h1", CreatedAt: t0})
	_ = bids.Create(ctx, &domain.Bid{AuctionID: "A", BidderPublicKey: "G_LOW", AmountStroops: 100, AmountXLM: "0.00001", TransactionHash: "h0", CreatedAt: t0})

	hb, err = r.Resolve(ctx, "A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hb == nil || hb.Bidder != "G_EARLY" {
		t.Fatalf("expected G_EARLY from store, got %+v", hb)
	}
	if _, found, _ := c.Get(ctx, HighestBidKey("A")); !found {
		t.Error("expected store result written to cache")
	}

	// Cache hit short-circuits chain and store
	calls := ledger.calls
	ledger.highest["A"] = &domain.HighestBid{Bidder: "G_CHAIN", AmountStroops: 999}
	hb, _ = r.Resolve(ctx, "A")
	if hb.Bidder != "G_EARLY" {
		t.Errorf("expected cached G_EARLY, got %s", hb.Bidder)
	}
	if ledger.calls != calls {
		t.Error("expected no chain call on cache hit")
	}

	// After invalidation the chain is authoritative
	r.Invalidate(ctx, "A")
	hb, _ = r.Resolve(ctx, "A")
	if hb.Bidder != "G_CHAIN" {
		t.Errorf("expected chain result, got %s", hb.Bidder)
	}
	hb, _ = r.Resolve(ctx, "A")
	if hb.Bidder != "G_CHAIN" || ledger.calls != calls+1 {
		t.Errorf("expected chain result cached, calls=%d", ledger.calls)
	}
}

func TestResolver_CacheFailureIsMiss(t *testing.T) {
	ctx := context.Background()
	bids := memory.NewBidRepo(memory.NewMemoryStorage())
	_ = bids.Create(ctx, &domain.Bid{AuctionID: "A", BidderPublicKey: "G_B", AmountStroops: 5, AmountXLM: "0.0000005", TransactionHash: "h"})

	r := NewResolver(brokenCache{}, nil, bids, 0)
	hb, err := r.Resolve(ctx, "A")
	if err != nil {
		t.Fatalf("expected cache failure to be tolerated, got %v", err)
	}
	if hb == nil || hb.Bidder != "G_B" {
		t.Errorf("expected store result, got %+v", hb)
	}
	r.Invalidate(ctx, "A")
}

func TestResolver_CacheExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	c := cache.NewMemoryStore().WithClock(func() time.Time { return now })
	ledger := &fakeLedger{highest: map[string]*domain.HighestBid{
		"A": {Bidder: "G_ONE", AmountStroops: 1},
	}}
	r := NewResolver(c, ledger, memory.NewBidRepo(memory.NewMemoryStorage()), 30*time.Second)

	_, _ = r.Resolve(ctx, "A")
	ledger.highest["A"] = &domain.HighestBid{Bidder: "G_TWO", AmountStroops: 2}

	now = now.Add(29 * time.Second)
	if hb, _ := r.Resolve(ctx, "A"); hb.Bidder != "G_ONE" {
		t.Errorf("expected cached G_ONE within ttl, got %s", hb.Bidder)
	}
	now = now.Add(2 * time.Second)
	if hb, _ := r.Resolve(ctx, "A"); hb.Bidder != "G_TWO" {
		t.Errorf("expected fresh G_TWO after ttl, got %s", hb.Bidder)
	}
}
