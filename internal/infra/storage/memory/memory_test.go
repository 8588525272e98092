package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/bidwatch/internal/core/domain"
)

func newBid(hash, auction, bidder string, stroops int64, ledger uint32, at time.Time) *domain.Bid {
	return &domain.Bid{
		ID:              "id-" + hash,
		AuctionID:       auction,
		BidderPublicKey: bidder,
		AmountStroops:   stroops,
		TransactionHash: hash,
		LedgerSequence:  ledger,
		CreatedAt:       at,
	}
}

func TestBidRepo_CreateDuplicateHash(t *testing.T) {
	repo := NewBidRepo(NewMemoryStorage())
	ctx := context.Background()

	if err := repo.Create(ctx, newBid("h1", "A", "G1", 1, 10, time.Now())); err != nil {
		t.Fatalf("first create: %v", err)
	}
	err := repo.Create(ctx, newBid("h1", "A", "G2", 2, 11, time.Now()))
	if !errors.Is(err, domain.ErrDuplicateTransaction) {
		t.Errorf("expected ErrDuplicateTransaction, got %v", err)
	}

	n, _ := repo.CountByAuction(ctx, "A")
	if n != 1 {
		t.Errorf("expected 1 bid, got %d", n)
	}
}

func TestBidRepo_GetHighestTieBreak(t *testing.T) {
	repo := NewBidRepo(NewMemoryStorage())
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)

	_ = repo.Create(ctx, newBid("late", "A", "G2", 500, 12, base.Add(time.Minute)))
	_ = repo.Create(ctx, newBid("early", "A", "G1", 500, 11, base))
	_ = repo.Create(ctx, newBid("low", "A", "G3", 100, 13, base))
	_ = repo.Create(ctx, newBid("other", "B", "G3", 900, 13, base))

	got, err := repo.GetHighest(ctx, "A")
	if err != nil {
		t.Fatalf("GetHighest: %v", err)
	}
	if got == nil || got.TransactionHash != "early" {
		t.Errorf("expected earliest equal bid, got %+v", got)
	}

	none, _ := repo.GetHighest(ctx, "missing")
	if none != nil {
		t.Errorf("expected nil for unknown auction, got %+v", none)
	}
}

func TestBidRepo_ListByAuctionCursor(t *testing.T) {
	repo := NewBidRepo(NewMemoryStorage())
	ctx := context.Background()
	now := time.Now()
	for i, h := range []string{"a", "b", "c", "d"} {
		_ = repo.Create(ctx, newBid(h, "A", "G1", int64(i), uint32(100+i), now))
	}

	page, _ := repo.ListByAuction(ctx, "A", nil, 2)
	if len(page) != 2 || page[0].LedgerSequence != 103 || page[1].LedgerSequence != 102 {
		t.Fatalf("unexpected first page: %+v", page)
	}

	cursor := page[1].LedgerSequence
	page, _ = repo.ListByAuction(ctx, "A", &cursor, 2)
	if len(page) != 2 || page[0].LedgerSequence != 101 || page[1].LedgerSequence != 100 {
		t.Errorf("unexpected second page: %+v", page)
	}
}

func TestAuctionRepo_SaveAndUpdate(t *testing.T) {
	repo := NewAuctionRepo(NewMemoryStorage())
	ctx := context.Background()

	_ = repo.Save(ctx, &domain.Auction{ID: "A", Status: domain.AuctionStatusActive})
	if err := repo.UpdateStatus(ctx, "A", domain.AuctionStatusEnded); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	got, _ := repo.Get(ctx, "A")
	if got.Status != domain.AuctionStatusEnded {
		t.Errorf("expected Ended, got %s", got.Status)
	}

	missing, _ := repo.Get(ctx, "B")
	if missing != nil {
		t.Errorf("expected nil, got %+v", missing)
	}
}

func TestCheckpointRepo_ForwardOnly(t *testing.T) {
	ctx := context.Background()
	repo := NewCheckpointRepo(NewMemoryStorage())

	if _, ok, _ := repo.Get(ctx, domain.ListenerAuction); ok {
		t.Fatal("expected no checkpoint")
	}

	repo.Save(ctx, domain.ListenerAuction, 120)
	repo.Save(ctx, domain.ListenerAuction, 90)

	got, ok, err := repo.Get(ctx, domain.ListenerAuction)
	if err != nil || !ok {
		t.Fatalf("expected checkpoint, got ok=%v err=%v", ok, err)
	}
	if got != 120 {
		t.Errorf("expected 120, got %d", got)
	}
}

func TestAuctionRepo_SaveKeepsStatus(t *testing.T) {
	repo := NewAuctionRepo(NewMemoryStorage())
	ctx := context.Background()

	if err := repo.UpdateStatus(ctx, "A", domain.AuctionStatusCancelled); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	got, _ := repo.Get(ctx, "A")
	if got == nil || got.Status != domain.AuctionStatusCancelled {
		t.Fatalf("expected Cancelled placeholder, got %+v", got)
	}

	_ = repo.Save(ctx, &domain.Auction{ID: "A", SellerPublicKey: "G_SELLER", Status: domain.AuctionStatusActive})
	got, _ = repo.Get(ctx, "A")
	if got.Status != domain.AuctionStatusCancelled {
		t.Errorf("expected Cancelled, got %s", got.Status)
	}
	if got.SellerPublicKey != "G_SELLER" {
		t.Errorf("expected seller filled in, got %q", got.SellerPublicKey)
	}
}
