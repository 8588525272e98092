package bidding

import (
	"context"
	"testing"
	"time"

	"github.com/vietddude/bidwatch/internal/core/domain"
	"github.com/vietddude/bidwatch/internal/infra/cache"
	"github.com/vietddude/bidwatch/internal/infra/storage/memory"
)

func TestLifecycle_CreateAndClose(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryStorage()
	auctions := memory.NewAuctionRepo(store)
	bids := memory.NewBidRepo(store)
	b := &fakeBroadcaster{}
	l := NewLifecycle(auctions, NewResolver(cache.NewMemoryStore(), nil, bids, 0), b)

	err := l.HandleAuctionCreated(ctx, &domain.ChainEvent{
		ID:   "c1",
		Name: domain.EventAuctionCreated,
		Payload: map[string]any{
			"auctionId":         "A",
			"sellerPublicKey":   "G_SELLER",
			"nftContractId":     "CNFT",
			"tokenId":           "7",
			"reservePriceMinor": "100000000",
			"minIncrementMinor": "500000",
			"endTime":           "1800000000",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a, _ := auctions.Get(ctx, "A")
	if a == nil {
		t.Fatal("expected auction saved")
	}
	if a.Status != domain.AuctionStatusActive || a.ReservePriceXLM != "10" || a.MinIncrement != "0.05" {
		t.Errorf("unexpected auction %+v", a)
	}
	if a.EndTime == nil || !a.EndTime.Equal(time.Unix(1_800_000_000, 0)) {
		t.Errorf("unexpected end time %v", a.EndTime)
	}

	err = l.HandleAuctionClosed(ctx, &domain.ChainEvent{
		ID:      "e1",
		Name:    domain.EventAuctionEnded,
		Payload: map[string]any{"auctionId": "A"},
	}, domain.AuctionStatusEnded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, _ = auctions.Get(ctx, "A")
	if a.Status != domain.AuctionStatusEnded {
		t.Errorf("expected Ended, got %s", a.Status)
	}
	if b.count() != 1 || b.sent[0].event != "auction_ended" {
		t.Errorf("expected auction_ended broadcast, got %+v", b.sent)
	}
}

func TestLifecycle_DropsMalformed(t *testing.T) {
	ctx := context.Background()
	auctions := memory.NewAuctionRepo(memory.NewMemoryStorage())
	l := NewLifecycle(auctions, NewResolver(cache.NewMemoryStore(), nil, nil, 0), nil)

	if err := l.HandleAuctionCreated(ctx, &domain.ChainEvent{Payload: map[string]any{"auctionId": "A"}}); err != nil {
		t.Errorf("expected drop without error, got %v", err)
	}
	if a, _ := auctions.Get(ctx, "A"); a != nil {
		t.Error("expected nothing saved")
	}
	if err := l.HandleAuctionClosed(ctx, &domain.ChainEvent{Payload: map[string]any{}}, domain.AuctionStatusCancelled); err != nil {
		t.Errorf("expected drop without error, got %v", err)
	}
}

func createdEvent(id string) *domain.ChainEvent {
	return &domain.ChainEvent{
		ID:   "c-" + id,
		Name: domain.EventAuctionCreated,
		Payload: map[string]any{
			"auctionId":         id,
			"sellerPublicKey":   "G_SELLER",
			"reservePriceMinor": "100000000",
			"minIncrementMinor": "500000",
		},
	}
}

func endedEvent(id string) *domain.ChainEvent {
	return &domain.ChainEvent{
		ID:      "e-" + id,
		Name:    domain.EventAuctionEnded,
		Payload: map[string]any{"auctionId": id},
	}
}

func TestLifecycle_ClosedAuctionStaysClosed(t *testing.T) {
	tests := []struct {
		name  string
		apply func(ctx context.Context, l *Lifecycle) error
	}{
		{
			name: "created then ended then created again",
			apply: func(ctx context.Context, l *Lifecycle) error {
				if err := l.HandleAuctionCreated(ctx, createdEvent("A")); err != nil {
					return err
				}
				if err := l.HandleAuctionClosed(ctx, endedEvent("A"), domain.AuctionStatusEnded); err != nil {
					return err
				}
				return l.HandleAuctionCreated(ctx, createdEvent("A"))
			},
		},
		{
			name: "ended before created",
			apply: func(ctx context.Context, l *Lifecycle) error {
				if err := l.HandleAuctionClosed(ctx, endedEvent("A"), domain.AuctionStatusEnded); err != nil {
					return err
				}
				return l.HandleAuctionCreated(ctx, createdEvent("A"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := memory.NewMemoryStorage()
			auctions := memory.NewAuctionRepo(store)
			l := NewLifecycle(auctions, NewResolver(cache.NewMemoryStore(), nil, memory.NewBidRepo(store), 0), nil)

			if err := tt.apply(ctx, l); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			a, _ := auctions.Get(ctx, "A")
			if a == nil {
				t.Fatal("expected auction stored")
			}
			if a.Status != domain.AuctionStatusEnded {
				t.Errorf("expected Ended, got %s", a.Status)
			}
			if a.SellerPublicKey != "G_SELLER" || a.ReservePriceXLM != "10" || a.MinIncrement != "0.05" {
				t.Errorf("expected details filled in, got %+v", a)
			}
		})
	}
}
