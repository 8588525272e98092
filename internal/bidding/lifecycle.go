package bidding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/vietddude/bidwatch/internal/core/amount"
	"github.com/vietddude/bidwatch/internal/core/domain"
	"github.com/vietddude/bidwatch/internal/infra/storage"
)

// Lifecycle applies auction lifecycle events to the auction store.
type Lifecycle struct {
	auctions    storage.AuctionRepository
	resolver    *Resolver
	broadcaster Broadcaster
	log         *slog.Logger
}

// NewLifecycle creates an auction lifecycle handler.
func NewLifecycle(auctions storage.AuctionRepository, resolver *Resolver, b Broadcaster) *Lifecycle {
	if b == nil {
		b = NopBroadcaster{}
	}
	return &Lifecycle{
		auctions:    auctions,
		resolver:    resolver,
		broadcaster: b,
		log:         slog.Default().With("component", "auction-lifecycle"),
	}
}

// HandleAuctionCreated stores a new active auction.
func (l *Lifecycle) HandleAuctionCreated(ctx context.Context, ev *domain.ChainEvent) error {
	id, _ := ev.PayloadString("auctionId")
	seller, _ := ev.PayloadString("sellerPublicKey")
	if id == "" || seller == "" {
		l.log.Warn("Dropping malformed AuctionCreated event", "id", ev.ID)
		return nil
	}

	a := &domain.Auction{
		ID:              id,
		SellerPublicKey: seller,
		Status:          domain.AuctionStatusActive,
		ReservePriceXLM: "0",
		MinIncrement:    "0",
	}
	a.NFTContractID, _ = ev.PayloadString("nftContractId")
	a.TokenID, _ = ev.PayloadString("tokenId")
	if v, err := minorField(ev, "reservePriceMinor"); err == nil {
		a.ReservePriceXLM = amount.MinorToMajor(v)
	}
	if v, err := minorField(ev, "minIncrementMinor"); err == nil {
		a.MinIncrement = amount.MinorToMajor(v)
	}
	if v, err := minorField(ev, "endTime"); err == nil && v > 0 {
		end := time.Unix(v, 0).UTC()
		a.EndTime = &end
	}

	if err := l.auctions.Save(ctx, a); err != nil {
		return fmt.Errorf("failed to save auction %s: %w", id, err)
	}
	l.log.Info("Auction created", "auction", id, "seller", seller, "reserve", a.ReservePriceXLM)
	return nil
}

// HandleAuctionClosed marks an auction Ended or Cancelled and notifies
// subscribers.
func (l *Lifecycle) HandleAuctionClosed(ctx context.Context, ev *domain.ChainEvent, status domain.AuctionStatus) error {
	id, _ := ev.PayloadString("auctionId")
	if id == "" {
		l.log.Warn("Dropping auction event without id", "id", ev.ID, "event", ev.Name)
		return nil
	}

	if err := l.auctions.UpdateStatus(ctx, id, status); err != nil {
		return fmt.Errorf("failed to update auction %s: %w", id, err)
	}
	l.resolver.Invalidate(ctx, id)
	l.broadcaster.BroadcastAuctionEnded(id, status)
	l.log.Info("Auction closed", "auction", id, "status", status)
	return nil
}

func minorField(ev *domain.ChainEvent, key string) (int64, error) {
	raw, ok := ev.PayloadString(key)
	if !ok || raw == "" {
		return 0, errors.New("absent")
	}
	return strconv.ParseInt(raw, 10, 64)
}
