package storage

import (
	"context"

	"github.com/vietddude/bidwatch/internal/core/domain"
)

const (
	// DefaultPageSize is used when a page request carries no limit.
	DefaultPageSize = 20
	// MaxPageSize caps any page request.
	MaxPageSize = 100
)

// AuctionRepository handles auction storage operations.
// Get returns (nil, nil) when the auction does not exist.
type AuctionRepository interface {
	// Get retrieves an auction by id
	Get(ctx context.Context, id string) (*domain.Auction, error)

	// Save inserts an auction or fills in its details; an existing row
	// keeps its status
	Save(ctx context.Context, auction *domain.Auction) error

	// UpdateStatus sets auction status, creating a placeholder row when the
	// auction is not known yet
	UpdateStatus(ctx context.Context, id string, status domain.AuctionStatus) error
}

// BidRepository handles bid storage operations. Bids are append-only.
type BidRepository interface {
	// Create inserts a bid. A bid whose transaction hash already exists
	// yields domain.ErrDuplicateTransaction.
	Create(ctx context.Context, bid *domain.Bid) error

	// GetByTransactionHash retrieves a bid by its settlement hash
	GetByTransactionHash(ctx context.Context, txHash string) (*domain.Bid, error)

	// GetHighest returns the highest-amount bid, earliest creation first on ties
	GetHighest(ctx context.Context, auctionID string) (*domain.Bid, error)

	// ListByAuction returns bids ordered by ledger sequence descending,
	// restricted to ledger < *before when before is set
	ListByAuction(ctx context.Context, auctionID string, before *uint32, limit int) ([]*domain.Bid, error)

	// ListByBidder returns a bidder's bids on one auction, newest first
	ListByBidder(ctx context.Context, auctionID, bidder string) ([]*domain.Bid, error)

	// CountByAuction returns the number of bids recorded for an auction
	CountByAuction(ctx context.Context, auctionID string) (int, error)
}

// ClampLimit applies the default and maximum page size.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

// CheckpointRepository persists the last dispatched ledger of each listener.
// Get returns (0, false, nil) when no checkpoint is stored.
type CheckpointRepository interface {
	Get(ctx context.Context, kind domain.ListenerKind) (uint64, bool, error)
	Save(ctx context.Context, kind domain.ListenerKind, ledger uint64) error
}
