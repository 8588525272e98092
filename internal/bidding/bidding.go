// Package bidding owns bid state: highest-bid resolution, bid acceptance,
// and ingestion of bid events observed on chain.
package bidding

import (
	"context"

	"github.com/vietddude/bidwatch/internal/core/domain"
	"github.com/vietddude/bidwatch/internal/infra/soroban"
)

// Broadcaster pushes state changes to realtime subscribers. Delivery is
// best-effort; implementations never block on slow clients.
type Broadcaster interface {
	BroadcastNewBid(auctionID string, bid *domain.Bid)
	BroadcastAuctionEnded(auctionID string, status domain.AuctionStatus)
}

// Ledger reads on-chain auction state.
type Ledger interface {
	GetHighestBidFromContract(ctx context.Context, auctionID string) *domain.HighestBid
}

// Settlement submits signed bid transactions and waits for confirmation.
type Settlement interface {
	SimulateTransaction(ctx context.Context, envelopeXDR string) soroban.SimulationResult
	SendTransaction(ctx context.Context, envelopeXDR string) (string, error)
	WaitForTransaction(ctx context.Context, hash string) (soroban.TxResult, error)
}

// RateLimiter admits a bounded number of attempts per key.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// NopBroadcaster discards every broadcast.
type NopBroadcaster struct{}

func (NopBroadcaster) BroadcastNewBid(string, *domain.Bid) {}

func (NopBroadcaster) BroadcastAuctionEnded(string, domain.AuctionStatus) {}
