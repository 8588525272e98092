package bidding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/bidwatch/internal/core/amount"
	"github.com/vietddude/bidwatch/internal/core/domain"
	"github.com/vietddude/bidwatch/internal/indexing/metrics"
	"github.com/vietddude/bidwatch/internal/infra/storage"
)

// Indexer records BidPlaced chain events. Recording is idempotent by
// transaction hash.
type Indexer struct {
	bids        storage.BidRepository
	resolver    *Resolver
	broadcaster Broadcaster
	log         *slog.Logger
	now         func() time.Time
}

// NewIndexer creates a bid event indexer.
func NewIndexer(bids storage.BidRepository, resolver *Resolver, b Broadcaster) *Indexer {
	if b == nil {
		b = NopBroadcaster{}
	}
	return &Indexer{
		bids:        bids,
		resolver:    resolver,
		broadcaster: b,
		log:         slog.Default().With("component", "bid-indexer"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// HandleBidPlaced records a bid event. Unparseable events are dropped with
// a warning; already recorded hashes are skipped. Only store failures are
// returned.
func (i *Indexer) HandleBidPlaced(ctx context.Context, ev *domain.ChainEvent) error {
	bid, err := bidFromEvent(ev)
	if err != nil {
		i.log.Warn("Dropping malformed bid event", "id", ev.ID, "tx", ev.TransactionHash, "error", err)
		metrics.BidsIndexed.WithLabelValues("dropped").Inc()
		return nil
	}

	existing, err := i.bids.GetByTransactionHash(ctx, bid.TransactionHash)
	if err != nil {
		return fmt.Errorf("failed to look up bid %s: %w", bid.TransactionHash, err)
	}
	if existing != nil {
		metrics.BidsIndexed.WithLabelValues("duplicate").Inc()
		return nil
	}

	bid.ID = uuid.NewString()
	bid.CreatedAt = i.now()
	if err := i.bids.Create(ctx, bid); err != nil {
		if errors.Is(err, domain.ErrDuplicateTransaction) {
			metrics.BidsIndexed.WithLabelValues("duplicate").Inc()
			return nil
		}
		return fmt.Errorf("failed to index bid %s: %w", bid.TransactionHash, err)
	}

	i.resolver.Invalidate(ctx, bid.AuctionID)
	i.broadcaster.BroadcastNewBid(bid.AuctionID, bid)

	metrics.BidsIndexed.WithLabelValues("indexed").Inc()
	i.log.Info("Indexed chain bid",
		"auction", bid.AuctionID,
		"bidder", bid.BidderPublicKey,
		"amount", bid.AmountXLM,
		"ledger", bid.LedgerSequence,
	)
	return nil
}

func bidFromEvent(ev *domain.ChainEvent) (*domain.Bid, error) {
	auctionID, _ := ev.PayloadString("auctionId")
	if auctionID == "" {
		return nil, errors.New("missing auctionId")
	}
	bidder, _ := ev.PayloadString("bidderPublicKey")
	if bidder == "" {
		return nil, errors.New("missing bidderPublicKey")
	}

	rawAmount, _ := ev.PayloadString("amountMinor")
	stroops, err := strconv.ParseInt(rawAmount, 10, 64)
	if err != nil || stroops <= 0 {
		return nil, fmt.Errorf("invalid amountMinor %q", rawAmount)
	}

	txHash, _ := ev.PayloadString("txHash")
	if txHash == "" {
		txHash = ev.TransactionHash
	}
	if txHash == "" {
		return nil, errors.New("missing txHash")
	}

	ledger := ev.BlockNumber
	if raw, ok := ev.PayloadString("ledger"); ok && raw != "" {
		if ledger, err = strconv.ParseUint(raw, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid ledger %q", raw)
		}
	}
	if ledger > uint64(^uint32(0)) {
		return nil, fmt.Errorf("ledger %d out of range", ledger)
	}

	return &domain.Bid{
		AuctionID:       auctionID,
		BidderPublicKey: bidder,
		AmountStroops:   stroops,
		AmountXLM:       amount.MinorToMajor(stroops),
		TransactionHash: txHash,
		LedgerSequence:  uint32(ledger),
	}, nil
}
