package bidding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/bidwatch/internal/core/amount"
	"github.com/vietddude/bidwatch/internal/core/domain"
	"github.com/vietddude/bidwatch/internal/indexing/metrics"
	"github.com/vietddude/bidwatch/internal/infra/soroban"
	"github.com/vietddude/bidwatch/internal/infra/storage"
)

// Stable error codes returned by PlaceBid.
const (
	CodeAuctionNotFound    = "AUCTION_NOT_FOUND"
	CodeAuctionNotActive   = "AUCTION_NOT_ACTIVE"
	CodeSelfBid            = "SELF_BID"
	CodeMissingTransaction = "MISSING_TRANSACTION"
	CodeInvalidTransaction = "INVALID_TRANSACTION"
	CodeTxSourceMismatch   = "TX_SOURCE_MISMATCH"
	CodeTxUnsigned         = "TX_UNSIGNED"
	CodeInvalidAmount      = "INVALID_AMOUNT"
	CodeBidTooLow          = "BID_TOO_LOW"
	CodeRateLimited        = "RATE_LIMITED"
	CodeSimulationFailed   = "SIMULATION_FAILED"
	CodeTxFailed           = "TX_FAILED"
	CodeTxTimeout          = "TX_TIMEOUT"
)

// PlaceBidRequest is a user bid with its pre-signed settlement transaction.
type PlaceBidRequest struct {
	AuctionID            string
	Amount               string
	Signature            string
	PublicKey            string
	SignedTransactionXDR string
}

// Deps wires a Service.
type Deps struct {
	Auctions    storage.AuctionRepository
	Bids        storage.BidRepository
	Resolver    *Resolver
	Settlement  Settlement
	Limiter     RateLimiter
	Broadcaster Broadcaster
}

// Service validates, settles and records user bids.
type Service struct {
	auctions    storage.AuctionRepository
	bids        storage.BidRepository
	resolver    *Resolver
	settlement  Settlement
	limiter     RateLimiter
	broadcaster Broadcaster
	log         *slog.Logger
	now         func() time.Time
}

// NewService creates a bid acceptance service.
func NewService(d Deps) *Service {
	if d.Broadcaster == nil {
		d.Broadcaster = NopBroadcaster{}
	}
	if d.Limiter == nil {
		d.Limiter = NewMemoryRateLimiter(DefaultBidRateLimit, DefaultBidRateWindow)
	}
	return &Service{
		auctions:    d.Auctions,
		bids:        d.Bids,
		resolver:    d.Resolver,
		settlement:  d.Settlement,
		limiter:     d.Limiter,
		broadcaster: d.Broadcaster,
		log:         slog.Default().With("component", "bidding"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// PlaceBid validates a bid, settles it on chain and records it. Validation
// stops at the first failure.
func (s *Service) PlaceBid(ctx context.Context, req PlaceBidRequest) (*domain.Bid, error) {
	auction, err := s.auctions.Get(ctx, req.AuctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load auction: %w", err)
	}
	if auction == nil {
		return nil, s.reject(domain.NewNotFound(CodeAuctionNotFound, "Auction not found"))
	}
	if !auction.IsActive() {
		return nil, s.reject(domain.NewValidation(CodeAuctionNotActive, "Auction is not active"))
	}
	if req.PublicKey == auction.SellerPublicKey {
		return nil, s.reject(domain.NewForbidden(CodeSelfBid, "Seller cannot bid on own auction"))
	}
	if strings.TrimSpace(req.SignedTransactionXDR) == "" {
		return nil, s.reject(domain.NewValidation(CodeMissingTransaction, "Signed transaction is required"))
	}

	stroops, err := amount.Parse(req.Amount)
	if err != nil {
		return nil, s.reject(domain.NewValidation(CodeInvalidAmount, fmt.Sprintf("Invalid amount: %v", err)))
	}
	if err := s.checkMinimum(ctx, auction, stroops); err != nil {
		return nil, err
	}

	allowed, err := s.limiter.Allow(ctx, "bid:"+req.PublicKey)
	if err != nil {
		s.log.Warn("Rate limiter unavailable, admitting bid", "bidder", req.PublicKey, "error", err)
	} else if !allowed {
		return nil, s.reject(domain.NewRateLimited(CodeRateLimited, "Too many bids, try again later"))
	}

	if err := s.checkEnvelope(req); err != nil {
		return nil, err
	}

	hash, ledger, err := s.settle(ctx, req.SignedTransactionXDR)
	if err != nil {
		return nil, err
	}

	bid := &domain.Bid{
		ID:              uuid.NewString(),
		AuctionID:       auction.ID,
		BidderPublicKey: req.PublicKey,
		AmountStroops:   stroops,
		AmountXLM:       amount.MinorToMajor(stroops),
		TransactionHash: hash,
		LedgerSequence:  ledger,
		CreatedAt:       s.now(),
	}

	inserted := true
	if err := s.bids.Create(ctx, bid); err != nil {
		if !errors.Is(err, domain.ErrDuplicateTransaction) {
			return nil, fmt.Errorf("failed to record bid: %w", err)
		}
		existing, err := s.bids.GetByTransactionHash(ctx, hash)
		if err != nil {
			return nil, fmt.Errorf("failed to load indexed bid: %w", err)
		}
		if existing == nil {
			return nil, fmt.Errorf("bid %s reported duplicate but not found", hash)
		}
		bid, inserted = existing, false
	}

	s.resolver.Invalidate(ctx, auction.ID)
	if inserted {
		s.broadcaster.BroadcastNewBid(auction.ID, bid)
	}

	metrics.BidsAccepted.Inc()
	s.log.Info("Bid accepted",
		"auction", auction.ID,
		"bidder", bid.BidderPublicKey,
		"amount", bid.AmountXLM,
		"tx", bid.TransactionHash,
		"ledger", bid.LedgerSequence,
	)
	return bid, nil
}

func (s *Service) checkMinimum(ctx context.Context, auction *domain.Auction, stroops int64) error {
	highest, err := s.resolver.Resolve(ctx, auction.ID)
	if err != nil {
		return err
	}

	if highest == nil {
		reserve, err := amount.ParseNonNegative(auction.ReservePriceXLM)
		if err != nil {
			return fmt.Errorf("auction %s has invalid reserve price: %w", auction.ID, err)
		}
		if stroops < reserve {
			return s.reject(domain.NewValidation(CodeBidTooLow,
				fmt.Sprintf("Bid must be at least the reserve price of %s XLM", amount.MinorToMajor(reserve))))
		}
		return nil
	}

	increment, err := amount.ParseNonNegative(auction.MinIncrement)
	if err != nil {
		return fmt.Errorf("auction %s has invalid minimum increment: %w", auction.ID, err)
	}
	required := highest.AmountStroops + increment
	if stroops <= highest.AmountStroops || stroops < required {
		minimum := max(required, highest.AmountStroops+1)
		return s.reject(domain.NewValidation(CodeBidTooLow,
			fmt.Sprintf("Bid must be at least %s XLM", amount.MinorToMajor(minimum))))
	}
	return nil
}

// settle simulates, submits and confirms the signed transaction.
func (s *Service) settle(ctx context.Context, envelope string) (string, uint32, error) {
	sim := s.settlement.SimulateTransaction(ctx, envelope)
	if !sim.Success {
		msg := "Transaction simulation failed"
		if sim.Error != nil {
			msg = sim.Error.Message
		}
		return "", 0, s.reject(domain.NewValidation(CodeSimulationFailed, msg))
	}

	hash, err := s.settlement.SendTransaction(ctx, envelope)
	if err != nil {
		var ce *soroban.ContractError
		if errors.As(err, &ce) {
			return "", 0, s.reject(domain.NewValidation(ce.Code, ce.Message))
		}
		return "", 0, s.reject(domain.NewValidation(CodeTxFailed, err.Error()))
	}

	res, err := s.settlement.WaitForTransaction(ctx, hash)
	if err != nil {
		return "", 0, err
	}
	switch res.Status {
	case soroban.TxSuccess:
		return hash, res.Ledger, nil
	case soroban.TxFailed:
		return "", 0, s.reject(domain.NewValidation(CodeTxFailed, "Transaction failed on chain"))
	default:
		return "", 0, s.reject(domain.NewChainUnavailable(CodeTxTimeout,
			"Transaction was not confirmed in time", fmt.Errorf("transaction %s timed out", hash)))
	}
}

func (s *Service) reject(err *domain.Error) error {
	metrics.BidsRejected.WithLabelValues(err.Code).Inc()
	return err
}

// checkEnvelope requires the settlement transaction to be sourced by the
// bidder and carry at least one signature.
func (s *Service) checkEnvelope(req PlaceBidRequest) error {
	env, err := soroban.DecodeTxEnvelope(req.SignedTransactionXDR)
	if err != nil {
		s.log.Debug("Undecodable bid envelope", "bidder", req.PublicKey, "error", err)
		return s.reject(domain.NewValidation(CodeInvalidTransaction, "Invalid transaction XDR"))
	}
	if env.SourceAccount != req.PublicKey {
		return s.reject(domain.NewValidation(CodeTxSourceMismatch, "Transaction source does not match signing key"))
	}
	if env.Signatures == 0 {
		return s.reject(domain.NewValidation(CodeTxUnsigned, "Transaction is not signed"))
	}
	return nil
}

// GetHighestBid returns the resolved highest bid, or nil.
func (s *Service) GetHighestBid(ctx context.Context, auctionID string) (*domain.HighestBid, error) {
	return s.resolver.Resolve(ctx, auctionID)
}

// GetBidsByAuction pages through an auction's bids by ledger descending.
// cursor excludes ledgers at or above it.
func (s *Service) GetBidsByAuction(ctx context.Context, auctionID string, cursor *uint32, limit int) (*domain.BidPage, error) {
	limit = storage.ClampLimit(limit)
	items, err := s.bids.ListByAuction(ctx, auctionID, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	if items == nil {
		items = []*domain.Bid{}
	}

	page := &domain.BidPage{Items: items}
	if len(items) == limit {
		next := items[len(items)-1].LedgerSequence
		page.NextCursor = &next
	}
	return page, nil
}

// GetMyBids returns a bidder's bids on one auction.
func (s *Service) GetMyBids(ctx context.Context, auctionID, bidder string) ([]*domain.Bid, error) {
	items, err := s.bids.ListByBidder(ctx, auctionID, bidder)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	if items == nil {
		items = []*domain.Bid{}
	}
	return items, nil
}
