package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/bidwatch/internal/core/domain"
	"github.com/vietddude/bidwatch/internal/infra/storage"
)

// MemoryStorage is a single-process stand-in for the postgres store.
type MemoryStorage struct {
	auctions    map[string]*domain.Auction
	bids        map[string]*domain.Bid // keyed by transaction hash
	checkpoints map[domain.ListenerKind]uint64
	mu          sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		auctions:    make(map[string]*domain.Auction),
		bids:        make(map[string]*domain.Bid),
		checkpoints: make(map[domain.ListenerKind]uint64),
	}
}

// -----------------------------------------------------------------------------
// Auction Repository
// -----------------------------------------------------------------------------

type AuctionRepo struct {
	store *MemoryStorage
}

func NewAuctionRepo(store *MemoryStorage) *AuctionRepo {
	return &AuctionRepo{store: store}
}

func (r *AuctionRepo) Get(ctx context.Context, id string) (*domain.Auction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	a, ok := r.store.auctions[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *AuctionRepo) Save(ctx context.Context, auction *domain.Auction) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *auction
	now := time.Now().UTC()
	if existing, ok := r.store.auctions[auction.ID]; ok {
		cp.CreatedAt = existing.CreatedAt
		cp.Status = existing.Status
	} else if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	if cp.Status == "" {
		cp.Status = domain.AuctionStatusActive
	}
	cp.UpdatedAt = now
	r.store.auctions[auction.ID] = &cp
	return nil
}

func (r *AuctionRepo) UpdateStatus(ctx context.Context, id string, status domain.AuctionStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	now := time.Now().UTC()
	a, ok := r.store.auctions[id]
	if !ok {
		// Placeholder until the creation event fills in the details.
		r.store.auctions[id] = &domain.Auction{
			ID:              id,
			Status:          status,
			ReservePriceXLM: "0",
			MinIncrement:    "0",
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		return nil
	}
	a.Status = status
	a.UpdatedAt = now
	return nil
}

// -----------------------------------------------------------------------------
// Bid Repository
// -----------------------------------------------------------------------------

type BidRepo struct {
	store *MemoryStorage
}

func NewBidRepo(store *MemoryStorage) *BidRepo {
	return &BidRepo{store: store}
}

func (r *BidRepo) Create(ctx context.Context, bid *domain.Bid) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.bids[bid.TransactionHash]; ok {
		return domain.ErrDuplicateTransaction
	}
	if bid.CreatedAt.IsZero() {
		bid.CreatedAt = time.Now().UTC()
	}
	cp := *bid
	r.store.bids[bid.TransactionHash] = &cp
	return nil
}

func (r *BidRepo) GetByTransactionHash(ctx context.Context, txHash string) (*domain.Bid, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	b, ok := r.store.bids[txHash]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (r *BidRepo) GetHighest(ctx context.Context, auctionID string) (*domain.Bid, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var best *domain.Bid
	for _, b := range r.store.bids {
		if b.AuctionID != auctionID {
			continue
		}
		if best == nil ||
			b.AmountStroops > best.AmountStroops ||
			(b.AmountStroops == best.AmountStroops && b.CreatedAt.Before(best.CreatedAt)) {
			best = b
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (r *BidRepo) ListByAuction(ctx context.Context, auctionID string, before *uint32, limit int) ([]*domain.Bid, error) {
	r.store.mu.RLock()
	var out []*domain.Bid
	for _, b := range r.store.bids {
		if b.AuctionID != auctionID {
			continue
		}
		if before != nil && b.LedgerSequence >= *before {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	r.store.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].LedgerSequence != out[j].LedgerSequence {
			return out[i].LedgerSequence > out[j].LedgerSequence
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	limit = storage.ClampLimit(limit)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *BidRepo) ListByBidder(ctx context.Context, auctionID, bidder string) ([]*domain.Bid, error) {
	r.store.mu.RLock()
	var out []*domain.Bid
	for _, b := range r.store.bids {
		if b.AuctionID == auctionID && b.BidderPublicKey == bidder {
			cp := *b
			out = append(out, &cp)
		}
	}
	r.store.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *BidRepo) CountByAuction(ctx context.Context, auctionID string) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	n := 0
	for _, b := range r.store.bids {
		if b.AuctionID == auctionID {
			n++
		}
	}
	return n, nil
}

// -----------------------------------------------------------------------------
// Checkpoint Repository
// -----------------------------------------------------------------------------

type CheckpointRepo struct {
	store *MemoryStorage
}

func NewCheckpointRepo(store *MemoryStorage) *CheckpointRepo {
	return &CheckpointRepo{store: store}
}

func (r *CheckpointRepo) Get(ctx context.Context, kind domain.ListenerKind) (uint64, bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	ledger, ok := r.store.checkpoints[kind]
	return ledger, ok, nil
}

func (r *CheckpointRepo) Save(ctx context.Context, kind domain.ListenerKind, ledger uint64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if cur, ok := r.store.checkpoints[kind]; !ok || ledger > cur {
		r.store.checkpoints[kind] = ledger
	}
	return nil
}
