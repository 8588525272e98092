package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/vietddude/bidwatch/internal/core/domain"
	"github.com/vietddude/bidwatch/internal/infra/storage"
)

const uniqueViolation = "23505"

// BidRepo implements storage.BidRepository using PostgreSQL.
type BidRepo struct {
	db *DB
}

// NewBidRepo creates a new PostgreSQL bid repository.
func NewBidRepo(db *DB) *BidRepo {
	return &BidRepo{db: db}
}

const bidColumns = `id, auction_id, bidder_public_key, amount_xlm, amount_stroops,
	transaction_hash, ledger_sequence, created_at`

type bidRow struct {
	ID              string    `db:"id"`
	AuctionID       string    `db:"auction_id"`
	BidderPublicKey string    `db:"bidder_public_key"`
	AmountXLM       string    `db:"amount_xlm"`
	AmountStroops   int64     `db:"amount_stroops"`
	TransactionHash string    `db:"transaction_hash"`
	LedgerSequence  int64     `db:"ledger_sequence"`
	CreatedAt       time.Time `db:"created_at"`
}

func (r bidRow) toDomain() *domain.Bid {
	return &domain.Bid{
		ID:              r.ID,
		AuctionID:       r.AuctionID,
		BidderPublicKey: r.BidderPublicKey,
		AmountXLM:       r.AmountXLM,
		AmountStroops:   r.AmountStroops,
		TransactionHash: r.TransactionHash,
		LedgerSequence:  uint32(r.LedgerSequence),
		CreatedAt:       r.CreatedAt,
	}
}

// Create inserts a bid. The unique constraint on transaction_hash is the
// arbiter between the acceptance path and the chain indexer.
func (r *BidRepo) Create(ctx context.Context, bid *domain.Bid) error {
	if bid.CreatedAt.IsZero() {
		bid.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO bids (`+bidColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		bid.ID, bid.AuctionID, bid.BidderPublicKey, bid.AmountXLM, bid.AmountStroops,
		bid.TransactionHash, int64(bid.LedgerSequence), bid.CreatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateTransaction
	}
	if err != nil {
		return fmt.Errorf("failed to create bid: %w", err)
	}
	return nil
}

// GetByTransactionHash retrieves a bid by its settlement hash.
func (r *BidRepo) GetByTransactionHash(ctx context.Context, txHash string) (*domain.Bid, error) {
	var row bidRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+bidColumns+` FROM bids WHERE transaction_hash = $1`, txHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bid: %w", err)
	}
	return row.toDomain(), nil
}

// GetHighest returns the highest-amount bid, earliest creation first on ties.
func (r *BidRepo) GetHighest(ctx context.Context, auctionID string) (*domain.Bid, error) {
	var row bidRow
	err := r.db.GetContext(ctx, &row, `
		SELECT `+bidColumns+` FROM bids
		WHERE auction_id = $1
		ORDER BY amount_stroops DESC, created_at ASC
		LIMIT 1`, auctionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get highest bid: %w", err)
	}
	return row.toDomain(), nil
}

// ListByAuction returns bids ordered by ledger sequence descending.
func (r *BidRepo) ListByAuction(
	ctx context.Context,
	auctionID string,
	before *uint32,
	limit int,
) ([]*domain.Bid, error) {
	limit = storage.ClampLimit(limit)

	var rows []bidRow
	var err error
	if before != nil {
		err = r.db.SelectContext(ctx, &rows, `
			SELECT `+bidColumns+` FROM bids
			WHERE auction_id = $1 AND ledger_sequence < $2
			ORDER BY ledger_sequence DESC, created_at DESC
			LIMIT $3`, auctionID, int64(*before), limit)
	} else {
		err = r.db.SelectContext(ctx, &rows, `
			SELECT `+bidColumns+` FROM bids
			WHERE auction_id = $1
			ORDER BY ledger_sequence DESC, created_at DESC
			LIMIT $2`, auctionID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	return toBids(rows), nil
}

// ListByBidder returns a bidder's bids on one auction, newest first.
func (r *BidRepo) ListByBidder(ctx context.Context, auctionID, bidder string) ([]*domain.Bid, error) {
	var rows []bidRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+bidColumns+` FROM bids
		WHERE bidder_public_key = $1 AND auction_id = $2
		ORDER BY created_at DESC`, bidder, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bidder bids: %w", err)
	}
	return toBids(rows), nil
}

// CountByAuction returns the number of bids recorded for an auction.
func (r *BidRepo) CountByAuction(ctx context.Context, auctionID string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM bids WHERE auction_id = $1", auctionID); err != nil {
		return 0, fmt.Errorf("failed to count bids: %w", err)
	}
	return n, nil
}

func toBids(rows []bidRow) []*domain.Bid {
	bids := make([]*domain.Bid, 0, len(rows))
	for _, row := range rows {
		bids = append(bids, row.toDomain())
	}
	return bids
}

// isUniqueViolation recognises duplicate-key errors from either driver.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}
