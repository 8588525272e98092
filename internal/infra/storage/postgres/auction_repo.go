package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/bidwatch/internal/core/domain"
)

// AuctionRepo implements storage.AuctionRepository using PostgreSQL.
type AuctionRepo struct {
	db *DB
}

// NewAuctionRepo creates a new PostgreSQL auction repository.
func NewAuctionRepo(db *DB) *AuctionRepo {
	return &AuctionRepo{db: db}
}

type auctionRow struct {
	ID              string       `db:"id"`
	SellerPublicKey string       `db:"seller_public_key"`
	NFTContractID   string       `db:"nft_contract_id"`
	TokenID         string       `db:"token_id"`
	Status          string       `db:"status"`
	ReservePriceXLM string       `db:"reserve_price_xlm"`
	MinIncrement    string       `db:"min_increment"`
	EndTime         sql.NullTime `db:"end_time"`
	CreatedAt       time.Time    `db:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at"`
}

func (r auctionRow) toDomain() *domain.Auction {
	a := &domain.Auction{
		ID:              r.ID,
		SellerPublicKey: r.SellerPublicKey,
		NFTContractID:   r.NFTContractID,
		TokenID:         r.TokenID,
		Status:          domain.AuctionStatus(r.Status),
		ReservePriceXLM: r.ReservePriceXLM,
		MinIncrement:    r.MinIncrement,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.EndTime.Valid {
		t := r.EndTime.Time
		a.EndTime = &t
	}
	return a
}

// Get retrieves an auction by id.
func (r *AuctionRepo) Get(ctx context.Context, id string) (*domain.Auction, error) {
	var row auctionRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, seller_public_key, nft_contract_id, token_id, status,
		       reserve_price_xlm, min_increment, end_time, created_at, updated_at
		FROM auctions WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	return row.toDomain(), nil
}

// Save inserts an auction or fills in its details. The status of an
// existing row is kept.
func (r *AuctionRepo) Save(ctx context.Context, a *domain.Auction) error {
	var endTime sql.NullTime
	if a.EndTime != nil {
		endTime = sql.NullTime{Time: *a.EndTime, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO auctions (
			id, seller_public_key, nft_contract_id, token_id, status,
			reserve_price_xlm, min_increment, end_time, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			seller_public_key = EXCLUDED.seller_public_key,
			nft_contract_id = EXCLUDED.nft_contract_id,
			token_id = EXCLUDED.token_id,
			reserve_price_xlm = EXCLUDED.reserve_price_xlm,
			min_increment = EXCLUDED.min_increment,
			end_time = EXCLUDED.end_time,
			updated_at = NOW()`,
		a.ID, a.SellerPublicKey, a.NFTContractID, a.TokenID, string(a.Status),
		a.ReservePriceXLM, a.MinIncrement, endTime,
	)
	if err != nil {
		return fmt.Errorf("failed to save auction: %w", err)
	}
	return nil
}

// UpdateStatus sets auction status. An unknown auction gets a placeholder
// row that a later Save completes.
func (r *AuctionRepo) UpdateStatus(ctx context.Context, id string, status domain.AuctionStatus) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO auctions (id, seller_public_key, status, created_at, updated_at)
		VALUES ($1, '', $2, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, updated_at = NOW()`,
		id, string(status),
	)
	if err != nil {
		return fmt.Errorf("failed to update auction status: %w", err)
	}
	return nil
}
