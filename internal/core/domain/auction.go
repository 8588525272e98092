package domain

import "time"

// AuctionStatus is the lifecycle state of an auction.
type AuctionStatus string

const (
	AuctionStatusActive    AuctionStatus = "Active"
	AuctionStatusEnded     AuctionStatus = "Ended"
	AuctionStatusCancelled AuctionStatus = "Cancelled"
)

// Auction is owned by the auction-lifecycle events; bidding only reads it.
type Auction struct {
	ID              string        `json:"auctionId"`
	SellerPublicKey string        `json:"sellerPublicKey"`
	NFTContractID   string        `json:"nftContractId"`
	TokenID         string        `json:"tokenId"`
	Status          AuctionStatus `json:"status"`
	ReservePriceXLM string        `json:"reservePriceXlm"`
	MinIncrement    string        `json:"minIncrement"`
	EndTime         *time.Time    `json:"endTime,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// IsActive reports whether the auction accepts bids.
func (a *Auction) IsActive() bool {
	return a.Status == AuctionStatusActive
}
