package domain

import "time"

// Bid is an append-only record of a settled bid.
type Bid struct {
	ID              string    `json:"id"`
	AuctionID       string    `json:"auctionId"`
	BidderPublicKey string    `json:"bidderPublicKey"`
	AmountXLM       string    `json:"amountXlm"`
	AmountStroops   int64     `json:"amountStroops,string"`
	TransactionHash string    `json:"transactionHash"`
	LedgerSequence  uint32    `json:"ledgerSequence"`
	CreatedAt       time.Time `json:"createdAt"`
}

// HighestBid is the resolved current highest bid of an auction.
type HighestBid struct {
	Bidder         string `json:"bidder"`
	AmountStroops  int64  `json:"amountStroops,string"`
	AmountXLM      string `json:"amountXlm"`
	LedgerSequence uint32 `json:"ledgerSequence,omitempty"`
}

// BidPage is one page of bids ordered by ledger sequence descending.
type BidPage struct {
	Items      []*Bid  `json:"items"`
	NextCursor *uint32 `json:"nextCursor"`
}
