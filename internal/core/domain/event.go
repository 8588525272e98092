package domain

import "time"

// ListenerKind identifies which contract family a listener watches.
type ListenerKind string

const (
	ListenerMarketplace ListenerKind = "marketplace"
	ListenerAuction     ListenerKind = "auction"
	ListenerTransaction ListenerKind = "transaction"
)

// Event names emitted by the marketplace, auction and NFT contracts.
const (
	EventTransfer         = "Transfer"
	EventApproval         = "Approval"
	EventSale             = "Sale"
	EventListingCreated   = "ListingCreated"
	EventListingCancelled = "ListingCancelled"
	EventAuctionCreated   = "AuctionCreated"
	EventAuctionEnded     = "AuctionEnded"
	EventAuctionCancelled = "AuctionCancelled"
	EventBidPlaced        = "BidPlaced"
)

// RawEvent is a contract event as returned by the chain RPC, before parsing.
type RawEvent struct {
	ID              string   `json:"id"`
	ContractID      string   `json:"contractId"`
	Ledger          uint64   `json:"ledger"`
	LedgerClosedAt  string   `json:"ledgerClosedAt"`
	TransactionHash string   `json:"txHash"`
	Topics          []string `json:"topic"`
	Value           string   `json:"value"`
}

// ChainEvent is a parsed contract event travelling through the priority queue.
type ChainEvent struct {
	ID              string         `json:"id"`
	Kind            ListenerKind   `json:"kind"`
	Name            string         `json:"name"`
	ContractAddress string         `json:"contractAddress"`
	BlockNumber     uint64         `json:"blockNumber"`
	TransactionHash string         `json:"transactionHash"`
	Payload         map[string]any `json:"payload"`
	Priority        int            `json:"priority"`
	ObservedAt      time.Time      `json:"observedAt"`
}

// PayloadString returns a string field of the payload.
func (e *ChainEvent) PayloadString(key string) (string, bool) {
	v, ok := e.Payload[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
