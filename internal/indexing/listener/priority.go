package listener

import "github.com/vietddude/bidwatch/internal/core/domain"

var priorities = map[string]int{
	domain.EventTransfer:         10,
	domain.EventSale:             10,
	domain.EventAuctionEnded:     10,
	domain.EventBidPlaced:        8,
	domain.EventAuctionCreated:   6,
	domain.EventListingCreated:   5,
	domain.EventListingCancelled: 5,
}

// Priority returns the queue priority of an event name. Unknown names get 1.
func Priority(name string) int {
	if p, ok := priorities[name]; ok {
		return p
	}
	return 1
}
