package bidding

import (
	"context"
	"testing"

	"github.com/vietddude/bidwatch/internal/core/domain"
	"github.com/vietddude/bidwatch/internal/infra/cache"
	"github.com/vietddude/bidwatch/internal/infra/storage/memory"
)

func bidPlaced(txHash string, payload map[string]any) *domain.ChainEvent {
	base := map[string]any{
		"auctionId":       "A",
		"bidderPublicKey": "G_BUYER",
		"amountMinor":     "120000000",
		"txHash":          txHash,
		"ledger":          "321",
	}
	for k, v := range payload {
		base[k] = v
	}
	return &domain.ChainEvent{ID: "ev-" + txHash, Name: domain.EventBidPlaced, TransactionHash: txHash, Payload: base}
}

func TestIndexer_Idempotent(t *testing.T) {
	ctx := context.Background()
	bids := memory.NewBidRepo(memory.NewMemoryStorage())
	c := cache.NewMemoryStore()
	b := &fakeBroadcaster{}
	idx := NewIndexer(bids, NewResolver(c, nil, bids, 0), b)

	_ = c.Set(ctx, HighestBidKey("A"), []byte(`{}`), 0)

	for i := 0; i < 3; i++ {
		if err := idx.HandleBidPlaced(ctx, bidPlaced("tx1", nil)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	n, _ := bids.CountByAuction(ctx, "A")
	if n != 1 {
		t.Errorf("expected 1 bid, got %d", n)
	}
	if b.count() != 1 {
		t.Errorf("expected 1 broadcast, got %d", b.count())
	}
	if _, found, _ := c.Get(ctx, HighestBidKey("A")); found {
		t.Error("expected cache invalidated on insert")
	}

	got, _ := bids.GetByTransactionHash(ctx, "tx1")
	if got.AmountXLM != "12" || got.LedgerSequence != 321 || got.ID == "" {
		t.Errorf("unexpected stored bid %+v", got)
	}
}

func TestIndexer_DropsMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
	}{
		{"missing auction", map[string]any{"auctionId": ""}},
		{"missing bidder", map[string]any{"bidderPublicKey": ""}},
		{"bad amount", map[string]any{"amountMinor": "ten"}},
		{"zero amount", map[string]any{"amountMinor": "0"}},
		{"numeric amount", map[string]any{"amountMinor": 12.5}},
		{"bad ledger", map[string]any{"ledger": "x"}},
		{"ledger overflow", map[string]any{"ledger": "99999999999"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			bids := memory.NewBidRepo(memory.NewMemoryStorage())
			b := &fakeBroadcaster{}
			idx := NewIndexer(bids, NewResolver(cache.NewMemoryStore(), nil, bids, 0), b)

			if err := idx.HandleBidPlaced(ctx, bidPlaced("tx", tt.payload)); err != nil {
				t.Errorf("expected malformed event to be dropped silently, got %v", err)
			}
			if n, _ := bids.CountByAuction(ctx, "A"); n != 0 {
				t.Errorf("expected nothing stored, got %d", n)
			}
			if b.count() != 0 {
				t.Errorf("expected no broadcast, got %d", b.count())
			}
		})
	}
}

func TestIndexer_FallsBackToEventFields(t *testing.T) {
	ctx := context.Background()
	bids := memory.NewBidRepo(memory.NewMemoryStorage())
	idx := NewIndexer(bids, NewResolver(cache.NewMemoryStore(), nil, bids, 0), nil)

	ev := bidPlaced("", map[string]any{"ledger": ""})
	ev.TransactionHash = "from-event"
	ev.BlockNumber = 77
	if err := idx.HandleBidPlaced(ctx, ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := bids.GetByTransactionHash(ctx, "from-event")
	if got == nil || got.LedgerSequence != 77 {
		t.Errorf("expected bid at ledger 77, got %+v", got)
	}
}
