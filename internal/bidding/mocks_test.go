package bidding

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/vietddude/bidwatch/internal/core/domain"
	"github.com/vietddude/bidwatch/internal/infra/soroban"
)

type fakeLedger struct {
	mu      sync.Mutex
	highest map[string]*domain.HighestBid
	calls   int
}

func (l *fakeLedger) GetHighestBidFromContract(_ context.Context, auctionID string) *domain.HighestBid {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return l.highest[auctionID]
}

type fakeSettlement struct {
	mu      sync.Mutex
	sim     soroban.SimulationResult
	sendErr error
	wait    soroban.TxResult
	waitErr error
	hashes  []string
	seq     int
}

func newFakeSettlement() *fakeSettlement {
	return &fakeSettlement{
		sim:  soroban.SimulationResult{Success: true},
		wait: soroban.TxResult{Status: soroban.TxSuccess, Ledger: 500},
	}
}

func (s *fakeSettlement) SimulateTransaction(context.Context, string) soroban.SimulationResult {
	return s.sim
}

func (s *fakeSettlement) SendTransaction(context.Context, string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return "", s.sendErr
	}
	if len(s.hashes) > 0 {
		h := s.hashes[0]
		s.hashes = s.hashes[1:]
		return h, nil
	}
	s.seq++
	return fmt.Sprintf("hash-%d", s.seq), nil
}

func (s *fakeSettlement) WaitForTransaction(context.Context, string) (soroban.TxResult, error) {
	return s.wait, s.waitErr
}

type broadcast struct {
	auctionID string
	event     string
	bid       *domain.Bid
}

type fakeBroadcaster struct {
	mu   sync.Mutex
	sent []broadcast
}

func (b *fakeBroadcaster) BroadcastNewBid(auctionID string, bid *domain.Bid) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, broadcast{auctionID: auctionID, event: "bid_placed", bid: bid})
}

func (b *fakeBroadcaster) BroadcastAuctionEnded(auctionID string, _ domain.AuctionStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, broadcast{auctionID: auctionID, event: "auction_ended"})
}

func (b *fakeBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sent)
}

type denyLimiter struct{ err error }

func (d denyLimiter) Allow(context.Context, string) (bool, error) { return false, d.err }

var (
	buyer = soroban.EncodeAccountID([32]byte{0x42, 0x42, 0x42, 0x42})
	other = soroban.EncodeAccountID([32]byte{0x17})
)

// signedEnvelope builds a minimal V1 transaction envelope with the given
// source and number of signatures.
func signedEnvelope(source string, signatures int) string {
	key, err := soroban.DecodeAccountID(source)
	if err != nil {
		panic(err)
	}
	var b []byte
	put32 := func(v uint32) { b = binary.BigEndian.AppendUint32(b, v) }

	put32(2) // ENVELOPE_TYPE_TX
	put32(0) // KEY_TYPE_ED25519
	b = append(b, key[:]...)
	put32(100)                              // fee
	b = binary.BigEndian.AppendUint64(b, 1) // seqNum
	put32(0)                                // no preconditions
	put32(0)                                // memo none
	put32(0)                                // no operations
	put32(0)                                // ext
	put32(uint32(signatures))
	for i := 0; i < signatures; i++ {
		b = append(b, key[28:]...)
		put32(64)
		b = append(b, make([]byte, 64)...)
	}
	return base64.StdEncoding.EncodeToString(b)
}
