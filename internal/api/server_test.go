package api

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/vietddude/bidwatch/internal/auth"
	"github.com/vietddude/bidwatch/internal/bidding"
	"github.com/vietddude/bidwatch/internal/core/domain"
	"github.com/vietddude/bidwatch/internal/indexing/listener"
	"github.com/vietddude/bidwatch/internal/infra/soroban"
)

// =============================================================================
// Mocks
// =============================================================================

type fakeBids struct {
	placed  []bidding.PlaceBidRequest
	err     error
	highest *domain.HighestBid
	cursor  *uint32
	limit   int
	bidder  string
}

func (f *fakeBids) PlaceBid(ctx context.Context, req bidding.PlaceBidRequest) (*domain.Bid, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.placed = append(f.placed, req)
	return &domain.Bid{ID: "bid-1", AuctionID: req.AuctionID, BidderPublicKey: req.PublicKey, AmountXLM: req.Amount}, nil
}

func (f *fakeBids) GetHighestBid(ctx context.Context, auctionID string) (*domain.HighestBid, error) {
	return f.highest, nil
}

func (f *fakeBids) GetBidsByAuction(ctx context.Context, auctionID string, cursor *uint32, limit int) (*domain.BidPage, error) {
	f.cursor, f.limit = cursor, limit
	return &domain.BidPage{Items: []*domain.Bid{}}, nil
}

func (f *fakeBids) GetMyBids(ctx context.Context, auctionID, bidder string) ([]*domain.Bid, error) {
	f.bidder = bidder
	return []*domain.Bid{{ID: "mine", BidderPublicKey: bidder}}, nil
}

type fakeListeners struct {
	restarted []domain.ListenerKind
}

func (f *fakeListeners) Health() []listener.Health {
	return []listener.Health{{Kind: domain.ListenerAuction, IsListening: true}}
}

func (f *fakeListeners) Restart(ctx context.Context, kind domain.ListenerKind) (listener.Health, error) {
	if kind != domain.ListenerAuction {
		return listener.Health{}, listener.ErrUnknownListener
	}
	f.restarted = append(f.restarted, kind)
	return listener.Health{Kind: kind, IsListening: true}, nil
}

type bidder struct {
	priv ed25519.PrivateKey
	pub  string
}

func newBidder() bidder {
	seed := make([]byte, ed25519.SeedSize)
	seed[0] = 7
	priv := ed25519.NewKeyFromSeed(seed)
	var pub [32]byte
	copy(pub[:], priv.Public().(ed25519.PublicKey))
	return bidder{priv: priv, pub: soroban.EncodeAccountID(pub)}
}

func (b bidder) body(auctionID, amount string, ts time.Time) string {
	stamp := strconv.FormatInt(ts.UnixMilli(), 10)
	sig := ed25519.Sign(b.priv, []byte(auth.BidMessage(auctionID, amount, stamp)))
	out, _ := json.Marshal(map[string]string{
		"amount":               amount,
		"signature":            base64.StdEncoding.EncodeToString(sig),
		"publicKey":            b.pub,
		"timestamp":            stamp,
		"signedTransactionXdr": "AAAA",
	})
	return string(out)
}

var testSessions = auth.SessionVerifier{Secret: []byte("test-secret"), TokenTTL: time.Hour}

func newTestServer(bids *fakeBids) (*Server, *fakeListeners) {
	l := &fakeListeners{}
	s := NewServer(Deps{Bids: bids, Listeners: l, Sessions: testSessions}, 0)
	return s, l
}

func do(t *testing.T, h http.Handler, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if authed {
		tok, err := testSessions.Sign(auth.Claims{WalletAddress: "GSESSION"})
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return e
}

// =============================================================================
// Tests
// =============================================================================

func TestPlaceBid_Created(t *testing.T) {
	bids := &fakeBids{}
	s, _ := newTestServer(bids)
	b := newBidder()

	rec := do(t, s.Handler(), http.MethodPost, "/bids/A", b.body("A", "10.5", time.Now()), true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(bids.placed) != 1 {
		t.Fatalf("expected 1 placed bid, got %d", len(bids.placed))
	}
	got := bids.placed[0]
	if got.AuctionID != "A" || got.PublicKey != b.pub || got.SignedTransactionXDR != "AAAA" {
		t.Errorf("unexpected request %+v", got)
	}
}

func TestPlaceBid_Unauthorized(t *testing.T) {
	b := newBidder()
	now := time.Now()

	tests := []struct {
		name   string
		path   string
		body   string
		authed bool
	}{
		{"no session", "/bids/A", b.body("A", "10.5", now), false},
		{"signed for other auction", "/bids/B", b.body("A", "10.5", now), true},
		{"stale signature", "/bids/A", b.body("A", "10.5", now.Add(-10*time.Minute)), true},
		{"missing fields", "/bids/A", `{"amount":"10.5"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bids := &fakeBids{}
			s, _ := newTestServer(bids)
			rec := do(t, s.Handler(), http.MethodPost, tt.path, tt.body, tt.authed)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rec.Code)
			}
			if len(bids.placed) != 0 {
				t.Error("expected no bid to reach the service")
			}
		})
	}
}

func TestPlaceBid_MapsDomainErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{domain.NewNotFound(bidding.CodeAuctionNotFound, "Auction not found"), http.StatusNotFound, bidding.CodeAuctionNotFound},
		{domain.NewForbidden(bidding.CodeSelfBid, "no"), http.StatusForbidden, bidding.CodeSelfBid},
		{domain.NewValidation(bidding.CodeBidTooLow, "low"), http.StatusBadRequest, bidding.CodeBidTooLow},
		{domain.NewRateLimited(bidding.CodeRateLimited, "slow down"), http.StatusTooManyRequests, bidding.CodeRateLimited},
		{domain.NewChainUnavailable(bidding.CodeTxTimeout, "timeout", nil), http.StatusBadGateway, bidding.CodeTxTimeout},
		{errors.New("db down"), http.StatusInternalServerError, CodeInternal},
	}
	b := newBidder()
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			s, _ := newTestServer(&fakeBids{err: tt.err})
			rec := do(t, s.Handler(), http.MethodPost, "/bids/A", b.body("A", "10.5", time.Now()), true)
			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, rec.Code)
			}
			if e := decodeError(t, rec); e.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, e.Code)
			}
		})
	}
}

func TestHighestBid(t *testing.T) {
	s, _ := newTestServer(&fakeBids{})
	rec := do(t, s.Handler(), http.MethodGet, "/bids/A/highest", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "null" {
		t.Errorf("expected null, got %s", body)
	}

	s, _ = newTestServer(&fakeBids{highest: &domain.HighestBid{Bidder: "GB", AmountStroops: 105_000_000, AmountXLM: "10.5"}})
	rec = do(t, s.Handler(), http.MethodGet, "/bids/A/highest", "", false)
	var hb domain.HighestBid
	if err := json.NewDecoder(rec.Body).Decode(&hb); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if hb.AmountXLM != "10.5" || hb.AmountStroops != 105_000_000 {
		t.Errorf("unexpected highest bid %+v", hb)
	}
}

func TestListBids_Query(t *testing.T) {
	bids := &fakeBids{}
	s, _ := newTestServer(bids)

	rec := do(t, s.Handler(), http.MethodGet, "/bids/A?cursor=120&limit=5", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if bids.cursor == nil || *bids.cursor != 120 || bids.limit != 5 {
		t.Errorf("unexpected query forwarded: cursor=%v limit=%d", bids.cursor, bids.limit)
	}

	for _, path := range []string{"/bids/A?cursor=-1", "/bids/A?limit=0", "/bids/A?limit=x"} {
		rec := do(t, s.Handler(), http.MethodGet, path, "", false)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, rec.Code)
		}
	}
}

func TestMyBids(t *testing.T) {
	bids := &fakeBids{}
	s, _ := newTestServer(bids)

	if rec := do(t, s.Handler(), http.MethodGet, "/bids/A/mine?publicKey=GME", "", false); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without session, got %d", rec.Code)
	}

	rec := do(t, s.Handler(), http.MethodGet, "/bids/A/mine?publicKey=GME", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if bids.bidder != "GME" {
		t.Errorf("expected bidder GME, got %s", bids.bidder)
	}

	do(t, s.Handler(), http.MethodGet, "/bids/A/mine", "", true)
	if bids.bidder != "GSESSION" {
		t.Errorf("expected session wallet, got %s", bids.bidder)
	}
}

func TestListenerEndpoints(t *testing.T) {
	s, l := newTestServer(&fakeBids{})

	rec := do(t, s.Handler(), http.MethodGet, "/listeners/health", "", false)
	var hs []listener.Health
	if err := json.NewDecoder(rec.Body).Decode(&hs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(hs) != 1 || hs[0].Kind != domain.ListenerAuction {
		t.Errorf("unexpected health %+v", hs)
	}

	rec = do(t, s.Handler(), http.MethodPost, "/listeners/auction/restart", "", false)
	if rec.Code != http.StatusOK || len(l.restarted) != 1 {
		t.Errorf("expected restart, got %d (%d restarts)", rec.Code, len(l.restarted))
	}

	rec = do(t, s.Handler(), http.MethodPost, "/listeners/nope/restart", "", false)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHealthWithoutMonitor(t *testing.T) {
	s, _ := newTestServer(&fakeBids{})
	rec := do(t, s.Handler(), http.MethodGet, "/health", "", false)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
