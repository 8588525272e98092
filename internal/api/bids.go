package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/vietddude/bidwatch/internal/auth"
	"github.com/vietddude/bidwatch/internal/bidding"
)

type placeBidRequest struct {
	Amount               string `json:"amount"`
	Signature            string `json:"signature"`
	PublicKey            string `json:"publicKey"`
	Timestamp            string `json:"timestamp,omitempty"`
	SignedTransactionXDR string `json:"signedTransactionXdr"`
}

func (s *Server) handlePlaceBid(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sessions != nil {
		if _, err := s.deps.Sessions.VerifyRequest(r); err != nil {
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Invalid or missing session")
			return
		}
	}

	var req placeBidRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	auctionID := r.PathValue("auctionId")
	err := auth.VerifyBidSignature(auth.SignedBid{
		AuctionID: auctionID,
		Amount:    req.Amount,
		Signature: req.Signature,
		PublicKey: req.PublicKey,
		Timestamp: req.Timestamp,
	}, s.now())
	if err != nil {
		msg := err.Error()
		if errors.Is(err, auth.ErrInvalidPublicKey) {
			msg = "publicKey must be a valid Stellar G... address"
		}
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, msg)
		return
	}

	bid, err := s.deps.Bids.PlaceBid(r.Context(), bidding.PlaceBidRequest{
		AuctionID:            auctionID,
		Amount:               req.Amount,
		Signature:            req.Signature,
		PublicKey:            req.PublicKey,
		SignedTransactionXDR: req.SignedTransactionXDR,
	})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, bid)
}

func (s *Server) handleHighestBid(w http.ResponseWriter, r *http.Request) {
	hb, err := s.deps.Bids.GetHighestBid(r.Context(), r.PathValue("auctionId"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hb)
}

func (s *Server) handleListBids(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var cursor *uint32
	if v := q.Get("cursor"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "cursor must be a non-negative integer")
			return
		}
		c := uint32(n)
		cursor = &c
	}

	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	page, err := s.deps.Bids.GetBidsByAuction(r.Context(), r.PathValue("auctionId"), cursor, limit)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleMyBids lists the caller's bids. The bidder comes from the publicKey
// query parameter, else from the session's wallet.
func (s *Server) handleMyBids(w http.ResponseWriter, r *http.Request) {
	bidder := r.URL.Query().Get("publicKey")
	if s.deps.Sessions != nil {
		claims, err := s.deps.Sessions.VerifyRequest(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Invalid or missing session")
			return
		}
		if bidder == "" {
			bidder = claims.WalletAddress
		}
	}
	if bidder == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "publicKey is required")
		return
	}

	bids, err := s.deps.Bids.GetMyBids(r.Context(), r.PathValue("auctionId"), bidder)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bids)
}
