package auth

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"strconv"
	"time"

	"github.com/vietddude/bidwatch/internal/infra/soroban"
)

// MaxBidSignatureAge bounds how old a signed bid timestamp may be.
const MaxBidSignatureAge = 5 * time.Minute

var (
	ErrMissingSignatureData = errors.New("missing bid signature data: amount, signature, and publicKey are required")
	ErrSignatureExpired     = errors.New("bid signature timestamp expired or invalid")
	ErrSignatureEncoding    = errors.New("invalid signature encoding")
	ErrInvalidPublicKey     = errors.New("invalid Stellar public key")
	ErrInvalidSignature     = errors.New("invalid Stellar signature for bid")
)

// SignedBid is the signed part of a bid request.
type SignedBid struct {
	AuctionID string
	Amount    string
	Signature string
	PublicKey string
	Timestamp string
}

// BidMessage is the exact text a wallet signs to authorize a bid. An empty
// timestamp still leaves its trailing separator.
func BidMessage(auctionID, amount, timestamp string) string {
	return "bid:" + auctionID + ":" + amount + ":" + timestamp
}

// VerifyBidSignature checks the ed25519 signature of a bid against the
// bidder's account key. now is the reference time for the timestamp window.
func VerifyBidSignature(b SignedBid, now time.Time) error {
	if b.AuctionID == "" || b.Amount == "" || b.Signature == "" || b.PublicKey == "" {
		return ErrMissingSignatureData
	}

	if b.Timestamp != "" {
		ms, err := strconv.ParseInt(b.Timestamp, 10, 64)
		if err != nil {
			return ErrSignatureExpired
		}
		if now.Sub(time.UnixMilli(ms)) > MaxBidSignatureAge {
			return ErrSignatureExpired
		}
	}

	sig, err := base64.StdEncoding.DecodeString(b.Signature)
	if err != nil {
		return ErrSignatureEncoding
	}

	pub, err := soroban.DecodeAccountID(b.PublicKey)
	if err != nil {
		return errors.Join(ErrInvalidPublicKey, err)
	}

	msg := []byte(BidMessage(b.AuctionID, b.Amount, b.Timestamp))
	if !ed25519.Verify(ed25519.PublicKey(pub[:]), msg, sig) {
		return ErrInvalidSignature
	}
	return nil
}
