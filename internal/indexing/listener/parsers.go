package listener

import (
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/vietddude/bidwatch/internal/core/domain"
	"github.com/vietddude/bidwatch/internal/infra/soroban"
)

var (
	// ErrUnknownEvent is returned when the event name cannot be read.
	ErrUnknownEvent = errors.New("unknown event")

	// ErrUnexpectedEvent is returned for events outside the parser's filter.
	ErrUnexpectedEvent = errors.New("unexpected event")

	// ErrMissingField is returned when a required payload field is absent.
	ErrMissingField = errors.New("missing field")
)

// DecodeFunc maps a decoded event value into a queue payload. Payload
// values are strings, numbers included, so they survive a JSON round trip.
type DecodeFunc func(name string, raw domain.RawEvent, value soroban.ScVal) (map[string]any, error)

// Parser turns raw contract events of one listener kind into chain events.
type Parser struct {
	Kind   domain.ListenerKind
	Events []string
	Decode DecodeFunc
}

// Parse decodes a raw event. Invalid events return an error and should be
// dropped by the caller.
func (p Parser) Parse(raw domain.RawEvent) (*domain.ChainEvent, error) {
	name := soroban.EventName(raw.Topics)
	if name == "" {
		return nil, fmt.Errorf("%w: event %s", ErrUnknownEvent, raw.ID)
	}
	if len(p.Events) > 0 && !slices.Contains(p.Events, name) {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedEvent, name)
	}

	value, err := soroban.DecodeScValBase64(raw.Value)
	if err != nil {
		return nil, fmt.Errorf("decode %s value: %w", name, err)
	}
	payload, err := p.Decode(name, raw, value)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}

	return &domain.ChainEvent{
		ID:              raw.ID,
		Kind:            p.Kind,
		Name:            name,
		ContractAddress: raw.ContractID,
		BlockNumber:     raw.Ledger,
		TransactionHash: raw.TransactionHash,
		Payload:         payload,
		Priority:        Priority(name),
		ObservedAt:      time.Now().UTC(),
	}, nil
}

// ParserFor returns the parser of a listener kind.
func ParserFor(kind domain.ListenerKind) (Parser, error) {
	switch kind {
	case domain.ListenerMarketplace:
		return MarketplaceParser(), nil
	case domain.ListenerAuction:
		return AuctionParser(), nil
	case domain.ListenerTransaction:
		return TransactionParser(), nil
	default:
		return Parser{}, fmt.Errorf("unknown listener kind %q", kind)
	}
}

// MarketplaceParser handles listing and sale events.
func MarketplaceParser() Parser {
	return Parser{
		Kind: domain.ListenerMarketplace,
		Events: []string{
			domain.EventListingCreated,
			domain.EventListingCancelled,
			domain.EventSale,
		},
		Decode: decodeGeneric,
	}
}

// TransactionParser handles NFT transfer and approval events.
func TransactionParser() Parser {
	return Parser{
		Kind:   domain.ListenerTransaction,
		Events: []string{domain.EventTransfer, domain.EventApproval},
		Decode: decodeGeneric,
	}
}

// AuctionParser handles auction lifecycle and bid events.
func AuctionParser() Parser {
	return Parser{
		Kind: domain.ListenerAuction,
		Events: []string{
			domain.EventAuctionCreated,
			domain.EventBidPlaced,
			domain.EventAuctionEnded,
			domain.EventAuctionCancelled,
		},
		Decode: decodeAuction,
	}
}

func decodeGeneric(_ string, raw domain.RawEvent, value soroban.ScVal) (map[string]any, error) {
	payload := map[string]any{}
	if value.Type == soroban.ScvMap {
		for k, v := range value.Native().(map[string]any) {
			payload[k] = stringify(v)
		}
	} else {
		payload["value"] = stringify(value.Native())
	}
	if len(raw.Topics) > 1 {
		topics := make([]any, 0, len(raw.Topics)-1)
		for _, t := range raw.Topics[1:] {
			if v, err := soroban.DecodeScValBase64(t); err == nil {
				topics = append(topics, stringify(v.Native()))
			}
		}
		payload["topics"] = topics
	}
	payload["txHash"] = raw.TransactionHash
	payload["ledger"] = strconv.FormatUint(raw.Ledger, 10)
	return payload, nil
}

func decodeAuction(name string, raw domain.RawEvent, value soroban.ScVal) (map[string]any, error) {
	if value.Type != soroban.ScvMap {
		return nil, fmt.Errorf("expected map value, got type %d", value.Type)
	}

	auctionID, ok := textField(value, "auction_id", "auctionId")
	if !ok && len(raw.Topics) > 1 {
		if v, err := soroban.DecodeScValBase64(raw.Topics[1]); err == nil {
			auctionID, ok = text(v)
		}
	}
	if !ok || auctionID == "" {
		return nil, fmt.Errorf("%w: auction id", ErrMissingField)
	}

	payload := map[string]any{
		"auctionId": auctionID,
		"txHash":    raw.TransactionHash,
		"ledger":    strconv.FormatUint(raw.Ledger, 10),
	}

	switch name {
	case domain.EventBidPlaced:
		bidder, ok := textField(value, "bidder")
		if !ok || !soroban.IsAccountID(bidder) {
			return nil, fmt.Errorf("%w: bidder", ErrMissingField)
		}
		amount, err := intField(value, "amount")
		if err != nil {
			return nil, err
		}
		payload["bidderPublicKey"] = bidder
		payload["amountMinor"] = strconv.FormatInt(amount, 10)

	case domain.EventAuctionCreated:
		seller, ok := textField(value, "seller")
		if !ok {
			return nil, fmt.Errorf("%w: seller", ErrMissingField)
		}
		payload["sellerPublicKey"] = seller
		if v, ok := textField(value, "nft_contract", "nftContract"); ok {
			payload["nftContractId"] = v
		}
		if v, ok := textField(value, "token_id", "tokenId"); ok {
			payload["tokenId"] = v
		}
		for key, aliases := range map[string][]string{
			"reservePriceMinor": {"reserve_price", "reservePrice"},
			"minIncrementMinor": {"min_increment", "minIncrement"},
			"endTime":           {"end_time", "endTime"},
		} {
			if _, ok := lookup(value, aliases...); !ok {
				continue
			}
			n, err := intField(value, aliases...)
			if err != nil {
				return nil, err
			}
			payload[key] = strconv.FormatInt(n, 10)
		}

	case domain.EventAuctionEnded:
		if v, ok := textField(value, "winner"); ok {
			payload["winner"] = v
		}
		if _, ok := lookup(value, "amount"); ok {
			n, err := intField(value, "amount")
			if err != nil {
				return nil, err
			}
			payload["amountMinor"] = strconv.FormatInt(n, 10)
		}
	}
	return payload, nil
}

func lookup(v soroban.ScVal, keys ...string) (soroban.ScVal, bool) {
	for _, k := range keys {
		if f, ok := v.Get(k); ok {
			return f, true
		}
	}
	return soroban.ScVal{}, false
}

func textField(v soroban.ScVal, keys ...string) (string, bool) {
	f, ok := lookup(v, keys...)
	if !ok {
		return "", false
	}
	return text(f)
}

// text renders strings, symbols, addresses and integers as text.
func text(v soroban.ScVal) (string, bool) {
	switch v.Type {
	case soroban.ScvString, soroban.ScvSymbol, soroban.ScvAddress,
		soroban.ScvU32, soroban.ScvU64, soroban.ScvI32, soroban.ScvI64,
		soroban.ScvU128, soroban.ScvI128, soroban.ScvU256, soroban.ScvI256:
		s, ok := stringify(v.Native()).(string)
		return s, ok
	default:
		return "", false
	}
}

func intField(v soroban.ScVal, keys ...string) (int64, error) {
	f, ok := lookup(v, keys...)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingField, keys[0])
	}
	n, err := soroban.IntValue(f)
	if err != nil {
		return 0, fmt.Errorf("field %s: %w", keys[0], err)
	}
	return n, nil
}

func stringify(v any) any {
	switch t := v.(type) {
	case uint64:
		return strconv.FormatUint(t, 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case []byte:
		return hex.EncodeToString(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = stringify(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = stringify(e)
		}
		return out
	default:
		return v
	}
}
