// Package soroban talks to the Soroban JSON-RPC API: contract state reads,
// transaction submission and confirmation, event fetching and ledger height.
package soroban

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vietddude/bidwatch/internal/core/amount"
	"github.com/vietddude/bidwatch/internal/core/domain"
	"github.com/vietddude/bidwatch/internal/infra/rpc/provider"
	"github.com/vietddude/bidwatch/internal/infra/rpc/routing"
)

// Config holds gateway settings.
type Config struct {
	AuctionContractID string
	TxPollInterval    time.Duration
	TxTimeout         time.Duration
	EventsPageLimit   int
	Retry             routing.RetryConfig
}

// TxStatus is the terminal outcome of WaitForTransaction.
type TxStatus string

const (
	TxSuccess  TxStatus = "SUCCESS"
	TxFailed   TxStatus = "FAILED"
	TxTimedOut TxStatus = "TIMED_OUT"
)

// TxResult is the confirmation result of a submitted transaction.
type TxResult struct {
	Status TxStatus
	Ledger uint32
}

// ContractError is a rejection reported by simulation or submission.
type ContractError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ContractError) Error() string {
	return e.Code + ": " + e.Message
}

// SimulationResult is the outcome of a dry run.
type SimulationResult struct {
	Success bool
	Error   *ContractError
}

// EventQuery selects contract events in an inclusive ledger range.
type EventQuery struct {
	FromLedger  uint64
	ToLedger    uint64
	ContractIDs []string
	EventNames  []string
}

// Gateway is the Soroban RPC client.
type Gateway struct {
	providers []provider.RPCProvider
	cfg       Config
	auction   *ScAddress
	log       *slog.Logger
}

// NewGateway creates a gateway over one or more RPC providers. Providers
// are tried in order on failover-class errors.
func NewGateway(cfg Config, providers ...provider.RPCProvider) (*Gateway, error) {
	if len(providers) == 0 {
		return nil, routing.ErrNoProviders
	}
	if cfg.TxPollInterval <= 0 {
		cfg.TxPollInterval = 2 * time.Second
	}
	if cfg.TxTimeout <= 0 {
		cfg.TxTimeout = 60 * time.Second
	}
	if cfg.EventsPageLimit <= 0 {
		cfg.EventsPageLimit = 200
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = routing.DefaultRetryConfig
	}

	g := &Gateway{
		providers: providers,
		cfg:       cfg,
		log:       slog.Default().With("component", "soroban"),
	}
	if cfg.AuctionContractID != "" {
		addr, err := ParseAddress(cfg.AuctionContractID)
		if err != nil {
			return nil, fmt.Errorf("invalid auction contract id: %w", err)
		}
		g.auction = &addr
	} else {
		g.log.Warn("Auction contract id is not set; on-chain highest bid reads are disabled")
	}
	return g, nil
}

func (g *Gateway) call(ctx context.Context, method string, params any, out any) error {
	raw, err := routing.CallWithRetryAndFailover(ctx, g.providers, method, params, g.cfg.Retry)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

// GetLatestLedger returns the current ledger sequence.
func (g *Gateway) GetLatestLedger(ctx context.Context) (uint64, error) {
	var resp struct {
		Sequence uint64 `json:"sequence"`
	}
	if err := g.call(ctx, "getLatestLedger", nil, &resp); err != nil {
		return 0, fmt.Errorf("getLatestLedger: %w", err)
	}
	return resp.Sequence, nil
}

// GetHighestBidFromContract reads the auction contract's highest_bid entry.
// It returns nil when the entry is absent or unreadable; it never fails.
func (g *Gateway) GetHighestBidFromContract(ctx context.Context, auctionID string) *domain.HighestBid {
	if g.auction == nil {
		return nil
	}
	key, err := ContractDataKey(*g.auction, highestBidKey(auctionID))
	if err != nil {
		g.log.Warn("Failed to build highest bid key", "auction", auctionID, "error", err)
		return nil
	}

	var resp struct {
		Entries []struct {
			XDR                   string `json:"xdr"`
			LastModifiedLedgerSeq uint32 `json:"lastModifiedLedgerSeq"`
		} `json:"entries"`
	}
	if err := g.call(ctx, "getLedgerEntries", map[string]any{"keys": []string{key}}, &resp); err != nil {
		g.log.Warn("Highest bid read failed", "auction", auctionID, "error", err)
		return nil
	}
	if len(resp.Entries) == 0 {
		return nil
	}

	entry := resp.Entries[0]
	val, err := DecodeContractDataValue(entry.XDR)
	if err != nil {
		g.log.Warn("Failed to decode highest bid entry", "auction", auctionID, "error", err)
		return nil
	}
	hb, err := decodeHighestBid(val)
	if err != nil {
		g.log.Warn("Unexpected highest bid layout", "auction", auctionID, "error", err)
		return nil
	}
	hb.LedgerSequence = entry.LastModifiedLedgerSeq
	return hb
}

func highestBidKey(auctionID string) ScVal {
	return MapVal(
		ScMapEntry{Key: SymbolVal("id"), Val: StringVal(auctionID)},
		ScMapEntry{Key: SymbolVal("kind"), Val: SymbolVal("highest_bid")},
	)
}

// decodeHighestBid reads {bidder: Address, amount|value: integer}.
func decodeHighestBid(v ScVal) (*domain.HighestBid, error) {
	if v.Type != ScvMap {
		return nil, fmt.Errorf("expected map, got type %d", v.Type)
	}
	bidderVal, ok := v.Get("bidder")
	if !ok || bidderVal.Type != ScvAddress || bidderVal.Address == nil {
		return nil, errors.New("missing bidder address")
	}
	amountVal, ok := v.Get("amount")
	if !ok {
		amountVal, ok = v.Get("value")
	}
	if !ok {
		return nil, errors.New("missing amount")
	}
	stroops, err := IntValue(amountVal)
	if err != nil {
		return nil, err
	}
	return &domain.HighestBid{
		Bidder:        bidderVal.Address.String(),
		AmountStroops: stroops,
		AmountXLM:     amount.MinorToMajor(stroops),
	}, nil
}

// IntValue extracts a non-negative int64 from an integer contract value.
func IntValue(v ScVal) (int64, error) {
	switch v.Type {
	case ScvU32, ScvU64:
		if v.Uint > uint64(^uint64(0)>>1) {
			return 0, errors.New("amount overflows int64")
		}
		return int64(v.Uint), nil
	case ScvI32, ScvI64:
		if v.Int < 0 {
			return 0, errors.New("negative amount")
		}
		return v.Int, nil
	case ScvU128, ScvI128, ScvU256, ScvI256:
		if v.Big == nil || v.Big.Sign() < 0 || !v.Big.IsInt64() {
			return 0, errors.New("amount out of range")
		}
		return v.Big.Int64(), nil
	default:
		return 0, fmt.Errorf("%w: amount type %d", ErrUnsupportedType, v.Type)
	}
}

// SimulateTransaction dry-runs a signed envelope.
func (g *Gateway) SimulateTransaction(ctx context.Context, envelopeXDR string) SimulationResult {
	var resp struct {
		Error string `json:"error"`
	}
	err := g.call(ctx, "simulateTransaction", map[string]any{"transaction": envelopeXDR}, &resp)
	if err != nil {
		return SimulationResult{Error: &ContractError{Code: "SIMULATION_FAILED", Message: err.Error()}}
	}
	if resp.Error != "" {
		return SimulationResult{Error: &ContractError{Code: "CONTRACT_ERROR", Message: resp.Error}}
	}
	return SimulationResult{Success: true}
}

// SendTransaction submits a signed envelope and returns its hash.
// Rejections are returned as *ContractError.
func (g *Gateway) SendTransaction(ctx context.Context, envelopeXDR string) (string, error) {
	var resp struct {
		Status         string `json:"status"`
		Hash           string `json:"hash"`
		ErrorResultXDR string `json:"errorResultXdr"`
	}
	err := g.call(ctx, "sendTransaction", map[string]any{"transaction": envelopeXDR}, &resp)
	if err != nil {
		return "", &ContractError{Code: "SEND_FAILED", Message: err.Error()}
	}

	switch resp.Status {
	case "PENDING", "DUPLICATE":
		return resp.Hash, nil
	case "TRY_AGAIN_LATER":
		return "", &ContractError{Code: "TRY_AGAIN_LATER", Message: "network is congested, try again later"}
	default:
		msg := "transaction rejected"
		if resp.ErrorResultXDR != "" {
			msg += ": " + resp.ErrorResultXDR
		}
		return "", &ContractError{Code: "TX_FAILED", Message: msg}
	}
}

// WaitForTransaction polls getTransaction until the transaction succeeds,
// fails or the configured timeout elapses. NOT_FOUND and transport errors
// are treated as still pending. The only error returned is the context's.
func (g *Gateway) WaitForTransaction(ctx context.Context, hash string) (TxResult, error) {
	deadline := time.NewTimer(g.cfg.TxTimeout)
	defer deadline.Stop()

	for {
		var resp struct {
			Status string `json:"status"`
			Ledger uint32 `json:"ledger"`
		}
		err := g.call(ctx, "getTransaction", map[string]any{"hash": hash}, &resp)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return TxResult{}, ctx.Err()
			}
			g.log.Debug("getTransaction failed, retrying", "hash", hash, "error", err)
		case resp.Status == "SUCCESS":
			return TxResult{Status: TxSuccess, Ledger: resp.Ledger}, nil
		case resp.Status == "FAILED":
			return TxResult{Status: TxFailed, Ledger: resp.Ledger}, nil
		}

		select {
		case <-ctx.Done():
			return TxResult{}, ctx.Err()
		case <-deadline.C:
			return TxResult{Status: TxTimedOut}, nil
		case <-time.After(g.cfg.TxPollInterval):
		}
	}
}

type rpcEvent struct {
	ID             string   `json:"id"`
	Type           string   `json:"type"`
	Ledger         uint64   `json:"ledger"`
	LedgerClosedAt string   `json:"ledgerClosedAt"`
	ContractID     string   `json:"contractId"`
	TxHash         string   `json:"txHash"`
	Topic          []string `json:"topic"`
	Value          string   `json:"value"`
}

// GetEvents pages through contract events in [FromLedger, ToLedger]. On
// failure it logs a warning and returns an empty list with the error, so a
// caller wanting "nothing new" semantics can ignore the error.
func (g *Gateway) GetEvents(ctx context.Context, q EventQuery) ([]domain.RawEvent, error) {
	events, err := g.getEvents(ctx, q)
	if err != nil {
		g.log.Warn("getEvents failed", "from", q.FromLedger, "to", q.ToLedger, "error", err)
		return []domain.RawEvent{}, err
	}
	return events, nil
}

func (g *Gateway) getEvents(ctx context.Context, q EventQuery) ([]domain.RawEvent, error) {
	if q.FromLedger == 0 {
		q.FromLedger = 1
	}
	filter := map[string]any{"type": "contract"}
	if len(q.ContractIDs) > 0 {
		filter["contractIds"] = q.ContractIDs
	}

	wanted := make(map[string]bool, len(q.EventNames))
	for _, n := range q.EventNames {
		wanted[n] = true
	}

	out := []domain.RawEvent{}
	cursor := ""
	for {
		params := map[string]any{
			"filters":    []any{filter},
			"pagination": map[string]any{"limit": g.cfg.EventsPageLimit},
		}
		if cursor == "" {
			params["startLedger"] = q.FromLedger
		} else {
			params["pagination"] = map[string]any{"limit": g.cfg.EventsPageLimit, "cursor": cursor}
		}

		var resp struct {
			Events []rpcEvent `json:"events"`
			Cursor string     `json:"cursor"`
		}
		if err := g.call(ctx, "getEvents", params, &resp); err != nil {
			return nil, err
		}

		for _, ev := range resp.Events {
			if q.ToLedger > 0 && ev.Ledger > q.ToLedger {
				return out, nil
			}
			if len(wanted) > 0 && !wanted[EventName(ev.Topic)] {
				continue
			}
			out = append(out, domain.RawEvent{
				ID:              ev.ID,
				ContractID:      ev.ContractID,
				Ledger:          ev.Ledger,
				LedgerClosedAt:  ev.LedgerClosedAt,
				TransactionHash: ev.TxHash,
				Topics:          ev.Topic,
				Value:           ev.Value,
			})
		}

		if len(resp.Events) < g.cfg.EventsPageLimit || resp.Cursor == "" || resp.Cursor == cursor {
			return out, nil
		}
		cursor = resp.Cursor
	}
}

// EventName decodes the first topic of an event as its name. Unreadable
// topics yield "".
func EventName(topics []string) string {
	if len(topics) == 0 {
		return ""
	}
	v, err := DecodeScValBase64(topics[0])
	if err != nil {
		return ""
	}
	if v.Type != ScvSymbol && v.Type != ScvString {
		return ""
	}
	return strings.TrimSpace(v.Str)
}

