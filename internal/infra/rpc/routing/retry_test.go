package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/vietddude/bidwatch/internal/infra/rpc/provider"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err    error
		expect ErrorAction
	}{
		{errors.New("429 Too Many Requests"), ActionFailover},
		{errors.New("project rate limit exceeded"), ActionFailover},
		{errors.New("quota exceeded"), ActionFailover},
		{errors.New("403 Forbidden"), ActionFailover},
		{&provider.HTTPStatusError{StatusCode: 429}, ActionFailover},
		{&provider.HTTPStatusError{StatusCode: 502}, ActionRetry},
		{&provider.RPCError{Code: -32602, Message: "invalid params"}, ActionFatal},
		{fmt.Errorf("wrapped: %w", &provider.RPCError{Code: -32601}), ActionFatal},
		{&provider.RPCError{Code: -32603, Message: "internal"}, ActionRetry},
		{errors.New("Parse error -32700"), ActionFatal},
		{context.Canceled, ActionFatal},
		{errors.New("connection reset by peer"), ActionRetry},
		{errors.New("timeout"), ActionRetry},
	}

	for _, tt := range tests {
		if got := ClassifyError(tt.err); got != tt.expect {
			t.Errorf("ClassifyError(%q) = %v, want %v", tt.err, got, tt.expect)
		}
	}
}

type stubProvider struct {
	name      string
	available bool
	errs      []error
	calls     int
}

func (s *stubProvider) GetName() string { return s.name }
func (s *stubProvider) GetHealth() provider.HealthStatus { return provider.HealthStatus{} }
func (s *stubProvider) IsAvailable() bool { return s.available }
func (s *stubProvider) Close() error { return nil }
func (s *stubProvider) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	return json.RawMessage(`"ok"`), nil
}

var fastRetry = RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}

func TestCallWithRetry_RetriesTransient(t *testing.T) {
	p := &stubProvider{name: "a", available: true, errs: []error{errors.New("timeout"), errors.New("timeout")}}
	out, err := CallWithRetry(context.Background(), p, "getLatestLedger", nil, fastRetry)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if string(out) != `"ok"` {
		t.Errorf("unexpected result %s", out)
	}
	if p.calls != 3 {
		t.Errorf("expected 3 calls, got %d", p.calls)
	}
}

func TestCallWithRetry_StopsOnFatal(t *testing.T) {
	p := &stubProvider{name: "a", available: true, errs: []error{&provider.RPCError{Code: -32602}}}
	_, err := CallWithRetry(context.Background(), p, "getEvents", nil, fastRetry)
	if err == nil {
		t.Fatal("expected error")
	}
	if p.calls != 1 {
		t.Errorf("expected 1 call, got %d", p.calls)
	}
}

func TestCallWithRetryAndFailover(t *testing.T) {
	first := &stubProvider{name: "a", available: true, errs: []error{&provider.HTTPStatusError{StatusCode: 429}}}
	second := &stubProvider{name: "b", available: true}

	_, err := CallWithRetryAndFailover(context.Background(),
		[]provider.RPCProvider{first, second}, "getLatestLedger", nil, fastRetry)
	if err != nil {
		t.Fatalf("expected failover success, got %v", err)
	}
	if first.calls != 1 || second.calls != 1 {
		t.Errorf("expected one call each, got %d and %d", first.calls, second.calls)
	}
}

func TestCallWithRetryAndFailover_NoProviders(t *testing.T) {
	_, err := CallWithRetryAndFailover(context.Background(), nil, "x", nil, fastRetry)
	if !errors.Is(err, ErrNoProviders) {
		t.Errorf("expected ErrNoProviders, got %v", err)
	}
}

func TestCalculateBackoff(t *testing.T) {
	cfg := RetryConfig{InitialDelay: time.Second, MaxDelay: 5 * time.Second, BackoffMultiple: 2}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := calculateBackoff(i, cfg); got != w {
			t.Errorf("attempt %d: expected %s, got %s", i, w, got)
		}
	}
}
