package soroban

import (
	"encoding/base64"
	"errors"
	"math/big"
	"testing"
)

func testAccount(b byte) ScAddress {
	var k [32]byte
	for i := range k {
		k[i] = b
	}
	return ScAddress{Type: ScAddressAccount, Key: k}
}

func testContract(b byte) ScAddress {
	a := testAccount(b)
	a.Type = ScAddressContract
	return a
}

// contractDataEntry builds a base64 LedgerEntryData for tests.
func contractDataEntry(t *testing.T, contract ScAddress, key, val ScVal) string {
	t.Helper()
	var w xdrWriter
	w.int32(ledgerEntryContractData)
	w.int32(0)
	if err := w.address(contract); err != nil {
		t.Fatalf("address: %v", err)
	}
	if err := w.scVal(key); err != nil {
		t.Fatalf("key: %v", err)
	}
	w.int32(durabilityPersistent)
	if err := w.scVal(val); err != nil {
		t.Fatalf("val: %v", err)
	}
	return base64.StdEncoding.EncodeToString(w.buf.Bytes())
}

func TestScVal_RoundTrip(t *testing.T) {
	bidder := testAccount(7)
	big128, _ := new(big.Int).SetString("170141183460469231731687303715884105727", 10)

	tests := []struct {
		name string
		val  ScVal
		want any
	}{
		{"symbol", SymbolVal("BidPlaced"), "BidPlaced"},
		{"string", StringVal("auction-1"), "auction-1"},
		{"u32", U32Val(42), uint64(42)},
		{"i128 positive", I128Val(big.NewInt(105000000)), "105000000"},
		{"i128 negative", I128Val(big.NewInt(-5)), "-5"},
		{"i128 max", I128Val(big128), "170141183460469231731687303715884105727"},
		{"address", AddressVal(bidder), bidder.String()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := tt.val.MarshalBase64()
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			got, err := DecodeScValBase64(enc)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.Type != tt.val.Type {
				t.Errorf("expected type %d, got %d", tt.val.Type, got.Type)
			}
			if got.Native() != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got.Native())
			}
		})
	}
}

func TestScVal_MapNative(t *testing.T) {
	v := MapVal(
		ScMapEntry{Key: SymbolVal("amount"), Val: I128Val(big.NewInt(50))},
		ScMapEntry{Key: SymbolVal("bidder"), Val: AddressVal(testAccount(1))},
		ScMapEntry{Key: SymbolVal("tags"), Val: VecVal(SymbolVal("a"), SymbolVal("b"))},
	)
	enc, err := v.MarshalBase64()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := DecodeScValBase64(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	m, ok := got.Native().(map[string]any)
	if !ok {
		t.Fatalf("expected map, got %T", got.Native())
	}
	if m["amount"] != "50" {
		t.Errorf("expected amount 50, got %v", m["amount"])
	}
	if m["bidder"] != testAccount(1).String() {
		t.Errorf("expected bidder strkey, got %v", m["bidder"])
	}
	tags, ok := m["tags"].([]any)
	if !ok || len(tags) != 2 || tags[1] != "b" {
		t.Errorf("unexpected tags %v", m["tags"])
	}

	if _, ok := got.Get("missing"); ok {
		t.Error("expected missing key lookup to fail")
	}
}

func TestDecodeScVal_Errors(t *testing.T) {
	if _, err := DecodeScValBase64("%%%"); err == nil {
		t.Error("expected base64 error")
	}

	// symbol header claiming 8 bytes with only 2 present
	raw := []byte{0, 0, 0, 15, 0, 0, 0, 8, 'a', 'b'}
	_, err := DecodeScValBase64(base64.StdEncoding.EncodeToString(raw))
	if !errors.Is(err, ErrShortBuffer) {
		t.Errorf("expected ErrShortBuffer, got %v", err)
	}

	raw = []byte{0, 0, 0, 99}
	_, err = DecodeScValBase64(base64.StdEncoding.EncodeToString(raw))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestContractData_KeyAndValue(t *testing.T) {
	contract := testContract(9)
	key := highestBidKey("auction-1")

	k, err := ContractDataKey(contract, key)
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	raw, _ := base64.StdEncoding.DecodeString(k)
	if len(raw) < 8 || raw[3] != 6 {
		t.Fatalf("expected CONTRACT_DATA ledger key, got %x", raw)
	}
	if raw[len(raw)-1] != 1 {
		t.Errorf("expected persistent durability suffix")
	}

	val := MapVal(
		ScMapEntry{Key: SymbolVal("amount"), Val: I128Val(big.NewInt(105000000))},
		ScMapEntry{Key: SymbolVal("bidder"), Val: AddressVal(testAccount(2))},
	)
	got, err := DecodeContractDataValue(contractDataEntry(t, contract, key, val))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	amt, ok := got.Get("amount")
	if !ok || amt.Big.Int64() != 105000000 {
		t.Errorf("expected amount 105000000, got %v", amt.Native())
	}
}
