package soroban

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
)

// ScValType is the discriminant of a contract value.
type ScValType int32

const (
	ScvBool      ScValType = 0
	ScvVoid      ScValType = 1
	ScvError     ScValType = 2
	ScvU32       ScValType = 3
	ScvI32       ScValType = 4
	ScvU64       ScValType = 5
	ScvI64       ScValType = 6
	ScvTimepoint ScValType = 7
	ScvDuration  ScValType = 8
	ScvU128      ScValType = 9
	ScvI128      ScValType = 10
	ScvU256      ScValType = 11
	ScvI256      ScValType = 12
	ScvBytes     ScValType = 13
	ScvString    ScValType = 14
	ScvSymbol    ScValType = 15
	ScvVec       ScValType = 16
	ScvMap       ScValType = 17
	ScvAddress   ScValType = 18

	ScvLedgerKeyContractInstance ScValType = 20
	ScvLedgerKeyNonce            ScValType = 21
)

// ScAddressType is the discriminant of a contract address.
type ScAddressType int32

const (
	ScAddressAccount  ScAddressType = 0
	ScAddressContract ScAddressType = 1
)

const (
	ledgerEntryContractData int32 = 6
	durabilityPersistent    int32 = 1
	maxXDRLength                  = 1 << 20
)

var (
	ErrShortBuffer     = errors.New("xdr: short buffer")
	ErrUnsupportedType = errors.New("xdr: unsupported type")
)

// ScAddress is an account or contract address.
type ScAddress struct {
	Type ScAddressType
	Key  [32]byte
}

// String renders the address as a strkey.
func (a ScAddress) String() string {
	if a.Type == ScAddressContract {
		return EncodeContractID(a.Key)
	}
	return EncodeAccountID(a.Key)
}

// ParseAddress accepts a G... or C... strkey.
func ParseAddress(s string) (ScAddress, error) {
	if k, err := DecodeAccountID(s); err == nil {
		return ScAddress{Type: ScAddressAccount, Key: k}, nil
	}
	k, err := DecodeContractID(s)
	if err != nil {
		return ScAddress{}, err
	}
	return ScAddress{Type: ScAddressContract, Key: k}, nil
}

// ScMapEntry is one key/value pair of a contract map.
type ScMapEntry struct {
	Key ScVal
	Val ScVal
}

// ScVal is a decoded Soroban contract value. Only the field matching Type
// is meaningful.
type ScVal struct {
	Type    ScValType
	Bool    bool
	Uint    uint64   // U32, U64, Timepoint, Duration
	Int     int64    // I32, I64
	Big     *big.Int // U128, I128, U256, I256
	Bytes   []byte
	Str     string // String, Symbol
	Address *ScAddress
	Vec     []ScVal
	Map     []ScMapEntry
}

func SymbolVal(s string) ScVal { return ScVal{Type: ScvSymbol, Str: s} }

func StringVal(s string) ScVal { return ScVal{Type: ScvString, Str: s} }

func U32Val(v uint32) ScVal { return ScVal{Type: ScvU32, Uint: uint64(v)} }

func I128Val(v *big.Int) ScVal { return ScVal{Type: ScvI128, Big: new(big.Int).Set(v)} }

func MapVal(e ...ScMapEntry) ScVal { return ScVal{Type: ScvMap, Map: e} }

func VecVal(v ...ScVal) ScVal { return ScVal{Type: ScvVec, Vec: v} }

// AddressVal wraps an address as a value.
func AddressVal(a ScAddress) ScVal {
	return ScVal{Type: ScvAddress, Address: &a}
}

// Get returns the value stored under a symbol or string key of a map.
func (v ScVal) Get(key string) (ScVal, bool) {
	for _, e := range v.Map {
		if (e.Key.Type == ScvSymbol || e.Key.Type == ScvString) && e.Key.Str == key {
			return e.Val, true
		}
	}
	return ScVal{}, false
}

// Native converts the value into plain Go data: strings for symbols,
// strings and addresses; decimal strings for 128/256-bit integers;
// map[string]any for maps with textual keys.
func (v ScVal) Native() any {
	switch v.Type {
	case ScvBool:
		return v.Bool
	case ScvVoid:
		return nil
	case ScvU32, ScvU64, ScvTimepoint, ScvDuration:
		return v.Uint
	case ScvI32, ScvI64:
		return v.Int
	case ScvU128, ScvI128, ScvU256, ScvI256:
		if v.Big == nil {
			return "0"
		}
		return v.Big.String()
	case ScvBytes:
		return v.Bytes
	case ScvString, ScvSymbol:
		return v.Str
	case ScvAddress:
		if v.Address == nil {
			return ""
		}
		return v.Address.String()
	case ScvVec:
		out := make([]any, len(v.Vec))
		for i, e := range v.Vec {
			out[i] = e.Native()
		}
		return out
	case ScvMap:
		out := make(map[string]any, len(v.Map))
		for _, e := range v.Map {
			out[fmt.Sprint(e.Key.Native())] = e.Val.Native()
		}
		return out
	default:
		return nil
	}
}

// MarshalBase64 encodes the value as base64 XDR.
func (v ScVal) MarshalBase64() (string, error) {
	var w xdrWriter
	if err := w.scVal(v); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(w.buf.Bytes()), nil
}

// DecodeScValBase64 decodes a base64 XDR contract value.
func DecodeScValBase64(s string) (ScVal, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return ScVal{}, fmt.Errorf("xdr: invalid base64: %w", err)
	}
	r := xdrReader{buf: raw}
	v, err := r.scVal(0)
	if err != nil {
		return ScVal{}, err
	}
	return v, nil
}

// ContractDataKey builds the base64 LedgerKey of a persistent contract-data
// entry.
func ContractDataKey(contract ScAddress, key ScVal) (string, error) {
	var w xdrWriter
	w.int32(ledgerEntryContractData)
	if err := w.address(contract); err != nil {
		return "", err
	}
	if err := w.scVal(key); err != nil {
		return "", err
	}
	w.int32(durabilityPersistent)
	return base64.StdEncoding.EncodeToString(w.buf.Bytes()), nil
}

// DecodeContractDataValue extracts the stored value from a base64
// LedgerEntryData of type CONTRACT_DATA.
func DecodeContractDataValue(s string) (ScVal, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return ScVal{}, fmt.Errorf("xdr: invalid base64: %w", err)
	}
	r := xdrReader{buf: raw}

	typ, err := r.int32()
	if err != nil {
		return ScVal{}, err
	}
	if typ != ledgerEntryContractData {
		return ScVal{}, fmt.Errorf("%w: ledger entry type %d", ErrUnsupportedType, typ)
	}
	ext, err := r.int32()
	if err != nil {
		return ScVal{}, err
	}
	if ext != 0 {
		return ScVal{}, fmt.Errorf("%w: extension %d", ErrUnsupportedType, ext)
	}
	if _, err := r.address(); err != nil {
		return ScVal{}, err
	}
	if _, err := r.scVal(0); err != nil {
		return ScVal{}, err
	}
	if _, err := r.int32(); err != nil {
		return ScVal{}, err
	}
	return r.scVal(0)
}

// -----------------------------------------------------------------------------
// Writer
// -----------------------------------------------------------------------------

type xdrWriter struct {
	buf bytes.Buffer
}

func (w *xdrWriter) int32(v int32) { w.uint32(uint32(v)) }
func (w *xdrWriter) uint32(v uint32) { w.buf.Write(binary.BigEndian.AppendUint32(nil, v)) }
func (w *xdrWriter) uint64(v uint64) { w.buf.Write(binary.BigEndian.AppendUint64(nil, v)) }

func (w *xdrWriter) opaque(b []byte) {
	w.uint32(uint32(len(b)))
	w.buf.Write(b)
	if pad := (4 - len(b)%4) % 4; pad > 0 {
		w.buf.Write(make([]byte, pad))
	}
}

func (w *xdrWriter) address(a ScAddress) error {
	w.int32(int32(a.Type))
	switch a.Type {
	case ScAddressAccount:
		w.int32(0) // PUBLIC_KEY_TYPE_ED25519
		w.buf.Write(a.Key[:])
	case ScAddressContract:
		w.buf.Write(a.Key[:])
	default:
		return fmt.Errorf("%w: address type %d", ErrUnsupportedType, a.Type)
	}
	return nil
}

func (w *xdrWriter) scVal(v ScVal) error {
	w.int32(int32(v.Type))
	switch v.Type {
	case ScvBool:
		if v.Bool {
			w.uint32(1)
		} else {
			w.uint32(0)
		}
	case ScvVoid:
	case ScvU32:
		w.uint32(uint32(v.Uint))
	case ScvI32:
		w.int32(int32(v.Int))
	case ScvU64, ScvTimepoint, ScvDuration:
		w.uint64(v.Uint)
	case ScvI64:
		w.uint64(uint64(v.Int))
	case ScvU128, ScvI128:
		hi, lo := split128(v.Big)
		w.uint64(hi)
		w.uint64(lo)
	case ScvBytes:
		w.opaque(v.Bytes)
	case ScvString, ScvSymbol:
		w.opaque([]byte(v.Str))
	case ScvAddress:
		if v.Address == nil {
			return fmt.Errorf("%w: nil address", ErrUnsupportedType)
		}
		return w.address(*v.Address)
	case ScvLedgerKeyContractInstance:
	case ScvLedgerKeyNonce:
		w.uint64(uint64(v.Int))
	case ScvVec:
		w.uint32(1) // present
		w.uint32(uint32(len(v.Vec)))
		for _, e := range v.Vec {
			if err := w.scVal(e); err != nil {
				return err
			}
		}
	case ScvMap:
		w.uint32(1) // present
		w.uint32(uint32(len(v.Map)))
		for _, e := range v.Map {
			if err := w.scVal(e.Key); err != nil {
				return err
			}
			if err := w.scVal(e.Val); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: scval type %d", ErrUnsupportedType, v.Type)
	}
	return nil
}

var two128 = new(big.Int).Lsh(big.NewInt(1), 128)

// split128 returns the two's-complement high and low words of v.
func split128(v *big.Int) (hi, lo uint64) {
	if v == nil {
		return 0, 0
	}
	n := new(big.Int).Set(v)
	if n.Sign() < 0 {
		n.Add(n, two128)
	}
	mask := new(big.Int).SetUint64(^uint64(0))
	lo = new(big.Int).And(n, mask).Uint64()
	hi = new(big.Int).Rsh(n, 64).Uint64()
	return hi, lo
}

// -----------------------------------------------------------------------------
// Reader
// -----------------------------------------------------------------------------

type xdrReader struct {
	buf []byte
	off int
}

const maxDepth = 32

func (r *xdrReader) take(n int) ([]byte, error) {
	if n < 0 || r.off+n > len(r.buf) {
		return nil, ErrShortBuffer
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *xdrReader) uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *xdrReader) int32() (int32, error) {
	v, err := r.uint32()
	return int32(v), err
}

func (r *xdrReader) uint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *xdrReader) opaque() ([]byte, error) {
	n, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if n > maxXDRLength {
		return nil, fmt.Errorf("xdr: opaque length %d too large", n)
	}
	b, err := r.take(int(n))
	if err != nil {
		return nil, err
	}
	if pad := (4 - int(n)%4) % 4; pad > 0 {
		if _, err := r.take(pad); err != nil {
			return nil, err
		}
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (r *xdrReader) address() (ScAddress, error) {
	typ, err := r.int32()
	if err != nil {
		return ScAddress{}, err
	}
	a := ScAddress{Type: ScAddressType(typ)}
	switch a.Type {
	case ScAddressAccount:
		keyType, err := r.int32()
		if err != nil {
			return ScAddress{}, err
		}
		if keyType != 0 {
			return ScAddress{}, fmt.Errorf("%w: public key type %d", ErrUnsupportedType, keyType)
		}
	case ScAddressContract:
	default:
		return ScAddress{}, fmt.Errorf("%w: address type %d", ErrUnsupportedType, typ)
	}
	b, err := r.take(32)
	if err != nil {
		return ScAddress{}, err
	}
	copy(a.Key[:], b)
	return a, nil
}

func (r *xdrReader) scVal(depth int) (ScVal, error) {
	if depth > maxDepth {
		return ScVal{}, errors.New("xdr: value nested too deeply")
	}
	typ, err := r.int32()
	if err != nil {
		return ScVal{}, err
	}
	v := ScVal{Type: ScValType(typ)}

	switch v.Type {
	case ScvBool:
		b, err := r.uint32()
		if err != nil {
			return v, err
		}
		v.Bool = b != 0
	case ScvVoid:
	case ScvError:
		code, err := r.int32()
		if err != nil {
			return v, err
		}
		if _, err := r.uint32(); err != nil {
			return v, err
		}
		v.Int = int64(code)
	case ScvU32:
		u, err := r.uint32()
		if err != nil {
			return v, err
		}
		v.Uint = uint64(u)
	case ScvI32:
		i, err := r.int32()
		if err != nil {
			return v, err
		}
		v.Int = int64(i)
	case ScvU64, ScvTimepoint, ScvDuration:
		if v.Uint, err = r.uint64(); err != nil {
			return v, err
		}
	case ScvI64:
		u, err := r.uint64()
		if err != nil {
			return v, err
		}
		v.Int = int64(u)
	case ScvU128, ScvI128:
		v.Big, err = r.bigInt(2, v.Type == ScvI128)
		if err != nil {
			return v, err
		}
	case ScvU256, ScvI256:
		v.Big, err = r.bigInt(4, v.Type == ScvI256)
		if err != nil {
			return v, err
		}
	case ScvBytes:
		if v.Bytes, err = r.opaque(); err != nil {
			return v, err
		}
	case ScvString, ScvSymbol:
		b, err := r.opaque()
		if err != nil {
			return v, err
		}
		v.Str = string(b)
	case ScvAddress:
		a, err := r.address()
		if err != nil {
			return v, err
		}
		v.Address = &a
	case ScvLedgerKeyContractInstance:
	case ScvLedgerKeyNonce:
		u, err := r.uint64()
		if err != nil {
			return v, err
		}
		v.Int = int64(u)
	case ScvVec:
		n, err := r.optionalCount()
		if err != nil {
			return v, err
		}
		for i := 0; i < n; i++ {
			e, err := r.scVal(depth + 1)
			if err != nil {
				return v, err
			}
			v.Vec = append(v.Vec, e)
		}
	case ScvMap:
		n, err := r.optionalCount()
		if err != nil {
			return v, err
		}
		for i := 0; i < n; i++ {
			k, err := r.scVal(depth + 1)
			if err != nil {
				return v, err
			}
			val, err := r.scVal(depth + 1)
			if err != nil {
				return v, err
			}
			v.Map = append(v.Map, ScMapEntry{Key: k, Val: val})
		}
	default:
		return v, fmt.Errorf("%w: scval type %d", ErrUnsupportedType, typ)
	}
	return v, nil
}

// optionalCount reads an optional array header (present flag + length).
func (r *xdrReader) optionalCount() (int, error) {
	present, err := r.uint32()
	if err != nil {
		return 0, err
	}
	if present == 0 {
		return 0, nil
	}
	n, err := r.uint32()
	if err != nil {
		return 0, err
	}
	if int(n) > (len(r.buf)-r.off)/4 {
		return 0, ErrShortBuffer
	}
	return int(n), nil
}

// bigInt reads words 64-bit big-endian words, most significant first.
func (r *xdrReader) bigInt(words int, signed bool) (*big.Int, error) {
	b, err := r.take(8 * words)
	if err != nil {
		return nil, err
	}
	n := new(big.Int).SetBytes(b)
	if signed && b[0]&0x80 != 0 {
		n.Sub(n, new(big.Int).Lsh(big.NewInt(1), uint(64*words)))
	}
	return n, nil
}
