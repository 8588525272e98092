package soroban

import (
	"encoding/base64"
	"errors"
	"fmt"
)

const (
	envelopeTypeTxV0 int32 = 0
	envelopeTypeTx   int32 = 2

	keyTypeEd25519      int32 = 0
	keyTypeMuxedEd25519 int32 = 0x100

	opInvokeHostFunction int32 = 24
	hostFnInvokeContract int32 = 0
	authorizedFnContract int32 = 0

	maxOperations = 100
	maxSignatures = 20
)

// ErrTrailingData is returned when an envelope has bytes after its signatures.
var ErrTrailingData = errors.New("xdr: trailing data")

// TxEnvelope is the part of a signed transaction envelope that bid
// acceptance checks before submitting it.
type TxEnvelope struct {
	SourceAccount string // G... strkey of the transaction source
	Operations    int
	Signatures    int
}

// DecodeTxEnvelope reads a base64 TransactionEnvelope. Classic V0 and V1
// envelopes are accepted; operations other than InvokeHostFunction calling
// a contract are rejected as unsupported.
func DecodeTxEnvelope(s string) (TxEnvelope, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return TxEnvelope{}, fmt.Errorf("xdr: invalid base64: %w", err)
	}
	r := xdrReader{buf: raw}

	typ, err := r.int32()
	if err != nil {
		return TxEnvelope{}, err
	}

	var env TxEnvelope
	switch typ {
	case envelopeTypeTxV0:
		key, err := r.take(32)
		if err != nil {
			return TxEnvelope{}, err
		}
		env.SourceAccount = EncodeAccountID([32]byte(key))
		if env.Operations, err = r.transactionV0Body(); err != nil {
			return TxEnvelope{}, err
		}
	case envelopeTypeTx:
		if env.SourceAccount, err = r.muxedAccount(); err != nil {
			return TxEnvelope{}, err
		}
		if env.Operations, err = r.transactionBody(); err != nil {
			return TxEnvelope{}, err
		}
	default:
		return TxEnvelope{}, fmt.Errorf("%w: envelope type %d", ErrUnsupportedType, typ)
	}

	if env.Signatures, err = r.decoratedSignatures(); err != nil {
		return TxEnvelope{}, err
	}
	if r.off != len(r.buf) {
		return TxEnvelope{}, ErrTrailingData
	}
	return env, nil
}

// count reads a variable-length array header.
func (r *xdrReader) count(limit int) (int, error) {
	n, err := r.uint32()
	if err != nil {
		return 0, err
	}
	if limit > 0 && int(n) > limit {
		return 0, fmt.Errorf("xdr: array length %d exceeds %d", n, limit)
	}
	if int(n) > (len(r.buf)-r.off)/4 {
		return 0, ErrShortBuffer
	}
	return int(n), nil
}

func (r *xdrReader) skip(n int) error {
	_, err := r.take(n)
	return err
}

func (r *xdrReader) present() (bool, error) {
	v, err := r.uint32()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("xdr: invalid optional flag %d", v)
	}
}

func (r *xdrReader) muxedAccount() (string, error) {
	typ, err := r.int32()
	if err != nil {
		return "", err
	}
	switch typ {
	case keyTypeEd25519:
	case keyTypeMuxedEd25519:
		if err := r.skip(8); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("%w: account key type %d", ErrUnsupportedType, typ)
	}
	key, err := r.take(32)
	if err != nil {
		return "", err
	}
	return EncodeAccountID([32]byte(key)), nil
}

func (r *xdrReader) accountID() error {
	typ, err := r.int32()
	if err != nil {
		return err
	}
	if typ != keyTypeEd25519 {
		return fmt.Errorf("%w: public key type %d", ErrUnsupportedType, typ)
	}
	return r.skip(32)
}

// transactionV0Body reads the legacy body after its source key.
func (r *xdrReader) transactionV0Body() (int, error) {
	if err := r.skip(4 + 8); err != nil { // fee, seqNum
		return 0, err
	}
	ok, err := r.present()
	if err != nil {
		return 0, err
	}
	if ok {
		if err := r.skip(16); err != nil { // timeBounds
			return 0, err
		}
	}
	if err := r.memo(); err != nil {
		return 0, err
	}
	ops, err := r.operations()
	if err != nil {
		return 0, err
	}
	if ext, err := r.int32(); err != nil {
		return 0, err
	} else if ext != 0 {
		return 0, fmt.Errorf("%w: v0 extension %d", ErrUnsupportedType, ext)
	}
	return ops, nil
}

// transactionBody reads a V1 transaction after its source account.
func (r *xdrReader) transactionBody() (int, error) {
	if err := r.skip(4 + 8); err != nil { // fee, seqNum
		return 0, err
	}
	if err := r.preconditions(); err != nil {
		return 0, err
	}
	if err := r.memo(); err != nil {
		return 0, err
	}
	ops, err := r.operations()
	if err != nil {
		return 0, err
	}

	ext, err := r.int32()
	if err != nil {
		return 0, err
	}
	switch ext {
	case 0:
	case 1:
		if err := r.sorobanData(); err != nil {
			return 0, err
		}
	default:
		return 0, fmt.Errorf("%w: transaction extension %d", ErrUnsupportedType, ext)
	}
	return ops, nil
}

func (r *xdrReader) preconditions() error {
	typ, err := r.int32()
	if err != nil {
		return err
	}
	switch typ {
	case 0:
		return nil
	case 1:
		return r.skip(16)
	case 2:
	default:
		return fmt.Errorf("%w: precondition type %d", ErrUnsupportedType, typ)
	}

	// PreconditionsV2: optional time bounds, ledger bounds and min seq num
	for _, size := range []int{16, 8, 8} {
		ok, err := r.present()
		if err != nil {
			return err
		}
		if ok {
			if err := r.skip(size); err != nil {
				return err
			}
		}
	}
	if err := r.skip(8 + 4); err != nil { // minSeqAge, minSeqLedgerGap
		return err
	}
	n, err := r.count(2)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		kind, err := r.int32()
		if err != nil {
			return err
		}
		switch kind {
		case 0, 1, 2:
			err = r.skip(32)
		case 3:
			if err = r.skip(32); err == nil {
				_, err = r.opaque()
			}
		default:
			err = fmt.Errorf("%w: signer key type %d", ErrUnsupportedType, kind)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *xdrReader) memo() error {
	typ, err := r.int32()
	if err != nil {
		return err
	}
	switch typ {
	case 0:
		return nil
	case 1:
		_, err = r.opaque()
		return err
	case 2:
		return r.skip(8)
	case 3, 4:
		return r.skip(32)
	default:
		return fmt.Errorf("%w: memo type %d", ErrUnsupportedType, typ)
	}
}

func (r *xdrReader) operations() (int, error) {
	n, err := r.count(maxOperations)
	if err != nil {
		return 0, err
	}
	for i := 0; i < n; i++ {
		ok, err := r.present()
		if err != nil {
			return 0, err
		}
		if ok {
			if _, err := r.muxedAccount(); err != nil {
				return 0, err
			}
		}
		typ, err := r.int32()
		if err != nil {
			return 0, err
		}
		if typ != opInvokeHostFunction {
			return 0, fmt.Errorf("%w: operation type %d", ErrUnsupportedType, typ)
		}
		if err := r.invokeHostFunction(); err != nil {
			return 0, err
		}
	}
	return n, nil
}

func (r *xdrReader) invokeHostFunction() error {
	fn, err := r.int32()
	if err != nil {
		return err
	}
	if fn != hostFnInvokeContract {
		return fmt.Errorf("%w: host function %d", ErrUnsupportedType, fn)
	}
	if err := r.invokeContractArgs(); err != nil {
		return err
	}

	n, err := r.count(0)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := r.authorizationEntry(); err != nil {
			return err
		}
	}
	return nil
}

func (r *xdrReader) invokeContractArgs() error {
	if _, err := r.address(); err != nil {
		return err
	}
	if _, err := r.opaque(); err != nil { // function name
		return err
	}
	n, err := r.count(0)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if _, err := r.scVal(0); err != nil {
			return err
		}
	}
	return nil
}

func (r *xdrReader) authorizationEntry() error {
	cred, err := r.int32()
	if err != nil {
		return err
	}
	switch cred {
	case 0:
	case 1:
		if _, err := r.address(); err != nil {
			return err
		}
		if err := r.skip(8 + 4); err != nil { // nonce, signature expiration
			return err
		}
		if _, err := r.scVal(0); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: credentials type %d", ErrUnsupportedType, cred)
	}
	return r.authorizedInvocation(0)
}

func (r *xdrReader) authorizedInvocation(depth int) error {
	if depth > maxDepth {
		return errors.New("xdr: invocation nested too deeply")
	}
	fn, err := r.int32()
	if err != nil {
		return err
	}
	if fn != authorizedFnContract {
		return fmt.Errorf("%w: authorized function %d", ErrUnsupportedType, fn)
	}
	if err := r.invokeContractArgs(); err != nil {
		return err
	}
	n, err := r.count(0)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := r.authorizedInvocation(depth + 1); err != nil {
			return err
		}
	}
	return nil
}

func (r *xdrReader) sorobanData() error {
	ext, err := r.int32()
	if err != nil {
		return err
	}
	switch ext {
	case 0:
	case 1:
		n, err := r.count(0) // archived entry indexes
		if err != nil {
			return err
		}
		if err := r.skip(4 * n); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: soroban data extension %d", ErrUnsupportedType, ext)
	}

	// footprint: read-only then read-write keys
	for range 2 {
		n, err := r.count(0)
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if err := r.ledgerKey(); err != nil {
				return err
			}
		}
	}
	// instructions, disk read bytes, write bytes, resource fee
	return r.skip(4 + 4 + 4 + 8)
}

func (r *xdrReader) ledgerKey() error {
	typ, err := r.int32()
	if err != nil {
		return err
	}
	switch typ {
	case 0: // account
		return r.accountID()
	case 1: // trustline
		if err := r.accountID(); err != nil {
			return err
		}
		asset, err := r.int32()
		if err != nil {
			return err
		}
		switch asset {
		case 0:
			return nil
		case 1:
			if err := r.skip(4); err != nil {
				return err
			}
			return r.accountID()
		case 2:
			if err := r.skip(12); err != nil {
				return err
			}
			return r.accountID()
		case 3:
			return r.skip(32)
		default:
			return fmt.Errorf("%w: asset type %d", ErrUnsupportedType, asset)
		}
	case ledgerEntryContractData:
		if _, err := r.address(); err != nil {
			return err
		}
		if _, err := r.scVal(0); err != nil {
			return err
		}
		return r.skip(4) // durability
	case 7, 9: // contract code, ttl
		return r.skip(32)
	default:
		return fmt.Errorf("%w: ledger key type %d", ErrUnsupportedType, typ)
	}
}

func (r *xdrReader) decoratedSignatures() (int, error) {
	n, err := r.count(maxSignatures)
	if err != nil {
		return 0, err
	}
	for i := 0; i < n; i++ {
		if err := r.skip(4); err != nil { // hint
			return 0, err
		}
		sig, err := r.opaque()
		if err != nil {
			return 0, err
		}
		if len(sig) > 64 {
			return 0, fmt.Errorf("xdr: signature length %d", len(sig))
		}
	}
	return n, nil
}
