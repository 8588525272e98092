package soroban

import (
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
)

// Strkey version bytes.
const (
	versionAccountID byte = 6 << 3 // G...
	versionContract  byte = 2 << 3 // C...
)

var (
	ErrInvalidStrkey = errors.New("invalid strkey")

	b32 = base32.StdEncoding.WithPadding(base32.NoPadding)
)

// EncodeAccountID renders an ed25519 public key as a G... address.
func EncodeAccountID(pub [32]byte) string {
	return encodeStrkey(versionAccountID, pub[:])
}

// EncodeContractID renders a contract hash as a C... address.
func EncodeContractID(id [32]byte) string {
	return encodeStrkey(versionContract, id[:])
}

// DecodeAccountID parses a G... address into its ed25519 public key.
func DecodeAccountID(s string) ([32]byte, error) {
	return decodeStrkey(versionAccountID, s)
}

// DecodeContractID parses a C... address into its contract hash.
func DecodeContractID(s string) ([32]byte, error) {
	return decodeStrkey(versionContract, s)
}

// IsAccountID reports whether s is a well-formed G... address.
func IsAccountID(s string) bool {
	_, err := DecodeAccountID(s)
	return err == nil
}

func encodeStrkey(version byte, payload []byte) string {
	raw := make([]byte, 0, 1+len(payload)+2)
	raw = append(raw, version)
	raw = append(raw, payload...)
	raw = binary.LittleEndian.AppendUint16(raw, crc16XModem(raw))
	return b32.EncodeToString(raw)
}

func decodeStrkey(version byte, s string) ([32]byte, error) {
	var out [32]byte
	if len(s) != 56 {
		return out, fmt.Errorf("%w: length %d", ErrInvalidStrkey, len(s))
	}
	raw, err := b32.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidStrkey, err)
	}
	if len(raw) != 35 {
		return out, fmt.Errorf("%w: decoded length %d", ErrInvalidStrkey, len(raw))
	}
	if raw[0] != version {
		return out, fmt.Errorf("%w: unexpected version byte %d", ErrInvalidStrkey, raw[0])
	}
	body, sum := raw[:33], binary.LittleEndian.Uint16(raw[33:])
	if crc16XModem(body) != sum {
		return out, fmt.Errorf("%w: checksum mismatch", ErrInvalidStrkey)
	}
	copy(out[:], body[1:])
	return out, nil
}

func crc16XModem(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
