// Package domain defines the identifier space, ring pointers, and
// stored-record types shared by every other package in the node.
package domain

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ErrInvalidID is returned when a byte slice cannot be interpreted as a
// valid identifier in a given Space.
var ErrInvalidID = errors.New("invalid id")

// Space describes the identifier space of the ring: 2^Bits identifiers,
// encoded big-endian in ByteLen bytes.
type Space struct {
	Bits    int
	ByteLen int
}

// NewSpace builds a Space of the given bit width.
func NewSpace(bits int) (Space, error) {
	if bits <= 0 {
		return Space{}, fmt.Errorf("invalid identifier bits: %d (must be > 0)", bits)
	}
	return Space{Bits: bits, ByteLen: (bits + 7) / 8}, nil
}

// ID is a big-endian encoded identifier in a Space's ring.
type ID []byte

// Zero returns the all-zero identifier for this space.
func (sp Space) Zero() ID {
	return make(ID, sp.ByteLen)
}

// NewIDFromString hashes s with SHA-1 and truncates/masks it down to the
// configured space, per spec.md's id = SHA1(s) mod 2^Bits.
func (sp Space) NewIDFromString(s string) ID {
	h := sha1.Sum([]byte(s))

	buf := make([]byte, sp.ByteLen)
	copy(buf, h[:sp.ByteLen])

	extraBits := sp.ByteLen*8 - sp.Bits
	if extraBits > 0 {
		mask := byte(0xFF >> extraBits)
		buf[0] &= mask
	}
	return buf
}

// IsValidID reports whether id has the right length and no stray bits set
// above sp.Bits.
func (sp Space) IsValidID(id []byte) error {
	if len(id) != sp.ByteLen {
		return ErrInvalidID
	}
	extraBits := sp.ByteLen*8 - sp.Bits
	if extraBits > 0 {
		mask := byte(0xFF << (8 - extraBits))
		if id[0]&mask != 0 {
			return ErrInvalidID
		}
	}
	return nil
}

// String returns the lowercase hex form of the identifier, "<nil>" for a
// nil ID. Used as the canonical map key and log field form throughout.
func (x ID) String() string {
	if x == nil {
		return "<nil>"
	}
	return hex.EncodeToString(x)
}

// ToHexString returns the hex form of the identifier, optionally prefixed
// with "0x" for human-facing output.
func (x ID) ToHexString(prefix bool) string {
	if x == nil {
		return "<nil>"
	}
	if prefix {
		return "0x" + hex.EncodeToString(x)
	}
	return hex.EncodeToString(x)
}

// ToBigInt interprets x as a big-endian unsigned integer.
func (x ID) ToBigInt() *big.Int {
	if x == nil {
		return nil
	}
	return new(big.Int).SetBytes(x)
}

// FromHexString parses a hex string (optionally "0x"-prefixed) into an ID,
// rejecting values that exceed the space or carry non-zero padding.
func (sp Space) FromHexString(s string) (ID, error) {
	str := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if str == "" {
		return nil, fmt.Errorf("invalid hex string: empty input")
	}

	bt, err := hex.DecodeString(str)
	if err != nil {
		return nil, fmt.Errorf("invalid hex string %q: %w", s, err)
	}

	if len(bt) > sp.ByteLen {
		leading := bt[:len(bt)-sp.ByteLen]
		for _, b := range leading {
			if b != 0 {
				return nil, fmt.Errorf("value exceeds %d-bit space (non-zero leading bytes)", sp.Bits)
			}
		}
		bt = bt[len(bt)-sp.ByteLen:]
	}

	id := make(ID, sp.ByteLen)
	copy(id[sp.ByteLen-len(bt):], bt)

	extraBits := sp.ByteLen*8 - sp.Bits
	if extraBits > 0 {
		topMask := byte(0xFF << (8 - extraBits))
		if id[0]&topMask != 0 {
			return nil, fmt.Errorf("value exceeds %d-bit space (non-zero in top %d unused bits)", sp.Bits, extraBits)
		}
	}

	return id, nil
}

// Cmp compares two identifiers as unsigned big-endian integers.
func (x ID) Cmp(b ID) int {
	return bytes.Compare(x, b)
}

// Equal reports whether x and b hold the same identifier.
func (x ID) Equal(b ID) bool {
	return bytes.Equal(x, b)
}

// Between reports whether x lies in the circular interval (a, b].
//
// If a == b the interval covers the whole ring (used when a node is
// alone and owns every key). Otherwise it's the usual Chord arc test,
// wrapping past the top of the ring when a > b.
func (x ID) Between(a, b ID) bool {
	acmp := a.Cmp(x)
	xbcmp := x.Cmp(b)
	abcmp := a.Cmp(b)

	if abcmp == 0 {
		return true
	}
	if abcmp < 0 {
		return acmp < 0 && xbcmp <= 0
	}
	return acmp < 0 || xbcmp <= 0
}
