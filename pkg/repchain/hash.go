package repchain

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"
)

const (
	// HashSize is the byte length of every digest produced by this package.
	HashSize = 32

	// KeySize is the byte length of on-chain account keys (asset, client,
	// responder).
	KeySize = 32
)

// Hash is a 32-byte Keccak-256 digest.
type Hash [HashSize]byte

// NewHash builds a Hash from a byte slice, validating the exact length.
// The input is copied; the caller keeps ownership of b.
func NewHash(b []byte) (Hash, error) {
	if n := len(b); n != HashSize {
		return Hash{}, errExactLen("digest", HashSize, n)
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

// ParseHash decodes a hex-encoded 32-byte digest.
func ParseHash(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("repchain: parse digest: %w", err)
	}
	return NewHash(b)
}

// Hex returns the lowercase hex encoding of the digest.
func (h Hash) Hex() string { return hex.EncodeToString(h[:]) }

// String implements fmt.Stringer.
func (h Hash) String() string { return h.Hex() }

// Bytes returns the digest as a fresh byte slice.
func (h Hash) Bytes() []byte {
	b := make([]byte, HashSize)
	copy(b, h[:])
	return b
}

// IsZero reports whether the digest is all zero bytes, the genesis digest
// of every chain.
func (h Hash) IsZero() bool { return h == Hash{} }

// MarshalText implements encoding.TextMarshaler; the digest renders as hex.
func (h Hash) MarshalText() ([]byte, error) { return []byte(h.Hex()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// keccak256 hashes the given sections in order with legacy Keccak-256, the
// variant the on-chain program uses (not the padded NIST SHA-3).
func keccak256(sections ...[]byte) Hash {
	d := sha3.NewLegacyKeccak256()
	for _, s := range sections {
		d.Write(s)
	}
	var h Hash
	d.Sum(h[:0])
	return h
}
