package repchain

import (
	"fmt"
	"math/big"
)

// Bounds enforced by ComputeSealHash. They mirror the on-chain program's
// limits; inputs over a limit are rejected, never truncated or clamped.
const (
	// MaxTagLen bounds Tag1 and Tag2, in UTF-8 bytes.
	MaxTagLen = 32
	// MaxTextLen bounds Endpoint and FeedbackURI, in UTF-8 bytes.
	MaxTextLen = 250
	// MaxValueDecimals bounds the fixed-point scale of Value.
	MaxValueDecimals = 18
	// MaxScore bounds the optional score.
	MaxScore = 100
)

var (
	minSealValue = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	maxSealValue = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))

	// two128 converts a negative value to its two's-complement residue.
	two128 = new(big.Int).Lsh(big.NewInt(1), 128)
)

// SealParams is the semantic content of one feedback event. ComputeSealHash
// fingerprints this content alone; binding the fingerprint to a chain
// position is the leaf encoders' job.
type SealParams struct {
	// Value is the feedback value, a signed integer scaled by ValueDecimals.
	// Required; must fit a 128-bit two's-complement integer.
	Value *big.Int
	// ValueDecimals is the fixed-point decimal scale of Value, 0 to 18.
	ValueDecimals uint8
	// Score is an optional rating from 0 to 100. nil means absent, which
	// encodes differently from any present score.
	Score *int
	// Tag1 and Tag2 are short free-text labels, at most 32 UTF-8 bytes each.
	Tag1 string
	Tag2 string
	// Endpoint locates the rated service; FeedbackURI locates the off-chain
	// feedback document. At most 250 UTF-8 bytes each.
	Endpoint    string
	FeedbackURI string
	// FileHash is the optional 32-byte digest of an off-chain content blob.
	// nil means absent, which encodes differently from any present hash.
	FileHash []byte
}

// ComputeSealHash canonically encodes params and returns the Keccak-256
// digest of the encoding. The function is pure: identical params always
// produce the identical digest.
//
// Bounds are checked in a fixed order before any byte is hashed: tag1,
// tag2, endpoint, feedback_uri, value_decimals, score, value,
// feedback_file_hash. A violation returns ErrInvalidLength or
// ErrInvalidRange naming the field.
func ComputeSealHash(params SealParams) (Hash, error) {
	if err := params.validate(); err != nil {
		return Hash{}, err
	}
	return keccak256(params.encode()), nil
}

func (p *SealParams) validate() error {
	if n := len(p.Tag1); n > MaxTagLen {
		return errMaxLen("tag1", MaxTagLen, n)
	}
	if n := len(p.Tag2); n > MaxTagLen {
		return errMaxLen("tag2", MaxTagLen, n)
	}
	if n := len(p.Endpoint); n > MaxTextLen {
		return errMaxLen("endpoint", MaxTextLen, n)
	}
	if n := len(p.FeedbackURI); n > MaxTextLen {
		return errMaxLen("feedback_uri", MaxTextLen, n)
	}
	if p.ValueDecimals > MaxValueDecimals {
		return errRange("value_decimals", 0, MaxValueDecimals, int(p.ValueDecimals))
	}
	if p.Score != nil && (*p.Score < 0 || *p.Score > MaxScore) {
		return errRange("score", 0, MaxScore, *p.Score)
	}
	if p.Value == nil {
		return fmt.Errorf("%w: value is required", ErrInvalidRange)
	}
	if p.Value.Cmp(minSealValue) < 0 || p.Value.Cmp(maxSealValue) > 0 {
		return fmt.Errorf("%w: value must fit a 128-bit two's-complement integer", ErrInvalidRange)
	}
	if p.FileHash != nil {
		if n := len(p.FileHash); n != HashSize {
			return errExactLen("feedback_file_hash", HashSize, n)
		}
	}
	return nil
}

// encode produces the canonical preimage. p must already be validated.
func (p *SealParams) encode() []byte {
	buf := make([]byte, 0, p.preimageSize())
	buf = append(buf, DomainSeal...)
	buf = appendInt128LE(buf, p.Value)
	buf = append(buf, p.ValueDecimals)
	if p.Score != nil {
		buf = append(buf, 1, byte(*p.Score))
	} else {
		buf = append(buf, 0, 0)
	}
	if p.FileHash != nil {
		buf = append(buf, 1)
		buf = append(buf, p.FileHash...)
	} else {
		buf = append(buf, 0)
	}
	for _, s := range []string{p.Tag1, p.Tag2, p.Endpoint, p.FeedbackURI} {
		buf = appendLenPrefixed(buf, s)
	}
	return buf
}

func (p *SealParams) preimageSize() int {
	n := len(DomainSeal) + 16 + 1 + 2 + 1
	if p.FileHash != nil {
		n += HashSize
	}
	n += 2 + len(p.Tag1) + 2 + len(p.Tag2) + 2 + len(p.Endpoint) + 2 + len(p.FeedbackURI)
	return n
}

// appendInt128LE appends v as a 16-byte little-endian two's-complement
// integer. v must already be range-checked to fit i128.
func appendInt128LE(buf []byte, v *big.Int) []byte {
	tc := v
	if v.Sign() < 0 {
		tc = new(big.Int).Add(two128, v)
	}
	var be [16]byte
	tc.FillBytes(be[:])
	for i := len(be) - 1; i >= 0; i-- {
		buf = append(buf, be[i])
	}
	return buf
}

// appendLenPrefixed appends a 2-byte little-endian byte count followed by
// the UTF-8 bytes of s.
func appendLenPrefixed(buf []byte, s string) []byte {
	buf = append(buf, byte(len(s)), byte(len(s)>>8))
	return append(buf, s...)
}
