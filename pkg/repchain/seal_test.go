package repchain_test

import (
	"bytes"
	"errors"
	"math/big"
	"strings"
	"testing"

	"golang.org/x/crypto/sha3"

	"github.com/probitylabs/sealchain/pkg/repchain"
)

// keccak is an independent reference hash for layout tests.
func keccak(t *testing.T, sections ...[]byte) []byte {
	t.Helper()
	d := sha3.NewLegacyKeccak256()
	for _, s := range sections {
		d.Write(s)
	}
	return d.Sum(nil)
}

func intPtr(v int) *int { return &v }

func mustSealHash(t *testing.T, p repchain.SealParams) repchain.Hash {
	t.Helper()
	h, err := repchain.ComputeSealHash(p)
	if err != nil {
		t.Fatalf("ComputeSealHash: %v", err)
	}
	return h
}

func TestComputeSealHashDeterminism(t *testing.T) {
	params := repchain.SealParams{
		Value:         big.NewInt(2_500_000),
		ValueDecimals: 6,
		Score:         intPtr(97),
		Tag1:          "uptime",
		Tag2:          "latency",
		Endpoint:      "https://api.example.com/v2",
		FeedbackURI:   "ipfs://bafybeigdyrzt5example/feedback.json",
		FileHash:      bytes.Repeat([]byte{0xAB}, 32),
	}

	first := mustSealHash(t, params)
	second := mustSealHash(t, params)
	if first != second {
		t.Fatalf("same params hashed differently: %s vs %s", first, second)
	}

	// A structurally fresh copy must also agree: nothing about identity or
	// allocation may leak into the digest.
	copyParams := repchain.SealParams{
		Value:         new(big.Int).Set(params.Value),
		ValueDecimals: 6,
		Score:         intPtr(97),
		Tag1:          "uptime",
		Tag2:          "latency",
		Endpoint:      "https://api.example.com/v2",
		FeedbackURI:   "ipfs://bafybeigdyrzt5example/feedback.json",
		FileHash:      bytes.Repeat([]byte{0xAB}, 32),
	}
	third := mustSealHash(t, copyParams)
	if first != third {
		t.Fatalf("equivalent params hashed differently: %s vs %s", first, third)
	}
}

// TestComputeSealHashLayoutFull recomputes the digest from the documented
// byte layout with every optional field present, including the
// two's-complement encoding of a negative value (-1 is all 0xFF).
func TestComputeSealHashLayoutFull(t *testing.T) {
	fileHash := bytes.Repeat([]byte{0xCD}, 32)
	params := repchain.SealParams{
		Value:         big.NewInt(-1),
		ValueDecimals: 9,
		Score:         intPtr(42),
		Tag1:          "quality",
		Tag2:          "eu-west",
		Endpoint:      "https://svc.example.org",
		FeedbackURI:   "ar://tx/9fk2",
		FileHash:      fileHash,
	}

	var preimage []byte
	preimage = append(preimage, "8004_SEAL_V1____"...)
	preimage = append(preimage, bytes.Repeat([]byte{0xFF}, 16)...) // -1 as LE i128
	preimage = append(preimage, 9)                                 // value_decimals
	preimage = append(preimage, 1, 42)                             // score present
	preimage = append(preimage, 1)                                 // file hash present
	preimage = append(preimage, fileHash...)
	for _, s := range []string{"quality", "eu-west", "https://svc.example.org", "ar://tx/9fk2"} {
		preimage = append(preimage, byte(len(s)), 0)
		preimage = append(preimage, s...)
	}

	want := keccak(t, preimage)
	got := mustSealHash(t, params)
	if !bytes.Equal(got.Bytes(), want) {
		t.Fatalf("digest does not match reference layout:\n got %x\nwant %x", got.Bytes(), want)
	}
}

// TestComputeSealHashLayoutMinimal covers the absent encodings: score [0,0],
// file-hash flag 0, and zero-length strings that still carry their length
// prefixes.
func TestComputeSealHashLayoutMinimal(t *testing.T) {
	params := repchain.SealParams{Value: big.NewInt(1)}

	var preimage []byte
	preimage = append(preimage, "8004_SEAL_V1____"...)
	preimage = append(preimage, 1)
	preimage = append(preimage, make([]byte, 15)...) // 1 as LE i128
	preimage = append(preimage, 0)                   // value_decimals
	preimage = append(preimage, 0, 0)                // score absent
	preimage = append(preimage, 0)                   // file hash absent
	for i := 0; i < 4; i++ {
		preimage = append(preimage, 0, 0) // empty tag1, tag2, endpoint, feedback_uri
	}

	want := keccak(t, preimage)
	got := mustSealHash(t, params)
	if !bytes.Equal(got.Bytes(), want) {
		t.Fatalf("digest does not match reference layout:\n got %x\nwant %x", got.Bytes(), want)
	}
}

func TestComputeSealHashSensitivity(t *testing.T) {
	base := repchain.SealParams{
		Value:         big.NewInt(1000),
		ValueDecimals: 2,
		Score:         intPtr(50),
		Tag1:          "alpha",
		Tag2:          "beta",
		Endpoint:      "https://a.example.com",
		FeedbackURI:   "https://a.example.com/fb/1",
	}
	baseHash := mustSealHash(t, base)

	tests := []struct {
		name   string
		mutate func(p *repchain.SealParams)
	}{
		{"value magnitude", func(p *repchain.SealParams) { p.Value = big.NewInt(1001) }},
		{"value sign", func(p *repchain.SealParams) { p.Value = big.NewInt(-1000) }},
		{"value decimals", func(p *repchain.SealParams) { p.ValueDecimals = 3 }},
		{"score value", func(p *repchain.SealParams) { p.Score = intPtr(51) }},
		{"score absent", func(p *repchain.SealParams) { p.Score = nil }},
		{"tag1 one byte", func(p *repchain.SealParams) { p.Tag1 = "alphb" }},
		{"tag2 longer", func(p *repchain.SealParams) { p.Tag2 = "betaa" }},
		{"endpoint", func(p *repchain.SealParams) { p.Endpoint = "https://b.example.com" }},
		{"feedback uri", func(p *repchain.SealParams) { p.FeedbackURI = "https://a.example.com/fb/2" }},
		{"file hash present", func(p *repchain.SealParams) { p.FileHash = make([]byte, 32) }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mutated := base
			tc.mutate(&mutated)
			got := mustSealHash(t, mutated)
			if got == baseHash {
				t.Errorf("mutating %s did not change the seal hash", tc.name)
			}
		})
	}
}

// Score zero must be distinguishable from score absent: the encodings are
// [1,0] and [0,0].
func TestComputeSealHashScoreZeroVsAbsent(t *testing.T) {
	withZero := repchain.SealParams{Value: big.NewInt(7), Score: intPtr(0)}
	absent := repchain.SealParams{Value: big.NewInt(7)}
	if mustSealHash(t, withZero) == mustSealHash(t, absent) {
		t.Fatal("score=0 and score absent produced the same seal hash")
	}
}

func TestComputeSealHashBounds(t *testing.T) {
	valid := func() repchain.SealParams {
		return repchain.SealParams{Value: big.NewInt(1)}
	}

	maxI128 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minI128 := new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))

	tests := []struct {
		name    string
		mutate  func(p *repchain.SealParams)
		wantErr error  // nil means the params must be accepted
		field   string // substring the error must name
	}{
		{"tag1 at limit", func(p *repchain.SealParams) { p.Tag1 = strings.Repeat("a", 32) }, nil, ""},
		{"tag1 over limit", func(p *repchain.SealParams) { p.Tag1 = strings.Repeat("a", 33) }, repchain.ErrInvalidLength, "tag1"},
		{"tag1 multibyte over limit", func(p *repchain.SealParams) { p.Tag1 = strings.Repeat("é", 17) }, repchain.ErrInvalidLength, "tag1"},
		{"tag2 over limit", func(p *repchain.SealParams) { p.Tag2 = strings.Repeat("b", 33) }, repchain.ErrInvalidLength, "tag2"},
		{"endpoint at limit", func(p *repchain.SealParams) { p.Endpoint = strings.Repeat("e", 250) }, nil, ""},
		{"endpoint over limit", func(p *repchain.SealParams) { p.Endpoint = strings.Repeat("e", 251) }, repchain.ErrInvalidLength, "endpoint"},
		{"feedback_uri over limit", func(p *repchain.SealParams) { p.FeedbackURI = strings.Repeat("u", 251) }, repchain.ErrInvalidLength, "feedback_uri"},
		{"decimals at limit", func(p *repchain.SealParams) { p.ValueDecimals = 18 }, nil, ""},
		{"decimals over limit", func(p *repchain.SealParams) { p.ValueDecimals = 19 }, repchain.ErrInvalidRange, "value_decimals"},
		{"score zero", func(p *repchain.SealParams) { p.Score = intPtr(0) }, nil, ""},
		{"score at limit", func(p *repchain.SealParams) { p.Score = intPtr(100) }, nil, ""},
		{"score over limit", func(p *repchain.SealParams) { p.Score = intPtr(101) }, repchain.ErrInvalidRange, "score"},
		{"score negative", func(p *repchain.SealParams) { p.Score = intPtr(-1) }, repchain.ErrInvalidRange, "score"},
		{"value nil", func(p *repchain.SealParams) { p.Value = nil }, repchain.ErrInvalidRange, "value"},
		{"value at max", func(p *repchain.SealParams) { p.Value = new(big.Int).Set(maxI128) }, nil, ""},
		{"value over max", func(p *repchain.SealParams) { p.Value = new(big.Int).Add(maxI128, big.NewInt(1)) }, repchain.ErrInvalidRange, "value"},
		{"value at min", func(p *repchain.SealParams) { p.Value = new(big.Int).Set(minI128) }, nil, ""},
		{"value under min", func(p *repchain.SealParams) { p.Value = new(big.Int).Sub(minI128, big.NewInt(1)) }, repchain.ErrInvalidRange, "value"},
		{"file hash short", func(p *repchain.SealParams) { p.FileHash = make([]byte, 31) }, repchain.ErrInvalidLength, "feedback_file_hash"},
		{"file hash long", func(p *repchain.SealParams) { p.FileHash = make([]byte, 33) }, repchain.ErrInvalidLength, "feedback_file_hash"},
		{"file hash exact", func(p *repchain.SealParams) { p.FileHash = make([]byte, 32) }, nil, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			params := valid()
			tc.mutate(&params)
			_, err := repchain.ComputeSealHash(params)

			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("got error %v, want %v", err, tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.field) {
				t.Errorf("error %q does not name field %q", err, tc.field)
			}
		})
	}
}

// Validation runs in a fixed order; an invalid tag must be reported even
// when later fields are also invalid.
func TestComputeSealHashValidationOrder(t *testing.T) {
	params := repchain.SealParams{
		Value: big.NewInt(1),
		Tag1:  strings.Repeat("x", 33),
		Score: intPtr(200),
	}
	_, err := repchain.ComputeSealHash(params)
	if !errors.Is(err, repchain.ErrInvalidLength) {
		t.Fatalf("got %v, want ErrInvalidLength for tag1", err)
	}
	if !strings.Contains(err.Error(), "tag1") {
		t.Fatalf("error %q should name tag1, not a later field", err)
	}
}
