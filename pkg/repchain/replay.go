package repchain

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// ReplayResult is the outcome of one replay call.
//
// A digest mismatch is a normal result (Valid=false), not an error: the
// replay itself succeeded and is reporting what it found. Treating an
// invalid chain as exceptional is a policy decision left to the caller.
type ReplayResult struct {
	// FinalDigest is the digest after the last folded event; on a mismatch
	// it is the digest computed at the point of divergence.
	FinalDigest Hash `json:"final_digest"`
	// Count is the chain count where the replay stopped: the start count
	// plus every folded event.
	Count uint64 `json:"count"`
	// Valid is false when a stored digest disagreed with the computed one.
	Valid bool `json:"valid"`
	// MismatchAt is the index into the supplied event list of the first
	// divergent event, or -1 when Valid.
	MismatchAt int `json:"mismatch_at"`
	// MismatchExpected and MismatchComputed hold the hex digests at the
	// divergence; both are empty when Valid.
	MismatchExpected string `json:"mismatch_expected,omitempty"`
	MismatchComputed string `json:"mismatch_computed,omitempty"`
}

// ReplayOption adjusts a single replay call.
type ReplayOption func(*replayConfig) error

type replayConfig struct {
	start ChainState
}

// WithCheckpoint starts the replay from a previously verified digest and
// event count instead of the genesis state, so newly appended events can be
// verified without re-hashing the whole history. digest must be exactly 32
// bytes. The checkpoint is an explicit per-call input; replays never share
// state with each other.
func WithCheckpoint(digest []byte, count uint64) ReplayOption {
	return func(cfg *replayConfig) error {
		if n := len(digest); n != HashSize {
			return errExactLen("start_digest", HashSize, n)
		}
		copy(cfg.start.Digest[:], digest)
		cfg.start.Count = count
		return nil
	}
}

// ReplayFeedbackChain folds the events into the feedback chain in the order
// given and reports the first divergence from any stored digest.
//
// Events must be supplied in exact on-chain append order (ordered by slot,
// not by feedback index: indexes are assigned per client and are not
// globally monotonic). Every event is validated before the first fold; a
// malformed event fails the call with no hashing done. After the first
// stored-digest mismatch the replay stops immediately: a break invalidates
// every later digest regardless of how consistent the remaining events look
// with each other.
func ReplayFeedbackChain(events []FeedbackEvent, opts ...ReplayOption) (*ReplayResult, error) {
	return replayChain(ChainFeedback, events, opts)
}

// ReplayResponseChain is ReplayFeedbackChain for the response chain.
func ReplayResponseChain(events []ResponseEvent, opts ...ReplayOption) (*ReplayResult, error) {
	return replayChain(ChainResponse, events, opts)
}

// ReplayRevokeChain is ReplayFeedbackChain for the revoke chain.
func ReplayRevokeChain(events []RevokeEvent, opts ...ReplayOption) (*ReplayResult, error) {
	return replayChain(ChainRevoke, events, opts)
}

// chainEvent is implemented by the three event types. leaf must only be
// called after validate has passed.
type chainEvent interface {
	validate() error
	leaf() Hash
	stored() []byte
}

// replayChain is the single fold shared by the three replayers. The fold is
// strictly sequential: digest i depends on digest i-1, so it must never be
// parallelised. Replays of different chains are independent and need no
// coordination.
func replayChain[E chainEvent](kind ChainKind, events []E, opts []ReplayOption) (*ReplayResult, error) {
	var cfg replayConfig
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	for i := range events {
		if err := events[i].validate(); err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
	}

	state := cfg.start
	for i := range events {
		state = state.Append(kind, events[i].leaf())
		if sd := events[i].stored(); sd != nil && !bytes.Equal(state.Digest[:], sd) {
			return &ReplayResult{
				FinalDigest:      state.Digest,
				Count:            state.Count,
				Valid:            false,
				MismatchAt:       i,
				MismatchExpected: hex.EncodeToString(sd),
				MismatchComputed: state.Digest.Hex(),
			}, nil
		}
	}

	return &ReplayResult{
		FinalDigest: state.Digest,
		Count:       state.Count,
		Valid:       true,
		MismatchAt:  -1,
	}, nil
}
