package repchain

import "fmt"

// ChainHash advances a chain digest by one leaf:
//
//	next = Keccak256(prevDigest ‖ domain ‖ leafHash)
//
// prevDigest and leafHash must be exactly 32 bytes. domain must have one of
// the two lengths used by the chain domains (16 bytes for feedback and
// response, 14 for revoke); the domain bytes themselves are not inspected,
// so callers of this primitive are responsible for supplying the constant
// of the chain they are advancing. ChainState.Append and the replayers
// derive the domain from a ChainKind and cannot get the pairing wrong.
func ChainHash(prevDigest, domain, leafHash []byte) (Hash, error) {
	if n := len(prevDigest); n != HashSize {
		return Hash{}, errExactLen("prev_digest", HashSize, n)
	}
	if n := len(domain); n != len(DomainFeedbackChain) && n != len(DomainRevokeChain) {
		return Hash{}, fmt.Errorf("%w: domain must be %d or %d bytes, got %d",
			ErrInvalidLength, len(DomainFeedbackChain), len(DomainRevokeChain), n)
	}
	if n := len(leafHash); n != HashSize {
		return Hash{}, errExactLen("leaf", HashSize, n)
	}
	return keccak256(prevDigest, domain, leafHash), nil
}

// ChainState is the running state of one chain: the digest after Count
// folded events. States are values; Append returns the successor rather
// than mutating, so a state can be retained as a checkpoint while the fold
// continues.
type ChainState struct {
	Digest Hash   `json:"digest"`
	Count  uint64 `json:"count"`
}

// Genesis returns the start state of every chain: a zero-filled digest and
// a count of zero.
func Genesis() ChainState { return ChainState{} }

// Append folds one leaf into the chain identified by kind and returns the
// successor state.
func (s ChainState) Append(kind ChainKind, leaf Hash) ChainState {
	return ChainState{
		Digest: keccak256(s.Digest[:], kind.Domain(), leaf[:]),
		Count:  s.Count + 1,
	}
}
