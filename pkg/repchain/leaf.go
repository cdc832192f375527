package repchain

import "encoding/binary"

// The three event types below are the leaf variants of the protocol: each
// binds content hashes to immutable position (asset, client, index, slot)
// under its own domain separator, so a leaf computed for one chain kind can
// never be replayed as a leaf of another.
//
// All multi-byte integers are encoded little-endian; all key and hash
// fields must be exactly 32 bytes.

// FeedbackEvent is one observed feedback append.
//
// StoredDigest optionally carries the running chain digest the event source
// recorded after this event; the replayers compare it byte-for-byte against
// the recomputed digest. nil disables the comparison for this event.
type FeedbackEvent struct {
	Asset         []byte
	Client        []byte
	FeedbackIndex uint64
	SealHash      []byte
	Slot          uint64
	StoredDigest  []byte
}

// ResponseEvent is one observed response to an earlier feedback event.
type ResponseEvent struct {
	Asset         []byte
	Client        []byte
	FeedbackIndex uint64
	Responder     []byte
	ResponseHash  []byte
	FeedbackHash  []byte
	Slot          uint64
	StoredDigest  []byte
}

// RevokeEvent is one observed revocation of an earlier feedback event.
type RevokeEvent struct {
	Asset         []byte
	Client        []byte
	FeedbackIndex uint64
	FeedbackHash  []byte
	Slot          uint64
	StoredDigest  []byte
}

// ComputeFeedbackLeaf binds a seal hash to its position on the feedback
// chain. Every fixed-length field is validated before hashing; a wrong size
// returns ErrInvalidLength naming the field.
func ComputeFeedbackLeaf(asset, client []byte, feedbackIndex uint64, sealHash []byte, slot uint64) (Hash, error) {
	ev := FeedbackEvent{Asset: asset, Client: client, FeedbackIndex: feedbackIndex, SealHash: sealHash, Slot: slot}
	return ev.LeafHash()
}

// ComputeResponseLeaf binds a response hash, together with the feedback
// hash it answers, to its position on the response chain.
func ComputeResponseLeaf(asset, client []byte, feedbackIndex uint64, responder, responseHash, feedbackHash []byte, slot uint64) (Hash, error) {
	ev := ResponseEvent{
		Asset:         asset,
		Client:        client,
		FeedbackIndex: feedbackIndex,
		Responder:     responder,
		ResponseHash:  responseHash,
		FeedbackHash:  feedbackHash,
		Slot:          slot,
	}
	return ev.LeafHash()
}

// ComputeRevokeLeaf binds the hash of the feedback being revoked to its
// position on the revoke chain.
func ComputeRevokeLeaf(asset, client []byte, feedbackIndex uint64, feedbackHash []byte, slot uint64) (Hash, error) {
	ev := RevokeEvent{Asset: asset, Client: client, FeedbackIndex: feedbackIndex, FeedbackHash: feedbackHash, Slot: slot}
	return ev.LeafHash()
}

// LeafHash validates the event's fixed-length fields and returns its
// domain-separated leaf digest.
func (e FeedbackEvent) LeafHash() (Hash, error) {
	if err := e.validate(); err != nil {
		return Hash{}, err
	}
	return e.leaf(), nil
}

// LeafHash validates the event's fixed-length fields and returns its
// domain-separated leaf digest.
func (e ResponseEvent) LeafHash() (Hash, error) {
	if err := e.validate(); err != nil {
		return Hash{}, err
	}
	return e.leaf(), nil
}

// LeafHash validates the event's fixed-length fields and returns its
// domain-separated leaf digest.
func (e RevokeEvent) LeafHash() (Hash, error) {
	if err := e.validate(); err != nil {
		return Hash{}, err
	}
	return e.leaf(), nil
}

func (e FeedbackEvent) validate() error {
	if n := len(e.Asset); n != KeySize {
		return errExactLen("asset", KeySize, n)
	}
	if n := len(e.Client); n != KeySize {
		return errExactLen("client", KeySize, n)
	}
	if n := len(e.SealHash); n != HashSize {
		return errExactLen("seal_hash", HashSize, n)
	}
	return nil
}

func (e ResponseEvent) validate() error {
	if n := len(e.Asset); n != KeySize {
		return errExactLen("asset", KeySize, n)
	}
	if n := len(e.Client); n != KeySize {
		return errExactLen("client", KeySize, n)
	}
	if n := len(e.Responder); n != KeySize {
		return errExactLen("responder", KeySize, n)
	}
	if n := len(e.ResponseHash); n != HashSize {
		return errExactLen("response_hash", HashSize, n)
	}
	if n := len(e.FeedbackHash); n != HashSize {
		return errExactLen("feedback_hash", HashSize, n)
	}
	return nil
}

func (e RevokeEvent) validate() error {
	if n := len(e.Asset); n != KeySize {
		return errExactLen("asset", KeySize, n)
	}
	if n := len(e.Client); n != KeySize {
		return errExactLen("client", KeySize, n)
	}
	if n := len(e.FeedbackHash); n != HashSize {
		return errExactLen("feedback_hash", HashSize, n)
	}
	return nil
}

// leaf computes the digest without validating; the event must have passed
// validate first.
func (e FeedbackEvent) leaf() Hash {
	buf := make([]byte, 0, len(DomainFeedbackLeaf)+2*KeySize+8+HashSize+8)
	buf = append(buf, DomainFeedbackLeaf...)
	buf = append(buf, e.Asset...)
	buf = append(buf, e.Client...)
	buf = binary.LittleEndian.AppendUint64(buf, e.FeedbackIndex)
	buf = append(buf, e.SealHash...)
	buf = binary.LittleEndian.AppendUint64(buf, e.Slot)
	return keccak256(buf)
}

func (e ResponseEvent) leaf() Hash {
	buf := make([]byte, 0, len(DomainResponseLeaf)+3*KeySize+8+2*HashSize+8)
	buf = append(buf, DomainResponseLeaf...)
	buf = append(buf, e.Asset...)
	buf = append(buf, e.Client...)
	buf = binary.LittleEndian.AppendUint64(buf, e.FeedbackIndex)
	buf = append(buf, e.Responder...)
	buf = append(buf, e.ResponseHash...)
	buf = append(buf, e.FeedbackHash...)
	buf = binary.LittleEndian.AppendUint64(buf, e.Slot)
	return keccak256(buf)
}

func (e RevokeEvent) leaf() Hash {
	buf := make([]byte, 0, len(DomainRevokeLeaf)+2*KeySize+8+HashSize+8)
	buf = append(buf, DomainRevokeLeaf...)
	buf = append(buf, e.Asset...)
	buf = append(buf, e.Client...)
	buf = binary.LittleEndian.AppendUint64(buf, e.FeedbackIndex)
	buf = append(buf, e.FeedbackHash...)
	buf = binary.LittleEndian.AppendUint64(buf, e.Slot)
	return keccak256(buf)
}

// stored exposes StoredDigest through the unexported event interface used
// by the replayers.
func (e FeedbackEvent) stored() []byte { return e.StoredDigest }
func (e ResponseEvent) stored() []byte { return e.StoredDigest }
func (e RevokeEvent) stored() []byte   { return e.StoredDigest }
