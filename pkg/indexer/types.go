package indexer

import (
	"encoding/hex"
	"fmt"

	"github.com/probitylabs/sealchain/pkg/repchain"
)

// FeedbackRecord is the wire form of one NewFeedback event as served by an
// indexer. Byte fields are lowercase hex without a 0x prefix.
type FeedbackRecord struct {
	Asset         string `json:"asset"`
	Client        string `json:"client"`
	FeedbackIndex uint64 `json:"feedback_index"`
	SealHash      string `json:"seal_hash"`
	Slot          uint64 `json:"slot"`
	Digest        string `json:"digest,omitempty"`
}

// ResponseRecord is the wire form of one ResponseAppended event.
type ResponseRecord struct {
	Asset         string `json:"asset"`
	Client        string `json:"client"`
	FeedbackIndex uint64 `json:"feedback_index"`
	Responder     string `json:"responder"`
	ResponseHash  string `json:"response_hash"`
	FeedbackHash  string `json:"feedback_hash"`
	Slot          uint64 `json:"slot"`
	Digest        string `json:"digest,omitempty"`
}

// RevokeRecord is the wire form of one FeedbackRevoked event.
type RevokeRecord struct {
	Asset         string `json:"asset"`
	Client        string `json:"client"`
	FeedbackIndex uint64 `json:"feedback_index"`
	FeedbackHash  string `json:"feedback_hash"`
	Slot          uint64 `json:"slot"`
	Digest        string `json:"digest,omitempty"`
}

// ChainHead is the indexer's view of the current tip of one chain.
type ChainHead struct {
	Asset  string `json:"asset"`
	Kind   string `json:"kind"`
	Digest string `json:"digest"`
	Count  uint64 `json:"count"`
	Slot   uint64 `json:"slot"`
}

// DigestHash parses the head digest into a repchain.Hash.
func (h ChainHead) DigestHash() (repchain.Hash, error) {
	return repchain.ParseHash(h.Digest)
}

// Decode converts the record into a replayable event, hex-decoding every
// byte field. An empty digest leaves StoredDigest nil.
func (r FeedbackRecord) Decode() (repchain.FeedbackEvent, error) {
	var ev repchain.FeedbackEvent
	var err error
	if ev.Asset, err = hexField("asset", r.Asset); err != nil {
		return repchain.FeedbackEvent{}, err
	}
	if ev.Client, err = hexField("client", r.Client); err != nil {
		return repchain.FeedbackEvent{}, err
	}
	if ev.SealHash, err = hexField("seal_hash", r.SealHash); err != nil {
		return repchain.FeedbackEvent{}, err
	}
	if ev.StoredDigest, err = optionalHexField("digest", r.Digest); err != nil {
		return repchain.FeedbackEvent{}, err
	}
	ev.FeedbackIndex = r.FeedbackIndex
	ev.Slot = r.Slot
	return ev, nil
}

// Decode converts the record into a replayable event.
func (r ResponseRecord) Decode() (repchain.ResponseEvent, error) {
	var ev repchain.ResponseEvent
	var err error
	if ev.Asset, err = hexField("asset", r.Asset); err != nil {
		return repchain.ResponseEvent{}, err
	}
	if ev.Client, err = hexField("client", r.Client); err != nil {
		return repchain.ResponseEvent{}, err
	}
	if ev.Responder, err = hexField("responder", r.Responder); err != nil {
		return repchain.ResponseEvent{}, err
	}
	if ev.ResponseHash, err = hexField("response_hash", r.ResponseHash); err != nil {
		return repchain.ResponseEvent{}, err
	}
	if ev.FeedbackHash, err = hexField("feedback_hash", r.FeedbackHash); err != nil {
		return repchain.ResponseEvent{}, err
	}
	if ev.StoredDigest, err = optionalHexField("digest", r.Digest); err != nil {
		return repchain.ResponseEvent{}, err
	}
	ev.FeedbackIndex = r.FeedbackIndex
	ev.Slot = r.Slot
	return ev, nil
}

// Decode converts the record into a replayable event.
func (r RevokeRecord) Decode() (repchain.RevokeEvent, error) {
	var ev repchain.RevokeEvent
	var err error
	if ev.Asset, err = hexField("asset", r.Asset); err != nil {
		return repchain.RevokeEvent{}, err
	}
	if ev.Client, err = hexField("client", r.Client); err != nil {
		return repchain.RevokeEvent{}, err
	}
	if ev.FeedbackHash, err = hexField("feedback_hash", r.FeedbackHash); err != nil {
		return repchain.RevokeEvent{}, err
	}
	if ev.StoredDigest, err = optionalHexField("digest", r.Digest); err != nil {
		return repchain.RevokeEvent{}, err
	}
	ev.FeedbackIndex = r.FeedbackIndex
	ev.Slot = r.Slot
	return ev, nil
}

// NewFeedbackRecord encodes an event and its chain digest into wire form.
// Used by fixture generators and indexer implementations.
func NewFeedbackRecord(ev repchain.FeedbackEvent, digest repchain.Hash) FeedbackRecord {
	return FeedbackRecord{
		Asset:         hex.EncodeToString(ev.Asset),
		Client:        hex.EncodeToString(ev.Client),
		FeedbackIndex: ev.FeedbackIndex,
		SealHash:      hex.EncodeToString(ev.SealHash),
		Slot:          ev.Slot,
		Digest:        digest.Hex(),
	}
}

// NewResponseRecord encodes an event and its chain digest into wire form.
func NewResponseRecord(ev repchain.ResponseEvent, digest repchain.Hash) ResponseRecord {
	return ResponseRecord{
		Asset:         hex.EncodeToString(ev.Asset),
		Client:        hex.EncodeToString(ev.Client),
		FeedbackIndex: ev.FeedbackIndex,
		Responder:     hex.EncodeToString(ev.Responder),
		ResponseHash:  hex.EncodeToString(ev.ResponseHash),
		FeedbackHash:  hex.EncodeToString(ev.FeedbackHash),
		Slot:          ev.Slot,
		Digest:        digest.Hex(),
	}
}

// NewRevokeRecord encodes an event and its chain digest into wire form.
func NewRevokeRecord(ev repchain.RevokeEvent, digest repchain.Hash) RevokeRecord {
	return RevokeRecord{
		Asset:         hex.EncodeToString(ev.Asset),
		Client:        hex.EncodeToString(ev.Client),
		FeedbackIndex: ev.FeedbackIndex,
		FeedbackHash:  hex.EncodeToString(ev.FeedbackHash),
		Slot:          ev.Slot,
		Digest:        digest.Hex(),
	}
}

// DecodeFeedbackRecords decodes a page of records into replayable events.
// Fails on the first malformed record, naming its position.
func DecodeFeedbackRecords(records []FeedbackRecord) ([]repchain.FeedbackEvent, error) {
	events := make([]repchain.FeedbackEvent, len(records))
	for i, rec := range records {
		ev, err := rec.Decode()
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		events[i] = ev
	}
	return events, nil
}

// DecodeResponseRecords decodes a page of records into replayable events.
func DecodeResponseRecords(records []ResponseRecord) ([]repchain.ResponseEvent, error) {
	events := make([]repchain.ResponseEvent, len(records))
	for i, rec := range records {
		ev, err := rec.Decode()
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		events[i] = ev
	}
	return events, nil
}

// DecodeRevokeRecords decodes a page of records into replayable events.
func DecodeRevokeRecords(records []RevokeRecord) ([]repchain.RevokeEvent, error) {
	events := make([]repchain.RevokeEvent, len(records))
	for i, rec := range records {
		ev, err := rec.Decode()
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		events[i] = ev
	}
	return events, nil
}

func hexField(name, value string) ([]byte, error) {
	if value == "" {
		return nil, fmt.Errorf("decode %s: empty", name)
	}
	b, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return b, nil
}

func optionalHexField(name, value string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}
	return hexField(name, value)
}
