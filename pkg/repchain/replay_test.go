package repchain_test

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/probitylabs/sealchain/pkg/repchain"
)

// feedbackEvents builds n sequential feedback events for one asset, with
// stored digests derived by folding the chain as an indexer would.
func feedbackEvents(t *testing.T, n int) []repchain.FeedbackEvent {
	t.Helper()
	asset := bytes.Repeat([]byte{0x11}, 32)
	client := bytes.Repeat([]byte{0x22}, 32)

	events := make([]repchain.FeedbackEvent, n)
	state := repchain.Genesis()
	for i := range events {
		ev := repchain.FeedbackEvent{
			Asset:         asset,
			Client:        client,
			FeedbackIndex: uint64(i),
			SealHash:      bytes.Repeat([]byte{byte(i + 1)}, 32),
			Slot:          uint64(1000 + 10*i),
		}
		leaf, err := ev.LeafHash()
		if err != nil {
			t.Fatalf("event %d: %v", i, err)
		}
		state = state.Append(repchain.ChainFeedback, leaf)
		ev.StoredDigest = state.Digest.Bytes()
		events[i] = ev
	}
	return events
}

func revokeEvents(t *testing.T, n int) []repchain.RevokeEvent {
	t.Helper()
	asset := bytes.Repeat([]byte{0x11}, 32)
	client := bytes.Repeat([]byte{0x22}, 32)

	events := make([]repchain.RevokeEvent, n)
	state := repchain.Genesis()
	for i := range events {
		ev := repchain.RevokeEvent{
			Asset:         asset,
			Client:        client,
			FeedbackIndex: uint64(i),
			FeedbackHash:  bytes.Repeat([]byte{byte(i + 1)}, 32),
			Slot:          uint64(1000 + 10*i),
		}
		leaf, err := ev.LeafHash()
		if err != nil {
			t.Fatalf("event %d: %v", i, err)
		}
		state = state.Append(repchain.ChainRevoke, leaf)
		ev.StoredDigest = state.Digest.Bytes()
		events[i] = ev
	}
	return events
}

func TestReplayFeedbackChainValid(t *testing.T) {
	events := feedbackEvents(t, 6)
	res, err := repchain.ReplayFeedbackChain(events)
	if err != nil {
		t.Fatalf("ReplayFeedbackChain: %v", err)
	}
	if !res.Valid {
		t.Fatalf("self-consistent chain reported invalid at %d", res.MismatchAt)
	}
	if res.MismatchAt != -1 {
		t.Errorf("MismatchAt = %d, want -1", res.MismatchAt)
	}
	if res.Count != 6 {
		t.Errorf("Count = %d, want 6", res.Count)
	}
	if !bytes.Equal(res.FinalDigest.Bytes(), events[5].StoredDigest) {
		t.Errorf("FinalDigest = %s, want stored head %x", res.FinalDigest, events[5].StoredDigest)
	}
}

// An empty replay is valid and returns its starting state unchanged.
func TestReplayEmpty(t *testing.T) {
	res, err := repchain.ReplayFeedbackChain(nil)
	if err != nil {
		t.Fatalf("ReplayFeedbackChain: %v", err)
	}
	if !res.Valid || res.Count != 0 || !res.FinalDigest.IsZero() {
		t.Fatalf("empty replay = %+v, want valid genesis state", res)
	}

	start := bytes.Repeat([]byte{0x7E}, 32)
	res, err = repchain.ReplayFeedbackChain(nil, repchain.WithCheckpoint(start, 41))
	if err != nil {
		t.Fatalf("ReplayFeedbackChain: %v", err)
	}
	if !bytes.Equal(res.FinalDigest.Bytes(), start) || res.Count != 41 {
		t.Fatalf("empty replay from checkpoint = (%s, %d), want checkpoint unchanged", res.FinalDigest, res.Count)
	}
}

// The replayer must agree with a hand-rolled fold over the primitive
// hashing operations.
func TestReplayMatchesManualFold(t *testing.T) {
	events := feedbackEvents(t, 4)

	digest := make([]byte, 32)
	for i, ev := range events {
		leaf, err := repchain.ComputeFeedbackLeaf(ev.Asset, ev.Client, ev.FeedbackIndex, ev.SealHash, ev.Slot)
		if err != nil {
			t.Fatalf("event %d: %v", i, err)
		}
		next, err := repchain.ChainHash(digest, []byte(repchain.DomainFeedbackChain), leaf.Bytes())
		if err != nil {
			t.Fatalf("event %d: %v", i, err)
		}
		digest = next.Bytes()
	}

	res, err := repchain.ReplayFeedbackChain(events)
	if err != nil {
		t.Fatalf("ReplayFeedbackChain: %v", err)
	}
	if !bytes.Equal(res.FinalDigest.Bytes(), digest) {
		t.Fatalf("replayer digest %s differs from manual fold %x", res.FinalDigest, digest)
	}
}

func TestReplayOrderSensitivity(t *testing.T) {
	canonical := feedbackEvents(t, 4)
	reordered := feedbackEvents(t, 4)
	reordered[1], reordered[2] = reordered[2], reordered[1]
	for i := range reordered {
		reordered[i].StoredDigest = nil // isolate ordering from stored-digest checks
	}

	want, err := repchain.ReplayFeedbackChain(canonical)
	if err != nil {
		t.Fatalf("ReplayFeedbackChain: %v", err)
	}
	got, err := repchain.ReplayFeedbackChain(reordered)
	if err != nil {
		t.Fatalf("ReplayFeedbackChain: %v", err)
	}
	if got.FinalDigest == want.FinalDigest {
		t.Fatal("swapping two events did not change the final digest")
	}
}

// Replaying [0:5] then [5:10] from the intermediate state must land on the
// same head as replaying [0:10] at once.
func TestReplayCheckpointResumption(t *testing.T) {
	events := feedbackEvents(t, 10)

	full, err := repchain.ReplayFeedbackChain(events)
	if err != nil {
		t.Fatalf("full replay: %v", err)
	}
	head, err := repchain.ReplayFeedbackChain(events[:5])
	if err != nil {
		t.Fatalf("first half: %v", err)
	}
	tail, err := repchain.ReplayFeedbackChain(events[5:], repchain.WithCheckpoint(head.FinalDigest.Bytes(), head.Count))
	if err != nil {
		t.Fatalf("second half: %v", err)
	}

	if tail.FinalDigest != full.FinalDigest {
		t.Errorf("resumed digest %s, want %s", tail.FinalDigest, full.FinalDigest)
	}
	if tail.Count != full.Count {
		t.Errorf("resumed count %d, want %d", tail.Count, full.Count)
	}
	if !tail.Valid {
		t.Error("resumed replay reported invalid")
	}
}

func TestReplayTamperDetection(t *testing.T) {
	events := feedbackEvents(t, 8)
	events[3].SealHash = append([]byte(nil), events[3].SealHash...)
	events[3].SealHash[0] ^= 0x01

	res, err := repchain.ReplayFeedbackChain(events)
	if err != nil {
		t.Fatalf("ReplayFeedbackChain: %v", err)
	}
	if res.Valid {
		t.Fatal("tampered chain reported valid")
	}
	if res.MismatchAt != 3 {
		t.Errorf("MismatchAt = %d, want 3", res.MismatchAt)
	}
	if res.Count != 4 {
		t.Errorf("Count = %d, want 4 events folded up to the break", res.Count)
	}
	if res.MismatchExpected == "" || res.MismatchComputed == "" {
		t.Error("mismatch digests not reported")
	}
	if res.MismatchExpected == res.MismatchComputed {
		t.Error("expected and computed digests should differ on a mismatch")
	}
	if got, want := res.MismatchExpected, hex.EncodeToString(events[3].StoredDigest); got != want {
		t.Errorf("MismatchExpected = %s, want stored digest %s", got, want)
	}
}

// A corrupted stored digest is a mismatch even when the event data itself
// is intact.
func TestReplayStoredDigestMismatch(t *testing.T) {
	events := feedbackEvents(t, 5)
	events[1].StoredDigest = append([]byte(nil), events[1].StoredDigest...)
	events[1].StoredDigest[31] ^= 0xFF

	res, err := repchain.ReplayFeedbackChain(events)
	if err != nil {
		t.Fatalf("ReplayFeedbackChain: %v", err)
	}
	if res.Valid || res.MismatchAt != 1 {
		t.Fatalf("got valid=%v mismatch_at=%d, want invalid at 1", res.Valid, res.MismatchAt)
	}
}

// Replay stops at the first break; later corruption is not reported.
func TestReplayStopsAtFirstMismatch(t *testing.T) {
	events := feedbackEvents(t, 6)
	for _, i := range []int{2, 4} {
		events[i].StoredDigest = append([]byte(nil), events[i].StoredDigest...)
		events[i].StoredDigest[0] ^= 0x80
	}

	res, err := repchain.ReplayFeedbackChain(events)
	if err != nil {
		t.Fatalf("ReplayFeedbackChain: %v", err)
	}
	if res.MismatchAt != 2 {
		t.Fatalf("MismatchAt = %d, want first break at 2", res.MismatchAt)
	}
}

// Events without stored digests are folded without cross-checking.
func TestReplayWithoutStoredDigests(t *testing.T) {
	events := feedbackEvents(t, 5)
	withStored, err := repchain.ReplayFeedbackChain(events)
	if err != nil {
		t.Fatalf("ReplayFeedbackChain: %v", err)
	}

	for i := range events {
		events[i].StoredDigest = nil
	}
	withoutStored, err := repchain.ReplayFeedbackChain(events)
	if err != nil {
		t.Fatalf("ReplayFeedbackChain: %v", err)
	}

	if !withoutStored.Valid {
		t.Error("chain without stored digests reported invalid")
	}
	if withoutStored.FinalDigest != withStored.FinalDigest {
		t.Error("stored digests changed the computed head")
	}
}

func TestReplayCheckpointValidation(t *testing.T) {
	events := feedbackEvents(t, 2)
	for _, n := range []int{31, 33} {
		_, err := repchain.ReplayFeedbackChain(events, repchain.WithCheckpoint(make([]byte, n), 1))
		if !errors.Is(err, repchain.ErrInvalidLength) {
			t.Errorf("start digest of %d bytes: got %v, want ErrInvalidLength", n, err)
		}
		if err != nil && !strings.Contains(err.Error(), "start_digest") {
			t.Errorf("error %q does not name start_digest", err)
		}
	}
}

// Malformed events abort the replay before any folding; a wrong stored
// digest earlier in the batch must not surface as a mismatch result.
func TestReplayValidatesEventsBeforeFolding(t *testing.T) {
	events := feedbackEvents(t, 4)
	events[0].StoredDigest = make([]byte, 32) // would mismatch if folded
	events[2].Asset = make([]byte, 31)        // malformed

	res, err := repchain.ReplayFeedbackChain(events)
	if res != nil {
		t.Fatalf("got result %+v, want nil on malformed input", res)
	}
	if !errors.Is(err, repchain.ErrInvalidLength) {
		t.Fatalf("got %v, want ErrInvalidLength", err)
	}
	if !strings.Contains(err.Error(), "event 2") {
		t.Errorf("error %q does not locate the offending event", err)
	}
}

func TestReplayRevokeChain(t *testing.T) {
	events := revokeEvents(t, 4)
	res, err := repchain.ReplayRevokeChain(events)
	if err != nil {
		t.Fatalf("ReplayRevokeChain: %v", err)
	}
	if !res.Valid || res.Count != 4 {
		t.Fatalf("got valid=%v count=%d, want valid count=4", res.Valid, res.Count)
	}

	events[2].FeedbackHash = append([]byte(nil), events[2].FeedbackHash...)
	events[2].FeedbackHash[5] ^= 0x10
	res, err = repchain.ReplayRevokeChain(events)
	if err != nil {
		t.Fatalf("ReplayRevokeChain: %v", err)
	}
	if res.Valid || res.MismatchAt != 2 {
		t.Fatalf("got valid=%v mismatch_at=%d, want invalid at 2", res.Valid, res.MismatchAt)
	}
}

func TestReplayResponseChain(t *testing.T) {
	asset := bytes.Repeat([]byte{0x44}, 32)
	client := bytes.Repeat([]byte{0x45}, 32)
	responder := bytes.Repeat([]byte{0x46}, 32)

	events := make([]repchain.ResponseEvent, 3)
	state := repchain.Genesis()
	for i := range events {
		ev := repchain.ResponseEvent{
			Asset:         asset,
			Client:        client,
			FeedbackIndex: uint64(i),
			Responder:     responder,
			ResponseHash:  bytes.Repeat([]byte{byte(0x50 + i)}, 32),
			FeedbackHash:  bytes.Repeat([]byte{byte(0x60 + i)}, 32),
			Slot:          uint64(2000 + i),
		}
		leaf, err := ev.LeafHash()
		if err != nil {
			t.Fatalf("event %d: %v", i, err)
		}
		state = state.Append(repchain.ChainResponse, leaf)
		ev.StoredDigest = state.Digest.Bytes()
		events[i] = ev
	}

	res, err := repchain.ReplayResponseChain(events)
	if err != nil {
		t.Fatalf("ReplayResponseChain: %v", err)
	}
	if !res.Valid || res.Count != 3 {
		t.Fatalf("got valid=%v count=%d, want valid count=3", res.Valid, res.Count)
	}
	if res.FinalDigest != state.Digest {
		t.Errorf("FinalDigest = %s, want %s", res.FinalDigest, state.Digest)
	}
}

// Feedback and revoke events that share every byte of context still land
// on different chain heads: leaf and chain domains both separate them.
func TestReplayKindSeparation(t *testing.T) {
	feedback := feedbackEvents(t, 3)
	revokes := make([]repchain.RevokeEvent, len(feedback))
	for i, ev := range feedback {
		revokes[i] = repchain.RevokeEvent{
			Asset:         ev.Asset,
			Client:        ev.Client,
			FeedbackIndex: ev.FeedbackIndex,
			FeedbackHash:  ev.SealHash,
			Slot:          ev.Slot,
		}
	}

	fRes, err := repchain.ReplayFeedbackChain(feedback)
	if err != nil {
		t.Fatalf("ReplayFeedbackChain: %v", err)
	}
	rRes, err := repchain.ReplayRevokeChain(revokes)
	if err != nil {
		t.Fatalf("ReplayRevokeChain: %v", err)
	}
	if fRes.FinalDigest == rRes.FinalDigest {
		t.Fatal("feedback and revoke chains converged on the same head")
	}
}
