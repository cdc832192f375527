package service_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/probitylabs/sealchain/internal/auditor/service"
	"github.com/probitylabs/sealchain/internal/checkpoint"
	"github.com/probitylabs/sealchain/internal/incident"
	"github.com/probitylabs/sealchain/pkg/indexer"
	"github.com/probitylabs/sealchain/pkg/repchain"
)

// ── Stub event source ───────────────────────────────────────────────────

type stubChains struct {
	feedback  []repchain.FeedbackEvent
	responses []repchain.ResponseEvent
	revokes   []repchain.RevokeEvent
	heads     map[repchain.ChainKind]indexer.ChainHead
}

type stubSource struct {
	mu      sync.Mutex
	chains  map[string]*stubChains
	fetches int
}

func newStubSource() *stubSource {
	return &stubSource{chains: make(map[string]*stubChains)}
}

func (s *stubSource) chainsFor(asset []byte) *stubChains {
	key := hex.EncodeToString(asset)
	c, ok := s.chains[key]
	if !ok {
		c = &stubChains{heads: make(map[repchain.ChainKind]indexer.ChainHead)}
		s.chains[key] = c
	}
	return c
}

func (s *stubSource) eventFetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

func page[E any](events []E, from uint64, limit int) []E {
	if from >= uint64(len(events)) {
		return nil
	}
	out := events[from:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *stubSource) FeedbackEvents(_ context.Context, asset []byte, from uint64, limit int) ([]repchain.FeedbackEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	return page(s.chainsFor(asset).feedback, from, limit), nil
}

func (s *stubSource) ResponseEvents(_ context.Context, asset []byte, from uint64, limit int) ([]repchain.ResponseEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	return page(s.chainsFor(asset).responses, from, limit), nil
}

func (s *stubSource) RevokeEvents(_ context.Context, asset []byte, from uint64, limit int) ([]repchain.RevokeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	return page(s.chainsFor(asset).revokes, from, limit), nil
}

func (s *stubSource) ChainHead(_ context.Context, asset []byte, kind repchain.ChainKind) (*indexer.ChainHead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	head, ok := s.chainsFor(asset).heads[kind]
	if !ok {
		return nil, indexer.ErrNotFound
	}
	out := head
	return &out, nil
}

// seedFeedback extends the asset's feedback chain by n events, continuing
// from state, and refreshes the stored head.
func seedFeedback(t *testing.T, src *stubSource, asset []byte, state repchain.ChainState, n int) repchain.ChainState {
	t.Helper()
	src.mu.Lock()
	defer src.mu.Unlock()

	chains := src.chainsFor(asset)
	client := bytes.Repeat([]byte{0x22}, 32)
	var lastSlot uint64
	for i := 0; i < n; i++ {
		idx := uint64(len(chains.feedback))
		ev := repchain.FeedbackEvent{
			Asset:         asset,
			Client:        client,
			FeedbackIndex: idx,
			SealHash:      bytes.Repeat([]byte{byte(idx%250 + 1)}, 32),
			Slot:          3000 + idx,
		}
		leaf, err := ev.LeafHash()
		if err != nil {
			t.Fatalf("seed event %d: %v", idx, err)
		}
		state = state.Append(repchain.ChainFeedback, leaf)
		ev.StoredDigest = state.Digest.Bytes()
		chains.feedback = append(chains.feedback, ev)
		lastSlot = ev.Slot
	}
	chains.heads[repchain.ChainFeedback] = indexer.ChainHead{
		Asset:  hex.EncodeToString(asset),
		Kind:   repchain.ChainFeedback.String(),
		Digest: state.Digest.Hex(),
		Count:  state.Count,
		Slot:   lastSlot,
	}
	return state
}

func seedRevokes(t *testing.T, src *stubSource, asset []byte, n int) repchain.ChainState {
	t.Helper()
	src.mu.Lock()
	defer src.mu.Unlock()

	chains := src.chainsFor(asset)
	client := bytes.Repeat([]byte{0x33}, 32)
	state := repchain.Genesis()
	var lastSlot uint64
	for i := 0; i < n; i++ {
		ev := repchain.RevokeEvent{
			Asset:         asset,
			Client:        client,
			FeedbackIndex: uint64(i),
			FeedbackHash:  bytes.Repeat([]byte{byte(i + 1)}, 32),
			Slot:          4000 + uint64(i),
		}
		leaf, err := ev.LeafHash()
		if err != nil {
			t.Fatalf("seed revoke %d: %v", i, err)
		}
		state = state.Append(repchain.ChainRevoke, leaf)
		ev.StoredDigest = state.Digest.Bytes()
		chains.revokes = append(chains.revokes, ev)
		lastSlot = ev.Slot
	}
	chains.heads[repchain.ChainRevoke] = indexer.ChainHead{
		Asset:  hex.EncodeToString(asset),
		Kind:   repchain.ChainRevoke.String(),
		Digest: state.Digest.Hex(),
		Count:  state.Count,
		Slot:   lastSlot,
	}
	return state
}

type fakeNotifier struct {
	mu   sync.Mutex
	incs []*incident.Incident
}

func (f *fakeNotifier) Notify(_ context.Context, inc *incident.Incident) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.incs = append(f.incs, inc)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.incs)
}

var auditAsset = bytes.Repeat([]byte{0x77}, 32)

// ── Tests ───────────────────────────────────────────────────────────────

func TestAuditChainValid(t *testing.T) {
	src := newStubSource()
	head := seedFeedback(t, src, auditAsset, repchain.Genesis(), 12)

	store := checkpoint.NewMemoryStore()
	repo := incident.NewMemoryRepository()
	notifier := &fakeNotifier{}
	auditor := service.NewAuditor(src, store, repo, notifier, zap.NewNop())
	auditor.SetPageSize(5)

	report, err := auditor.AuditChain(context.Background(), auditAsset, repchain.ChainFeedback)
	if err != nil {
		t.Fatalf("AuditChain: %v", err)
	}
	if !report.Valid {
		t.Fatalf("valid chain reported invalid: %+v", report.Incident)
	}
	if report.StartCount != 0 || report.EndCount != 12 || report.EventsChecked != 12 {
		t.Errorf("report = start %d end %d checked %d, want 0/12/12",
			report.StartCount, report.EndCount, report.EventsChecked)
	}
	if report.FinalDigest != head.Digest.Hex() {
		t.Errorf("FinalDigest = %s, want %s", report.FinalDigest, head.Digest.Hex())
	}

	cp, err := store.Get(context.Background(), hex.EncodeToString(auditAsset), repchain.ChainFeedback)
	if err != nil {
		t.Fatalf("checkpoint not advanced: %v", err)
	}
	if cp.Count != 12 || cp.Digest != head.Digest.Hex() {
		t.Errorf("checkpoint = count %d digest %s, want 12/%s", cp.Count, cp.Digest, head.Digest.Hex())
	}

	if notifier.count() != 0 {
		t.Errorf("valid audit raised %d alerts", notifier.count())
	}
	incs, _ := repo.List(context.Background(), incident.Filter{})
	if len(incs) != 0 {
		t.Errorf("valid audit recorded %d incidents", len(incs))
	}
}

func TestAuditChainIncremental(t *testing.T) {
	src := newStubSource()
	state := seedFeedback(t, src, auditAsset, repchain.Genesis(), 10)

	store := checkpoint.NewMemoryStore()
	auditor := service.NewAuditor(src, store, nil, nil, zap.NewNop())

	if _, err := auditor.AuditChain(context.Background(), auditAsset, repchain.ChainFeedback); err != nil {
		t.Fatalf("first audit: %v", err)
	}

	// New events land after the first audit.
	seedFeedback(t, src, auditAsset, state, 3)

	before := src.eventFetches()
	report, err := auditor.AuditChain(context.Background(), auditAsset, repchain.ChainFeedback)
	if err != nil {
		t.Fatalf("second audit: %v", err)
	}
	if !report.Valid {
		t.Fatalf("incremental audit reported invalid: %+v", report.Incident)
	}
	if report.StartCount != 10 || report.EndCount != 13 || report.EventsChecked != 3 {
		t.Errorf("report = start %d end %d checked %d, want 10/13/3",
			report.StartCount, report.EndCount, report.EventsChecked)
	}
	if fetched := src.eventFetches() - before; fetched != 1 {
		t.Errorf("incremental audit made %d event fetches, want 1", fetched)
	}
}

func TestAuditChainTamper(t *testing.T) {
	src := newStubSource()
	seedFeedback(t, src, auditAsset, repchain.Genesis(), 10)

	// Corrupt the stored digest at position 7.
	src.chains[hex.EncodeToString(auditAsset)].feedback[7].StoredDigest[0] ^= 0x01

	store := checkpoint.NewMemoryStore()
	repo := incident.NewMemoryRepository()
	notifier := &fakeNotifier{}
	auditor := service.NewAuditor(src, store, repo, notifier, zap.NewNop())

	report, err := auditor.AuditChain(context.Background(), auditAsset, repchain.ChainFeedback)
	if err != nil {
		t.Fatalf("AuditChain: %v", err)
	}
	if report.Valid {
		t.Fatal("tampered chain reported valid")
	}
	if report.Incident == nil {
		t.Fatal("no incident attached to the report")
	}
	if report.Incident.Position != 7 {
		t.Errorf("incident position = %d, want 7", report.Incident.Position)
	}
	if report.Incident.Severity != incident.SeverityCritical {
		t.Errorf("severity = %s, want critical (break inside history)", report.Incident.Severity)
	}
	if report.Incident.Slot != 3007 {
		t.Errorf("incident slot = %d, want the mismatching event's slot 3007", report.Incident.Slot)
	}
	if report.Incident.ExpectedDigest == report.Incident.ComputedDigest {
		t.Error("expected and computed digests should differ")
	}

	// Incident persisted and alerted.
	incs, _ := repo.List(context.Background(), incident.Filter{})
	if len(incs) != 1 {
		t.Fatalf("recorded %d incidents, want 1", len(incs))
	}
	if notifier.count() != 1 {
		t.Errorf("raised %d alerts, want 1", notifier.count())
	}

	// Checkpoint must not advance past a broken chain.
	if _, err := store.Get(context.Background(), hex.EncodeToString(auditAsset), repchain.ChainFeedback); !errors.Is(err, checkpoint.ErrNotFound) {
		t.Errorf("checkpoint advanced despite the break: %v", err)
	}
}

func TestAuditChainTamperAtTip(t *testing.T) {
	src := newStubSource()
	seedFeedback(t, src, auditAsset, repchain.Genesis(), 6)
	src.chains[hex.EncodeToString(auditAsset)].feedback[5].StoredDigest[0] ^= 0x01

	auditor := service.NewAuditor(src, nil, nil, nil, zap.NewNop())
	report, err := auditor.AuditChain(context.Background(), auditAsset, repchain.ChainFeedback)
	if err != nil {
		t.Fatalf("AuditChain: %v", err)
	}
	if report.Valid || report.Incident == nil {
		t.Fatal("tip tamper not detected")
	}
	if report.Incident.Severity != incident.SeverityWarning {
		t.Errorf("severity = %s, want warning (break at tip)", report.Incident.Severity)
	}
}

func TestAuditChainHeadMismatch(t *testing.T) {
	src := newStubSource()
	seedFeedback(t, src, auditAsset, repchain.Genesis(), 5)

	// Events replay cleanly, but the advertised head digest disagrees.
	key := hex.EncodeToString(auditAsset)
	head := src.chains[key].heads[repchain.ChainFeedback]
	head.Digest = strings.Repeat("baad", 16)
	src.chains[key].heads[repchain.ChainFeedback] = head

	repo := incident.NewMemoryRepository()
	auditor := service.NewAuditor(src, nil, repo, nil, zap.NewNop())

	report, err := auditor.AuditChain(context.Background(), auditAsset, repchain.ChainFeedback)
	if err != nil {
		t.Fatalf("AuditChain: %v", err)
	}
	if report.Valid {
		t.Fatal("head mismatch reported valid")
	}
	if report.Incident.Position != 4 {
		t.Errorf("incident position = %d, want head position 4", report.Incident.Position)
	}
	if !strings.Contains(report.Incident.Detail, "stored chain head") {
		t.Errorf("detail = %q", report.Incident.Detail)
	}
}

func TestAuditChainHeadRegression(t *testing.T) {
	src := newStubSource()
	seedFeedback(t, src, auditAsset, repchain.Genesis(), 4)

	// The checkpoint claims more verified events than the head now counts.
	store := checkpoint.NewMemoryStore()
	err := store.Put(context.Background(), checkpoint.Checkpoint{
		Asset:  hex.EncodeToString(auditAsset),
		Kind:   repchain.ChainFeedback,
		Digest: strings.Repeat("11", 32),
		Count:  9,
	})
	if err != nil {
		t.Fatalf("seed checkpoint: %v", err)
	}

	notifier := &fakeNotifier{}
	auditor := service.NewAuditor(src, store, nil, notifier, zap.NewNop())

	report, err := auditor.AuditChain(context.Background(), auditAsset, repchain.ChainFeedback)
	if err != nil {
		t.Fatalf("AuditChain: %v", err)
	}
	if report.Valid {
		t.Fatal("head regression reported valid")
	}
	if report.Incident.Severity != incident.SeverityInfo {
		t.Errorf("severity = %s, want info", report.Incident.Severity)
	}
	if report.Incident.Position != -1 {
		t.Errorf("position = %d, want -1 (no digest conflict)", report.Incident.Position)
	}
	if notifier.count() != 1 {
		t.Errorf("raised %d alerts, want 1", notifier.count())
	}
}

func TestAuditChainNothingIndexed(t *testing.T) {
	src := newStubSource()
	auditor := service.NewAuditor(src, checkpoint.NewMemoryStore(), nil, nil, zap.NewNop())

	report, err := auditor.AuditChain(context.Background(), auditAsset, repchain.ChainResponse)
	if err != nil {
		t.Fatalf("AuditChain: %v", err)
	}
	if !report.Valid || report.EndCount != 0 || report.EventsChecked != 0 {
		t.Errorf("report = %+v, want a valid empty audit", report)
	}
}

func TestAuditChainIndexerShortfall(t *testing.T) {
	src := newStubSource()
	seedFeedback(t, src, auditAsset, repchain.Genesis(), 6)

	// Head advertises 10 events, but only 6 are served.
	key := hex.EncodeToString(auditAsset)
	head := src.chains[key].heads[repchain.ChainFeedback]
	head.Count = 10
	src.chains[key].heads[repchain.ChainFeedback] = head

	auditor := service.NewAuditor(src, nil, nil, nil, zap.NewNop())
	report, err := auditor.AuditChain(context.Background(), auditAsset, repchain.ChainFeedback)
	if err != nil {
		t.Fatalf("AuditChain: %v", err)
	}
	if report.Valid {
		t.Fatal("shortfall reported valid")
	}
	if report.Incident.Severity != incident.SeverityInfo {
		t.Errorf("severity = %s, want info", report.Incident.Severity)
	}
	if !strings.Contains(report.Incident.Detail, "no events") {
		t.Errorf("detail = %q", report.Incident.Detail)
	}
}

func TestAuditChainNilCollaborators(t *testing.T) {
	src := newStubSource()
	seedFeedback(t, src, auditAsset, repchain.Genesis(), 3)
	src.chains[hex.EncodeToString(auditAsset)].feedback[1].StoredDigest[5] ^= 0xFF

	// No checkpoint store, incident repository, or notifier: the audit
	// still verdicts without panicking.
	auditor := service.NewAuditor(src, nil, nil, nil, zap.NewNop())
	report, err := auditor.AuditChain(context.Background(), auditAsset, repchain.ChainFeedback)
	if err != nil {
		t.Fatalf("AuditChain: %v", err)
	}
	if report.Valid || report.Incident == nil || report.Incident.Position != 1 {
		t.Errorf("report = %+v, want break at 1", report)
	}
}

func TestAuditAsset(t *testing.T) {
	src := newStubSource()
	seedFeedback(t, src, auditAsset, repchain.Genesis(), 4)
	seedRevokes(t, src, auditAsset, 2)
	// No response chain: that audit must still succeed as empty.

	var recorded []string
	auditor := service.NewAuditor(src, checkpoint.NewMemoryStore(), nil, nil, zap.NewNop())
	auditor.SetMetricsRecorder(func(kind string, valid bool) {
		recorded = append(recorded, kind)
	})

	reports, err := auditor.AuditAsset(context.Background(), auditAsset)
	if err != nil {
		t.Fatalf("AuditAsset: %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("got %d reports, want 3", len(reports))
	}
	for _, r := range reports {
		if !r.Valid {
			t.Errorf("%s chain reported invalid", r.Kind)
		}
	}
	if reports[0].EventsChecked != 4 || reports[2].EventsChecked != 2 {
		t.Errorf("events checked = %d/%d/%d, want 4/0/2",
			reports[0].EventsChecked, reports[1].EventsChecked, reports[2].EventsChecked)
	}
	// Every kind records once, including the empty response audit.
	if len(recorded) != 3 {
		t.Errorf("metrics recorded %d audits, want 3", len(recorded))
	}
}
