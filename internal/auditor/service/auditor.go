// Package service implements the audit engine: it pulls per-asset event
// streams from an indexer, replays them through the integrity core, and
// turns any disagreement into recorded, alerted incidents.
package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/probitylabs/sealchain/internal/alert"
	"github.com/probitylabs/sealchain/internal/checkpoint"
	"github.com/probitylabs/sealchain/internal/incident"
	"github.com/probitylabs/sealchain/pkg/indexer"
	"github.com/probitylabs/sealchain/pkg/repchain"
)

// defaultPageSize is how many events are fetched and folded per request.
const defaultPageSize = 500

// EventSource is the slice of the indexer API the auditor consumes.
// *indexer.Client satisfies it; tests substitute stubs.
type EventSource interface {
	FeedbackEvents(ctx context.Context, asset []byte, fromCount uint64, limit int) ([]repchain.FeedbackEvent, error)
	ResponseEvents(ctx context.Context, asset []byte, fromCount uint64, limit int) ([]repchain.ResponseEvent, error)
	RevokeEvents(ctx context.Context, asset []byte, fromCount uint64, limit int) ([]repchain.RevokeEvent, error)
	ChainHead(ctx context.Context, asset []byte, kind repchain.ChainKind) (*indexer.ChainHead, error)
}

// MetricsRecorder is an optional callback for recording audit outcomes.
type MetricsRecorder func(kind string, valid bool)

// Report is the outcome of auditing one chain.
type Report struct {
	Asset         string             `json:"asset"`
	Kind          repchain.ChainKind `json:"kind"`
	StartCount    uint64             `json:"start_count"`
	EndCount      uint64             `json:"end_count"`
	EventsChecked int                `json:"events_checked"`
	FinalDigest   string             `json:"final_digest"`
	Valid         bool               `json:"valid"`
	Incident      *incident.Incident `json:"incident,omitempty"`
}

// Auditor replays reputation chains against their stored digests.
//
// Collaborators are optional: a nil checkpoint store means every audit
// replays from genesis, a nil incident repository skips persistence, and a
// nil notifier skips alerting.
type Auditor struct {
	source      EventSource
	checkpoints checkpoint.Store
	incidents   incident.Repository
	notifier    alert.Notifier
	logger      *zap.Logger
	onAudit     MetricsRecorder
	pageSize    int
}

// NewAuditor creates an Auditor reading from source.
func NewAuditor(source EventSource, checkpoints checkpoint.Store, incidents incident.Repository, notifier alert.Notifier, logger *zap.Logger) *Auditor {
	return &Auditor{
		source:      source,
		checkpoints: checkpoints,
		incidents:   incidents,
		notifier:    notifier,
		logger:      logger,
		pageSize:    defaultPageSize,
	}
}

// SetMetricsRecorder configures the metrics callback.
func (a *Auditor) SetMetricsRecorder(fn MetricsRecorder) {
	a.onAudit = fn
}

// SetPageSize overrides how many events are fetched per indexer request.
func (a *Auditor) SetPageSize(n int) {
	if n > 0 {
		a.pageSize = n
	}
}

// AuditChain incrementally verifies one of the asset's chains: it resumes
// from the last verified checkpoint, folds every newer event, cross-checks
// stored digests along the way, and compares the replayed tip against the
// indexer's chain head. On success the checkpoint is advanced.
func (a *Auditor) AuditChain(ctx context.Context, asset []byte, kind repchain.ChainKind) (*Report, error) {
	assetHex := hex.EncodeToString(asset)
	report := &Report{Asset: assetHex, Kind: kind, Valid: true}

	state := repchain.Genesis()
	if a.checkpoints != nil {
		cp, err := a.checkpoints.Get(ctx, assetHex, kind)
		switch {
		case errors.Is(err, checkpoint.ErrNotFound):
			// first audit of this chain
		case err != nil:
			return nil, fmt.Errorf("load checkpoint: %w", err)
		default:
			digest, err := cp.DigestHash()
			if err != nil {
				return nil, fmt.Errorf("stored checkpoint %s/%s: %w", assetHex, kind, err)
			}
			state = repchain.ChainState{Digest: digest, Count: cp.Count}
		}
	}
	report.StartCount = state.Count

	var headCount, headSlot uint64
	var headDigest repchain.Hash
	head, err := a.source.ChainHead(ctx, asset, kind)
	switch {
	case errors.Is(err, indexer.ErrNotFound):
		// nothing indexed for this chain yet
	case err != nil:
		return nil, fmt.Errorf("fetch chain head: %w", err)
	default:
		headCount, headSlot = head.Count, head.Slot
		if headDigest, err = head.DigestHash(); err != nil {
			return nil, fmt.Errorf("chain head digest: %w", err)
		}
	}

	// A head behind the verified checkpoint means indexed history was
	// dropped or the indexer was rolled back.
	if headCount < state.Count {
		inc := &incident.Incident{
			Asset:    assetHex,
			Kind:     kind,
			Position: -1,
			Slot:     headSlot,
			Severity: incident.Assess(-1, headCount),
			Detail: fmt.Sprintf("stored head count %d is behind the verified checkpoint at %d",
				headCount, state.Count),
		}
		a.raise(ctx, inc)
		report.Valid = false
		report.Incident = inc
		report.EndCount = state.Count
		report.FinalDigest = state.Digest.Hex()
		a.record(kind, false)
		return report, nil
	}

	for state.Count < headCount {
		limit := a.pageSize
		if remaining := headCount - state.Count; remaining < uint64(limit) {
			limit = int(remaining)
		}

		res, n, slotAt, err := a.replayPage(ctx, asset, kind, state, limit)
		if err != nil {
			return nil, fmt.Errorf("replay %s chain of %s: %w", kind, assetHex, err)
		}
		if n == 0 {
			inc := &incident.Incident{
				Asset:    assetHex,
				Kind:     kind,
				Position: -1,
				Slot:     headSlot,
				Severity: incident.Assess(-1, headCount),
				Detail: fmt.Sprintf("indexer served no events at position %d though its head counts %d",
					state.Count, headCount),
			}
			a.raise(ctx, inc)
			report.Valid = false
			report.Incident = inc
			report.EndCount = state.Count
			report.FinalDigest = state.Digest.Hex()
			a.record(kind, false)
			return report, nil
		}

		report.EventsChecked += n
		if !res.Valid {
			pos := int64(state.Count) + int64(res.MismatchAt)
			inc := &incident.Incident{
				Asset:          assetHex,
				Kind:           kind,
				Position:       pos,
				Slot:           slotAt(res.MismatchAt),
				ExpectedDigest: res.MismatchExpected,
				ComputedDigest: res.MismatchComputed,
				Severity:       incident.Assess(int(pos), headCount),
				Detail:         fmt.Sprintf("replayed digest diverges from stored digest at position %d", pos),
			}
			a.raise(ctx, inc)
			report.Valid = false
			report.Incident = inc
			report.EndCount = res.Count
			report.FinalDigest = res.FinalDigest.Hex()
			a.record(kind, false)
			return report, nil
		}

		state = repchain.ChainState{Digest: res.FinalDigest, Count: res.Count}
	}

	// The replayed tip must agree with the digest the indexer stores for
	// its head. Catches rewrites that keep the event count intact.
	if headCount > 0 && headDigest != state.Digest {
		inc := &incident.Incident{
			Asset:          assetHex,
			Kind:           kind,
			Position:       int64(headCount) - 1,
			Slot:           headSlot,
			ExpectedDigest: headDigest.Hex(),
			ComputedDigest: state.Digest.Hex(),
			Severity:       incident.Assess(int(headCount)-1, headCount),
			Detail:         "replayed tip does not match the stored chain head",
		}
		a.raise(ctx, inc)
		report.Valid = false
		report.Incident = inc
		report.EndCount = state.Count
		report.FinalDigest = state.Digest.Hex()
		a.record(kind, false)
		return report, nil
	}

	report.EndCount = state.Count
	report.FinalDigest = state.Digest.Hex()

	if a.checkpoints != nil && state.Count > report.StartCount {
		cp := checkpoint.Checkpoint{
			Asset:  assetHex,
			Kind:   kind,
			Digest: state.Digest.Hex(),
			Count:  state.Count,
			Slot:   headSlot,
		}
		if err := a.checkpoints.Put(ctx, cp); err != nil {
			// Not fatal: the audit verdict stands, the next run just
			// replays more than it had to.
			a.logger.Warn("audit: store checkpoint",
				zap.String("asset", assetHex),
				zap.String("kind", kind.String()),
				zap.Error(err),
			)
		}
	}

	a.logger.Info("audit: chain verified",
		zap.String("asset", assetHex),
		zap.String("kind", kind.String()),
		zap.Uint64("from", report.StartCount),
		zap.Uint64("to", report.EndCount),
		zap.Int("events", report.EventsChecked),
	)
	a.record(kind, true)
	return report, nil
}

// AuditAsset audits all three of the asset's chains. Every chain is
// attempted; errors are joined.
func (a *Auditor) AuditAsset(ctx context.Context, asset []byte) ([]*Report, error) {
	var reports []*Report
	var errs []error
	for _, kind := range repchain.Kinds() {
		report, err := a.AuditChain(ctx, asset, kind)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", kind, err))
			continue
		}
		reports = append(reports, report)
	}
	return reports, errors.Join(errs...)
}

// replayPage fetches one page of events at state.Count and folds it from
// state. slotAt reports the slot of the i-th fetched event for incident
// reporting.
func (a *Auditor) replayPage(ctx context.Context, asset []byte, kind repchain.ChainKind, state repchain.ChainState, limit int) (res *repchain.ReplayResult, n int, slotAt func(int) uint64, err error) {
	opt := repchain.WithCheckpoint(state.Digest.Bytes(), state.Count)

	switch kind {
	case repchain.ChainFeedback:
		events, err := a.source.FeedbackEvents(ctx, asset, state.Count, limit)
		if err != nil {
			return nil, 0, nil, err
		}
		res, err := repchain.ReplayFeedbackChain(events, opt)
		return res, len(events), func(i int) uint64 { return events[i].Slot }, err

	case repchain.ChainResponse:
		events, err := a.source.ResponseEvents(ctx, asset, state.Count, limit)
		if err != nil {
			return nil, 0, nil, err
		}
		res, err := repchain.ReplayResponseChain(events, opt)
		return res, len(events), func(i int) uint64 { return events[i].Slot }, err

	case repchain.ChainRevoke:
		events, err := a.source.RevokeEvents(ctx, asset, state.Count, limit)
		if err != nil {
			return nil, 0, nil, err
		}
		res, err := repchain.ReplayRevokeChain(events, opt)
		return res, len(events), func(i int) uint64 { return events[i].Slot }, err

	default:
		return nil, 0, nil, fmt.Errorf("unknown chain kind %d", kind)
	}
}

// raise records and alerts one incident.
func (a *Auditor) raise(ctx context.Context, inc *incident.Incident) {
	if a.incidents != nil {
		if err := a.incidents.Create(ctx, inc); err != nil {
			a.logger.Error("audit: record incident", zap.Error(err))
		}
	}
	if a.notifier != nil {
		if err := a.notifier.Notify(ctx, inc); err != nil {
			a.logger.Error("audit: notify incident", zap.Error(err))
		}
	}
	a.logger.Warn("audit: chain integrity incident",
		zap.String("asset", inc.Asset),
		zap.String("kind", inc.Kind.String()),
		zap.String("severity", string(inc.Severity)),
		zap.Int64("position", inc.Position),
		zap.String("detail", inc.Detail),
	)
}

func (a *Auditor) record(kind repchain.ChainKind, valid bool) {
	if a.onAudit != nil {
		a.onAudit(kind.String(), valid)
	}
}
