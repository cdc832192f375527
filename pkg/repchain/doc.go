// Package repchain reimplements the integrity algorithm of the 8004
// reputation registry's on-chain event log, so any third party can verify
// an indexed event stream without trusting the indexer.
//
// The registry keeps three append-only chains per asset — feedback,
// response and revoke — each summarised on chain as a single running
// Keccak-256 digest. This package reproduces that digest byte-for-byte:
// encode an event's content into a seal hash, bind it to its position as a
// leaf hash, fold leaves into the running digest, and replay a whole stream
// to find the first point of divergence.
//
// Everything here is a pure function over caller-owned values: no I/O, no
// caching, no state shared between calls. Replays of different chains may
// run concurrently without coordination.
//
// # Fingerprinting feedback content
//
// A seal hash fingerprints what was said, independent of where the event
// later lands on chain. Transaction builders need it to cite earlier
// feedback, e.g. in a revoke instruction:
//
//	score := 97
//	sealHash, err := repchain.ComputeSealHash(repchain.SealParams{
//	    Value:         big.NewInt(2_500_000),
//	    ValueDecimals: 6,
//	    Score:         &score,
//	    Tag1:          "uptime",
//	    Endpoint:      "https://api.example.com/v2",
//	    FeedbackURI:   "ipfs://bafy.../feedback.json",
//	})
//
// # Verifying an indexed stream
//
// Feed the events in on-chain append order; any digest stored alongside an
// event is cross-checked as the fold passes it:
//
//	result, err := repchain.ReplayFeedbackChain(events)
//	if err != nil {
//	    // malformed input, nothing was verified
//	}
//	if !result.Valid {
//	    // chain broken at events[result.MismatchAt]
//	}
//
// # Resuming from a checkpoint
//
// A previously verified (digest, count) pair avoids re-hashing history:
//
//	result, err := repchain.ReplayFeedbackChain(newEvents,
//	    repchain.WithCheckpoint(checkpointDigest, checkpointCount),
//	)
//
// The final digest of one replay is a valid checkpoint for the next.
package repchain
