package service

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Watcher periodically audits a fixed set of assets.
type Watcher struct {
	auditor  *Auditor
	assets   [][]byte
	interval time.Duration
	logger   *zap.Logger
}

// NewWatcher creates a Watcher that audits the given assets every interval
// (default: 5 minutes).
func NewWatcher(auditor *Auditor, assets [][]byte, interval time.Duration, logger *zap.Logger) *Watcher {
	if interval == 0 {
		interval = 5 * time.Minute
	}
	return &Watcher{
		auditor:  auditor,
		assets:   assets,
		interval: interval,
		logger:   logger,
	}
}

// Start runs the audit loop until quit is signalled.
func (w *Watcher) Start(quit <-chan struct{}) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			timeout := w.interval - time.Second
			if timeout <= 0 {
				timeout = w.interval
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			w.RunOnce(ctx)
			cancel()
		case <-quit:
			return
		}
	}
}

// RunOnce audits every watched asset with bounded concurrency.
func (w *Watcher) RunOnce(ctx context.Context) {
	sem := make(chan struct{}, 4)
	var wg sync.WaitGroup

	for _, asset := range w.assets {
		wg.Add(1)
		go func(asset []byte) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if _, err := w.auditor.AuditAsset(ctx, asset); err != nil {
				w.logger.Error("watch: audit asset",
					zap.String("asset", hex.EncodeToString(asset)),
					zap.Error(err),
				)
			}
		}(asset)
	}
	wg.Wait()
}
