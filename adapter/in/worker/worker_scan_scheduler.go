// Package worker runs inbox scans in the background.
package worker

import (
	"context"
	"sync"
	"time"

	"travel_server/core/service/travel"
	"travel_server/pkg/logger"
)

// Scanner is the part of travel.ScanService the scheduler drives
type Scanner interface {
	ScanInbox(ctx context.Context, userID string, opts travel.ScanOptions) (*travel.ScanReport, error)
}

// ScanScheduler rescans a fixed set of inboxes on an interval.
// Users are scanned one after another so each inbox sees one pipeline.
type ScanScheduler struct {
	scanner    Scanner
	users      []string
	opts       travel.ScanOptions
	interval   time.Duration
	runTimeout time.Duration
	log        *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScanScheduler creates a scheduler. Start runs one pass immediately.
func NewScanScheduler(scanner Scanner, users []string, interval time.Duration, opts travel.ScanOptions) *ScanScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &ScanScheduler{
		scanner:    scanner,
		users:      append([]string(nil), users...),
		opts:       opts,
		interval:   interval,
		runTimeout: 10 * time.Minute,
		log:        logger.WithField("component", "scan_scheduler"),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start starts the scheduler loop
func (s *ScanScheduler) Start() {
	s.log.Info("starting: %d users every %v", len(s.users), s.interval)
	s.wg.Add(1)
	go s.run()
}

// Stop cancels any running scan and waits for the loop to exit
func (s *ScanScheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	s.log.Info("stopped")
}

func (s *ScanScheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunOnce(s.ctx)
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(s.ctx)
		}
	}
}

// RunOnce scans every configured user and returns the reports that completed
func (s *ScanScheduler) RunOnce(ctx context.Context) []*travel.ScanReport {
	reports := make([]*travel.ScanReport, 0, len(s.users))
	for _, userID := range s.users {
		if ctx.Err() != nil {
			break
		}

		runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
		report, err := s.scanner.ScanInbox(runCtx, userID, s.opts)
		cancel()

		if err != nil {
			s.log.WithError(err).WithField("user_id", userID).Error("scheduled scan failed")
			continue
		}
		s.log.WithFields(map[string]any{
			"user_id":  userID,
			"scan_id":  report.ScanID,
			"fetched":  report.Fetched,
			"accepted": report.Accepted,
		}).Info("scheduled scan completed")
		reports = append(reports, report)
	}
	return reports
}
