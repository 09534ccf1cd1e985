// Package travel runs the inbox pipeline: classify each email, extract
// bookings from the accepted ones and merge them into the itinerary.
package travel

import (
	"context"
	"time"

	"github.com/google/uuid"

	"travel_server/core/domain"
	"travel_server/core/port/out"
	"travel_server/core/service/classification"
	"travel_server/pkg/apperr"
	"travel_server/pkg/logger"
	"travel_server/pkg/metrics"
)

const (
	DefaultDaysBack   = 90
	DefaultMaxResults = 50
)

// EmailStatus is the pipeline result for one email
type EmailStatus string

const (
	StatusRejected      EmailStatus = "rejected"
	StatusExtractFailed EmailStatus = "extract_failed"
	StatusNoItems       EmailStatus = "no_items"
	StatusProcessed     EmailStatus = "processed"
	// StatusClassified means accepted with no extraction agent configured
	StatusClassified    EmailStatus = "classified"
)

// Classifier decides relevance for one email
type Classifier interface {
	Classify(subject, body string) classification.Decision
}

// ItineraryStore merges candidate items
type ItineraryStore interface {
	AddOrMerge(ctx context.Context, userID string, candidate domain.TravelItem) (*domain.MergeResult, error)
}

// EmailOutcome records what happened to one email
type EmailOutcome struct {
	MessageID  string                  `json:"message_id,omitempty"`
	Subject    string                  `json:"subject"`
	Status     EmailStatus             `json:"status"`
	Decision   classification.Decision `json:"decision"`
	Commentary string                  `json:"commentary,omitempty"`
	Merges     []domain.MergeResult    `json:"merges,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

// ScanOptions bounds the mail query. Zero fields take the defaults.
type ScanOptions struct {
	DaysBack   int
	MaxResults int
}

// ScanReport summarizes one inbox scan
type ScanReport struct {
	ScanID         string         `json:"scan_id"`
	UserID         string         `json:"user_id"`
	After          time.Time      `json:"after"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
	Fetched        int            `json:"fetched"`
	Accepted       int            `json:"accepted"`
	RejectedByGate map[string]int `json:"rejected_by_gate"`
	ExtractFailed  int            `json:"extract_failed"`
	MergeCounts    map[string]int `json:"merge_counts"`
	Emails         []EmailOutcome `json:"emails"`
}

// ScanService drives the pipeline. The mail source and extractor are
// optional: without a source only ProcessEmail is usable, and without an
// extractor accepted emails are reported but not merged.
type ScanService struct {
	classifier Classifier
	extractor  out.ExtractionAgent
	store      ItineraryStore
	source     out.MailSource
	now        func() time.Time
	log        *logger.Logger
}

type ScanOption func(*ScanService)

func WithMailSource(src out.MailSource) ScanOption {
	return func(s *ScanService) { s.source = src }
}

func WithScanClock(now func() time.Time) ScanOption {
	return func(s *ScanService) { s.now = now }
}

func NewScanService(classifier Classifier, extractor out.ExtractionAgent, store ItineraryStore, opts ...ScanOption) *ScanService {
	s := &ScanService{
		classifier: classifier,
		extractor:  extractor,
		store:      store,
		now:        time.Now,
		log:        logger.WithField("component", "scan"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HasMailSource reports whether ScanInbox can run
func (s *ScanService) HasMailSource() bool {
	return s.source != nil
}

// ProcessEmail runs one email through the pipeline. Emails are processed
// one at a time; a store failure is returned with the partial outcome.
func (s *ScanService) ProcessEmail(ctx context.Context, userID string, msg out.MailMessage) (*EmailOutcome, error) {
	outcome := &EmailOutcome{MessageID: msg.ID, Subject: msg.Subject}

	outcome.Decision = s.classifier.Classify(msg.Subject, msg.Body)
	if !outcome.Decision.Accepted {
		outcome.Status = StatusRejected
		return outcome, nil
	}

	if s.extractor == nil {
		outcome.Status = StatusClassified
		return outcome, nil
	}

	log := s.log.WithFields(map[string]any{"user_id": userID, "subject": msg.Subject})

	extraction, err := s.extractor.Extract(ctx, userID, msg.Subject+"\n\n"+msg.Body)
	if err != nil {
		metrics.ExtractionFailures.Inc()
		log.WithError(err).Warn("extraction failed, skipping email")
		outcome.Status = StatusExtractFailed
		outcome.Error = err.Error()
		return outcome, nil
	}
	outcome.Commentary = extraction.Commentary

	if len(extraction.Items) == 0 {
		outcome.Status = StatusNoItems
		return outcome, nil
	}

	for _, item := range extraction.Items {
		res, err := s.store.AddOrMerge(ctx, userID, item)
		if err != nil {
			if apperr.HasCode(err, apperr.CodeStorageError) {
				outcome.Status = StatusProcessed
				outcome.Error = err.Error()
				return outcome, err
			}
			// Validation failures drop the item only
			log.WithError(err).Warn("dropping invalid extracted item")
			continue
		}
		outcome.Merges = append(outcome.Merges, *res)
	}

	outcome.Status = StatusProcessed
	if len(outcome.Merges) == 0 {
		outcome.Status = StatusNoItems
	}
	return outcome, nil
}

// ScanInbox fetches mail received in the last DaysBack days and processes
// it in order. A store write failure aborts the scan and is returned with
// the partial report.
func (s *ScanService) ScanInbox(ctx context.Context, userID string, opts ScanOptions) (*ScanReport, error) {
	if s.source == nil {
		return nil, apperr.ConfigError("no mail source configured")
	}
	if opts.DaysBack <= 0 {
		opts.DaysBack = DefaultDaysBack
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}

	start := s.now()
	report := &ScanReport{
		ScanID:         uuid.NewString(),
		UserID:         userID,
		After:          start.AddDate(0, 0, -opts.DaysBack),
		StartedAt:      start,
		RejectedByGate: map[string]int{},
		MergeCounts:    map[string]int{},
		Emails:         []EmailOutcome{},
	}
	log := s.log.WithFields(map[string]any{"scan_id": report.ScanID, "user_id": userID})

	timer := time.Now()
	defer func() {
		metrics.ScanDuration.Observe(time.Since(timer).Seconds())
	}()

	msgs, err := s.source.FetchMessages(ctx, out.MailQuery{After: report.After, MaxResults: opts.MaxResults})
	if err != nil {
		return nil, apperr.ExternalError("mail source", err)
	}
	report.Fetched = len(msgs)
	log.Info("scanning %d emails since %s", len(msgs), report.After.Format("2006-01-02"))

	for _, msg := range msgs {
		if err := ctx.Err(); err != nil {
			report.FinishedAt = s.now()
			return report, err
		}

		outcome, err := s.ProcessEmail(ctx, userID, msg)
		report.add(outcome)
		if err != nil {
			report.FinishedAt = s.now()
			log.WithError(err).Error("scan aborted")
			return report, err
		}
	}

	report.FinishedAt = s.now()
	log.WithFields(map[string]any{
		"fetched":  report.Fetched,
		"accepted": report.Accepted,
	}).Info("scan finished")
	return report, nil
}

func (r *ScanReport) add(o *EmailOutcome) {
	r.Emails = append(r.Emails, *o)
	if !o.Decision.Accepted {
		r.RejectedByGate[string(o.Decision.Gate)]++
		return
	}
	r.Accepted++
	if o.Status == StatusExtractFailed {
		r.ExtractFailed++
	}
	for _, m := range o.Merges {
		r.MergeCounts[string(m.Outcome)]++
	}
}
