// Package classification decides whether an email documents a real, upcoming
// travel booking, and extracts the dates it mentions.
package classification

import (
	"fmt"
	"strings"
	"time"

	"travel_server/pkg/logger"
	"travel_server/pkg/metrics"
)

// Gate identifies the stage that produced a decision
type Gate string

const (
	GateExclusion        Gate = "exclusion"
	GateBookingIndicator Gate = "booking_indicator"
	GateFutureDate       Gate = "future_date"
	GateEvidence         Gate = "evidence"
)

// Decision is the full trace of one classification.
// Gate is the rejecting gate, or GateEvidence on acceptance.
type Decision struct {
	Accepted       bool       `json:"accepted"`
	Gate           Gate       `json:"gate"`
	Reason         string     `json:"reason"`
	Keyword        string     `json:"keyword,omitempty"`
	EarliestFuture *time.Time `json:"earliest_future,omitempty"`
	Category       string     `json:"category,omitempty"`
	Pattern        string     `json:"pattern,omitempty"`
}

// RelevanceClassifier runs the four-gate booking relevance check
type RelevanceClassifier struct {
	bank  *KeywordBank
	dates *DateExtractor
	log   *logger.Logger
}

// NewRelevanceClassifier wires a keyword bank and date extractor. Nil
// arguments fall back to the embedded tables and the system clock.
func NewRelevanceClassifier(bank *KeywordBank, dates *DateExtractor) *RelevanceClassifier {
	if bank == nil {
		bank = DefaultKeywordBank()
	}
	if dates == nil {
		dates = NewDateExtractor()
	}
	return &RelevanceClassifier{
		bank:  bank,
		dates: dates,
		log:   logger.WithField("component", "classifier"),
	}
}

// Dates exposes the extractor so callers share one clock
func (c *RelevanceClassifier) Dates() *DateExtractor {
	return c.dates
}

// IsTravelRelated reports whether the email passes every gate
func (c *RelevanceClassifier) IsTravelRelated(subject, body string) bool {
	return c.Classify(subject, body).Accepted
}

// Classify evaluates the email, then logs and counts the decision
func (c *RelevanceClassifier) Classify(subject, body string) Decision {
	d := c.Evaluate(subject, body)
	metrics.RecordDecision(string(d.Gate), d.Accepted)

	l := c.log.WithFields(map[string]any{
		"gate":    string(d.Gate),
		"subject": subject,
	})
	if d.Accepted {
		l.WithFields(map[string]any{
			"category":        d.Category,
			"earliest_future": d.EarliestFuture.Format(time.RFC3339),
		}).Info("travel email accepted")
	} else {
		l.WithField("reason", d.Reason).Info("travel email rejected")
	}
	return d
}

// Evaluate runs the gates in order and stops at the first failure.
// It has no side effects.
func (c *RelevanceClassifier) Evaluate(subject, body string) Decision {
	lowerSubject := strings.ToLower(subject)
	lowerBody := strings.ToLower(body)

	// Gate 1: promotional or tracking vocabulary in the subject
	if kw, found := firstContained(c.bank.exclusions, lowerSubject); found {
		return Decision{
			Gate:    GateExclusion,
			Keyword: kw,
			Reason:  fmt.Sprintf("subject contains exclusion keyword %q", kw),
		}
	}

	// Gate 2: something that reads like a reservation
	indicator, found := firstContained(c.bank.indicators, lowerSubject, lowerBody)
	if !found {
		return Decision{
			Gate:   GateBookingIndicator,
			Reason: "no booking indicator in subject or body",
		}
	}

	// Gate 3: at least one strictly-future date
	hasFuture, earliest := c.dates.HasFutureDates(subject + " " + body)
	if !hasFuture {
		return Decision{
			Gate:    GateFutureDate,
			Keyword: indicator,
			Reason:  "no future date found",
		}
	}

	// Gate 4: category keyword corroborated by an evidence pattern in the body
	for _, cat := range c.bank.categories {
		for _, kw := range cat.Keywords {
			if !strings.Contains(lowerSubject, kw) && !strings.Contains(lowerBody, kw) {
				continue
			}
			if pattern, ok := c.bank.firstEvidence(body); ok {
				return Decision{
					Accepted:       true,
					Gate:           GateEvidence,
					Keyword:        kw,
					EarliestFuture: &earliest,
					Category:       cat.Name,
					Pattern:        pattern,
					Reason:         fmt.Sprintf("%s keyword %q with booking evidence", cat.Name, kw),
				}
			}
		}
	}

	return Decision{
		Gate:           GateEvidence,
		EarliestFuture: &earliest,
		Reason:         "no category keyword backed by booking evidence",
	}
}
