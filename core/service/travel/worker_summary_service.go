package travel

import (
	"context"
	"fmt"

	"travel_server/core/domain"
	"travel_server/core/port/out"
	"travel_server/core/service/itinerary"
	"travel_server/pkg/apperr"
	"travel_server/pkg/logger"
)

// TripReader returns a user's items
type TripReader interface {
	GetUserTrips(ctx context.Context, userID string, q itinerary.TripQuery) []domain.TravelItem
}

// SummaryService builds and optionally delivers itinerary digests.
// LLM summaries fall back to the local renderer on failure.
type SummaryService struct {
	trips    TripReader
	agent    out.SummaryAgent
	fallback *TextDigest
	sender   out.DigestSender
	log      *logger.Logger
}

// NewSummaryService wires the digest pipeline. A nil agent renders locally;
// a nil sender disables SendDigest.
func NewSummaryService(trips TripReader, agent out.SummaryAgent, fallback *TextDigest, sender out.DigestSender) *SummaryService {
	if fallback == nil {
		fallback = NewTextDigest(nil)
	}
	if agent == nil {
		agent = fallback
	}
	return &SummaryService{
		trips:    trips,
		agent:    agent,
		fallback: fallback,
		sender:   sender,
		log:      logger.WithField("component", "summary"),
	}
}

// Summarize renders the user's upcoming active items
func (s *SummaryService) Summarize(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", apperr.MissingField("user_id")
	}
	items := s.trips.GetUserTrips(ctx, userID, itinerary.TripQuery{})

	digest, err := s.agent.Summarize(ctx, userID, items)
	if err == nil {
		return digest, nil
	}
	if s.agent == out.SummaryAgent(s.fallback) {
		return "", err
	}

	s.log.WithError(err).WithField("user_id", userID).Warn("summary agent failed, rendering locally")
	return s.fallback.Summarize(ctx, userID, items)
}

// SendDigest renders and e-mails the digest
func (s *SummaryService) SendDigest(ctx context.Context, userID string) (string, error) {
	if s.sender == nil {
		return "", apperr.ConfigError("digest delivery is not configured")
	}
	digest, err := s.Summarize(ctx, userID)
	if err != nil {
		return "", err
	}
	if err := s.sender.SendDigest(ctx, fmt.Sprintf("Upcoming travel for %s", userID), digest); err != nil {
		return "", apperr.ExternalError("smtp", err)
	}
	return digest, nil
}
