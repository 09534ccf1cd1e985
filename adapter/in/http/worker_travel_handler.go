package http

import (
	"context"
	"strings"

	"travel_server/core/domain"
	"travel_server/core/port/out"
	"travel_server/core/service/itinerary"
	"travel_server/core/service/travel"
	"travel_server/pkg/apperr"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

// EmailPipeline is the part of travel.ScanService the API drives
type EmailPipeline interface {
	ProcessEmail(ctx context.Context, userID string, msg out.MailMessage) (*travel.EmailOutcome, error)
	ScanInbox(ctx context.Context, userID string, opts travel.ScanOptions) (*travel.ScanReport, error)
	HasMailSource() bool
}

// Itinerary is the part of itinerary.Store the API drives
type Itinerary interface {
	AddOrMerge(ctx context.Context, userID string, candidate domain.TravelItem) (*domain.MergeResult, error)
	GetUserTrips(ctx context.Context, userID string, q itinerary.TripQuery) []domain.TravelItem
}

// Digests is the part of travel.SummaryService the API drives
type Digests interface {
	Summarize(ctx context.Context, userID string) (string, error)
	SendDigest(ctx context.Context, userID string) (string, error)
}

// TravelHandler serves classification, ingestion and itinerary routes
type TravelHandler struct {
	classifier travel.Classifier
	pipeline   EmailPipeline
	trips      Itinerary
	digests    Digests
}

func NewTravelHandler(classifier travel.Classifier, pipeline EmailPipeline, trips Itinerary, digests Digests) *TravelHandler {
	return &TravelHandler{
		classifier: classifier,
		pipeline:   pipeline,
		trips:      trips,
		digests:    digests,
	}
}

// Register registers travel routes. limit runs before the routes that call
// an LLM or the mail provider.
func (h *TravelHandler) Register(router fiber.Router, limit ...fiber.Handler) {
	router.Post("/classify", h.Classify)

	limited := func(handler fiber.Handler) []fiber.Handler {
		return append(append([]fiber.Handler{}, limit...), handler)
	}

	users := router.Group("/users/:userID")
	users.Post("/emails", limited(h.IngestEmail)...)
	users.Post("/scan", limited(h.Scan)...)
	users.Post("/items", h.StoreItem)
	users.Get("/trips", h.GetTrips)
	users.Get("/summary", limited(h.GetSummary)...)
	users.Post("/summary/send", limited(h.SendSummary)...)
}

type emailRequest struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func parseEmail(c *fiber.Ctx) (*emailRequest, error) {
	var req emailRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return nil, apperr.BadRequest("invalid request body").WithError(err)
	}
	if strings.TrimSpace(req.Subject) == "" && strings.TrimSpace(req.Body) == "" {
		return nil, apperr.ValidationFailed("subject or body is required")
	}
	return &req, nil
}

// Classify returns the full gate trace for an email
// @Router /api/v1/classify [post]
func (h *TravelHandler) Classify(c *fiber.Ctx) error {
	req, err := parseEmail(c)
	if err != nil {
		return AppErrorResponse(c, err)
	}
	decision := h.classifier.Classify(req.Subject, req.Body)
	return SuccessResponse(c, decision)
}

// IngestEmail runs classify, extract and merge for one email
// @Router /api/v1/users/{userID}/emails [post]
func (h *TravelHandler) IngestEmail(c *fiber.Ctx) error {
	userID, err := UserIDParam(c)
	if err != nil {
		return AppErrorResponse(c, err)
	}
	req, err := parseEmail(c)
	if err != nil {
		return AppErrorResponse(c, err)
	}

	outcome, err := h.pipeline.ProcessEmail(c.UserContext(), userID, out.MailMessage{
		ID:      req.ID,
		Subject: req.Subject,
		Body:    req.Body,
	})
	if err != nil {
		return AppErrorResponse(c, err)
	}
	return SuccessResponse(c, outcome)
}

type scanRequest struct {
	DaysBack   int `json:"days_back"`
	MaxResults int `json:"max_results"`
}

// Scan runs an inbox scan against the configured mail source
// @Router /api/v1/users/{userID}/scan [post]
func (h *TravelHandler) Scan(c *fiber.Ctx) error {
	userID, err := UserIDParam(c)
	if err != nil {
		return AppErrorResponse(c, err)
	}
	if !h.pipeline.HasMailSource() {
		return AppErrorResponse(c, apperr.ConfigError("no mail source configured"))
	}

	var req scanRequest
	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return AppErrorResponse(c, apperr.BadRequest("invalid request body").WithError(err))
		}
	}
	if req.DaysBack < 0 || req.MaxResults < 0 {
		return AppErrorResponse(c, apperr.ValidationFailed("days_back and max_results must not be negative"))
	}

	report, err := h.pipeline.ScanInbox(c.UserContext(), userID, travel.ScanOptions{
		DaysBack:   req.DaysBack,
		MaxResults: req.MaxResults,
	})
	if err != nil {
		return AppErrorResponse(c, err)
	}
	return SuccessResponse(c, report)
}

// StoreItem validates a travel item and merges it into the itinerary
// @Router /api/v1/users/{userID}/items [post]
func (h *TravelHandler) StoreItem(c *fiber.Ctx) error {
	userID, err := UserIDParam(c)
	if err != nil {
		return AppErrorResponse(c, err)
	}
	item, err := domain.DecodeTravelItem(c.Body())
	if err != nil {
		return AppErrorResponse(c, err)
	}

	result, err := h.trips.AddOrMerge(c.UserContext(), userID, *item)
	if err != nil {
		return AppErrorResponse(c, err)
	}
	if result.Outcome == domain.MergeAdded {
		return CreatedResponse(c, result)
	}
	return SuccessResponse(c, result)
}

// GetTrips lists the user's itinerary
// @Param include_past query bool false "Include items that already started"
// @Param include_cancelled query bool false "Include cancelled items"
// @Router /api/v1/users/{userID}/trips [get]
func (h *TravelHandler) GetTrips(c *fiber.Ctx) error {
	userID, err := UserIDParam(c)
	if err != nil {
		return AppErrorResponse(c, err)
	}
	items := h.trips.GetUserTrips(c.UserContext(), userID, itinerary.TripQuery{
		IncludePast:      QueryBool(c, "include_past", false),
		IncludeCancelled: QueryBool(c, "include_cancelled", false),
	})
	return SuccessResponse(c, fiber.Map{
		"user_id": userID,
		"items":   items,
		"total":   len(items),
	})
}

// GetSummary renders the upcoming-travel digest
// @Router /api/v1/users/{userID}/summary [get]
func (h *TravelHandler) GetSummary(c *fiber.Ctx) error {
	userID, err := UserIDParam(c)
	if err != nil {
		return AppErrorResponse(c, err)
	}
	digest, err := h.digests.Summarize(c.UserContext(), userID)
	if err != nil {
		return AppErrorResponse(c, err)
	}
	return SuccessResponse(c, fiber.Map{"user_id": userID, "summary": digest})
}

// SendSummary renders the digest and mails it
// @Router /api/v1/users/{userID}/summary/send [post]
func (h *TravelHandler) SendSummary(c *fiber.Ctx) error {
	userID, err := UserIDParam(c)
	if err != nil {
		return AppErrorResponse(c, err)
	}
	digest, err := h.digests.SendDigest(c.UserContext(), userID)
	if err != nil {
		return AppErrorResponse(c, err)
	}
	return SuccessResponse(c, fiber.Map{"user_id": userID, "summary": digest, "sent": true})
}
