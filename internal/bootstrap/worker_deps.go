package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"

	"travel_server/adapter/out/mongodb"
	"travel_server/adapter/out/notify"
	"travel_server/adapter/out/persistence"
	"travel_server/adapter/out/provider/gmail"
	"travel_server/adapter/out/provider/maildir"
	"travel_server/config"
	"travel_server/core/agent/llm"
	"travel_server/core/port/out"
	"travel_server/core/service/classification"
	"travel_server/core/service/itinerary"
	"travel_server/core/service/travel"
	"travel_server/infra/database"
	"travel_server/pkg/logger"

	"google.golang.org/api/option"
)

type Dependencies struct {
	Config *config.Config

	// Storage
	Repo  out.TripRepository
	Store *itinerary.Store

	// Classification
	Classifier *classification.RelevanceClassifier

	// Agents (nil when LLM_PROVIDER=none)
	Extractor    out.ExtractionAgent
	SummaryAgent out.SummaryAgent

	// Outbound
	MailSource   out.MailSource
	DigestSender out.DigestSender

	// Services
	ScanService    *travel.ScanService
	SummaryService *travel.SummaryService
}

// Options tunes dependency construction per entry point
type Options struct {
	// MaildirPath overrides MAILDIR_PATH for this run
	MaildirPath string
	// SkipMail leaves MailSource nil
	SkipMail bool
}

func NewDependencies(ctx context.Context, cfg *config.Config, opts Options) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	repo, err := newTripRepository(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	deps.Repo = repo
	cleanups = append(cleanups, func() {
		if err := repo.Close(); err != nil {
			logger.WithError(err).Warn("failed to close trip store")
		}
	})

	policy, err := itinerary.ParseMalformedStartPolicy(cfg.MalformedStartPolicy)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.Store = itinerary.NewStore(repo, itinerary.WithMalformedStartPolicy(policy))

	bank := classification.DefaultKeywordBank()
	if cfg.KeywordsFile != "" {
		bank, err = classification.LoadKeywordBank(cfg.KeywordsFile)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("load keyword tables: %w", err)
		}
		logger.Info("Keyword tables loaded from %s", cfg.KeywordsFile)
	}
	deps.Classifier = classification.NewRelevanceClassifier(bank, nil)

	if err := deps.initAgents(ctx); err != nil {
		cleanup()
		return nil, nil, err
	}

	if !opts.SkipMail {
		deps.MailSource = newMailSource(ctx, cfg, opts.MaildirPath)
	}

	if cfg.SMTPEnabled() {
		sender, err := notify.NewSMTPDigestSender(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			To:       cfg.SMTPTo,
		})
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		deps.DigestSender = sender
	}

	var scanOpts []travel.ScanOption
	if deps.MailSource != nil {
		scanOpts = append(scanOpts, travel.WithMailSource(deps.MailSource))
	}
	deps.ScanService = travel.NewScanService(deps.Classifier, deps.Extractor, deps.Store, scanOpts...)
	deps.SummaryService = travel.NewSummaryService(deps.Store, deps.SummaryAgent,
		travel.NewTextDigest(deps.Store.Location()), deps.DigestSender)

	logger.WithFields(map[string]any{
		"store":       cfg.StoreBackend,
		"llm":         cfg.LLMProvider,
		"mail_source": deps.MailSource != nil,
		"smtp":        deps.DigestSender != nil,
	}).Info("Dependencies initialized")

	return deps, cleanup, nil
}

func newTripRepository(ctx context.Context, cfg *config.Config) (out.TripRepository, error) {
	switch cfg.StoreBackend {
	case config.StoreRedis:
		client, err := database.NewRedis(ctx, cfg.RedisURL, nil)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return persistence.NewRedisTripAdapter(client, cfg.RedisKeyPrefix), nil

	case config.StoreMongo:
		client, err := mongodb.NewClient(ctx, cfg.MongoDBURL)
		if err != nil {
			return nil, err
		}
		adapter := mongodb.NewTripAdapter(client, cfg.MongoDBName)
		if err := adapter.EnsureIndexes(ctx); err != nil {
			_ = adapter.Close()
			return nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		return adapter, nil

	case config.StorePostgres:
		db, err := database.NewPostgres(ctx, cfg.DatabaseURL, nil)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		adapter := persistence.NewPostgresTripAdapter(db, cfg.TripsTable)
		if err := adapter.EnsureSchema(ctx); err != nil {
			_ = adapter.Close()
			return nil, fmt.Errorf("ensure trips table: %w", err)
		}
		return adapter, nil

	default:
		return persistence.NewFileTripAdapter(cfg.StoreFilePath)
	}
}

func (d *Dependencies) initAgents(ctx context.Context) error {
	cfg := d.Config
	clientCfg := llm.ClientConfig{
		MaxTokens:   cfg.LLMMaxTokens,
		Temperature: cfg.LLMTemperature,
		Timeout:     cfg.LLMTimeout(),
	}

	switch cfg.LLMProvider {
	case config.LLMOpenAI:
		if cfg.OpenAIAPIKey == "" {
			logger.Warn("OPENAI_API_KEY not set, extraction disabled")
			return nil
		}
		clientCfg.APIKey = cfg.OpenAIAPIKey
		clientCfg.Model = cfg.LLMModel
		client := llm.NewClientWithConfig(clientCfg)
		d.Extractor = llm.NewToolExtractor(client)
		d.SummaryAgent = llm.NewSummarizer(client, "openai")

	case config.LLMGemini:
		if cfg.GeminiAPIKey == "" {
			logger.Warn("GEMINI_API_KEY not set, extraction disabled")
			return nil
		}
		clientCfg.APIKey = cfg.GeminiAPIKey
		clientCfg.Model = cfg.GeminiModel
		client, err := llm.NewGeminiClient(ctx, clientCfg)
		if err != nil {
			return err
		}
		d.Extractor = llm.NewSchemaExtractor(client)
		d.SummaryAgent = llm.NewSummarizer(client, "gemini")
	}
	return nil
}

// newMailSource prefers a local maildir, then Gmail. A missing Gmail token
// is not fatal: the server still classifies and stores posted mail.
func newMailSource(ctx context.Context, cfg *config.Config, maildirPath string) out.MailSource {
	if maildirPath == "" {
		maildirPath = cfg.MaildirPath
	}
	if maildirPath != "" {
		logger.Info("Using maildir mail source at %s", maildirPath)
		return maildir.NewSource(maildirPath)
	}

	if _, err := os.Stat(cfg.GmailCredentialsFile); err != nil {
		logger.Debug("No Gmail credentials at %s, mail source disabled", cfg.GmailCredentialsFile)
		return nil
	}
	httpClient, err := gmail.Client(ctx, cfg.GmailCredentialsFile, cfg.GmailTokenFile)
	if err != nil {
		if errors.Is(err, gmail.ErrNoToken) {
			logger.Warn("Gmail token missing, run `travel auth` to authorize")
		} else {
			logger.WithError(err).Warn("Gmail client unavailable")
		}
		return nil
	}

	provider, err := gmail.NewProvider(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		logger.WithError(err).Warn("Gmail provider unavailable")
		return nil
	}
	return provider
}
