package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kirillkom/bookbot/internal/config"
	"github.com/kirillkom/bookbot/internal/core/domain"
	"github.com/kirillkom/bookbot/internal/core/ports"
	"github.com/kirillkom/bookbot/internal/core/similarity"
	"github.com/kirillkom/bookbot/internal/core/usecase"
	"github.com/kirillkom/bookbot/internal/infrastructure/books/googlebooks"
	"github.com/kirillkom/bookbot/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/bookbot/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/bookbot/internal/infrastructure/queue/nats"
	"github.com/kirillkom/bookbot/internal/infrastructure/ratelimit"
	"github.com/kirillkom/bookbot/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/bookbot/internal/infrastructure/resilience"
	"github.com/kirillkom/bookbot/internal/infrastructure/session"
	"github.com/kirillkom/bookbot/internal/observability/logging"
	"github.com/kirillkom/bookbot/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Resolver     *usecase.BookIdentityResolver
	Confirmation *usecase.ConfirmationService
	Metrics      *metrics.Metrics
	// Bus is nil when NATS_URL is empty.
	Bus *nats.Publisher

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	m := metrics.New(service)
	tuning := cfg.Resolver

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	catalog := postgres.NewCatalogRepository(db)
	reviews := postgres.NewReviewRepository(db)

	var (
		alerter ports.Alerter = logging.AlertLogger{}
		events  ports.EventPublisher
		bus     *nats.Publisher
	)
	if cfg.NATSURL != "" {
		bus, err = nats.NewWithOptions(cfg.NATSURL, nats.Options{
			AlertSubject:       cfg.NATSAlertSubject,
			ReviewSubject:      cfg.NATSReviewSubject,
			ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig()).WithRetryObserver(m.RecordRetry),
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init message bus: %w", err)
		}
		alerter = bus
		events = bus
	}

	fetcher := ratelimit.New(&http.Client{Timeout: 15 * time.Second}, ratelimit.Config{
		Source:         "googlebooks",
		Delay:          tuning.Delay(),
		MaxRetries:     tuning.MaxRetries,
		InitialBackoff: tuning.InitialBackoff(),
		OnRetry:        m.RecordRetry,
	}, alerter, m)
	provider := googlebooks.New(cfg.GoogleBooksURL, cfg.GoogleBooksAPIKey, fetcher)

	inferenceExecutor := resilience.NewExecutor(resilience.DefaultConfig()).WithRetryObserver(m.RecordRetry)
	cheap := ollama.NewExtractor(ollama.New(cfg.OllamaURL, cfg.OllamaCheapModel, ollama.Options{ResilienceExecutor: inferenceExecutor}))
	strong := ollama.NewExtractor(ollama.New(cfg.OllamaURL, cfg.OllamaStrongModel, ollama.Options{ResilienceExecutor: inferenceExecutor}))

	var augmented ports.AugmentedAuthorExtractor
	var geminiClient *gemini.AuthorResolver
	if cfg.GeminiAPIKey != "" {
		geminiClient, err = gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			slog.Warn("gemini_unavailable", "error", err)
		} else {
			augmented = geminiClient
		}
	}

	onLimit := func(ctx context.Context, tier string, err error) {
		alert := domain.Alert{
			Kind:    "inference_quota_exceeded",
			Source:  tier,
			Message: err.Error(),
			At:      time.Now().UTC(),
		}
		if alertErr := alerter.Alert(ctx, alert); alertErr != nil {
			slog.Warn("alert_publish_failed", "kind", alert.Kind, "error", alertErr)
		}
	}

	thresholds := similarity.Thresholds{
		Title:  tuning.TitleSimilarityThreshold,
		Author: tuning.AuthorSimilarityThreshold,
	}
	extraction := usecase.NewExtractionPipeline(cheap, cheap, strong, augmented, onLimit)
	dedup := usecase.NewCatalogDeduplicator(catalog, thresholds)
	cascade := usecase.NewSearchCascade(provider, m)
	finalizer := usecase.NewFinalizer(catalog, reviews, events)
	confirmation := usecase.NewConfirmationService(session.NewMemoryStore(), provider, finalizer, m, tuning.SessionExpiry())
	resolver := usecase.NewBookIdentityResolver(extraction, dedup, cascade, confirmation, finalizer, provider, m, usecase.ResolverSettings{
		Thresholds:    thresholds,
		MaxCandidates: tuning.MaxCandidates,
	})

	return &App{
		Config:       cfg,
		Resolver:     resolver,
		Confirmation: confirmation,
		Metrics:      m,
		Bus:          bus,

		closeFn: func() {
			if bus != nil {
				bus.Close()
			}
			if geminiClient != nil {
				_ = geminiClient.Close()
			}
			_ = db.Close()
		},
	}, nil
}

// RunSweeper expires stale confirmation sessions until ctx is done.
func (a *App) RunSweeper(ctx context.Context) error {
	ticker := time.NewTicker(a.Config.Resolver.SweepInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if n := a.Confirmation.Sweep(ctx, now.UTC()); n > 0 {
				slog.Info("sessions_swept", "count", n)
			}
		}
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
