// Command server runs the FormatExp API: auth, generation, materials
// history, waitlist capture, Stripe billing and the monthly credit
// reset, all behind one HTTP listener.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cloudfirestore "cloud.google.com/go/firestore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/formatexp/formatexp/pkg/api"
	"github.com/formatexp/formatexp/pkg/auth"
	"github.com/formatexp/formatexp/pkg/billing"
	billingprom "github.com/formatexp/formatexp/pkg/billing/metrics/prometheus"
	billingstripe "github.com/formatexp/formatexp/pkg/billing/stripe"
	"github.com/formatexp/formatexp/pkg/credits"
	zerologadapter "github.com/formatexp/formatexp/pkg/credits/logger/zerolog"
	prommetrics "github.com/formatexp/formatexp/pkg/credits/metrics/prometheus"
	"github.com/formatexp/formatexp/pkg/openai"
	"github.com/formatexp/formatexp/pkg/reset"
	"github.com/formatexp/formatexp/pkg/waitlist"
	"github.com/formatexp/formatexp/storage/firestore"
	"github.com/formatexp/formatexp/storage/memory"
	"github.com/formatexp/formatexp/storage/postgres"
)

const shutdownTimeout = 15 * time.Second

// store is what a storage backend must provide to serve the full API.
type store interface {
	credits.AccountStore
	credits.MaterialStore
	waitlist.Store
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fatal := zerolog.New(os.Stderr)
		fatal.Fatal().Err(err).Msg("invalid configuration")
	}

	zl := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.LogPretty {
		zl = zl.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	logger := zerologadapter.NewLogger(zl)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	metrics := prommetrics.NewMetrics(registry, "formatexp")

	storage, cleanup, err := openStorage(ctx, cfg, zl)
	if err != nil {
		zl.Fatal().Err(err).Msg("failed to open storage")
	}
	defer cleanup()

	provider, err := openai.NewClient(openai.Config{
		APIKey: cfg.OpenAIAPIKey,
		Model:  cfg.OpenAIModel,
	})
	if err != nil {
		zl.Fatal().Err(err).Msg("failed to create content provider")
	}
	zl.Info().Str("model", provider.Model()).Msg("content provider ready")

	gate, err := credits.NewGate(credits.GateConfig{
		Accounts:  storage,
		Materials: storage,
		Provider:  provider,
		Logger:    logger,
		Metrics:   metrics,
	})
	if err != nil {
		zl.Fatal().Err(err).Msg("failed to create generation gate")
	}

	tokens, err := auth.NewTokenSigner(cfg.TokenSecret, cfg.TokenTTL)
	if err != nil {
		zl.Fatal().Err(err).Msg("failed to create token signer")
	}

	var checkout api.CheckoutProvider
	var webhookHandler http.Handler
	if cfg.StripeAPIKey != "" {
		handler, err := billing.NewHandler(storage, logger, metrics)
		if err != nil {
			zl.Fatal().Err(err).Msg("failed to create billing handler")
		}
		stripeProvider, err := billingstripe.NewProvider(billingstripe.Config{
			Handler:       handler,
			APIKey:        cfg.StripeAPIKey,
			WebhookSecret: cfg.StripeWebhookSecret,
			PlanPrices:    cfg.planPrices(),
			Logger:        logger,
			Metrics:       billingprom.NewMetrics(registry, "formatexp"),
		})
		if err != nil {
			zl.Fatal().Err(err).Msg("failed to create stripe provider")
		}
		checkout = stripeProvider
		webhookHandler = stripeProvider.WebhookHandler()
		zl.Info().Msg("stripe billing enabled")
	} else {
		zl.Warn().Msg("stripe billing disabled, no STRIPE_API_KEY")
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			zl.Warn().Err(err).Msg("redis unreachable, generation rate limiting disabled")
			redisClient = nil
		}
	}

	server, err := api.NewServer(api.Config{
		Accounts:           storage,
		Materials:          storage,
		Gate:               gate,
		Tokens:             tokens,
		Waitlist:           storage,
		Checkout:           checkout,
		WebhookHandler:     webhookHandler,
		CheckoutSuccessURL: cfg.CheckoutSuccessURL,
		CheckoutCancelURL:  cfg.CheckoutCancelURL,
		Redis:              redisClient,
		GenerateRateLimit:  cfg.GenerateRateLimit,
		Logger:             logger,
	})
	if err != nil {
		zl.Fatal().Err(err).Msg("failed to create API server")
	}

	resetJob, err := reset.NewJob(reset.Config{
		Accounts: storage,
		Schedule: cfg.ResetSchedule,
		Logger:   logger,
		Metrics:  metrics,
	})
	if err != nil {
		zl.Fatal().Err(err).Msg("failed to create reset job")
	}
	if err := resetJob.Start(); err != nil {
		zl.Fatal().Err(err).Msg("failed to start reset job")
	}
	defer resetJob.Stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle("/", server)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zl.Info().Str("addr", cfg.ListenAddr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zl.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zl.Fatal().Err(err).Msg("server error")
	}
	zl.Info().Msg("server stopped")
}

// openStorage picks the backend from configuration: Firestore when a
// project is set, Postgres when DATABASE_URL is set, memory otherwise.
func openStorage(ctx context.Context, cfg config, zl zerolog.Logger) (store, func(), error) {
	switch {
	case cfg.FirestoreProjectID != "":
		client, err := cloudfirestore.NewClient(ctx, cfg.FirestoreProjectID)
		if err != nil {
			return nil, nil, err
		}
		s, err := firestore.New(client, firestore.Config{})
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		zl.Info().Str("project", cfg.FirestoreProjectID).Msg("using firestore storage")
		return s, func() { _ = client.Close() }, nil

	case cfg.DatabaseURL != "":
		pgConfig := postgres.DefaultConfig()
		pgConfig.ConnectionString = cfg.DatabaseURL
		s, err := postgres.New(ctx, pgConfig)
		if err != nil {
			return nil, nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, nil, err
		}
		zl.Info().Msg("using postgres storage")
		return s, s.Close, nil

	default:
		zl.Warn().Msg("using in-memory storage, data will not survive restarts")
		return memory.New(), func() {}, nil
	}
}
