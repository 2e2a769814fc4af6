package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/formatexp/formatexp/pkg/credits"
)

// config is assembled from environment variables; a .env file in the
// working directory is loaded first when present.
type config struct {
	ListenAddr string

	TokenSecret string
	TokenTTL    time.Duration

	// Storage backends, first match wins: Firestore, Postgres, memory.
	FirestoreProjectID string
	DatabaseURL        string

	RedisAddr     string
	RedisPassword string

	OpenAIAPIKey string
	OpenAIModel  string

	StripeAPIKey        string
	StripeWebhookSecret string
	StripePricePro      string
	StripePriceAcademia string
	CheckoutSuccessURL  string
	CheckoutCancelURL   string

	ResetSchedule     string
	GenerateRateLimit int

	LogPretty bool
}

func loadConfig() (config, error) {
	// Missing .env is fine; real deployments set variables directly.
	_ = godotenv.Load()

	cfg := config{
		ListenAddr:          getenv("LISTEN_ADDR", ":8080"),
		TokenSecret:         os.Getenv("TOKEN_SECRET"),
		TokenTTL:            getenvDuration("TOKEN_TTL", 7*24*time.Hour),
		FirestoreProjectID:  os.Getenv("FIRESTORE_PROJECT_ID"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:         os.Getenv("OPENAI_MODEL"),
		StripeAPIKey:        os.Getenv("STRIPE_API_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripePricePro:      os.Getenv("STRIPE_PRICE_PRO"),
		StripePriceAcademia: os.Getenv("STRIPE_PRICE_ACADEMIA"),
		CheckoutSuccessURL:  getenv("CHECKOUT_SUCCESS_URL", "http://localhost:3000/billing/success"),
		CheckoutCancelURL:   getenv("CHECKOUT_CANCEL_URL", "http://localhost:3000/pricing"),
		ResetSchedule:       os.Getenv("RESET_SCHEDULE"),
		GenerateRateLimit:   getenvInt("GENERATE_RATE_LIMIT", 0),
		LogPretty:           getenvBool("LOG_PRETTY", false),
	}

	if cfg.TokenSecret == "" {
		return cfg, fmt.Errorf("TOKEN_SECRET is required")
	}
	if cfg.OpenAIAPIKey == "" {
		return cfg, fmt.Errorf("OPENAI_API_KEY is required")
	}
	return cfg, nil
}

func (c config) planPrices() map[credits.Plan]string {
	prices := make(map[credits.Plan]string)
	if c.StripePricePro != "" {
		prices[credits.PlanPro] = c.StripePricePro
	}
	if c.StripePriceAcademia != "" {
		prices[credits.PlanAcademia] = c.StripePriceAcademia
	}
	return prices
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
