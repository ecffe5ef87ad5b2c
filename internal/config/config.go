package config

import (
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	Port         string
	DatabaseURL  string
	RedisURL     string
	NatsURL      string
	KafkaBrokers string

	GatewayBaseURL string
	ConsumerKey    string
	ConsumerSecret string
	Shortcode      string
	Passkey        string
	CallbackURL    string
	TokenTTL       time.Duration

	ReconcileAge      time.Duration
	ReconcileInterval time.Duration
}

func Load() *Config {
	return &Config{
		Port:         getenv("PORT", "8084"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		RedisURL:     getenv("REDIS_URL", "localhost:6379"),
		NatsURL:      getenv("NATS_URL", "nats://localhost:4222"),
		KafkaBrokers: getenv("KAFKA_BROKERS", "localhost:9092"),

		GatewayBaseURL: getenv("MPESA_BASE_URL", "https://sandbox.safaricom.co.ke"),
		ConsumerKey:    os.Getenv("MPESA_CONSUMER_KEY"),
		ConsumerSecret: os.Getenv("MPESA_CONSUMER_SECRET"),
		Shortcode:      os.Getenv("MPESA_SHORTCODE"),
		Passkey:        os.Getenv("MPESA_PASSKEY"),
		CallbackURL:    os.Getenv("MPESA_CALLBACK_URL"),
		TokenTTL:       getduration("MPESA_TOKEN_TTL", 45*time.Minute),

		ReconcileAge:      getduration("RECONCILE_AGE", 2*time.Minute),
		ReconcileInterval: getduration("RECONCILE_INTERVAL", 30*time.Second),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
