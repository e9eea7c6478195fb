package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr     string
	PostgresDSN  string // kosong -> mode memory
	RedisAddr    string // kosong -> cache & idempotency dimatikan
	KafkaBrokers []string
	ServiceName  string

	JWTSecret string
	JWTTTL    time.Duration

	// STATUS_POLICY: "seller" (default) | "open"
	StatusPolicy        string
	EnforceTransitions  bool
	ReservationRollback bool

	ProjectorGroup   string
	ProjectorWorkers int
}

// DevJWTSecret is only used in memory mode when JWT_SECRET is unset.
const DevJWTSecret = "dev-secret"

var ErrJWTSecretRequired = errors.New("JWT_SECRET must be set to a non-default value when POSTGRES_DSN is set")

func Load() Config {
	cfg := Config{
		HTTPAddr:     getenv("HTTP_ADDR", ":8081"),
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		KafkaBrokers: splitCSV(os.Getenv("KAFKA_BROKERS")),
		ServiceName:  getenv("SERVICE_NAME", "storefront-orders"),

		JWTSecret: os.Getenv("JWT_SECRET"),
		JWTTTL:    getduration("JWT_TTL", 24*time.Hour),

		StatusPolicy:        getenv("STATUS_POLICY", "seller"),
		EnforceTransitions:  getbool("ENFORCE_TRANSITIONS", false),
		ReservationRollback: getbool("RESERVATION_ROLLBACK", true),

		ProjectorGroup:   getenv("PROJECTOR_GROUP", "order-projector"),
		ProjectorWorkers: getint("PROJECTOR_WORKERS", 4),
	}
	if cfg.JWTSecret == "" && cfg.PostgresDSN == "" {
		cfg.JWTSecret = DevJWTSecret
	}
	return cfg
}

// DevSecret reports whether tokens are signed with the built-in development secret.
func (c Config) DevSecret() bool { return c.JWTSecret == DevJWTSecret }

// Validate rejects a persistent deployment that would accept tokens signed with a
// missing or publicly known secret.
func (c Config) Validate() error {
	if c.PostgresDSN != "" && (c.JWTSecret == "" || c.DevSecret()) {
		return ErrJWTSecretRequired
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getbool(k string, def bool) bool {
	b, err := strconv.ParseBool(os.Getenv(k))
	if err != nil {
		return def
	}
	return b
}

func getint(k string, def int) int {
	i, err := strconv.Atoi(os.Getenv(k))
	if err != nil || i <= 0 {
		return def
	}
	return i
}

func getduration(k string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(k))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
