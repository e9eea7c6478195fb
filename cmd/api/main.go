package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/config"
	"github.com/ariefcatur/go-storefront-orders/internal/httpx"
	"github.com/ariefcatur/go-storefront-orders/internal/identity"
	"github.com/ariefcatur/go-storefront-orders/internal/inventory"
	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/lifecycle"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/postgres"
	"github.com/ariefcatur/go-storefront-orders/internal/projection"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("service", cfg.ServiceName)
	slog.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := cfg.Validate(); err != nil {
		log.Error("config", "err", err)
		os.Exit(1)
	}
	if cfg.DevSecret() {
		log.Warn("JWT_SECRET not set; signing tokens with the development secret")
	}
	policy, err := lifecycle.ParsePolicy(cfg.StatusPolicy)
	if err != nil {
		log.Error("config", "err", err)
		os.Exit(1)
	}

	// Stores: Postgres when configured, memory otherwise
	var (
		inv   inventory.Catalog
		store orders.Store
		proj  projection.Store
	)
	if cfg.PostgresDSN != "" {
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Error("db connect", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			log.Error("db schema", "err", err)
			os.Exit(1)
		}
		inv = &inventory.Repo{DB: db}
		store = &orders.Repo{DB: db}
		proj = &projection.Repo{DB: db}
	} else {
		log.Warn("POSTGRES_DSN not set; using in-memory stores")
		mem := inventory.NewMemory()
		pm := projection.NewMemory()
		pm.Exists = func(ctx context.Context, productID string) bool {
			_, err := mem.Get(ctx, productID)
			return err == nil
		}
		inv, store, proj = mem, orders.NewMemoryStore(), pm
	}

	// Redis
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redisx.New(cfg.RedisAddr)
		defer rdb.Close()
	}

	// Kafka producers, satu per topic
	var (
		events    orders.Events = orders.NopEvents{}
		producers []*kafkax.Producer
	)
	if len(cfg.KafkaBrokers) > 0 {
		created := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024, log)
		changed := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatusChanged, 1024, log)
		created.Start(ctx)
		changed.Start(ctx)
		producers = append(producers, created, changed)
		events = &orders.Publisher{Created: created, StatusChanged: changed, Service: cfg.ServiceName}
	}

	coord := lifecycle.New(inv, store, proj, events, log, lifecycle.Options{
		Policy:             policy,
		EnforceTransitions: cfg.EnforceTransitions,
		Rollback:           cfg.ReservationRollback,
	})

	auth := &httpx.Authenticator{Issuer: identity.NewIssuer(cfg.JWTSecret, cfg.JWTTTL)}
	router := httpx.NewRouter()
	(&httpx.OrdersHandler{Coord: coord, Auth: auth, Redis: rdb, Log: log}).Register(router)
	(&httpx.ProductsHandler{Coord: coord, Auth: auth, Redis: rdb, Log: log}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("HTTP listening", "addr", cfg.HTTPAddr, "policy", policy)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen", "err", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	for _, p := range producers {
		p.Close() // flush inbox, lalu tutup writer
	}
	for _, p := range producers {
		p.WaitClosed()
	}
	cancel()
}
