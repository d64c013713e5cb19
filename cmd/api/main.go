package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/safar/tackle-shop/internal/api"
	"github.com/safar/tackle-shop/internal/auditlog"
	"github.com/safar/tackle-shop/internal/auditlog/sqlite"
	"github.com/safar/tackle-shop/internal/catalog"
	"github.com/safar/tackle-shop/internal/config"
	"github.com/safar/tackle-shop/internal/database"
	"github.com/safar/tackle-shop/internal/events"
	"github.com/safar/tackle-shop/internal/models"
	"github.com/safar/tackle-shop/internal/session"
	"github.com/safar/tackle-shop/internal/shop"
	"github.com/safar/tackle-shop/internal/store"
	"github.com/safar/tackle-shop/internal/store/memstore"
	"github.com/safar/tackle-shop/internal/telemetry"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// backend is everything the service and the session manager need from
// persistence.
type backend interface {
	catalog.Index
	shop.CartStore
	shop.OrderStore
	session.UserLookup
}

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := telemetry.NewLogger(os.Stderr, cfg.Log.Level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, shutdownTracer, err := telemetry.SetupTracer(ctx, cfg.Tracing.ServiceName, cfg.Tracing.Endpoint)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	var data backend
	switch cfg.Store.Driver {
	case "postgres":
		db, err := database.NewConnection(ctx, &cfg.Database)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()
		data = store.NewRepository(db)
		logger.Info("connected to database")
	case "memory":
		mem := memstore.New()
		seedDemo(mem)
		data = mem
		logger.Warn("using in-memory store with demo data")
	}

	var sessionStore session.Store
	switch cfg.Session.Driver {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		sessionStore = session.NewRedisStore(client, cfg.Redis.KeyPrefix)
	case "memory":
		sessionStore = session.NewMemoryStore()
	}

	bus := events.NewBus()
	badges := events.NewBadgeCounter()
	bus.Subscribe(badges.Handle)
	bus.Subscribe(func(ctx context.Context, e events.Event) {
		logger.DebugContext(ctx, "event published", "event", e.Name())
	})

	var history auditlog.Repository
	if cfg.Audit.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Audit.Path), 0o755); err != nil {
			return fmt.Errorf("create audit directory: %w", err)
		}
		repo, err := sqlite.Open(cfg.Audit.Path)
		if err != nil {
			return err
		}
		defer repo.Close()
		history = repo
		bus.Subscribe(auditlog.NewRecorder(repo, logger).Handle)
	}

	svc := shop.NewService(data, data, data, bus, logger)
	sessions := session.NewManager(sessionStore, data, cfg.Session.TTL)
	handler := api.NewHandler(svc, sessions, badges, history, logger)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      api.NewRouter(handler, tp),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", "port", cfg.Server.Port,
			"store", cfg.Store.Driver, "sessions", cfg.Session.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// seedDemo gives the in-memory store one user per role and a small catalog.
func seedDemo(s *memstore.Store) {
	s.AddUser(models.User{Email: "customer@example.com", Name: "Demo Customer", Role: models.RoleCustomer})
	s.AddUser(models.User{Email: "staff@example.com", Name: "Demo Staff", Role: models.RoleStaff, StoreID: 1})
	s.AddUser(models.User{Email: "supplier@example.com", Name: "Demo Supplier", Role: models.RoleSupplier, SupplierID: 10})
	s.AddUser(models.User{Email: "admin@example.com", Name: "Demo Admin", Role: models.RoleAdmin})

	for _, p := range []models.Product{
		{SKU: "ROD-001", Name: "Carbon Spinning Rod", Price: decimal.RequireFromString("129.00"), StockQuantity: 20, Category: "rods"},
		{SKU: "REEL-001", Name: "Baitcasting Reel", Price: decimal.RequireFromString("299.00"), StockQuantity: 15, Category: "reels"},
		{SKU: "LINE-001", Name: "Braided Line 150m", Price: decimal.RequireFromString("24.50"), StockQuantity: 60, Category: "line"},
		{SKU: "LURE-001", Name: "Soft Plastic Lure", Price: decimal.RequireFromString("15.00"), StockQuantity: 200, Category: "lures"},
	} {
		p.Description = p.Name
		p.StoreID = 1
		p.SupplierID = 10
		s.AddProduct(p)
	}
}
