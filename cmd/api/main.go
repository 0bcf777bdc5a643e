package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bazaar-economy-api/internal/async"
	"bazaar-economy-api/internal/cache"
	"bazaar-economy-api/internal/catalog"
	"bazaar-economy-api/internal/config"
	"bazaar-economy-api/internal/gateway"
	"bazaar-economy-api/internal/handler"
	"bazaar-economy-api/internal/middleware"
	"bazaar-economy-api/internal/notify"
	"bazaar-economy-api/internal/repository"
	"bazaar-economy-api/internal/router"
	"bazaar-economy-api/internal/service"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting Bazaar Economy API...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	// Initialize durable store based on config
	var store repository.Store
	switch cfg.StoreDB.Type {
	case "mysql":
		mysqlStore, err := repository.NewMySQLStore(cfg.StoreDB.MySQLDSN())
		if err != nil {
			log.Fatalf("Failed to initialize MySQL store: %v", err)
		}
		store = mysqlStore
		log.Println("MySQL store initialized")
	case "memory":
		store = repository.NewMemoryStore()
		log.Println("In-memory store initialized (data is not persisted)")
	default: // sqlite
		sqliteStore, err := repository.NewSQLiteStore(cfg.StoreDB.Path)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite store: %v", err)
		}
		store = sqliteStore
		log.Println("SQLite store initialized")
	}
	defer store.Close()

	// Initialize cache and notifier
	var (
		appCache cache.Cache
		notifier notify.Notifier = notify.NopNotifier{}
		redisC   *cache.RedisCache
	)
	if cfg.Cache.Type == "redis" {
		rc, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddress(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			log.Printf("Warning: Redis connection failed, falling back to memory cache: %v", err)
		} else {
			redisC = rc
			appCache = rc
			notifier = notify.NewRedisNotifier(rc.Client(), cfg.Cache.EventChannel)
			defer rc.Close()
		}
	}
	if appCache == nil {
		memCache := cache.NewMemoryCache()
		appCache = memCache
		defer memCache.Close()
		log.Println("Memory cache initialized")
	}

	// Token service requires Redis; without it only API-key auth works
	var tokenService *service.TokenService
	if redisC != nil {
		tokenService = service.NewTokenService(redisC.Client())
	}

	// Load the item catalog
	var cat *catalog.Catalog
	if cfg.Economy.CatalogPath != "" {
		var err error
		cat, err = catalog.Load(cfg.Economy.CatalogPath)
		if err != nil {
			log.Fatalf("Failed to load catalog: %v", err)
		}
	} else {
		cat = catalog.Empty()
		log.Println("No catalog configured; offer imports will reject all items")
	}

	// Live-actor hub and its adapters
	hub := gateway.NewHub()
	defer hub.Close()
	inventory := gateway.NewHubInventory(hub)
	ledger := gateway.NewHubLedger(hub, cfg.Economy.CurrencyEnabled)

	// Bounded store worker pool
	pool := async.NewPool(cfg.Economy.StoreWorkers)

	// Services
	mailbox := service.NewMailboxService(store, inventory, ledger, pool, appCache, notifier,
		cfg.Economy.ClaimBatchLimit, cfg.Cache.TTL)
	shops := service.NewShopService(store, inventory, ledger, mailbox, pool, appCache, cat,
		cfg.Economy.ShopTaxRate, cfg.Economy.DefaultCurrency, cfg.Cache.TTL)
	auctions := service.NewAuctionService(store, inventory, ledger, mailbox, pool, appCache, notifier,
		service.AuctionConfig{
			FeeRate:         cfg.Economy.AuctionFeeRate,
			ListingFee:      cfg.Economy.ListingFee,
			MinStartPrice:   cfg.Economy.MinStartingPrice,
			MaxOpenListings: cfg.Economy.MaxOpenListings,
			Currency:        cfg.Economy.DefaultCurrency,
			CacheTTL:        cfg.Cache.TTL,
		})
	balances := service.NewBalanceService(ledger, mailbox, cfg.Economy.DefaultCurrency)
	economy := service.NewEconomy(balances, shops, auctions, mailbox)

	// Seed shop offers from the catalog, idempotently
	if len(cat.Seeds) > 0 {
		seedCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		res := shops.ImportOffers(seedCtx, cat.Seeds)
		cancel()
		log.Printf("Catalog seed import: %+v", res.Data)
	}

	// Expiry sweeper
	sweeper := service.NewSweeper(auctions, service.SweeperConfig{
		Interval:  cfg.Economy.SweepInterval,
		BatchSize: cfg.Economy.SweepBatchSize,
	})
	sweeper.Start()
	defer sweeper.Stop()

	// Handlers
	healthHandler := handler.New(cfg.App.Version)
	sessionHandler := handler.NewSessionHandler(hub)
	balanceHandler := handler.NewBalanceHandler(economy)
	shopHandler := handler.NewShopHandler(economy)
	auctionHandler := handler.NewAuctionHandler(economy)
	deliveryHandler := handler.NewDeliveryHandler(economy)
	adminHandler := handler.NewAdminHandler(store, hub, sweeper, cfg.StoreDB.Type, cfg.Cache.Type)

	var authHandler *handler.AuthHandler
	if tokenService != nil {
		authHandler = handler.NewAuthHandler(tokenService, cfg.App.AdminKey)
	}

	// Create auth middleware with injected dependencies
	authMiddleware := middleware.NewAuthMiddleware(middleware.AuthConfig{
		TokenService: tokenService,
		AdminKey:     cfg.App.AdminKey,
	})

	// Create router
	r := router.New(router.Config{
		Handler:         healthHandler,
		SessionHandler:  sessionHandler,
		BalanceHandler:  balanceHandler,
		ShopHandler:     shopHandler,
		AuctionHandler:  auctionHandler,
		DeliveryHandler: deliveryHandler,
		AdminHandler:    adminHandler,
		AuthHandler:     authHandler,
		AuthMiddleware:  authMiddleware,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
	fmt.Println("Goodbye!")
}
