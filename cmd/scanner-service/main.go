package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-scanner/internal/codes"
	"ms-scanner/internal/config"
	"ms-scanner/internal/database/migrations"
	"ms-scanner/internal/kafka"
	"ms-scanner/internal/logger"
	"ms-scanner/internal/scans"
	scandb "ms-scanner/internal/scans/db"
	"ms-scanner/internal/scans/metrics"
	scanredis "ms-scanner/internal/scans/redis"
	"ms-scanner/internal/scans/scan_api"
	"ms-scanner/internal/wallet"
	"ms-scanner/internal/wallet/wallet_api"
)

func openDatabase(cfg *config.Config) *bun.DB {
	sqldb, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatalf("[Database] Failed to open Postgres: %v", err)
	}
	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	if err := sqldb.Ping(); err != nil {
		log.Fatalf("[Database] Failed to connect to Postgres: %v", err)
	}
	log.Println("[Database] Postgres connection successful")

	return bun.NewDB(sqldb, pgdialect.New())
}

func main() {
	_ = godotenv.Load() // Loads .env file if present

	cfg := config.Load()

	appLogger := logger.NewLogger()
	defer appLogger.Close()

	if len(cfg.Scanner.SignatureKey) == 0 {
		appLogger.Fatal("CONFIG", "SIGNATURE_KEY not set")
	}

	bunDB := openDatabase(cfg)
	defer bunDB.Close()

	if cfg.Database.AutoMigrate {
		runner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
		if err := runner.RunMigrations(); err != nil {
			log.Fatalf("[Database] Migration failed: %v", err)
		}
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("[Redis] Failed to connect: %v", err)
	}
	defer redisClient.Close()

	var publisher scans.KafkaPublisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, appLogger)
		defer producer.Close()
		publisher = producer
	}

	codec := codes.NewCodec(cfg.Scanner.SignatureKey)

	var issuer *wallet.Issuer
	if cfg.Wallet.IssuerID != "" && cfg.Wallet.PrivateKeyPath != "" {
		pemBytes, err := os.ReadFile(cfg.Wallet.PrivateKeyPath)
		if err != nil {
			appLogger.Fatal("CONFIG", "Failed to read Google Wallet key file: "+err.Error())
		}
		issuer, err = wallet.NewIssuer(cfg.Wallet.IssuerID, cfg.Wallet.IssuerEmail, pemBytes, codec)
		if err != nil {
			appLogger.Fatal("CONFIG", "Failed to load Google Wallet issuer: "+err.Error())
		}
		appLogger.Info("WALLET", "Google Wallet issuer "+cfg.Wallet.IssuerID+" configured")
	}

	store := &scandb.DB{Bun: bunDB}
	counters := metrics.New(prometheus.DefaultRegisterer)
	service := scans.NewScanService(
		codec,
		store,
		scanredis.NewLocks(redisClient),
		publisher,
		counters,
	)
	service.Logger = appLogger
	handler := scan_api.NewHandler(service)
	walletHandler := wallet_api.NewHandler(store, issuer, cfg.Wallet.PassDir)

	r := chi.NewRouter()
	r.Get("/code/{code}", handler.GetCode)
	r.Post("/code/{code}", handler.PostCode)
	r.Post("/seq", handler.PostSeq)
	r.Get("/wallet/{id}/{token}", walletHandler.GetPass)
	r.Get("/wallet/{id}/{token}/google", walletHandler.GetGooglePass)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Printf("🚀 Scanner Service on %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(ctxShutdown)
	log.Println("✅ Scanner service shutdown complete")
}
