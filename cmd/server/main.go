package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/homestay-labs/listing-service/internal/adapter/httpapi"
	"github.com/homestay-labs/listing-service/internal/adapter/httpapi/upload"
	natsadapter "github.com/homestay-labs/listing-service/internal/adapter/messaging/nats"
	"github.com/homestay-labs/listing-service/internal/adapter/repository/cache"
	"github.com/homestay-labs/listing-service/internal/adapter/repository/mongodb"
	"github.com/homestay-labs/listing-service/internal/adapter/storage/s3"
	"github.com/homestay-labs/listing-service/internal/config"
	"github.com/homestay-labs/listing-service/internal/listing/usecase"
	"github.com/homestay-labs/listing-service/internal/mailer"
	"github.com/homestay-labs/listing-service/internal/platform/tracer"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_SECRET is not set")
	}

	ctx := context.Background()

	tp, err := tracer.Init(ctx, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal("failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	defer mongoClient.Disconnect(context.Background())
	db := mongoClient.Database(cfg.MongoDB)

	listingRepo := mongodb.NewListingRepository(db, logger)
	userRepo := mongodb.NewUserRepository(db, logger)
	transactor := mongodb.NewTransactor(mongoClient)

	listingCache, err := cache.NewListingCache(cfg.RedisAddress)
	if err != nil {
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}
	defer listingCache.Close()

	storage, err := s3.NewS3Storage(cfg.MinIOEndpoint, cfg.MinIOAccessKey, cfg.MinIOSecretKey, cfg.MinIOBucket, cfg.MinIOUseSSL, logger)
	if err != nil {
		logger.Fatal("failed to initialize image storage", zap.Error(err))
	}

	publisher, err := natsadapter.NewPublisher(cfg.NATSURL)
	if err != nil {
		logger.Fatal("failed to connect to NATS", zap.Error(err))
	}
	defer publisher.Close()

	var hostMailer usecase.Mailer
	if cfg.SMTPEmail != "" {
		hostMailer = mailer.New(cfg.SMTPEmail, cfg.SMTPPassword)
	}

	uc := usecase.NewListingUsecase(listingRepo, userRepo, transactor, storage, listingCache, publisher, hostMailer, logger)

	stager, err := upload.NewStager(cfg.UploadDir, logger)
	if err != nil {
		logger.Fatal("failed to prepare upload dir", zap.Error(err))
	}

	handler := httpapi.NewListingHandler(uc, stager, logger)
	router := httpapi.NewRouter(handler, cfg.JWTSecret, logger)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: router,
	}

	go func() {
		logger.Info("starting HTTP server", zap.Int("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
}
