package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"torrentctl/internal/config"
	"torrentctl/internal/downloader"
	"torrentctl/internal/engine/anacrolix"
	apphttp "torrentctl/internal/http"
	"torrentctl/internal/metrics"
	"torrentctl/internal/repository"
	"torrentctl/internal/repository/sqlite"
	"torrentctl/internal/service"
	"torrentctl/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Fatalf("parse log level: %v", err)
	}
	logger.SetLevel(level)

	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		logger.Fatalf("auth jwt secret is required")
	}
	if strings.TrimSpace(cfg.Auth.RegisterPassword) == "" {
		logger.Fatalf("auth registration password is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	torrentRepo := sqlite.NewTorrentRepository(db)
	fileRepo := sqlite.NewTorrentFileRepository(db)
	operatorRepo := sqlite.NewOperatorRepository(db)
	if err := sqlite.InitAll(ctx, torrentRepo, fileRepo, operatorRepo); err != nil {
		logger.Fatalf("init repositories: %v", err)
	}

	var s3Client *s3.Client
	if cfg.NeedsS3() {
		s3Client, err = buildS3Client(ctx, cfg, logger)
		if err != nil {
			logger.Fatalf("setup s3: %v", err)
		}
	}

	var resumeRepo repository.ResumeDataRepository
	switch cfg.Resume.Backend {
	case "s3":
		resumeRepo = storage.NewResumeStore(s3Client, cfg.Storage.Bucket, cfg.Resume.KeyPrefix)
	default:
		resumeRepo = sqlite.NewResumeDataRepository(db)
	}
	if err := resumeRepo.Init(ctx); err != nil {
		logger.Fatalf("init resume store: %v", err)
	}

	var archiver storage.Archiver
	if cfg.Archive.Enabled {
		archiver = storage.NewS3Archiver(s3Client)
	}

	metrics.Register(prometheus.DefaultRegisterer)

	session, err := anacrolix.NewSession(anacrolix.Config{
		DataDir:      cfg.Download.DataDir,
		ListenPort:   cfg.Download.ListenPort,
		Seed:         cfg.Download.Seed,
		NoDHT:        cfg.Download.NoDHT,
		PollInterval: cfg.Download.PollInterval,
		Logger:       logger,
	})
	if err != nil {
		logger.Fatalf("start torrent session: %v", err)
	}

	trackers := cfg.Download.Trackers
	if len(trackers) == 0 {
		trackers = downloader.DefaultTrackers()
	}

	torrentService := service.NewTorrentService(torrentRepo, fileRepo)
	operatorService := service.NewOperatorService(operatorRepo, cfg.Auth.RegisterPassword)

	manager := downloader.NewManager(downloader.Config{
		DataDir:        cfg.Download.DataDir,
		DescriptorDir:  cfg.Download.DescriptorDir,
		StatusInterval: cfg.Download.StatusInterval,
		SyncInterval:   cfg.Download.ResumeSyncInterval,
		TrackerList:    trackers,
		Archive: storage.ArchiveOptions{
			Bucket:    cfg.Storage.Bucket,
			KeyPrefix: cfg.Storage.KeyPrefix,
		},
		Logger: logger,
	}, downloader.NewAnacrolixEngine(session), torrentService, resumeRepo, archiver)

	if err := manager.Start(ctx); err != nil {
		logger.Fatalf("start manager: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(
		manager,
		operatorService,
		prometheus.DefaultGatherer,
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute,
		filepath.Join(cfg.Download.DataDir, ".uploads"),
		logger,
	)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	manager.Shutdown()

	logger.Info("bye")
}

func buildS3Client(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*s3.Client, error) {
	if cfg.Storage.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("using s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return client, nil
}
