package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/winner-card/internal/auth"
	"github.com/example/winner-card/internal/bgremoval"
	"github.com/example/winner-card/internal/cardstore"
	"github.com/example/winner-card/internal/compositor"
	"github.com/example/winner-card/internal/config"
	"github.com/example/winner-card/internal/emotion"
	"github.com/example/winner-card/internal/facedetect"
	"github.com/example/winner-card/internal/grpcclient"
	"github.com/example/winner-card/internal/handlers"
	"github.com/example/winner-card/internal/logging"
	"github.com/example/winner-card/internal/metrics"
	"github.com/example/winner-card/internal/repository"
	"github.com/example/winner-card/internal/resources"
	"github.com/example/winner-card/internal/scoring"
	"github.com/example/winner-card/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.NewLogger(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	res, err := resources.Load(resources.Config{
		TemplatesDir:    cfg.TemplatesDir,
		TemplatePattern: cfg.TemplatePattern,
		TemplateCount:   cfg.TemplateCount,
		CascadePath:     cfg.FaceCascadePath,
		Detection: facedetect.Params{
			ScaleFactor:      cfg.FaceScaleFactor,
			MinNeighbors:     cfg.FaceMinNeighbors,
			MinSize:          cfg.FaceMinSize,
			MaxSize:          cfg.FaceMaxSize,
			ShiftFactor:      cfg.FaceShiftFactor,
			IoUThreshold:     cfg.FaceIoUThreshold,
			QualityThreshold: float32(cfg.FaceQualityThreshold),
		},
	}, logger)
	if err != nil {
		logger.Fatal("failed to load resources", zap.Error(err))
	}

	classifier, closeClassifier := initClassifier(ctx, cfg, logger)
	defer closeClassifier()

	scorer := scoring.NewScorer(res.Detector, classifier, scoring.Options{Padding: cfg.FacePadding}, logger)

	glow, err := cfg.GlowRGBA()
	if err != nil {
		logger.Fatal("invalid glow color", zap.Error(err))
	}
	comp := compositor.New(
		res.Templates,
		bgremoval.NewRembgClient(cfg.RembgURL, cfg.RembgTimeout, ""),
		initCardStore(cfg, logger),
		compositor.Config{
			FeatherRadius: cfg.FeatherRadius,
			GlowRadius:    cfg.GlowRadius,
			HeightRatio:   cfg.HeightRatio,
			UpwardShift:   cfg.UpwardShift,
			GlowColor:     glow,
		},
		logger,
	)

	var repo usecase.ContestRepository = repository.NewMemoryRepository()
	if cfg.DatabaseDSN != "" {
		contestRepo := repository.NewContestRepository(initDatabase(ctx, cfg.DatabaseDSN, logger), logger)
		if err := contestRepo.AutoMigrate(ctx); err != nil {
			logger.Fatal("auto migrate failed", zap.Error(err))
		}
		repo = contestRepo
	} else {
		logger.Warn("no database configured, contest logs are kept in memory")
	}

	var cache usecase.Cache = usecase.NopCache{}
	if cfg.RedisAddr != "" {
		redisCtx, redisCancel := context.WithTimeout(ctx, 5*time.Second)
		defer redisCancel()
		cache = usecase.NewRedisCache(initRedis(redisCtx, cfg.RedisAddr, logger))
	}

	m := metrics.NewManager()
	uc := usecase.NewContestUseCase(repo, cache, scorer, comp, m, usecase.Options{
		TempDir:          cfg.TempDir,
		ScoreCacheTTL:    cfg.ScoreCacheTTL,
		ScoreConcurrency: cfg.ScoreConcurrency,
	}, logger)

	r := gin.New()
	r.Use(gin.Recovery())
	r.MaxMultipartMemory = cfg.MaxUploadBytes

	routeOpts := handlers.Options{
		MaxUploadSize: cfg.MaxUploadBytes,
		Metrics:       m,
		Logger:        logger,
	}
	if cfg.CardReference != config.ReferenceS3 {
		routeOpts.StaticPrefix = cfg.StaticPrefix
		routeOpts.OutputDir = cfg.OutputDir
	}
	if cfg.RateLimitRPS > 0 {
		routeOpts.RateLimiter = handlers.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	handlers.RegisterRoutes(r, uc, auth.Optional(cfg.JWTSecret, cfg.JWTAudience), routeOpts)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout,
	}

	logger.Info("winner card API listening", zap.String("addr", cfg.Addr))
	if err := serveHTTPServer(server, 15*time.Second, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func initClassifier(ctx context.Context, cfg *config.Config, logger *zap.Logger) (emotion.Classifier, func()) {
	if cfg.EmotionBackend == config.EmotionGRPC {
		client, conn, err := grpcclient.DialEmotionService(ctx, cfg.EmotionGRPCAddr, cfg.EmotionTimeout, logger)
		if err != nil {
			logger.Fatal("failed to connect to emotion service", zap.Error(err))
		}
		return client, func() { conn.Close() }
	}
	return emotion.NewDeepFaceClient(cfg.DeepFaceURL, cfg.EmotionTimeout), func() {}
}

func initCardStore(cfg *config.Config, logger *zap.Logger) cardstore.Store {
	if cfg.CardReference == config.ReferenceS3 {
		store, err := cardstore.NewS3Store(cfg.S3Region, cfg.S3Bucket, cfg.S3Prefix)
		if err != nil {
			logger.Fatal("failed to create s3 card store", zap.Error(err))
		}
		return store
	}

	publicBase := ""
	if cfg.CardReference == config.ReferenceURL {
		publicBase = strings.TrimRight(cfg.PublicBaseURL, "/") + cfg.StaticPrefix
	}
	store, err := cardstore.NewLocalStore(cfg.OutputDir, publicBase)
	if err != nil {
		logger.Fatal("failed to create card output dir", zap.Error(err))
	}
	return store
}

func initDatabase(ctx context.Context, dsn string, zapLogger *zap.Logger) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		zapLogger.Fatal("failed to access db handle", zap.Error(err))
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		zapLogger.Fatal("database ping failed", zap.Error(err))
	}

	return db
}

func initRedis(ctx context.Context, addr string, zapLogger *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	return client
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
