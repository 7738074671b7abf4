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

	"github.com/datachef-lab/taskify-backend/internal/config"
	"github.com/datachef-lab/taskify-backend/internal/shared/notify"
	"github.com/datachef-lab/taskify-backend/internal/shared/scheduler"
	"github.com/datachef-lab/taskify-backend/internal/shared/sse"
	"github.com/datachef-lab/taskify-backend/internal/task/entity"
	"github.com/datachef-lab/taskify-backend/internal/task/handler"
	"github.com/datachef-lab/taskify-backend/internal/task/repository"
	"github.com/datachef-lab/taskify-backend/internal/task/service"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	aentity "github.com/datachef-lab/taskify-backend/internal/analytics/entity"
	arepo "github.com/datachef-lab/taskify-backend/internal/analytics/repository"
	analytics "github.com/datachef-lab/taskify-backend/internal/analytics/service"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	handler.Version = Version
	zapLogger.Info("Starting taskify service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	models := append(entity.Models(), aentity.Models()...)
	if err := db.AutoMigrate(models...); err != nil {
		zapLogger.Fatal("AutoMigrate failed", zap.Error(err))
	}

	var rdb *redis.Client
	if cfg.Redis.Host != "" {
		rdb = initRedis(cfg.Redis)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			zapLogger.Warn("Redis unavailable, continuing without it", zap.Error(err))
			rdb = nil
		}
		cancel()
	}

	hub := sse.NewHub(zapLogger)

	repos := repository.NewRepositories(db)
	analyticsSvc := analytics.NewServices(arepo.NewRepositories(db), repos.Instance, zapLogger)

	channels := []notify.Channel{notify.NewSSEChannel(hub)}
	if email := notify.NewEmailChannel(cfg.SMTP); email != nil {
		channels = append(channels, email)
	}
	if chat := notify.NewChatChannel(cfg.Chat); chat != nil {
		channels = append(channels, chat)
	}
	dispatcher := notify.NewDispatcher(service.NewUserService(repos.User, repos.Role), zapLogger, channels...)

	services := service.NewServices(repos, service.Deps{
		DB:         db,
		Redis:      rdb,
		Config:     cfg,
		Activities: analyticsSvc.Activity,
		Notifier:   dispatcher,
		Hub:        hub,
		Logger:     zapLogger,
	})

	sched, err := initScheduler(cfg.Scheduler, rdb, analyticsSvc, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to init scheduler", zap.Error(err))
	}

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	handlers := handler.NewHandlers(services, analyticsSvc, sched, hub, db, cfg, zapLogger)
	router := handler.NewRouter(handlers, cfg, zapLogger, analyticsSvc.Performance)

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
		// SSE streams are long lived
		WriteTimeout: 0,
	}

	if sched != nil {
		sched.Start()
	}

	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if sched != nil {
		if err := sched.Stop(ctx); err != nil {
			zapLogger.Warn("Scheduler did not stop cleanly", zap.Error(err))
		}
	}
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	analyticsSvc.Wait()

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var encCfg zapcore.EncoderConfig
	if cfg.Format == "json" {
		encCfg = zap.NewProductionEncoderConfig()
	} else {
		encCfg = zap.NewDevelopmentEncoderConfig()
	}
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	var sink zapcore.WriteSyncer
	switch cfg.Output {
	case "file":
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		})
	case "both":
		sink = zapcore.NewMultiWriteSyncer(zapcore.AddSync(os.Stdout), zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}))
	default:
		sink = zapcore.AddSync(os.Stdout)
	}

	core := zapcore.NewCore(encoder, sink, level)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)), nil
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// initScheduler registers the periodic jobs; nil when disabled
func initScheduler(cfg config.SchedulerConfig, rdb *redis.Client, an *analytics.Services, logger *zap.Logger) (*scheduler.Scheduler, error) {
	if !cfg.Enabled {
		logger.Info("Scheduler disabled")
		return nil, nil
	}

	var opts []scheduler.Option
	if rdb != nil {
		opts = append(opts, scheduler.WithLocker(scheduler.NewRedisLocker(rdb), cfg.LockTTL))
	}
	sched := scheduler.New(logger, opts...)

	if err := sched.Register("dailyStatistics", cfg.DailyStatisticsSpec, func(ctx context.Context) error {
		return an.Generator.RunAll(ctx, time.Now())
	}); err != nil {
		return nil, err
	}

	retentionDays := cfg.ActivityRetentionDays
	if err := sched.Register("activityLogRetention", cfg.ActivityRetentionSpec, func(ctx context.Context) error {
		n, err := an.Activity.DeleteOlderThan(ctx, retentionDays)
		if err != nil {
			return err
		}
		logger.Info("Activity logs purged", zap.Int64("deleted", n), zap.Int("retention_days", retentionDays))
		return nil
	}); err != nil {
		return nil, err
	}

	return sched, nil
}
