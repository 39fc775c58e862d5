package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"pantrycam/internal/ai"
	appsvc "pantrycam/internal/app"
	"pantrycam/internal/cache"
	"pantrycam/internal/config"
	"pantrycam/internal/pkg/logger"
	mysqlClient "pantrycam/internal/platform/mysql"
	rabbitmqClient "pantrycam/internal/platform/rabbitmq"
	redisClient "pantrycam/internal/platform/redis"
	"pantrycam/internal/recipe"
	"pantrycam/internal/repository"
	"pantrycam/internal/session"
	"pantrycam/internal/storage"
	"pantrycam/internal/worker"
)

type App struct {
	Config *config.Config
	Logger *zap.Logger

	Redis          *redis.Client
	MySQL          *gorm.DB
	MQConn         *amqp.Connection
	Archive        *storage.ImageArchive
	AnalysisWorker *worker.AnalysisPersistWorker

	Sessions *session.Manager
	Recipes  *appsvc.RecipeService
	History  *appsvc.HistoryService

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	log, err := logger.New(cfg.App.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("build logger failed: %w", err)
	}
	log = log.With(zap.String("app", cfg.App.Name), zap.String("env", cfg.App.Env))

	a := &App{Config: cfg, Logger: log, StartedAt: time.Now()}
	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	sessions, err := session.NewManager(cfg.App.SecretKey, cfg.Session.CookieName, cfg.SessionMaxAge(), cfg.Session.Secure)
	if err != nil {
		return fmt.Errorf("init sessions failed: %w", err)
	}
	a.Sessions = sessions

	analyzer, err := recipe.NewGeminiAnalyzer(ai.GeminiConfig{
		BaseURL:       cfg.LLM.BaseURL,
		OpenAIBaseURL: cfg.LLM.OpenAIBaseURL,
		APIKey:        cfg.LLM.APIKey,
		Model:         cfg.LLM.Model,
	}, cfg.LLMTimeout(), a.Logger.Named("analyzer"))
	if err != nil {
		return fmt.Errorf("init analyzer failed: %w", err)
	}

	a.Redis, err = redisClient.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	results := cache.NewResultCache(a.Redis, cfg.ResultTTL())

	opts := []appsvc.RecipeServiceOption{appsvc.WithAnalysisTimeout(cfg.AnalysisTimeout())}
	var lister appsvc.AnalysisLister

	if cfg.History.Enabled {
		a.MySQL, err = mysqlClient.New(ctx, cfg.MySQLDSN())
		if err != nil {
			return err
		}
		a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
		if err != nil {
			return err
		}

		repo := repository.NewAnalysisRepository(a.MySQL)
		a.AnalysisWorker = worker.NewAnalysisPersistWorker(a.MQConn, repo, cfg.RabbitMQ.AnalysisQueue, a.Logger)
		if err := a.AnalysisWorker.Start(ctx); err != nil {
			return fmt.Errorf("start analysis worker failed: %w", err)
		}
		opts = append(opts, appsvc.WithPublisher(rabbitmqClient.NewAnalysisPublisher(a.MQConn, cfg.RabbitMQ.AnalysisQueue)))
		lister = repo
	}

	if cfg.Archive.Enabled {
		a.Archive, err = storage.NewImageArchive(ctx, cfg.Archive)
		if err != nil {
			return fmt.Errorf("init image archive failed: %w", err)
		}
		opts = append(opts, appsvc.WithArchive(a.Archive))
	}

	a.Recipes = appsvc.NewRecipeService(
		analyzer,
		results,
		cfg.Upload.Dir,
		cfg.Upload.AllowedExtensions,
		a.Logger.Named("recipes"),
		opts...,
	)
	a.History = appsvc.NewHistoryService(lister)

	a.Logger.Info("app initialized",
		zap.String("model", cfg.LLM.Model),
		zap.Bool("history", cfg.History.Enabled),
		zap.Bool("archive", cfg.Archive.Enabled))
	return nil
}

func (a *App) Close() error {
	var errs []error
	if a.AnalysisWorker != nil {
		a.AnalysisWorker.Close()
	}
	if a.MQConn != nil && !a.MQConn.IsClosed() {
		if err := a.MQConn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close rabbitmq failed: %w", err))
		}
	}
	if a.MySQL != nil {
		if sqlDB, err := a.MySQL.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close mysql failed: %w", err))
			}
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis failed: %w", err))
		}
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return errors.Join(errs...)
}
