package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/roshankumar101/Portal-sub001/internal/applications"
	"github.com/roshankumar101/Portal-sub001/internal/auth"
	"github.com/roshankumar101/Portal-sub001/internal/blob"
	"github.com/roshankumar101/Portal-sub001/internal/cache"
	"github.com/roshankumar101/Portal-sub001/internal/config"
	"github.com/roshankumar101/Portal-sub001/internal/docstore"
	"github.com/roshankumar101/Portal-sub001/internal/docstore/memstore"
	"github.com/roshankumar101/Portal-sub001/internal/docstore/mongostore"
	"github.com/roshankumar101/Portal-sub001/internal/docstore/pgstore"
	"github.com/roshankumar101/Portal-sub001/internal/jobs"
	"github.com/roshankumar101/Portal-sub001/internal/logger"
	"github.com/roshankumar101/Portal-sub001/internal/notifications"
	"github.com/roshankumar101/Portal-sub001/internal/resumes"
	"github.com/roshankumar101/Portal-sub001/internal/server"
	"github.com/roshankumar101/Portal-sub001/internal/server/ratelimit"
	"github.com/roshankumar101/Portal-sub001/internal/students"
	"github.com/roshankumar101/Portal-sub001/internal/types"
)

// redisPrefix namespaces every key the portal writes to Redis.
const redisPrefix = "portal"

// app is the wired set of components shared by the commands.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	store      docstore.Store
	redis      *redis.Client
	services   server.Services
	dispatcher *notifications.Dispatcher
}

// loadConfig reads the configuration and builds the logger it names.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, log, nil
}

// openStore connects the configured document store.
func openStore(ctx context.Context, cfg config.StoreConfig, log *zap.Logger) (docstore.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		store, err := pgstore.Connect(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverMongo:
		store, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, log)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverMemory, "":
		log.Warn("using in-memory document store; data is lost on exit")
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// newApp wires every service from cfg. Redis is optional: without it the job
// cache is disabled and token revocation stays in process.
func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	store, err := openStore(ctx, cfg.Store, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open document store: %w", err)
	}
	a := &app{cfg: cfg, logger: log, store: store}

	if cfg.Redis.Enabled() {
		a.redis, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			a.close()
			return nil, err
		}
	}

	passwords, err := config.NewPasswordConfig(cfg.Auth)
	if err != nil {
		a.close()
		return nil, err
	}
	jwtCfg, err := config.NewJWTConfig(cfg.Auth)
	if err != nil {
		a.close()
		return nil, err
	}

	bucket, err := blob.New(ctx, cfg.Blob)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to open blob storage: %w", err)
	}

	sender, err := newSender(ctx, cfg.Email, log)
	if err != nil {
		a.close()
		return nil, err
	}

	var (
		jobOpts  []jobs.Option
		authOpts []auth.Option
	)
	if cfg.Auth.ResetTokenTTL > 0 {
		authOpts = append(authOpts, auth.WithResetTTL(cfg.Auth.ResetTokenTTL))
	}
	if a.redis != nil {
		jobOpts = append(jobOpts, jobs.WithCache(cache.NewRedis(a.redis, redisPrefix+":cache", cfg.Redis.CacheTTL), cfg.Redis.CacheTTL))
		authOpts = append(authOpts, auth.WithRevoker(auth.NewRedisRevoker(a.redis, redisPrefix)))
	}

	studentSvc := students.NewService(store, log)
	jobSvc := jobs.NewService(store, log, jobOpts...)
	notifySvc := notifications.NewService(store, cfg.Email.PublicBaseURL, log)
	a.services = server.Services{
		Auth: auth.NewService(store, passwords, auth.NewJWTService(jwtCfg), studentSvc, notifySvc,
			cfg.Email.PublicBaseURL, log, authOpts...),
		Students:      studentSvc,
		Jobs:          jobSvc,
		Applications:  applications.NewService(store, jobSvc, log),
		Notifications: notifySvc,
		Resumes:       resumes.NewService(store, bucket, int64(cfg.Blob.MaxUploadMB)<<20, log),
	}
	a.dispatcher = notifications.NewDispatcher(store, sender, cfg.Email.BatchSize, cfg.Email.MaxAttempts, log)
	return a, nil
}

func newSender(ctx context.Context, cfg config.EmailConfig, log *zap.Logger) (notifications.Sender, error) {
	switch cfg.Provider {
	case config.EmailProviderSES:
		sender, err := notifications.NewSESSender(ctx, cfg.Region, cfg.From)
		if err != nil {
			return nil, fmt.Errorf("failed to create SES sender: %w", err)
		}
		return sender, nil
	case config.EmailProviderLog, "":
		return notifications.NewLogSender(log), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}

// newLimiter shares rate limit windows through Redis when it is available.
func (a *app) newLimiter() ratelimit.Allower {
	rl := ratelimit.FromConfig(a.cfg.RateLimit)
	if a.redis != nil && rl.Enabled {
		return ratelimit.NewRedisLimiter(a.redis, rl, redisPrefix, a.logger)
	}
	return ratelimit.NewLimiter(rl)
}

// migrate prepares the store schema: the documents table for postgres, query
// indexes for mongo. The memory store needs nothing.
func (a *app) migrate(ctx context.Context) error {
	switch s := a.store.(type) {
	case *pgstore.Store:
		return s.Migrate(ctx)
	case *mongostore.Store:
		indexes := map[string][]string{
			types.CollApplications:          {"studentId", "jobId"},
			types.CollJobs:                  {"companyId", "status"},
			types.CollEmailNotifications:    {"status"},
			types.CollUnsubscribedUsers:     {"email"},
			types.CollNotifications:         {"userId"},
			types.CollSkills:                {"studentId"},
			types.CollProjects:              {"studentId"},
			types.CollAchievements:          {"studentId"},
			types.CollEducationalBackground: {"studentId"},
		}
		var errs []error
		for coll, fields := range indexes {
			if err := s.EnsureIndexes(ctx, coll, fields...); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	default:
		a.logger.Info("store needs no migration", zap.String("driver", a.cfg.Store.Driver))
		return nil
	}
}

func (a *app) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close document store", zap.Error(err))
	}
	_ = a.logger.Sync()
}
