package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dirigovotes/dirigo/internal/config"
	"github.com/dirigovotes/dirigo/internal/db"
	"github.com/dirigovotes/dirigo/internal/events"
	"github.com/dirigovotes/dirigo/internal/logger"
	"github.com/dirigovotes/dirigo/internal/markdown"
	"github.com/dirigovotes/dirigo/internal/middleware"
	"github.com/dirigovotes/dirigo/internal/repository"
	"github.com/dirigovotes/dirigo/internal/service"
	"github.com/dirigovotes/dirigo/internal/signup"
	"github.com/dirigovotes/dirigo/internal/storage"
	"github.com/dirigovotes/dirigo/internal/validation"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// Auth endpoints allow this many calls per client and path per window.
const (
	authRateLimit  = 10
	authRateWindow = time.Minute
)

type App struct {
	Cfg   *config.Config
	DB    *sqlx.DB
	Redis *redis.Client
	Bus   events.Bus

	AuthService    *service.AuthService
	UserService    *service.UserService
	ProfileService *service.ProfileService
	EmailService   *service.EmailService
	AvatarService  *service.AvatarService
	IssueService   *service.IssueService
	VoteService    *service.VoteService
	ReportService  *service.ReportService
	AdminService   *service.AdminService
	Signup         *signup.Controller
	AuthLimiter    middleware.Limiter

	closers []func()
}

// New wires the application. ctx bounds background work such as limiter
// cleanup and the Redis subscription.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Run database migrations
	err = db.Migrate(ctx, database.DB, cfg.DBDriver)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	a := &App{Cfg: cfg, DB: database}

	// Repositories
	userRepository := repository.NewUserRepository(database)
	profileRepository := repository.NewProfileRepository(database)
	tokenRepository := repository.NewTokenRepository(database)
	avatarRepository := repository.NewAvatarRepository(database)
	issueRepository := repository.NewIssueRepository(database)
	positionRepository := repository.NewPositionRepository(database)
	voteRepository := repository.NewVoteRepository(database)
	voteTrackingRepository := repository.NewVoteTrackingRepository(database)
	reportRepository := repository.NewReportRepository(database)
	systemErrorRepository := repository.NewSystemErrorRepository(database)
	analyticsRepository := repository.NewAnalyticsRepository(database)

	a.closers = append(a.closers, logger.AttachErrorSink(systemErrorRepository))

	// Redis (optional)
	a.Redis, err = connectRedis(ctx, cfg.RedisURL)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	// Events
	if a.Redis != nil {
		bus, err := events.NewRedisBus(ctx, a.Redis)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("failed to start event bus: %w", err)
		}
		a.Bus = bus
		a.AuthLimiter = middleware.NewRedisRateLimiter(a.Redis, "dirigo:ratelimit:", authRateLimit, authRateWindow)
	} else {
		a.Bus = events.NewLocalBus()
		limiter := middleware.NewRateLimiter(authRateLimit, authRateWindow)
		go limiter.CleanupLoop(ctx, 5*time.Minute)
		a.AuthLimiter = limiter
	}

	// Storage
	fileStorage, err := storage.New(ctx, cfg)
	if err != nil {
		if !errors.Is(err, storage.ErrDisabled) {
			_ = a.Close()
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		slog.Info("avatar storage disabled, S3_BUCKET is not set")
		fileStorage = nil
	}

	// Services
	passwordRules := validation.PasswordRulesFor(cfg.PasswordPolicy)
	a.EmailService = service.NewEmailService(
		cfg.ResendAPIKey,
		cfg.EmailFrom,
		cfg.AppURL,
		cfg.AppName,
		cfg.IsDevelopment(),
	)
	a.AvatarService = service.NewAvatarService(avatarRepository, fileStorage)
	a.AuthService = service.NewAuthService(
		userRepository,
		profileRepository,
		tokenRepository,
		a.EmailService,
		a.Bus,
		passwordRules,
		cfg.JWTSecret,
		cfg.JWTExpiry,
		cfg.TokenEmailVerifyExpiry,
	)
	a.ProfileService = service.NewProfileService(profileRepository, a.AvatarService, a.Bus)
	a.UserService = service.NewUserService(userRepository, a.ProfileService, a.AvatarService, passwordRules)
	a.IssueService = service.NewIssueService(issueRepository, positionRepository, markdown.NewRenderer())
	a.VoteService = service.NewVoteService(voteRepository, voteTrackingRepository, positionRepository, a.Bus, cfg.VoteWithdrawal, cfg.JWTSecret)
	a.ReportService = service.NewReportService(
		reportRepository,
		issueRepository,
		positionRepository,
		systemErrorRepository,
		a.EmailService,
		cfg.ReportRecipients,
	)
	a.AdminService = service.NewAdminService(
		userRepository,
		profileRepository,
		analyticsRepository,
		service.NewCacheService(a.Redis),
		cfg.AdminRoles,
		cfg.AnalyticsCacheTTL,
	)

	store := signup.NewLocalStore(a.AuthService)
	a.Signup = signup.NewController(
		store,
		signup.NewChecker(cfg.ExistenceCheck, store, store),
		signup.PolicyFromConfig(cfg),
	)

	// Confirmed emails activate pending profiles
	a.closers = append(a.closers, service.NewProfileActivator(profileRepository, a.EmailService, a.Bus).Start())

	go cleanupTokens(ctx, tokenRepository)

	return a, nil
}

// cleanupTokens drops verification tokens that expired more than a day ago.
func cleanupTokens(ctx context.Context, tokenRepository repository.TokenRepository) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := tokenRepository.CleanupExpired(ctx, 24*time.Hour)
			if err != nil {
				slog.Warn("failed to clean up expired tokens", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("expired tokens removed", "count", n)
			}
		}
	}
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = rdb.Ping(pingCtx).Err()
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("connected to redis", "addr", opts.Addr)
	return rdb, nil
}

func (a *App) Close() error {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil

	var errs []error
	if a.Bus != nil {
		errs = append(errs, a.Bus.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
