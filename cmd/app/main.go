// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"telegram-link-gateway/internal/application"
	"telegram-link-gateway/internal/config"
	"telegram-link-gateway/internal/domain/ports/adapter"
	"telegram-link-gateway/internal/domain/ports/repository"
	"telegram-link-gateway/internal/infra/adapters/shortener"
	tele "telegram-link-gateway/internal/infra/adapters/telegram"
	"telegram-link-gateway/internal/infra/db/mongodb"
	pg "telegram-link-gateway/internal/infra/db/postgres"
	"telegram-link-gateway/internal/infra/i18n"
	"telegram-link-gateway/internal/infra/logging"
	"telegram-link-gateway/internal/infra/metrics"
	red "telegram-link-gateway/internal/infra/redis"
	"telegram-link-gateway/internal/infra/sched"
	"telegram-link-gateway/internal/infra/web"
	"telegram-link-gateway/internal/infra/worker"
	"telegram-link-gateway/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (verbose logs, unredacted tokens)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit, cfg.Access.Policy)

	// ---- Identity store ----
	identities, referrals, poolStats, closeStore := openStore(ctx, cfg, logger)
	defer closeStore()

	// ---- Redis (optional) ----
	var (
		rateLimiter *red.RateLimiter
		locker      red.Locker
	)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		rateLimiter = red.NewRateLimiter(redisClient)
		locker = red.NewLocker(redisClient)
		identities = red.NewIdentityCacheDecorator(identities, redisClient, 5*time.Minute, logger)
	} else {
		logger.Warn().Msg("redis.url not set; rate limiting and broadcast lock disabled")
	}

	// ---- Telegram ----
	api, err := tele.NewBotAPI(cfg.Bot.Token, cfg.Runtime.Dev)
	if err != nil {
		logger.Fatal().Err(err).Msg("telegram")
	}
	botUsername := cfg.Bot.Username
	if botUsername == "" {
		botUsername = api.Self.UserName
	}
	sender := tele.NewSender(api, logger)

	tr, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		logger.Fatal().Err(err).Msg("i18n")
	}

	// ---- Shortener (optional) ----
	var short adapter.LinkShortener
	if cfg.Shortener.Endpoint != "" {
		s, err := shortener.NewHTTPShortener(cfg.Shortener)
		if err != nil {
			logger.Fatal().Err(err).Msg("shortener")
		}
		short = s
	}

	// ---- Use cases ----
	policy, err := usecase.NewAccessPolicy(cfg.Access.Policy)
	if err != nil {
		logger.Fatal().Err(err).Msg("access policy")
	}
	userUC := usecase.NewUserUseCase(identities, cfg.Bot.AdminIDs, logger)
	accessUC := usecase.NewEntitlementUseCase(policy, logger)
	verifyUC := usecase.NewVerificationUseCase(identities, short, botUsername, cfg.Access.TokenLength, cfg.Access.VerificationTTL, cfg.Runtime.Dev, logger)
	referralUC := usecase.NewReferralUseCase(referrals, identities, sender, tr, botUsername, cfg.Access.PremiumTTL, logger)
	links := usecase.NewLinkTransformer(cfg.Links.PlaybackTemplates, cfg.Links.ShareSourceBase, botUsername)
	broadcastUC := usecase.NewBroadcastUseCase(identities, sender, locker, cfg.Broadcast.Concurrency, cfg.Broadcast.RatePerSecond, logger)
	statsUC := usecase.NewStatsUseCase(identities, cfg.Store.QuotaBytes, logger)

	// ---- Facade ----
	facade := application.NewBotFacade(userUC, accessUC, verifyUC, referralUC, links, broadcastUC, statsUC, sender, tr,
		application.FacadeOptions{
			AuditChannelID:  cfg.Bot.AuditChannelID,
			WelcomePhoto:    cfg.Bot.WelcomePhoto,
			TutorialURL:     cfg.Bot.TutorialURL,
			VerificationTTL: cfg.Access.VerificationTTL,
			PremiumTTL:      cfg.Access.PremiumTTL,
		}, logger)

	// ---- Update workers ----
	pool := worker.NewPool(cfg.Bot.Workers, logger)
	pool.Start(ctx)
	defer pool.Stop()

	bot := tele.NewRealTelegramBotAdapter(api, cfg.Bot.Token, sender, facade, rateLimiter, pool, logger)

	// ---- HTTP: health, metrics, webhook, admin API ----
	jwtSecret := cfg.Admin.JWTSecret
	if jwtSecret == "" {
		jwtSecret = uuid.NewString()
		logger.Warn().Msg("admin.jwt_secret not set; sessions will not survive a restart")
	}
	auth := web.NewAuthManager(jwtSecret, !cfg.Runtime.Dev, cfg.Admin.SessionTTL)

	webhookMode := strings.ToLower(cfg.Bot.Mode) == "webhook"
	var srv *web.Server
	if webhookMode {
		srv = web.NewServer(statsUC, userUC, bot.WebhookHandler(), cfg.Admin.APIKey, auth, logger)
	} else {
		srv = web.NewServer(statsUC, userUC, nil, cfg.Admin.APIKey, auth, logger)
	}
	go func() {
		if err := srv.Start(cfg.Bot.Webhook.Port); err != nil {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	if webhookMode {
		if err := bot.RegisterWebhook(cfg.Bot.Webhook.PublicURL); err != nil {
			logger.Fatal().Err(err).Msg("telegram webhook")
		}
	} else if err := bot.StartPolling(ctx); err != nil {
		logger.Fatal().Err(err).Msg("telegram polling")
	}

	// ---- Gauge worker ----
	gauges := sched.NewGaugeWorker(time.Minute, statsUC, poolStats, logger)
	go func() { _ = gauges.Run(ctx) }()

	logger.Info().
		Str("version", version).
		Str("policy", cfg.Access.Policy).
		Str("store", cfg.Store.Driver).
		Str("mode", cfg.Bot.Mode).
		Str("bot", botUsername).
		Msg("gateway started")

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
	case <-ctx.Done():
	}
	logger.Info().Msg("shutdown requested")

	bot.StopPolling()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
}

// openStore connects the configured identity store backend.
func openStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (repository.IdentityRepository, repository.ReferralRepository, sched.PoolStatsFunc, func()) {
	switch cfg.Store.Driver {
	case config.DriverMongo:
		db, err := mongodb.Connect(ctx, cfg.Mongo)
		if err != nil {
			logger.Fatal().Err(err).Msg("mongo")
		}
		closeFn := func() { _ = db.Client().Disconnect(context.Background()) }
		return mongodb.NewMongoIdentityRepo(db), mongodb.NewMongoReferralRepo(db), nil, closeFn
	default:
		pool, err := pg.NewPgxPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres")
		}
		if err := pg.EnsureSchema(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("postgres schema")
		}
		return pg.NewPostgresIdentityRepo(pool), pg.NewPostgresReferralRepo(pool), pgPoolStats(pool), pool.Close
	}
}

func pgPoolStats(pool *pgxpool.Pool) sched.PoolStatsFunc {
	return func() (int32, int32, int32) {
		st := pool.Stat()
		return st.TotalConns(), st.IdleConns(), st.AcquiredConns()
	}
}
