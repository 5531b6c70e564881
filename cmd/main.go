package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"omechat/backend/internal/api/handler"
	"omechat/backend/internal/chathub"
	"omechat/backend/internal/config"
	"omechat/backend/internal/localization"
	"omechat/backend/internal/logging"
	"omechat/backend/internal/metrics"
	"omechat/backend/internal/moderation"
	"omechat/backend/internal/storage"
	"omechat/backend/internal/telegram"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		// .env is optional; the environment may already be set.
		logging.L().Debug("no .env file loaded", zap.Error(err))
	}

	if err := run(); err != nil {
		logging.L().Error("omechat backend stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "load config")
	}

	logger, err := logging.Init(cfg.Log)
	if err != nil {
		return errors.Wrap(err, "init logging")
	}
	defer logger.Sync()

	undo, err := maxprocs.Set(maxprocs.Logger(logger.Sugar().Infof))
	defer undo()
	if err != nil {
		logger.Warn("set GOMAXPROCS", zap.Error(err))
	}

	logger.Info("starting omechat backend", zap.String("addr", cfg.HTTPAddr))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Ініціалізація залежностей
	st, err := storage.Open(ctx, cfg)
	if err != nil {
		return err
	}
	metrics.Register(prometheus.DefaultRegisterer)

	localizer, err := localization.NewLocalizer(cfg.LocalesDir)
	if err != nil {
		return errors.Wrap(err, "load locales")
	}

	// 2. Ініціалізація Chat Hub та Matcher
	pool, err := chathub.NewPersistPool(cfg.PersistWorkers)
	if err != nil {
		return errors.Wrap(err, "create persist pool")
	}
	defer pool.Release()

	compat := chathub.MatchAnyone
	if cfg.MatchPolicy == config.MatchPolicyGender {
		compat = chathub.MatchGenderPreference
	}
	hub := chathub.NewManagerService(
		chathub.NewMatcher(chathub.WithCompatibility(compat)),
		chathub.WithRecorder(st, pool),
	)

	mod := moderation.NewService(st, moderation.WithKicker(hub))
	var bot *telegram.BotService
	if cfg.TelegramEnabled() {
		bot, err = telegram.NewBotService(cfg.TelegramBotToken, cfg.TelegramAdminChatID, mod, hub)
		if err != nil {
			return err
		}
		mod.Notifier = bot.Notifier
	}

	// 3. Налаштування Gin та роутингу
	r := gin.New()
	r.Use(gin.Recovery(), handler.RequestLogger())
	h := handler.NewHandler(hub, st, handler.NewTokenIssuer(cfg.JWTSecret, cfg.SessionTTL), mod)
	h.Localizer = localizer
	h.ICEServers = cfg.ICEServers
	h.SendBufferSize = cfg.SendBufferSize
	h.Routes(r)

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// 4. Запуск основних Goroutines
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	g.Go(func() error {
		return hub.RunStatsPublisher(gctx, st, cfg.StatsInterval)
	})
	if bot != nil {
		g.Go(func() error { return bot.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
