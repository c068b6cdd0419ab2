package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"tg-notify-bot/internal/adapters/cache"
	"tg-notify-bot/internal/adapters/snapshot"
	"tg-notify-bot/internal/adapters/telegram"
	"tg-notify-bot/internal/domain"
	"tg-notify-bot/internal/infra/config"
	"tg-notify-bot/internal/infra/dbapi"
	"tg-notify-bot/internal/infra/log"
	"tg-notify-bot/internal/infra/metrics"
	"tg-notify-bot/internal/infra/mlservice"
	"tg-notify-bot/internal/infra/queue"
	"tg-notify-bot/internal/usecase/digest"
	"tg-notify-bot/internal/usecase/ingest"
	"tg-notify-bot/internal/usecase/subscriptions"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)
	metrics.MustRegister(prometheus.DefaultRegisterer)

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	history := cache.NewHistory(rdb, cfg.History.Limit, cfg.History.TTL, logger)
	subsCache := cache.NewSubscriptions(rdb, cfg.CacheTTL.Subscriptions, logger)
	digestCache := cache.NewDigestResults(rdb, cfg.CacheTTL.Digest)
	snapshots := snapshot.NewStore(cfg.Snapshots.Dir)

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать бота")
	}
	notifier := telegram.NewNotifier(botAPI)

	ml := mlservice.NewClient(cfg.MLService.URL, cfg.MLService.Timeout)
	store := dbapi.NewClient(cfg.DBAPIURL)

	ingestService := ingest.NewService(history, notifier, logger)
	subsService := subscriptions.NewService(store, subsCache, logger)
	digestService := digest.NewService(history, snapshots, ml, digestCache, cfg.MLService.MaxTokens, cfg.CacheTTL.Digest, logger)

	consumer := queue.NewNotificationConsumer(cfg.AMQP.URL, cfg.AMQP.Queue, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Start(ctx, ingestService.HandleMessage); err != nil {
			logger.Error().Err(err).Msg("консьюмер завершился с ошибкой")
		}
	}()

	r := newRouter(consumer, ml, digestService, subsService)
	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 150 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("бот запущен")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("HTTP сервер остановлен")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	logger.Info().Msg("остановка бота")

	consumer.Stop()
	<-consumerDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}

func newRouter(consumer *queue.NotificationConsumer, ml *mlservice.Client, digestService *digest.Service, subsService *subscriptions.Service) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		promhttp.Handler().ServeHTTP(w, req)
	})

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"consumer":  consumer.State().String(),
			"mlservice": ml.Health(req.Context()),
		})
	})

	r.Get("/users/{telegramID}/digest", func(w http.ResponseWriter, req *http.Request) {
		telegramID, err := strconv.ParseInt(chi.URLParam(req, "telegramID"), 10, 64)
		if err != nil {
			http.Error(w, "некорректный telegram_id", http.StatusBadRequest)
			return
		}
		result, err := digestService.DigestFor(req.Context(), telegramID)
		switch {
		case errors.Is(err, digest.ErrEmptyHistory):
			writeJSON(w, http.StatusOK, map[string]any{"telegram_id": telegramID, "summary": "", "empty": true})
		case errors.Is(err, digest.ErrSummaryUnavailable):
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error()})
		case err != nil:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		default:
			writeJSON(w, http.StatusOK, result)
		}
	})

	r.Route("/users/{telegramID}/subscriptions", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			telegramID, err := strconv.ParseInt(chi.URLParam(req, "telegramID"), 10, 64)
			if err != nil {
				http.Error(w, "некорректный telegram_id", http.StatusBadRequest)
				return
			}
			subs, err := subsService.List(req.Context(), telegramID)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadGateway)
				return
			}
			if subs == nil {
				subs = []domain.Subscription{}
			}
			writeJSON(w, http.StatusOK, subs)
		})
		r.Post("/", func(w http.ResponseWriter, req *http.Request) {
			telegramID, err := strconv.ParseInt(chi.URLParam(req, "telegramID"), 10, 64)
			if err != nil {
				http.Error(w, "некорректный telegram_id", http.StatusBadRequest)
				return
			}
			var subReq domain.SubscriptionRequest
			if err := json.NewDecoder(req.Body).Decode(&subReq); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			sub, err := subsService.Subscribe(req.Context(), telegramID, subReq)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadGateway)
				return
			}
			writeJSON(w, http.StatusCreated, sub)
		})
		r.Delete("/{actionID}", func(w http.ResponseWriter, req *http.Request) {
			telegramID, err := strconv.ParseInt(chi.URLParam(req, "telegramID"), 10, 64)
			if err != nil {
				http.Error(w, "некорректный telegram_id", http.StatusBadRequest)
				return
			}
			actionID, err := strconv.ParseInt(chi.URLParam(req, "actionID"), 10, 64)
			if err != nil {
				http.Error(w, "некорректный идентификатор подписки", http.StatusBadRequest)
				return
			}
			if err := subsService.Unsubscribe(req.Context(), telegramID, actionID); err != nil {
				http.Error(w, err.Error(), http.StatusBadGateway)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}
