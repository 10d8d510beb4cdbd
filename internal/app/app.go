package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/srvnk/starsbot/internal/bot"
	"github.com/srvnk/starsbot/internal/config"
	"github.com/srvnk/starsbot/internal/membership"
	"github.com/srvnk/starsbot/internal/notifier"
	"github.com/srvnk/starsbot/internal/pg"
	"github.com/srvnk/starsbot/internal/repo"
	"github.com/srvnk/starsbot/internal/service"
	"github.com/srvnk/starsbot/internal/service/settingsservice"
	"github.com/srvnk/starsbot/internal/subgate"
	"github.com/srvnk/starsbot/pkg/clients"
	"github.com/srvnk/starsbot/pkg/logger"
	"github.com/srvnk/starsbot/pkg/random"
)

type ApplicationI interface {
	Start(ctx context.Context) error
	Wait(ctx context.Context, cancel context.CancelFunc) error
}

type Application struct {
	cfg  *config.Config
	bot  *bot.Bot
	srv  *service.Services
	repo *repo.Repositories

	errCh chan error
	wg    sync.WaitGroup
	ready bool
}

func New() *Application {
	return &Application{
		errCh: make(chan error),
	}
}

func (a *Application) Start(ctx context.Context) error {
	cfg := config.New()

	err := logger.InitLogger(cfg)
	if err != nil {
		return fmt.Errorf("can't init logger: %w", err)
	}

	pool, err := getPgxpool(ctx, cfg)
	if err != nil {
		zap.L().Error("build pgx pool failed: ", zap.Error(err))
		return fmt.Errorf("can't build pgx pool: %w", err)
	}
	if err := pg.RunMigrations(pool); err != nil {
		zap.L().Error("migrations failed: ", zap.Error(err))
		return fmt.Errorf("can't run migrations: %w", err)
	}
	txManager := pg.NewTXManager(pool)

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return fmt.Errorf("can't connect to telegram: %w", err)
	}

	conn := pg.New(pool)
	a.cfg = cfg
	a.repo = repo.New(conn)

	settings := settingsservice.New(a.repo.Settings)
	messenger := notifier.New(api, settings, cfg)
	checker := membership.New(api)
	a.srv = service.New(cfg, a.repo, txManager, checker, messenger, random.New())

	gate := subgate.New(cfg, clients.NewHTTPClient())
	a.bot = bot.New(cfg, api, bot.Deps{
		Users:       a.srv.User,
		Bonus:       a.srv.Bonus,
		Promos:      a.srv.Promo,
		Tasks:       a.srv.Task,
		Games:       a.srv.Game,
		Withdrawals: a.srv.Withdraw,
		Settings:    a.srv.Settings,
		Gate:        gate,
	})

	if err = a.startOpsServer(ctx); err != nil {
		return fmt.Errorf("can't start ops server: %w", err)
	}

	a.startBot(ctx)

	a.ready = true
	zap.L().Info("all systems started successfully",
		zap.String("bot", api.Self.UserName))
	return nil
}

func getPgxpool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	cfgpool, err := pgxpool.ParseConfig(cfg.Database)
	if err != nil {
		return nil, err
	}
	dbpool, err := pgxpool.NewWithConfig(ctx, cfgpool)
	if err != nil {
		return nil, err
	}
	if err = dbpool.Ping(ctx); err != nil {
		return nil, err
	}
	return dbpool, nil
}

func (a *Application) startOpsServer(ctx context.Context) error {
	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	router.Get("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		stats, err := a.srv.Withdraw.Stats(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"users":               stats.UserCount,
			"pending_withdrawals": stats.PendingCount,
			"approved_total":      stats.ApprovedTotal,
		})
	})

	server := http.Server{
		Addr:    a.cfg.OpsAddress,
		Handler: router,
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		<-ctx.Done()

		sCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(sCtx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		zap.L().Info("starting ops server on port", zap.String("port", a.cfg.OpsAddress))
		if err := server.ListenAndServe(); err != nil {
			a.errCh <- fmt.Errorf("ops server exited with error: %w", err)
		}
	}()

	return nil
}

func (a *Application) startBot(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.bot.Run(ctx); err != nil {
			a.errCh <- fmt.Errorf("bot exited with error: %w", err)
		}
	}()
}

func (a *Application) Wait(ctx context.Context, cancel context.CancelFunc) error {
	var appErr error

	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()

		for err := range a.errCh {
			cancel()
			zap.L().Error(err.Error())
			appErr = err
		}
	}()

	<-ctx.Done()
	a.wg.Wait()
	close(a.errCh)
	wg.Wait()

	return appErr
}
