package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/time/rate"

	_ "competition-voting/docs"
	"competition-voting/internal/config"
	"competition-voting/internal/domain/competition"
	"competition-voting/internal/domain/user"
	"competition-voting/internal/domain/vote"
	api "competition-voting/internal/http"
	"competition-voting/internal/metrics"
	"competition-voting/internal/platform/database"
	jwtpkg "competition-voting/internal/platform/jwt"
	"competition-voting/internal/repository/memory"
	"competition-voting/internal/repository/postgres"
	"competition-voting/internal/worker"
)

type repositories struct {
	users        user.Repository
	competitions competition.Repository
	votes        vote.Repository
	db           *sqlx.DB
}

// @title           Competition Voting API
// @version         1.0
// @description     Timed multi-option competitions with exactly-once voting and JWT auth
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)
	api.SetLogger(logger)
	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, err := openRepositories(ctx, cfg, logger)
	if err != nil {
		logger.Error("storage init failed", "driver", cfg.StoreDriver, "err", err)
		os.Exit(1)
	}
	if repos.db != nil {
		defer repos.db.Close()
	}

	userSvc := user.NewService(repos.users)
	compSvc := competition.NewService(repos.competitions)
	voteSvc := vote.NewService(repos.votes, repos.competitions, logger)

	if cfg.Admin.Email != "" && cfg.Admin.Password != "" {
		created, err := userSvc.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password)
		if err != nil {
			logger.Error("admin bootstrap failed", "err", err)
			os.Exit(1)
		}
		if created {
			logger.Info("admin account created", "email", cfg.Admin.Email)
		}
	}

	voteCh := make(chan worker.VoteEvent, 100)
	statsWorker := worker.NewStatsWorker(voteCh, logger)

	deps := api.Deps{
		Users:        userSvc,
		Competitions: compSvc,
		Votes:        voteSvc,
		JWT:          jwtpkg.NewManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		TokenTTL:     cfg.Auth.TokenTTL,
		VoteCh:       voteCh,
		Activity:     statsWorker,
		VoteRate:     rate.Every(time.Minute / time.Duration(cfg.Votes.RatePerMinute)),
		VoteBurst:    cfg.Votes.Burst,
	}
	if repos.db != nil {
		deps.DB = repos.db
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()
	go statsWorker.Run(workerCtx)

	go func() {
		logger.Info("server listening", "addr", srv.Addr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "err", err)
	}
	cancelWorker()

	logger.Info("server stopped")
}

func openRepositories(ctx context.Context, cfg config.Config, logger *slog.Logger) (repositories, error) {
	if cfg.StoreDriver == config.DriverMemory {
		logger.Warn("using in-memory store; data is lost on restart")
		store := memory.NewStore()
		return repositories{
			users:        store.Users(),
			competitions: store.Competitions(),
			votes:        store.Votes(),
		}, nil
	}

	db, err := database.NewPostgres(ctx, cfg.DB_DSN)
	if err != nil {
		return repositories{}, err
	}
	if cfg.AutoMigrate {
		if err := database.Migrate(cfg.DB_DSN); err != nil {
			_ = db.Close()
			return repositories{}, err
		}
		logger.Info("migrations applied")
	}
	return repositories{
		users:        postgres.NewUserRepo(db),
		competitions: postgres.NewCompetitionRepo(db),
		votes:        postgres.NewVoteRepo(db),
		db:           db,
	}, nil
}

func newLogger(cfg config.Log) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
