package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quizroom-backend/internal/config"
	"quizroom-backend/internal/control"
	"quizroom-backend/internal/game"
	"quizroom-backend/internal/logging"
	"quizroom-backend/internal/quiz"
	"quizroom-backend/internal/server"
	"quizroom-backend/internal/session"

	"github.com/spf13/cobra"
)

const (
	logBufferSize   = 1024
	shutdownTimeout = 5 * time.Second
)

// newServeCmd builds the subcommand running both listeners.
func newServeCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the quiz over TCP and the operator API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *envFile)
		},
	}
}

func runServe(ctx context.Context, envFile string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}

	logs := logging.NewRingHandler(slog.NewTextHandler(os.Stdout, nil), logBufferSize)
	logger := slog.New(logs)
	slog.SetDefault(logger)

	pool, err := quiz.LoadFile(cfg.QuestionsPath, cfg.MaxQuestions)
	if err != nil {
		return err
	}
	logger.Info("question bank loaded",
		slog.String("path", cfg.QuestionsPath),
		slog.Int("questions", pool.Len()))

	registry := game.NewNameRegistry()
	state := game.NewController(registry, logger)
	scores := game.NewScoreboard()
	surface := control.NewSurface(state, registry, scores, logs, logger)

	acceptor, err := server.Listen(cfg.Addr(), cfg.AcceptTimeout, session.Options{
		Registry:      registry,
		State:         state,
		Scores:        scores,
		Pool:          pool,
		Logger:        logger,
		MaxQuestions:  cfg.MaxQuestions,
		AnswerTimeout: cfg.AnswerTimeout,
		WaitInterval:  cfg.WaitInterval,
		PollInterval:  cfg.LobbyPollInterval,
	}, logger)
	if err != nil {
		return err
	}

	adminAPI := control.NewAPI(surface, cfg.Admin, logger)
	adminServer := &http.Server{
		Addr:         cfg.Admin.Addr,
		Handler:      adminAPI.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- acceptor.Serve()
	}()
	go func() {
		logger.Info("operator api listening", slog.String("addr", cfg.Admin.Addr))
		if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("operator api failed", slog.Any("error", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutting down", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("context canceled, shutting down")
	case err := <-serveErr:
		if err != nil {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Join(
		acceptor.Shutdown(shutdownCtx),
		adminServer.Shutdown(shutdownCtx),
	)
}
