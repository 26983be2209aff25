package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/hikkinomore/buddy-server/internal/analysis/mastery"
	"github.com/hikkinomore/buddy-server/internal/config"
	"github.com/hikkinomore/buddy-server/internal/handler"
	"github.com/hikkinomore/buddy-server/internal/logger"
	"github.com/hikkinomore/buddy-server/internal/model/preset"
	"github.com/hikkinomore/buddy-server/internal/model/skill"
	"github.com/hikkinomore/buddy-server/internal/service/ai"
	"github.com/hikkinomore/buddy-server/internal/service/chat"
	"github.com/hikkinomore/buddy-server/internal/service/judge"
	"github.com/hikkinomore/buddy-server/internal/store"
	"github.com/hikkinomore/buddy-server/internal/studylog"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		logger.L.WithError(err).Warn("no .env file loaded, using system environment only")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.L.WithError(err).Fatal("failed to load configuration")
	}
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		logger.L.WithError(err).Fatal("invalid log level")
	}

	if !cfg.AI.Enabled() {
		logger.L.Fatal("Ark credentials are not configured; set ARK_API_KEY or the access/secret key pair")
	}

	st, err := store.NewSQLite(ctx, cfg.Storage.Path)
	if err != nil {
		logger.L.WithError(err).WithField("path", cfg.Storage.Path).Fatal("failed to open store")
	}
	defer st.Close()
	logger.L.WithField("path", cfg.Storage.Path).Info("store ready")

	chatModel, err := cfg.AI.NewChatModel(ctx)
	if err != nil {
		logger.L.WithError(err).Fatal("failed to initialize chat model")
	}

	aiSvc, err := ai.NewService(ctx, chatModel)
	if err != nil {
		logger.L.WithError(err).Fatal("failed to initialize reply service")
	}

	judgeSvc, err := buildJudge(ctx, cfg)
	if err != nil {
		logger.L.WithError(err).Fatal("failed to initialize skill judge")
	}

	var observer studylog.Observer
	if cfg.Study.Enabled {
		fileObserver, err := studylog.NewFileObserver(cfg.Study.Dir)
		if err != nil {
			logger.L.WithError(err).Fatal("failed to initialize study logger")
		}
		defer fileObserver.Close()
		observer = fileObserver
		logger.L.WithField("dir", cfg.Study.Dir).Info("study logging enabled")
	}

	policy := mastery.PolicyRecency
	if cfg.Eval.TimeDecay {
		policy = mastery.PolicyTimeDecay
	}

	presets := preset.NewMemoryStore(preset.Seed())
	chatSvc := chat.NewService(st, presets, aiSvc, judgeSvc, observer, chat.Options{
		EvalEnabled:       cfg.Eval.Enabled,
		EvalRecentRecords: cfg.Eval.RecentRecords,
		MasteryPolicy:     policy,
	})

	router := handler.NewRouter(presets, chatSvc)

	startServer(ctx, cfg.Server, router)
}

// buildJudge compiles the evaluation chain on its own model so the judge can
// run a different (usually cheaper) model than the buddy.
func buildJudge(ctx context.Context, cfg *config.Config) (*judge.Service, error) {
	judgeModel, err := cfg.AI.NewJudgeModel(ctx)
	if err != nil {
		return nil, err
	}

	evaluator, err := judge.NewChainEvaluator(ctx, judgeModel, judge.Instructions(skill.Taxonomy()))
	if err != nil {
		return nil, err
	}
	return judge.New(evaluator), nil
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.L.WithField("addr", serverCfg.Addr).Info("buddy server listening")
	if err := runServer(ctx, srv); err != nil {
		logger.L.WithError(err).Fatal("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
