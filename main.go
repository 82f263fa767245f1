package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v6"
	glog "github.com/Laisky/go-utils/v5/log"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"

	"github.com/buscafornecedor/vllm-gateway/common"
	"github.com/buscafornecedor/vllm-gateway/common/config"
	"github.com/buscafornecedor/vllm-gateway/common/graceful"
	"github.com/buscafornecedor/vllm-gateway/common/logger"
	"github.com/buscafornecedor/vllm-gateway/common/tracing"
	"github.com/buscafornecedor/vllm-gateway/controller"
	"github.com/buscafornecedor/vllm-gateway/middleware"
	"github.com/buscafornecedor/vllm-gateway/model"
	"github.com/buscafornecedor/vllm-gateway/relay/adaptor/openai"
	"github.com/buscafornecedor/vllm-gateway/relay/dispatcher"
	"github.com/buscafornecedor/vllm-gateway/router"
)

func main() {
	ctx := context.Background()
	cfg := config.Load()

	logLevel := glog.LevelInfo
	if cfg.DebugEnabled {
		logger.SetDebugLevel()
		logLevel = glog.LevelDebug
	} else if os.Getenv("GIN_MODE") != gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.Logger.Info("vLLM gateway started",
		zap.String("version", common.Version),
		zap.String("vllm_base_url", cfg.BackendBaseURL()),
		zap.Int("max_in_flight_tasks", cfg.MaxInFlightTasks))

	shutdownTracing, err := tracing.Setup(ctx, cfg)
	if err != nil {
		logger.Logger.Fatal("failed to set up tracing", zap.Error(err))
	}

	store, err := model.InitStore(cfg)
	if err != nil {
		logger.Logger.Fatal("failed to initialize outcome store", zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Logger.Error("failed to close outcome store", zap.Error(err))
		}
	}()

	client := openai.NewClient(cfg)
	disp := dispatcher.New(client, store, cfg.DefaultModel, cfg.MaxInFlightTasks)
	ctrl := controller.New(cfg, disp, store)

	server := gin.New()
	server.RedirectTrailingSlash = false
	server.Use(
		gin.Recovery(),
		gmw.NewLoggerMiddleware(
			gmw.WithLoggerMwColored(),
			gmw.WithLevel(logLevel.String()),
			gmw.WithLogger(logger.Logger.Named("gin")),
		),
	)
	server.Use(middleware.RequestId())
	server.Use(middleware.CORS())
	server.Use(middleware.RelayPanicRecover())

	router.SetRouter(server, ctrl)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr(),
		Handler: server,
	}
	go func() {
		logger.Logger.Info("server listening", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Logger.Fatal("failed to start HTTP server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info("shutdown signal received, draining",
		zap.Int64("in_flight_tasks", graceful.InFlightTasks()))
	graceful.SetDraining()

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.ShutdownTimeoutSec)*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	if err := graceful.Drain(shutdownCtx); err != nil {
		logger.Logger.Error("task drain incomplete, some outcomes may be lost", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Logger.Error("trace exporter shutdown error", zap.Error(err))
	}
	logger.Logger.Info("vLLM gateway stopped")
}
