package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/soheilhy/cmux"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"analysis-backend/internal/service"
	"analysis-backend/internal/store/types"
	"analysis-backend/pkg/config"
	"analysis-backend/pkg/logger"
)

type App struct {
	cfg          *config.ServerConfig
	server       *http.Server
	grpcServer   *grpc.Server
	healthServer *health.Server
	tasks        *service.TaskService
	store        types.Store
	logger       *logger.Logger
}

func NewApp(
	cfg *config.ServerConfig,
	router *gin.Engine,
	grpcServer *grpc.Server,
	healthServer *health.Server,
	tasks *service.TaskService,
	store types.Store,
	logger *logger.Logger,
) *App {
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:          cfg,
		server:       server,
		grpcServer:   grpcServer,
		healthServer: healthServer,
		tasks:        tasks,
		store:        store,
		logger:       logger,
	}
}

// Run 在同一端口上同时提供 HTTP 和 gRPC，ctx 结束后优雅退出
func (a *App) Run(ctx context.Context) error {
	log := a.logger.GetLogger("app")

	// 上次运行中断的任务标记为失败
	if _, err := a.tasks.Recover(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to recover interrupted tasks")
	}

	lis, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.server.Addr, err)
	}

	// 使用 cmux 区分 gRPC 和 HTTP 请求
	m := cmux.New(lis)
	grpcL := m.MatchWithWriters(cmux.HTTP2MatchHeaderFieldSendSettings("content-type", "application/grpc"))
	httpL := m.Match(cmux.Any())

	errCh := make(chan error, 3)
	go func() {
		if err := a.grpcServer.Serve(grpcL); err != nil && !errors.Is(err, grpc.ErrServerStopped) && !errors.Is(err, cmux.ErrListenerClosed) {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	go func() {
		if err := a.server.Serve(httpL); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, cmux.ErrListenerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		if err := m.Serve(); err != nil && !errors.Is(err, net.ErrClosed) {
			errCh <- fmt.Errorf("cmux: %w", err)
		}
	}()

	a.healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	log.Info().
		Str("address", a.server.Addr).
		Str("output_dir", a.cfg.Pipeline.OutputDir).
		Str("storage", a.cfg.Storage.Type).
		Msg("Starting server")

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	case runErr = <-errCh:
		log.Error().Err(runErr).Msg("Server failed")
	}

	stopErr := a.Stop(lis)
	if runErr != nil {
		return runErr
	}
	return stopErr
}

// Stop 依次关闭健康检查、HTTP、gRPC、任务服务和存储
func (a *App) Stop(lis net.Listener) error {
	log := a.logger.GetLogger("app")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	a.healthServer.Shutdown()

	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutting down http server: %w", err))
	}

	stopped := make(chan struct{})
	go func() {
		a.grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		a.grpcServer.Stop()
	}

	if err := lis.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		errs = append(errs, fmt.Errorf("closing listener: %w", err))
	}

	if err := a.tasks.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}

	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing store: %w", err))
	}

	log.Info().Msg("Server stopped")
	return errors.Join(errs...)
}
