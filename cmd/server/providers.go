package main

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"analysis-backend/internal/api"
	"analysis-backend/internal/api/handlers"
	"analysis-backend/internal/service"
	"analysis-backend/internal/store/types"
	"analysis-backend/pkg/auth"
	"analysis-backend/pkg/config"
	"analysis-backend/pkg/logger"
)

// ConfigPath 是配置文件路径的类型包装器
type ConfigPath string

// version 构建时通过 -ldflags 注入
var version = "dev"

func provideConfig(path ConfigPath) (*config.ServerConfig, error) {
	root, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}
	return config.LoadServerConfig(string(path), root)
}

func provideLogger(cfg *config.ServerConfig) *logger.Logger {
	logger := logger.NewLogger(cfg.Log.Debug)
	if cfg.Log.File != "" {
		logger.SetLogOutput(cfg.Log.File)
	}
	if cfg.Log.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	return logger
}

func provideStoreConfig(cfg *config.ServerConfig) *types.Config {
	return &types.Config{
		Type:   cfg.Storage.Type,
		SQLite: types.SQLiteConfig{Path: cfg.Storage.SQLite.Path},
		Postgres: types.PostgresConfig{
			Host:     cfg.Storage.Postgres.Host,
			Port:     cfg.Storage.Postgres.Port,
			User:     cfg.Storage.Postgres.User,
			Password: cfg.Storage.Postgres.Password,
			DBName:   cfg.Storage.Postgres.DBName,
			SSLMode:  cfg.Storage.Postgres.SSLMode,
		},
	}
}

func provideScriptPipeline(cfg *config.ServerConfig, logger *logger.Logger) (*service.ScriptPipeline, error) {
	pipeline := service.NewScriptPipeline(cfg.Pipeline, logger.Base())
	if err := pipeline.EnsureOutputDir(); err != nil {
		return nil, err
	}
	return pipeline, nil
}

func provideTaskService(cfg *config.ServerConfig, store types.Store, runner service.Runner, logger *logger.Logger) *service.TaskService {
	return service.NewTaskService(store, runner, service.TaskServiceConfig{
		MaxConcurrent: cfg.Pipeline.MaxConcurrent,
		MaxPending:    cfg.Pipeline.MaxPending,
		TaskTimeout:   cfg.Pipeline.TaskTimeout,
		OutputDir:     cfg.Pipeline.OutputDir,
		DummySource:   cfg.Dummy.SourceHTML,
		DummyFilename: cfg.Dummy.Filename,
	}, logger.Base())
}

func provideChatService(cfg *config.ServerConfig, logger *logger.Logger) (*service.ChatService, error) {
	return service.NewChatService(service.ChatConfig{
		Provider: cfg.Chat.Provider,
		APIKey:   cfg.Chat.APIKey,
		Model:    cfg.Chat.Model,
		BaseURL:  cfg.Chat.BaseURL,
		Reply:    cfg.Chat.Reply,
	}, logger.Base())
}

func provideStatusService(cfg *config.ServerConfig, store types.Store, tasks *service.TaskService, logger *logger.Logger) *service.StatusService {
	return service.NewStatusService(store, tasks, cfg.Pipeline.OutputDir, version, logger.Base())
}

func provideOutputHandler(cfg *config.ServerConfig, logger *logger.Logger) *handlers.OutputHandler {
	return handlers.NewOutputHandler(cfg.Pipeline.OutputDir, logger)
}

func provideTokenIssuer(cfg *config.ServerConfig) (*auth.TokenIssuer, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, nil
	}
	return auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
}

func provideRouterConfig(cfg *config.ServerConfig, issuer *auth.TokenIssuer) api.RouterConfig {
	return api.RouterConfig{
		CORSOrigins: cfg.Server.CORSOrigins,
		TokenIssuer: issuer,
	}
}

func provideGRPCServer() *grpc.Server {
	return grpc.NewServer()
}

// provideHealthServer 注册 gRPC 健康检查和反射服务
func provideHealthServer(grpcServer *grpc.Server) *health.Server {
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	return healthServer
}
