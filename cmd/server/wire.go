//go:build wireinject
// +build wireinject

package main

import (
	"analysis-backend/internal/api"
	"analysis-backend/internal/api/handlers"
	"analysis-backend/internal/service"
	"analysis-backend/internal/store/factory"

	"github.com/google/wire"
)

func InitializeApp(configPath ConfigPath) (*App, error) {
	wire.Build(
		// 基础设施
		provideConfig,
		provideLogger,
		provideGRPCServer,
		provideHealthServer,

		// Store
		provideStoreConfig,
		factory.NewStore,

		// Services
		provideScriptPipeline,
		wire.Bind(new(service.Runner), new(*service.ScriptPipeline)),
		provideTaskService,
		provideChatService,
		provideStatusService,

		// Handlers
		wire.Bind(new(handlers.TaskManager), new(*service.TaskService)),
		wire.Bind(new(handlers.ChatReplier), new(*service.ChatService)),
		wire.Bind(new(handlers.StatusProvider), new(*service.StatusService)),
		handlers.NewTaskHandler,
		handlers.NewChatHandler,
		handlers.NewStatusHandler,
		provideOutputHandler,

		// Router & Server
		provideTokenIssuer,
		provideRouterConfig,
		api.NewRouter,
		NewApp,
	)
	return nil, nil
}
