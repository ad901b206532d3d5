package api

import (
	"github.com/gin-gonic/gin"

	"analysis-backend/internal/api/handlers"
	"analysis-backend/internal/models"
	"analysis-backend/pkg/auth"
	"analysis-backend/pkg/logger"
)

// RouterConfig 路由选项
type RouterConfig struct {
	CORSOrigins []string
	// 为 nil 时不做鉴权
	TokenIssuer *auth.TokenIssuer
}

func NewRouter(
	cfg RouterConfig,
	taskHandler *handlers.TaskHandler,
	outputHandler *handlers.OutputHandler,
	chatHandler *handlers.ChatHandler,
	statusHandler *handlers.StatusHandler,
	logger *logger.Logger,
) *gin.Engine {
	log := logger.GetLogger("router")

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(logger.GetLogger("http")))
	r.Use(CORS(cfg.CORSOrigins))

	// 健康检查不需要鉴权
	statusHandler.RegisterRoutes(r.Group("/api"))

	apiGroup := r.Group("/api")
	if cfg.TokenIssuer != nil {
		apiGroup.Use(BearerAuth(cfg.TokenIssuer, log))
	}
	taskHandler.RegisterRoutes(apiGroup)
	chatHandler.RegisterRoutes(apiGroup)

	// 结果文件
	outputHandler.RegisterRoutes(r.Group(models.OutputsPrefix))

	log.Debug().Bool("auth", cfg.TokenIssuer != nil).Msg("Router initialized")
	return r
}
