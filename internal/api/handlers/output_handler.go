package handlers

import (
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"analysis-backend/internal/models"
	"analysis-backend/pkg/logger"
)

// OutputHandler 提供输出目录中的结果文件
type OutputHandler struct {
	outputDir string
	log       zerolog.Logger
}

func NewOutputHandler(outputDir string, logger *logger.Logger) *OutputHandler {
	return &OutputHandler{
		outputDir: outputDir,
		log:       logger.GetLogger("output-handler"),
	}
}

func (h *OutputHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/*filename", h.ServeFile)
	r.HEAD("/*filename", h.ServeFile)
}

func (h *OutputHandler) ServeFile(c *gin.Context) {
	// 先按 URL 路径规整，去掉 ..，保证结果落在输出目录之内
	name := path.Clean("/" + c.Param("filename"))
	if name == "/" {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "File not found"})
		return
	}

	full := filepath.Join(h.outputDir, filepath.FromSlash(name))
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		h.log.Warn().Str("file", name).Msg("Requested output file not found")
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "File not found"})
		return
	}

	h.log.Info().Str("file", name).Msg("Serving output file")
	c.File(full)
}
