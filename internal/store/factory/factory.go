package factory

import (
	"fmt"

	"analysis-backend/internal/store/gormstore"
	"analysis-backend/internal/store/memory"
	"analysis-backend/internal/store/types"
)

// NewStore 创建新的存储实例
func NewStore(cfg *types.Config) (types.Store, error) {
	switch cfg.Type {
	case "memory":
		return memory.NewStore(), nil
	case "sqlite":
		return gormstore.NewSQLiteStore(cfg.SQLite)
	case "postgres":
		return gormstore.NewPostgresStore(cfg.Postgres)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
