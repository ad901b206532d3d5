package gormstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"analysis-backend/internal/models"
	"analysis-backend/internal/store/types"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store 通用GORM存储实现
type Store struct {
	db *gorm.DB
}

// NewStore 创建GORM存储实例
func NewStore(dialector gorm.Dialector) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.AutoMigrate(&models.Task{}); err != nil {
		return nil, fmt.Errorf("auto migrating tables: %w", err)
	}

	return &Store{db: db}, nil
}

// NewSQLiteStore 创建SQLite存储实例（纯Go驱动）
func NewSQLiteStore(cfg types.SQLiteConfig) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	store, err := NewStore(sqlite.Open(cfg.Path))
	if err != nil {
		return nil, err
	}

	// SQLite 只允许单写，串行化连接避免 database is locked
	sqlDB, err := store.db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return store, nil
}

// NewPostgresStore 创建PostgreSQL存储实例
func NewPostgresStore(cfg types.PostgresConfig) (*Store, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		cfg.Host, cfg.User, cfg.Password, cfg.DBName, cfg.Port, cfg.SSLMode)

	return NewStore(postgres.Open(dsn))
}

func (s *Store) CreateTask(ctx context.Context, task *models.Task) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", task.ID).Count(&count).Error; err != nil {
		return fmt.Errorf("checking task: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: %s", types.ErrTaskExists, task.ID)
	}

	if err := s.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("inserting task: %w", err)
	}
	return nil
}

func (s *Store) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	err := s.db.WithContext(ctx).First(&task, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", types.ErrTaskNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying task: %w", err)
	}
	return &task, nil
}

func (s *Store) ListTasks(ctx context.Context) ([]*models.Task, error) {
	var tasks []*models.Task
	if err := s.db.WithContext(ctx).Order("created_at asc").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	return tasks, nil
}

// UpdateTask 整行更新，零值字段同样写回
func (s *Store) UpdateTask(ctx context.Context, task *models.Task) error {
	result := s.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("id = ?", task.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(task)
	if result.Error != nil {
		return fmt.Errorf("updating task: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", types.ErrTaskNotFound, task.ID)
	}
	return nil
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
