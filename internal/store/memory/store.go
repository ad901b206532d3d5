package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"analysis-backend/internal/models"
	"analysis-backend/internal/store/types"
)

// Store 进程内存储，生命周期跟随持有它的服务实例
type Store struct {
	tasks map[string]*models.Task
	mu    sync.RWMutex
}

func NewStore() *Store {
	return &Store{
		tasks: make(map[string]*models.Task),
	}
}

// Task 操作，进出都做拷贝，避免后台任务和请求协程共享同一条记录
func (s *Store) CreateTask(ctx context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("%w: %s", types.ErrTaskExists, task.ID)
	}
	s.tasks[task.ID] = task.Clone()
	return nil
}

func (s *Store) GetTask(ctx context.Context, id string) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if task, exists := s.tasks[id]; exists {
		return task.Clone(), nil
	}
	return nil, fmt.Errorf("%w: %s", types.ErrTaskNotFound, id)
}

func (s *Store) UpdateTask(ctx context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[task.ID]; !exists {
		return fmt.Errorf("%w: %s", types.ErrTaskNotFound, task.ID)
	}
	s.tasks[task.ID] = task.Clone()
	return nil
}

// ListTasks 按创建时间排序返回
func (s *Store) ListTasks(ctx context.Context) ([]*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tasks := make([]*models.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, task.Clone())
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks, nil
}

func (s *Store) Close() error {
	return nil
}
