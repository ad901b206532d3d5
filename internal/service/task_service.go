package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"analysis-backend/internal/models"
	"analysis-backend/internal/store/types"
)

var (
	ErrEmptyPrompt        = errors.New("prompt must not be empty")
	ErrQueueFull          = errors.New("analysis queue is full")
	ErrTaskFinished       = errors.New("task already finished")
	ErrShuttingDown       = errors.New("server shutting down")
	ErrTaskCanceled       = errors.New("task canceled")
	ErrTaskTimeout        = errors.New("task timed out")
	ErrDummySourceMissing = errors.New("dummy source HTML not found")
	ErrInterrupted        = errors.New("interrupted by server restart")
)

const (
	MsgTaskCreated      = "Task created, awaiting execution."
	MsgAnalysisStarting = "Starting analysis..."
	MsgAnalysisDone     = "Analysis completed successfully."
	MsgDummyDone        = "Dummy analysis completed, HTML content is ready."
	MsgDummyMissing     = "Failed to create dummy task: source file missing."
)

// TaskServiceConfig 任务调度参数
type TaskServiceConfig struct {
	MaxConcurrent int
	MaxPending    int
	TaskTimeout   time.Duration

	OutputDir     string
	DummySource   string
	DummyFilename string
}

// job 一个正在排队或执行的任务
type job struct {
	cancel context.CancelCauseFunc
	done   chan struct{}
}

// TaskService 管理分析任务的生命周期
type TaskService struct {
	store  types.Store
	runner Runner
	cfg    TaskServiceConfig
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelCauseFunc
	sem    chan struct{}
	wg     sync.WaitGroup

	mu     sync.Mutex
	jobs   map[string]*job
	closed bool

	// 串行化 读取-修改-写回
	updateMu sync.Mutex

	now func() time.Time
}

// NewTaskService 创建任务服务
func NewTaskService(store types.Store, runner Runner, cfg TaskServiceConfig, logger zerolog.Logger) *TaskService {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.MaxPending < 0 {
		cfg.MaxPending = 0
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	return &TaskService{
		store:  store,
		runner: runner,
		cfg:    cfg,
		logger: logger.With().Str("component", "task_service").Logger(),
		ctx:    ctx,
		cancel: cancel,
		sem:    make(chan struct{}, cfg.MaxConcurrent),
		jobs:   make(map[string]*job),
		now:    time.Now,
	}
}

// StartAnalysis 创建任务并在后台执行流水线
func (s *TaskService) StartAnalysis(ctx context.Context, prompt string) (*models.Task, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrShuttingDown
	}
	if len(s.jobs) >= s.cfg.MaxConcurrent+s.cfg.MaxPending {
		return nil, ErrQueueFull
	}

	now := s.now()
	task := &models.Task{
		Kind:      models.TaskKindAnalysis,
		Prompt:    prompt,
		Status:    models.TaskStatusPending,
		Message:   MsgTaskCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.createWithNewID(ctx, task); err != nil {
		return nil, err
	}

	taskCtx, cancel := context.WithCancelCause(s.ctx)
	j := &job{cancel: cancel, done: make(chan struct{})}
	s.jobs[task.ID] = j
	s.wg.Add(1)
	go s.run(taskCtx, j, task.ID, prompt)

	s.logger.Info().
		Str("task_id", task.ID).
		Str("prompt", prompt).
		Msg("Created analysis task")

	return task.Clone(), nil
}

// StartDummyAnalysis 直接用静态 HTML 完成一个演示任务
func (s *TaskService) StartDummyAnalysis(ctx context.Context) (*models.Task, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrShuttingDown
	}

	now := s.now()
	task := &models.Task{
		Kind:      models.TaskKindDummy,
		Status:    models.TaskStatusCompleted,
		Message:   MsgDummyDone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	task.StartedAt = &now
	task.CompletedAt = &now

	content, runErr := s.prepareDummy()
	if runErr != nil {
		task.Status = models.TaskStatusFailed
		task.Error = runErr.Error()
		if errors.Is(runErr, ErrDummySourceMissing) {
			task.Message = MsgDummyMissing
		} else {
			task.Message = fmt.Sprintf("Error creating dummy task: %v", runErr)
		}
	} else {
		task.HTMLContent = content
	}

	if err := s.createWithNewID(ctx, task); err != nil {
		return nil, err
	}

	if runErr != nil {
		s.logger.Error().Err(runErr).Str("task_id", task.ID).Msg("Failed to create dummy task")
		return task.Clone(), runErr
	}

	s.logger.Info().Str("task_id", task.ID).Msg("Created and completed dummy task")
	return task.Clone(), nil
}

// prepareDummy 读取静态 HTML 并复制到输出目录
func (s *TaskService) prepareDummy() (string, error) {
	content, err := os.ReadFile(s.cfg.DummySource)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: source HTML file '%s' not found", ErrDummySourceMissing, s.cfg.DummySource)
		}
		return "", fmt.Errorf("reading dummy source: %w", err)
	}

	if s.cfg.OutputDir != "" && s.cfg.DummyFilename != "" {
		if err := os.MkdirAll(s.cfg.OutputDir, 0755); err != nil {
			return "", fmt.Errorf("creating output directory: %w", err)
		}
		dst := filepath.Join(s.cfg.OutputDir, s.cfg.DummyFilename)
		if err := os.WriteFile(dst, content, 0644); err != nil {
			return "", fmt.Errorf("copying dummy HTML: %w", err)
		}
	}

	return string(content), nil
}

// createWithNewID 分配新的 UUID 并写入存储，ID 冲突时重试
func (s *TaskService) createWithNewID(ctx context.Context, task *models.Task) error {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		task.ID = uuid.NewString()
		err = s.store.CreateTask(ctx, task)
		if !errors.Is(err, types.ErrTaskExists) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("creating task: %w", err)
	}
	return nil
}

// run 后台执行一个任务：等待执行槽位，然后运行流水线
func (s *TaskService) run(ctx context.Context, j *job, taskID, prompt string) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.jobs, taskID)
		s.mu.Unlock()
		j.cancel(nil)
		close(j.done)
	}()

	logger := s.logger.With().Str("task_id", taskID).Logger()

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		s.finish(taskID, "", context.Cause(ctx), logger)
		return
	}
	defer func() { <-s.sem }()

	if ctx.Err() != nil {
		s.finish(taskID, "", context.Cause(ctx), logger)
		return
	}

	if s.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, s.cfg.TaskTimeout,
			fmt.Errorf("%w after %s", ErrTaskTimeout, s.cfg.TaskTimeout))
		defer cancel()
	}

	err := s.update(taskID, func(task *models.Task) error {
		if err := task.Transition(models.TaskStatusProcessing, s.now()); err != nil {
			return err
		}
		task.Message = MsgAnalysisStarting
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to mark task processing")
		return
	}
	logger.Info().Msg("Starting analysis")

	resultName, runErr := s.runner.Run(ctx, taskID, prompt, func(message string) {
		err := s.update(taskID, func(task *models.Task) error {
			if task.Status != models.TaskStatusProcessing {
				return nil
			}
			task.Message = message
			task.UpdatedAt = s.now()
			return nil
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to record progress")
		}
	})
	if runErr != nil && ctx.Err() != nil {
		runErr = context.Cause(ctx)
	}

	s.finish(taskID, resultName, runErr, logger)
}

// finish 将任务置为终止状态
func (s *TaskService) finish(taskID, resultName string, runErr error, logger zerolog.Logger) {
	err := s.update(taskID, func(task *models.Task) error {
		if runErr != nil {
			if err := task.Transition(models.TaskStatusFailed, s.now()); err != nil {
				return err
			}
			task.Error = runErr.Error()
			task.Message = fmt.Sprintf("Analysis failed: %s", runErr)
			return nil
		}

		if err := task.Transition(models.TaskStatusCompleted, s.now()); err != nil {
			return err
		}
		task.ResultFilename = resultName
		task.Message = MsgAnalysisDone
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to record task result")
		return
	}

	if runErr != nil {
		logger.Error().Err(runErr).Msg("Analysis failed")
		return
	}
	logger.Info().Str("result", resultName).Msg("Analysis completed")
}

// update 读取任务、修改并写回
func (s *TaskService) update(taskID string, mutate func(task *models.Task) error) error {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	// 使用独立的 context，任务被取消后仍然需要写入最终状态
	ctx := context.Background()
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if err := mutate(task); err != nil {
		return err
	}
	return s.store.UpdateTask(ctx, task)
}

// GetTask 获取任务
func (s *TaskService) GetTask(ctx context.Context, id string) (*models.Task, error) {
	return s.store.GetTask(ctx, id)
}

// ListTasks 列出所有任务
func (s *TaskService) ListTasks(ctx context.Context) ([]*models.Task, error) {
	return s.store.ListTasks(ctx)
}

// Cancel 取消一个排队或执行中的任务，并等待其进入终止状态
func (s *TaskService) Cancel(ctx context.Context, id string) (*models.Task, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Status.IsTerminal() {
		return task, ErrTaskFinished
	}

	s.mu.Lock()
	j, ok := s.jobs[id]
	s.mu.Unlock()

	if !ok {
		// 没有对应的后台任务，例如上次运行遗留的记录
		err := s.update(id, func(task *models.Task) error {
			if err := task.Transition(models.TaskStatusFailed, s.now()); err != nil {
				return err
			}
			task.Error = ErrTaskCanceled.Error()
			task.Message = fmt.Sprintf("Analysis failed: %s", ErrTaskCanceled)
			return nil
		})
		if errors.Is(err, models.ErrInvalidTransition) {
			return nil, ErrTaskFinished
		}
		if err != nil {
			return nil, err
		}
	} else {
		j.cancel(ErrTaskCanceled)
		select {
		case <-j.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.logger.Info().Str("task_id", id).Msg("Task canceled")
	return s.store.GetTask(ctx, id)
}

// Recover 将上次运行中断的任务标记为失败
func (s *TaskService) Recover(ctx context.Context) (int, error) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing tasks: %w", err)
	}

	recovered := 0
	for _, task := range tasks {
		if task.Status.IsTerminal() {
			continue
		}
		s.mu.Lock()
		_, running := s.jobs[task.ID]
		s.mu.Unlock()
		if running {
			continue
		}

		err := s.update(task.ID, func(t *models.Task) error {
			if err := t.Transition(models.TaskStatusFailed, s.now()); err != nil {
				return err
			}
			t.Error = ErrInterrupted.Error()
			t.Message = fmt.Sprintf("Analysis failed: %s", ErrInterrupted)
			return nil
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("task_id", task.ID).Msg("Failed to recover task")
			continue
		}
		recovered++
	}

	if recovered > 0 {
		s.logger.Info().Int("count", recovered).Msg("Marked interrupted tasks as failed")
	}
	return recovered, nil
}

// Active 返回排队和执行中的任务数
func (s *TaskService) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Shutdown 停止接收新任务，取消所有后台任务并等待退出
func (s *TaskService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel(ErrShuttingDown)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("Task service stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for tasks: %w", ctx.Err())
	}
}
