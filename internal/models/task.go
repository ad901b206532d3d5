package models

import (
	"errors"
	"fmt"
	"time"
)

type TaskKind string
type TaskStatus string

const (
	TaskKindAnalysis TaskKind = "analysis"
	TaskKindDummy    TaskKind = "dummy"

	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// ErrInvalidTransition 状态只能单向推进
var ErrInvalidTransition = errors.New("invalid status transition")

// IsTerminal 是否为终止状态
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Task 分析任务记录
type Task struct {
	ID             string     `json:"task_id" gorm:"primaryKey;size:36"`
	Kind           TaskKind   `json:"kind" gorm:"size:16;not null"`
	Prompt         string     `json:"prompt,omitempty" gorm:"type:text"`
	Status         TaskStatus `json:"status" gorm:"size:16;index;not null"`
	Message        string     `json:"message" gorm:"type:text"`
	ResultFilename string     `json:"result_filename,omitempty"`
	HTMLContent    string     `json:"-" gorm:"type:text"`
	Error          string     `json:"error,omitempty" gorm:"type:text"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// CanTransition 检查状态迁移是否合法
// pending -> processing -> completed/failed，pending 也可以直接失败（取消、重启）
func (t *Task) CanTransition(to TaskStatus) bool {
	switch t.Status {
	case TaskStatusPending:
		return to == TaskStatusProcessing || to == TaskStatusFailed
	case TaskStatusProcessing:
		return to == TaskStatusCompleted || to == TaskStatusFailed
	default:
		return false
	}
}

// Transition 推进任务状态并记录时间戳
func (t *Task) Transition(to TaskStatus, now time.Time) error {
	if !t.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, to)
	}

	t.Status = to
	t.UpdatedAt = now
	switch {
	case to == TaskStatusProcessing:
		t.StartedAt = &now
	case to.IsTerminal():
		t.CompletedAt = &now
	}
	return nil
}

// Clone 返回任务的深拷贝，存储层和调用方之间不共享指针
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.StartedAt != nil {
		started := *t.StartedAt
		c.StartedAt = &started
	}
	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		c.CompletedAt = &completed
	}
	return &c
}
