package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"analysis-backend/internal/models"
	"analysis-backend/internal/store/types"
)

// ActiveCounter 返回排队和执行中的任务数
type ActiveCounter interface {
	Active() int
}

type StatusService struct {
	store     types.Store
	active    ActiveCounter
	diskPath  string
	version   string
	startedAt time.Time
	logger    zerolog.Logger
}

func NewStatusService(store types.Store, active ActiveCounter, diskPath, version string, logger zerolog.Logger) *StatusService {
	return &StatusService{
		store:     store,
		active:    active,
		diskPath:  diskPath,
		version:   version,
		startedAt: time.Now(),
		logger:    logger.With().Str("component", "status_service").Logger(),
	}
}

func (s *StatusService) GetSystemStatus(ctx context.Context) (*models.SystemStatus, error) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return nil, err
	}

	status := &models.SystemStatus{
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	}
	for _, task := range tasks {
		status.Tasks.Add(task.Status)
	}
	if s.active != nil {
		status.ActiveTasks = s.active.Active()
	}

	// 主机指标采集失败不影响任务统计
	hostStatus, err := s.collectHost(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to collect host metrics")
	} else {
		status.Host = *hostStatus
	}

	return status, nil
}

// collectHost 采集主机资源占用
func (s *StatusService) collectHost(ctx context.Context) (*models.HostStatus, error) {
	// CPU使用率，间隔为 0 时与上次调用比较
	cpuPercent, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return nil, fmt.Errorf("getting CPU usage: %w", err)
	}

	// 内存使用率
	memInfo, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting memory info: %w", err)
	}

	// 运行时间
	uptime, err := host.UptimeWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting host uptime: %w", err)
	}

	result := &models.HostStatus{
		MemoryPercent: memInfo.UsedPercent,
		UptimeSeconds: uptime,
	}
	if len(cpuPercent) > 0 {
		result.CPUPercent = cpuPercent[0]
	}

	// 输出目录所在磁盘
	if s.diskPath != "" {
		diskInfo, err := disk.UsageWithContext(ctx, s.diskPath)
		if err != nil {
			return nil, fmt.Errorf("getting disk info: %w", err)
		}
		result.DiskPercent = diskInfo.UsedPercent
	}

	return result, nil
}
