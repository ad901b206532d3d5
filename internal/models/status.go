package models

// TaskCounts 按状态统计的任务数量
type TaskCounts struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// Add 计入一个任务
func (c *TaskCounts) Add(status TaskStatus) {
	c.Total++
	switch status {
	case TaskStatusPending:
		c.Pending++
	case TaskStatusProcessing:
		c.Processing++
	case TaskStatusCompleted:
		c.Completed++
	case TaskStatusFailed:
		c.Failed++
	}
}

// HostStatus 主机资源占用
type HostStatus struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	DiskPercent   float64 `json:"disk_percent"`
	UptimeSeconds uint64  `json:"uptime_seconds"`
}

type SystemStatus struct {
	Version       string     `json:"version"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	ActiveTasks   int        `json:"active_tasks"`
	Tasks         TaskCounts `json:"tasks"`
	Host          HostStatus `json:"host"`
}
