package models

import "path"

// OutputsPrefix 结果文件的访问前缀
const OutputsPrefix = "/outputs/"

type StartAnalysisRequest struct {
	Prompt *string `json:"prompt"`
}

type StartAnalysisResponse struct {
	TaskID  string `json:"task_id"`
	Message string `json:"message"`
}

type ChatRequest struct {
	Message string `json:"message"`
}

type ChatResponse struct {
	Reply string `json:"reply"`
}

type ErrorResponse struct {
	TaskID string `json:"task_id,omitempty"`
	Error  string `json:"error"`
}

// TaskStatusResponse 状态轮询接口的返回体
type TaskStatusResponse struct {
	TaskID       string     `json:"task_id"`
	Status       TaskStatus `json:"status"`
	Message      string     `json:"message"`
	HTMLURL      string     `json:"html_url,omitempty"`
	HTMLContent  string     `json:"html_content,omitempty"`
	ErrorDetails *string    `json:"error_details,omitempty"`
}

// NewTaskStatusResponse 按任务状态组装返回体
// 完成的任务优先返回内联 HTML，其次是结果文件地址；失败的任务附带错误详情
func NewTaskStatusResponse(task *Task) *TaskStatusResponse {
	resp := &TaskStatusResponse{
		TaskID:  task.ID,
		Status:  task.Status,
		Message: task.Message,
	}

	switch task.Status {
	case TaskStatusCompleted:
		if task.HTMLContent != "" {
			resp.HTMLContent = task.HTMLContent
		} else if task.ResultFilename != "" {
			resp.HTMLURL = path.Join(OutputsPrefix, task.ResultFilename)
		}
	case TaskStatusFailed:
		details := task.Error
		resp.ErrorDetails = &details
	}

	return resp
}

// TaskSummary 任务列表中的一项
type TaskSummary struct {
	TaskID    string     `json:"task_id"`
	Kind      TaskKind   `json:"kind"`
	Status    TaskStatus `json:"status"`
	Message   string     `json:"message"`
	CreatedAt string     `json:"created_at"`
}
