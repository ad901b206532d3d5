package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"analysis-backend/pkg/config"
)

// ProgressFunc 接收流水线的进度消息
type ProgressFunc func(message string)

// Runner 执行一次分析，返回结果文件名（相对输出目录）
type Runner interface {
	Run(ctx context.Context, taskID, prompt string, progress ProgressFunc) (string, error)
}

// StageError 某个脚本以非零状态退出
type StageError struct {
	Script string
	Stdout string
	Stderr string
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: STDOUT: %s STDERR: %s", e.Script, e.Stdout, e.Stderr)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ResultMissingError 最后一步结束后结果文件不存在或为空
type ResultMissingError struct {
	Path string
}

func (e *ResultMissingError) Error() string {
	return fmt.Sprintf("no HTML visualization file found at the expected path: %s", e.Path)
}

// ScriptPipeline 依次调用外部脚本生成可视化结果
type ScriptPipeline struct {
	cfg    config.PipelineConfig
	logger zerolog.Logger
}

// NewScriptPipeline 创建脚本流水线
func NewScriptPipeline(cfg config.PipelineConfig, logger zerolog.Logger) *ScriptPipeline {
	return &ScriptPipeline{
		cfg:    cfg,
		logger: logger.With().Str("component", "pipeline").Logger(),
	}
}

// OutputDir 返回结果文件所在目录
func (p *ScriptPipeline) OutputDir() string {
	return p.cfg.OutputDir
}

// EnsureOutputDir 确保输出目录存在
func (p *ScriptPipeline) EnsureOutputDir() error {
	if err := os.MkdirAll(p.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	return nil
}

// ResultName 返回任务对应的结果文件名
func (p *ScriptPipeline) ResultName(taskID string) string {
	return strings.ReplaceAll(p.cfg.ResultName, "{task_id}", taskID)
}

// Run 实现 Runner 接口
func (p *ScriptPipeline) Run(ctx context.Context, taskID, prompt string, progress ProgressFunc) (string, error) {
	logger := p.logger.With().Str("task_id", taskID).Logger()

	if err := p.EnsureOutputDir(); err != nil {
		return "", err
	}

	resultName := p.ResultName(taskID)
	resultPath := filepath.Join(p.cfg.OutputDir, resultName)
	replacer := strings.NewReplacer(
		"{prompt}", prompt,
		"{task_id}", taskID,
		"{output_dir}", p.cfg.OutputDir,
		"{result_path}", resultPath,
		"{result_name}", resultName,
	)

	for i, stage := range p.cfg.Stages {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		msg := stage.Message
		if msg == "" {
			msg = fmt.Sprintf("Step %d/%d: Running %s...", i+1, len(p.cfg.Stages), p.stageName(stage))
		}
		if progress != nil {
			progress(msg)
		}

		if err := p.runStage(ctx, logger, stage, replacer); err != nil {
			return "", err
		}
	}

	info, err := os.Stat(resultPath)
	if err != nil || info.IsDir() || info.Size() == 0 {
		logger.Error().Str("path", resultPath).Msg("Result file missing after pipeline")
		return "", &ResultMissingError{Path: resultPath}
	}

	return resultName, nil
}

func (p *ScriptPipeline) stageName(stage config.StageConfig) string {
	if stage.Name != "" {
		return stage.Name
	}
	return filepath.Base(stage.Script)
}

// runStage 执行单个脚本并捕获输出
func (p *ScriptPipeline) runStage(ctx context.Context, logger zerolog.Logger, stage config.StageConfig, replacer *strings.Replacer) error {
	script := stage.Script
	if !filepath.IsAbs(script) {
		script = filepath.Join(p.cfg.WorkDir, script)
	}

	args := make([]string, 0, len(stage.Args)+1)
	for _, arg := range stage.Args {
		args = append(args, replacer.Replace(arg))
	}

	var cmd *exec.Cmd
	if p.cfg.Interpreter != "" {
		cmd = exec.CommandContext(ctx, p.cfg.Interpreter, append([]string{script}, args...)...)
	} else {
		cmd = exec.CommandContext(ctx, script, args...)
	}
	cmd.Dir = p.cfg.WorkDir
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	name := filepath.Base(stage.Script)
	start := time.Now()
	logger.Info().Str("stage", p.stageName(stage)).Msg("Running stage")

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return fmt.Errorf("starting %s: %w", name, err)
		}
		logger.Error().
			Str("stage", p.stageName(stage)).
			Int("exit_code", exitErr.ExitCode()).
			Str("stderr", stderr.String()).
			Msg("Stage failed")
		return &StageError{
			Script: name,
			Stdout: stdout.String(),
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	logger.Info().
		Str("stage", p.stageName(stage)).
		Dur("duration", time.Since(start)).
		Str("stdout", stdout.String()).
		Msg("Stage completed")
	return nil
}
