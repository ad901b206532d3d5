package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"analysis-backend/pkg/config"
)

// newShellPipeline 使用 sh 脚本模拟三段式流水线
func newShellPipeline(t *testing.T, scripts map[string]string) (*ScriptPipeline, config.PipelineConfig) {
	t.Helper()

	workDir := t.TempDir()
	for name, body := range scripts {
		require.NoError(t, os.WriteFile(filepath.Join(workDir, name), []byte(body), 0755))
	}

	cfg := config.PipelineConfig{
		Interpreter:   "sh",
		WorkDir:       workDir,
		OutputDir:     filepath.Join(t.TempDir(), "output"),
		ResultName:    "visualization_{task_id}.html",
		MaxConcurrent: 2,
		Stages: []config.StageConfig{
			{Name: "raw", Message: "Step 1/3: Generating raw JSON...", Script: "raw.sh", Args: []string{"{prompt}", "{task_id}_raw.json"}},
			{Name: "mid", Message: "Step 2/3: Generating intermediate JSON...", Script: "mid.sh", Args: []string{"{task_id}_raw.json", "{task_id}_mid.json"}},
			{Name: "viz", Script: "viz.sh", Args: []string{"{task_id}_mid.json", "{result_path}"}},
		},
	}
	return NewScriptPipeline(cfg, zerolog.Nop()), cfg
}

var okScripts = map[string]string{
	"raw.sh": `printf '%s' "$1" > "$2"`,
	"mid.sh": `cat "$1" > "$2"; echo mid done`,
	"viz.sh": `printf '<html>%s</html>' "$(cat "$1")" > "$2"`,
}

func TestScriptPipelineSuccess(t *testing.T) {
	p, cfg := newShellPipeline(t, okScripts)

	var messages []string
	name, err := p.Run(context.Background(), "abc", "hello world", func(msg string) {
		messages = append(messages, msg)
	})
	require.NoError(t, err)
	assert.Equal(t, "visualization_abc.html", name)

	content, err := os.ReadFile(filepath.Join(cfg.OutputDir, name))
	require.NoError(t, err)
	assert.Equal(t, "<html>hello world</html>", string(content))

	assert.Equal(t, []string{
		"Step 1/3: Generating raw JSON...",
		"Step 2/3: Generating intermediate JSON...",
		"Step 3/3: Running viz...",
	}, messages)

	// 中间文件按任务区分
	assert.FileExists(t, filepath.Join(cfg.WorkDir, "abc_raw.json"))
	assert.FileExists(t, filepath.Join(cfg.WorkDir, "abc_mid.json"))
}

func TestScriptPipelineStageFailure(t *testing.T) {
	scripts := map[string]string{
		"raw.sh": okScripts["raw.sh"],
		"mid.sh": "echo partial; echo boom >&2; exit 3",
		"viz.sh": "echo should not run > ran.txt",
	}
	p, cfg := newShellPipeline(t, scripts)

	_, err := p.Run(context.Background(), "t1", "prompt", nil)
	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "mid.sh", stageErr.Script)
	assert.Equal(t, "mid.sh failed: STDOUT: partial\n STDERR: boom\n", err.Error())
	assert.NoFileExists(t, filepath.Join(cfg.WorkDir, "ran.txt"))
}

func TestScriptPipelineMissingResult(t *testing.T) {
	scripts := map[string]string{
		"raw.sh": okScripts["raw.sh"],
		"mid.sh": okScripts["mid.sh"],
		"viz.sh": `: > "$2"`,
	}
	p, cfg := newShellPipeline(t, scripts)

	_, err := p.Run(context.Background(), "t2", "prompt", nil)
	require.Error(t, err)

	var missing *ResultMissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, filepath.Join(cfg.OutputDir, "visualization_t2.html"), missing.Path)
	assert.Contains(t, err.Error(), "no HTML visualization file found at the expected path")
}

func TestScriptPipelineMissingScript(t *testing.T) {
	p, _ := newShellPipeline(t, map[string]string{})

	_, err := p.Run(context.Background(), "t3", "prompt", nil)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "raw.sh", stageErr.Script)
}

func TestScriptPipelineCanceled(t *testing.T) {
	scripts := map[string]string{
		"raw.sh": "exec sleep 10",
		"mid.sh": okScripts["mid.sh"],
		"viz.sh": okScripts["viz.sh"],
	}
	p, _ := newShellPipeline(t, scripts)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := p.Run(ctx, "t4", "prompt", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 8*time.Second)
}

func TestScriptPipelineResultName(t *testing.T) {
	p, _ := newShellPipeline(t, okScripts)
	assert.Equal(t, "visualization_xyz.html", p.ResultName("xyz"))
}
