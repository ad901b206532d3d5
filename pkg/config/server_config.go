package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// StageConfig 流水线中的一个外部脚本
type StageConfig struct {
	Name    string   `yaml:"name"`
	Message string   `yaml:"message"` // 进度提示，为空时自动生成
	Script  string   `yaml:"script"`  // 相对路径基于 work_dir
	Args    []string `yaml:"args"`    // 支持 {prompt} {task_id} {output_dir} {result_path} {result_name}
}

// PipelineConfig 分析流水线配置
type PipelineConfig struct {
	Interpreter   string        `yaml:"interpreter"`
	WorkDir       string        `yaml:"work_dir"`
	OutputDir     string        `yaml:"output_dir"`
	ResultName    string        `yaml:"result_name"`
	MaxConcurrent int           `yaml:"max_concurrent"`
	MaxPending    int           `yaml:"max_pending"`
	TaskTimeout   time.Duration `yaml:"task_timeout"`
	Stages        []StageConfig `yaml:"stages"`
}

// ServerConfig 服务端配置
type ServerConfig struct {
	// 服务器配置
	Server struct {
		Host            string        `yaml:"host"`
		Port            int           `yaml:"port"`
		CORSOrigins     []string      `yaml:"cors_origins"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	// 日志配置
	Log struct {
		Debug bool   `yaml:"debug"`
		File  string `yaml:"file"`
	} `yaml:"log"`

	// 存储配置
	Storage struct {
		Type   string `yaml:"type"`
		SQLite struct {
			Path string `yaml:"path"`
		} `yaml:"sqlite"`
		Postgres struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			User     string `yaml:"user"`
			Password string `yaml:"password"`
			DBName   string `yaml:"dbname"`
			SSLMode  string `yaml:"sslmode"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Pipeline PipelineConfig `yaml:"pipeline"`

	// 演示任务：直接返回一份静态 HTML
	Dummy struct {
		SourceHTML string `yaml:"source_html"`
		Filename   string `yaml:"filename"`
	} `yaml:"dummy"`

	// 聊天接口，provider 为空时只返回固定回复
	Chat struct {
		Provider string `yaml:"provider"`
		APIKey   string `yaml:"api_key"`
		Model    string `yaml:"model"`
		BaseURL  string `yaml:"base_url"`
		Reply    string `yaml:"reply"`
	} `yaml:"chat"`

	// 接口鉴权，jwt_secret 为空时关闭
	Auth struct {
		JWTSecret string        `yaml:"jwt_secret"`
		Issuer    string        `yaml:"issuer"`
		TokenTTL  time.Duration `yaml:"token_ttl"`
	} `yaml:"auth"`
}

const (
	EnvPort          = "ANALYSIS_PORT"
	EnvOpenRouterKey = "OPENROUTER_API_KEY"
	EnvJWTSecret     = "ANALYSIS_JWT_SECRET"
)

// LoadServerConfig 加载服务端配置，path 为空时只使用默认值和环境变量
func LoadServerConfig(path string, workspaceRoot string) (*ServerConfig, error) {
	cfg := DefaultServerConfig()
	if path != "" {
		if err := LoadConfig(path, cfg); err != nil {
			return nil, err
		}
	} else {
		cfg.ApplyEnv()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("validating config: %w", err)
		}
	}

	// 处理相对路径
	if err := cfg.resolveRelativePaths(workspaceRoot); err != nil {
		return nil, fmt.Errorf("resolving paths: %w", err)
	}

	return cfg, nil
}

// ApplyEnv 实现EnvOverrider接口
func (c *ServerConfig) ApplyEnv() {
	if v, ok := os.LookupEnv(EnvPort); ok {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v, ok := os.LookupEnv(EnvOpenRouterKey); ok && c.Chat.APIKey == "" {
		c.Chat.APIKey = v
	}
	if v, ok := os.LookupEnv(EnvJWTSecret); ok && c.Auth.JWTSecret == "" {
		c.Auth.JWTSecret = v
	}
}

// Validate 实现Config接口
func (c *ServerConfig) Validate() error {
	if c.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}

	switch c.Storage.Type {
	case "memory":
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path is required")
		}
	case "postgres":
		if c.Storage.Postgres.Host == "" || c.Storage.Postgres.DBName == "" {
			return fmt.Errorf("storage.postgres.host and storage.postgres.dbname are required")
		}
	case "":
		return fmt.Errorf("storage.type is required")
	default:
		return fmt.Errorf("unknown storage.type: %s", c.Storage.Type)
	}

	if err := c.Pipeline.validate(); err != nil {
		return err
	}

	if c.Dummy.Filename != "" && filepath.Base(c.Dummy.Filename) != c.Dummy.Filename {
		return fmt.Errorf("dummy.filename must be a bare file name: %s", c.Dummy.Filename)
	}

	switch c.Chat.Provider {
	case "":
	case "openai", "openrouter":
		if c.Chat.APIKey == "" {
			return fmt.Errorf("chat.api_key is required for provider %s", c.Chat.Provider)
		}
	default:
		return fmt.Errorf("unknown chat.provider: %s", c.Chat.Provider)
	}

	if c.Auth.JWTSecret != "" && c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("invalid auth.token_ttl: %s", c.Auth.TokenTTL)
	}

	return nil
}

func (p *PipelineConfig) validate() error {
	if p.WorkDir == "" {
		return fmt.Errorf("pipeline.work_dir is required")
	}
	if p.OutputDir == "" {
		return fmt.Errorf("pipeline.output_dir is required")
	}
	if p.ResultName == "" || strings.ContainsAny(p.ResultName, `/\`) {
		return fmt.Errorf("pipeline.result_name must be a bare file name: %q", p.ResultName)
	}
	if p.MaxConcurrent <= 0 {
		return fmt.Errorf("invalid pipeline.max_concurrent: %d", p.MaxConcurrent)
	}
	if p.MaxPending < 0 {
		return fmt.Errorf("invalid pipeline.max_pending: %d", p.MaxPending)
	}
	if len(p.Stages) == 0 {
		return fmt.Errorf("pipeline.stages must not be empty")
	}
	for i, stage := range p.Stages {
		if stage.Script == "" {
			return fmt.Errorf("pipeline.stages[%d].script is required", i)
		}
	}
	return nil
}

// resolveRelativePaths 处理相对路径
func (c *ServerConfig) resolveRelativePaths(baseDir string) error {
	resolve := func(path *string) {
		if *path != "" && !filepath.IsAbs(*path) {
			*path = filepath.Join(baseDir, *path)
		}
	}

	resolve(&c.Log.File)
	resolve(&c.Pipeline.WorkDir)
	resolve(&c.Pipeline.OutputDir)
	resolve(&c.Dummy.SourceHTML)

	// 处理SQLite数据库路径
	if c.Storage.Type == "sqlite" {
		resolve(&c.Storage.SQLite.Path)
		// 确保数据库目录存在
		if err := os.MkdirAll(filepath.Dir(c.Storage.SQLite.Path), 0755); err != nil {
			return fmt.Errorf("creating sqlite directory: %w", err)
		}
	}

	return nil
}

// DefaultStages 返回默认的三段式分析流水线
func DefaultStages() []StageConfig {
	return []StageConfig{
		{
			Name:    "generate_raw_output_json",
			Message: "Step 1/3: Generating raw JSON...",
			Script:  "generate_raw_output_json.py",
			Args: []string{
				"--prompt", "{prompt}",
				"--output", "{task_id}_raw_output.json",
				"--conclusion_output", "{task_id}_conclusion.json",
			},
		},
		{
			Name:    "generate_mid_fromraw",
			Message: "Step 2/3: Generating intermediate JSON...",
			Script:  "generate_mid_fromraw.py",
			Args: []string{
				"--raw_input", "{task_id}_raw_output.json",
				"--conclusion_input", "{task_id}_conclusion.json",
				"--output", "{task_id}_mid_output.json",
			},
		},
		{
			Name:    "visualization",
			Message: "Step 3/3: Generating visualization...",
			Script:  "visualization.py",
			Args: []string{
				"--input", "{task_id}_mid_output.json",
				"--output", "{result_path}",
			},
		},
	}
}

// DefaultServerConfig 返回默认服务端配置
func DefaultServerConfig() *ServerConfig {
	cfg := &ServerConfig{}

	// 服务器配置
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 5001
	cfg.Server.CORSOrigins = []string{"*"}
	cfg.Server.ShutdownTimeout = 10 * time.Second

	// 日志配置
	cfg.Log.Debug = false
	cfg.Log.File = "data/analysis-server.log"

	// 存储配置
	cfg.Storage.Type = "memory"
	cfg.Storage.SQLite.Path = "data/tasks.db"
	cfg.Storage.Postgres.Port = 5432
	cfg.Storage.Postgres.SSLMode = "disable"

	// 流水线配置
	cfg.Pipeline.Interpreter = "python"
	cfg.Pipeline.WorkDir = "gen/nlp-homework"
	cfg.Pipeline.OutputDir = "gen/nlp-homework/output"
	cfg.Pipeline.ResultName = "visualization_{task_id}.html"
	cfg.Pipeline.MaxConcurrent = 4
	cfg.Pipeline.MaxPending = 64
	cfg.Pipeline.TaskTimeout = 30 * time.Minute
	cfg.Pipeline.Stages = DefaultStages()

	cfg.Dummy.SourceHTML = "static/dummy_visualization.html"
	cfg.Dummy.Filename = "dummy_visualization.html"

	cfg.Chat.Model = "openai/gpt-4o-mini"
	cfg.Chat.BaseURL = "https://openrouter.ai/api/v1"
	cfg.Chat.Reply = "Chat functionality with OpenRouter is planned but not yet fully implemented."

	cfg.Auth.Issuer = "analysis-backend"
	cfg.Auth.TokenTTL = 24 * time.Hour

	return cfg
}
