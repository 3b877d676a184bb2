package main

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"judger/internal/common/cache"
	"judger/internal/common/mq"
	"judger/internal/common/storage"
	judgecache "judger/internal/judge/cache"
	"judger/internal/judge/callback"
	"judger/internal/judge/reaper"
	"judger/internal/judge/sandbox/engine"
	"judger/internal/judge/sandbox/profile"
	"judger/internal/judge/sandbox/runner"
	"judger/pkg/utils/logger"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort            = 5001
	defaultDataDir         = "/ojdata"
	defaultTmpDir          = "/tmp/judger"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 30 * time.Second
	defaultCallbackPool    = 100
	defaultMetricsPath     = "/metrics"

	envCallback = "OJ_BACKEND_CALLBACK"
	envPort     = "SERVICE_PORT"
	envDataDir  = "DATA_DIR"
	envTmpDir   = "TMP_DIR"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// JudgeConfig holds the judge directories and job settings.
type JudgeConfig struct {
	DataDir    string        `yaml:"dataDir"`
	TmpDir     string        `yaml:"tmpDir"`
	JobTimeout time.Duration `yaml:"jobTimeout"`
}

// PoolConfig sizes the judge and callback pools.
type PoolConfig struct {
	JudgeSize    int `yaml:"judgeSize"`
	CallbackSize int `yaml:"callbackSize"`
}

// SandboxConfig holds the isolation engine and process identity settings.
type SandboxConfig struct {
	Engine  engine.Config `yaml:"engine"`
	Process runner.Config `yaml:"process"`
}

// DatasetConfig enables remote dataset synchronization when MinIO is set.
type DatasetConfig struct {
	Sync  judgecache.Config   `yaml:"sync"`
	MinIO storage.MinIOConfig `yaml:"minio"`
	Redis cache.RedisConfig   `yaml:"redis"`
}

// KafkaConfig enables the verdict mirror when brokers and topic are set.
type KafkaConfig struct {
	mq.KafkaConfig `yaml:",inline"`
	VerdictTopic   string `yaml:"verdictTopic"`
}

// Enabled reports whether the verdict mirror is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.VerdictTopic != ""
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Disabled bool   `yaml:"disabled"`
	Path     string `yaml:"path"`
}

// AppConfig holds judge-server config.
type AppConfig struct {
	Server    ServerConfig           `yaml:"server"`
	Logger    logger.Config          `yaml:"logger"`
	Judge     JudgeConfig            `yaml:"judge"`
	Sandbox   SandboxConfig          `yaml:"sandbox"`
	Languages []profile.LanguageRule `yaml:"languages"`
	Pool      PoolConfig             `yaml:"pool"`
	Callback  callback.Config        `yaml:"callback"`
	Reaper    reaper.Config          `yaml:"reaper"`
	Dataset   DatasetConfig          `yaml:"dataset"`
	Kafka     KafkaConfig            `yaml:"kafka"`
	Metrics   MetricsConfig          `yaml:"metrics"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

// loadAppConfig reads the YAML file, which may be absent, then applies the
// environment (optionally seeded from envFile) and defaults.
func loadAppConfig(path, envFile string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file failed: %w", err)
		}
	}
	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if strings.TrimSpace(cfg.Callback.URL) == "" {
		return nil, fmt.Errorf("%s is required", envCallback)
	}
	return &cfg, nil
}

func applyEnv(cfg *AppConfig, getenv func(string) string) error {
	if v := strings.TrimSpace(getenv(envCallback)); v != "" {
		cfg.Callback.URL = v
	}
	if v := strings.TrimSpace(getenv(envPort)); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("invalid %s: %q", envPort, v)
		}
		cfg.Server.Addr = net.JoinHostPort("0.0.0.0", strconv.Itoa(port))
	}
	if v := strings.TrimSpace(getenv(envDataDir)); v != "" {
		cfg.Judge.DataDir = v
	}
	if v := strings.TrimSpace(getenv(envTmpDir)); v != "" {
		cfg.Judge.TmpDir = v
	}
	return nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = net.JoinHostPort("0.0.0.0", strconv.Itoa(defaultPort))
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.Judge.DataDir == "" {
		cfg.Judge.DataDir = defaultDataDir
	}
	if cfg.Judge.TmpDir == "" {
		cfg.Judge.TmpDir = defaultTmpDir
	}
	if cfg.Pool.CallbackSize <= 0 {
		cfg.Pool.CallbackSize = defaultCallbackPool
	}
	if cfg.Sandbox.Engine.BinaryPath == "" {
		cfg.Sandbox.Engine.BinaryPath = engine.DefaultBinaryPath
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = profile.DefaultLanguageRules()
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = defaultMetricsPath
	}
	if cfg.Dataset.MinIO.Enabled() {
		applyRedisDefaults(&cfg.Dataset.Redis)
	}
}

func applyRedisDefaults(cfg *cache.RedisConfig) {
	defaults := cache.DefaultRedisConfig()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaults.DialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = defaults.PoolSize
	}
}
