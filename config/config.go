// Package config loads the runtime configuration from a YAML file, layered
// over defaults and overridden by environment variables. A .env file next to
// the working directory is read first so credentials can live outside the
// YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/jubilee/model"
)

// Environment variables consulted by Load.
const (
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvAnthropicKey  = "ANTHROPIC_API_KEY"
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
	EnvModel         = "JUBILEE_MODEL"
	EnvStewardship   = "JUBILEE_STEWARDSHIP_MODE"
	EnvBuilder       = "JUBILEE_BUILDER_MODE"
	EnvRPCURL        = "JUBILEE_RPC_URL"
	EnvRedisAddr     = "JUBILEE_REDIS_ADDR"
	EnvMySQLDSN      = "JUBILEE_MYSQL_DSN"
	EnvLogLevel      = "JUBILEE_LOG_LEVEL"
)

// Task store drivers.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverMySQL  = "mysql"
)

// Config is the root configuration document.
type Config struct {
	Model    ModelConfig    `yaml:"model"`
	Agent    AgentConfig    `yaml:"agent"`
	Modes    ModesConfig    `yaml:"modes"`
	Angel    AngelConfig    `yaml:"angel"`
	Guard    GuardConfig    `yaml:"guard"`
	Treasury TreasuryConfig `yaml:"treasury"`
	Tasks    TasksConfig    `yaml:"tasks"`
	Skills   SkillsConfig   `yaml:"skills"`
	Shell    ShellConfig    `yaml:"shell"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ModelConfig selects the chat model. ID accepts "provider:model" or a bare
// model id (claude* ids select Anthropic).
type ModelConfig struct {
	ID          string            `yaml:"id"`
	GuardID     string            `yaml:"guard_id"`
	Credentials model.Credentials `yaml:"credentials"`
}

// AgentConfig tunes the reasoning loop.
type AgentConfig struct {
	MaxIterations  int           `yaml:"max_iterations"`
	ModelTimeout   time.Duration `yaml:"model_timeout"`
	ToolTimeout    time.Duration `yaml:"tool_timeout"`
	RunTimeout     time.Duration `yaml:"run_timeout"`
	ParallelTools  bool          `yaml:"parallel_tools"`
	MaxConcurrency int           `yaml:"max_concurrent_runs"`
}

// ModesConfig enables feature modes for angel roles.
type ModesConfig struct {
	Stewardship bool `yaml:"stewardship"`
	Builder     bool `yaml:"builder"`
}

// AngelConfig configures the dispatcher.
type AngelConfig struct {
	MaxDepth          int    `yaml:"max_depth"`
	RolesFile         string `yaml:"roles_file"`
	Lenient           bool   `yaml:"lenient_capabilities"`
	DefaultIterations int    `yaml:"default_iterations"`
}

// GuardConfig points at an optional policy override file.
type GuardConfig struct {
	PolicyFile string        `yaml:"policy_file"`
	Timeout    time.Duration `yaml:"timeout"`
}

// TreasuryConfig wires the onchain tools.
type TreasuryConfig struct {
	AllowlistFile string   `yaml:"allowlist_file"`
	Allowlist     []string `yaml:"allowlist"`
	RPCURL        string   `yaml:"rpc_url"`
	// KeyEnv names the environment variable holding the signer's hex key.
	KeyEnv string `yaml:"key_env"`
}

// TasksConfig selects the task context backend.
type TasksConfig struct {
	Driver    string `yaml:"driver"`
	Address   string `yaml:"address"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
	DSN       string `yaml:"dsn"`
}

// SkillsConfig locates SKILL.md directories.
type SkillsConfig struct {
	Dir string `yaml:"dir"`
}

// ShellConfig configures code_exec.
type ShellConfig struct {
	Enabled           bool     `yaml:"enabled"`
	Allowlist         []string `yaml:"allowlist"`
	Dir               string   `yaml:"dir"`
	ConfirmationToken string   `yaml:"confirmation_token"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Model: ModelConfig{ID: "gpt-4o-mini"},
		Agent: AgentConfig{
			MaxIterations:  10,
			ModelTimeout:   2 * time.Minute,
			ToolTimeout:    time.Minute,
			RunTimeout:     10 * time.Minute,
			MaxConcurrency: 10,
		},
		Angel: AngelConfig{
			MaxDepth:          3,
			DefaultIterations: 10,
		},
		Guard:    GuardConfig{Timeout: 30 * time.Second},
		Treasury: TreasuryConfig{KeyEnv: "JUBILEE_TREASURY_KEY"},
		Tasks:    TasksConfig{Driver: DriverMemory},
		Skills:   SkillsConfig{Dir: "skills"},
		Shell:    ShellConfig{ConfirmationToken: "CONFIRM"},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads .env (if present), then the YAML file at path (if non-empty),
// then applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvOpenAIKey); v != "" {
		c.Model.Credentials.OpenAIAPIKey = v
	}
	if v := os.Getenv(EnvAnthropicKey); v != "" {
		c.Model.Credentials.AnthropicAPIKey = v
	}
	if v := os.Getenv(EnvOpenAIBaseURL); v != "" {
		c.Model.Credentials.OpenAIBaseURL = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		c.Model.ID = v
	}
	if b, ok := envBool(EnvStewardship); ok {
		c.Modes.Stewardship = b
	}
	if b, ok := envBool(EnvBuilder); ok {
		c.Modes.Builder = b
	}
	if v := os.Getenv(EnvRPCURL); v != "" {
		c.Treasury.RPCURL = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		c.Tasks.Driver = DriverRedis
		c.Tasks.Address = v
	}
	if v := os.Getenv(EnvMySQLDSN); v != "" {
		c.Tasks.Driver = DriverMySQL
		c.Tasks.DSN = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
}

func envBool(key string) (bool, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// Validate reports configuration errors.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Model.ID) == "" {
		errs = append(errs, errors.New("model.id is required"))
	}
	if c.Agent.MaxIterations <= 0 {
		errs = append(errs, errors.New("agent.max_iterations must be positive"))
	}
	if c.Angel.MaxDepth < 0 {
		errs = append(errs, errors.New("angel.max_depth must not be negative"))
	}
	switch c.Tasks.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Tasks.Address == "" {
			errs = append(errs, errors.New("tasks.address is required for the redis driver"))
		}
	case DriverMySQL:
		if c.Tasks.DSN == "" {
			errs = append(errs, errors.New("tasks.dsn is required for the mysql driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("tasks.driver %q is not one of memory, redis, mysql", c.Tasks.Driver))
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is not one of json, text", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// TreasuryKey returns the signer key from the configured environment variable.
func (c *Config) TreasuryKey() string {
	if c.Treasury.KeyEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(c.Treasury.KeyEnv))
}
