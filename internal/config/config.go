package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
)

type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

const (
	DefaultDownloadURL = "https://raw.githubusercontent.com/mitre-attack/attack-stix-data/refs/heads/master/enterprise-attack/enterprise-attack.json"
	DefaultTopK        = 5
)

type Aggregation string

const (
	AggregateMax  Aggregation = "max"
	AggregateMean Aggregation = "mean"
)

type AppConfig struct {
	Env      Environment
	LogLevel string
}

type AttackConfig struct {
	File               string
	Download           bool
	DownloadURL        string
	HttpTimeoutSeconds int
	IncludeDeprecated  bool
}

type PythonConfig struct {
	ConfigDir              string
	Interpreter            string
	SkipInstall            bool
	ProcessShutdownTimeout int
}

type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	MaxChars   int
	MaxRetries int
}

type SemanticConfig struct {
	TopK      int
	Model     string
	BatchSize int
	Python    PythonConfig
	OpenAI    OpenAIConfig
}

type CoverageConfig struct {
	Enabled     bool
	Aggregation Aggregation
	OutputFile  string
}

type OutputConfig struct {
	InputFile   string
	OutputFile  string
	RemoveScore bool
	Force       bool
}

type Config struct {
	App      AppConfig
	Attack   AttackConfig
	Semantic SemanticConfig
	Coverage CoverageConfig
	Output   OutputConfig
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	appEnv := getEnv("APP_ENV", "production")
	env := parseEnvironment(appEnv)

	logLevel := getLogLevel(env)

	homeDir, err := homedir.Dir()
	if err != nil {
		homeDir = "."
	}
	defaultConfigDir := filepath.Join(homeDir, ".config", "mitreatlas")

	return &Config{
		App: AppConfig{
			Env:      env,
			LogLevel: logLevel,
		},
		Attack: AttackConfig{
			File:               getEnv("ATTACK_FILE", "enterprise-attack.json"),
			DownloadURL:        getEnv("ATTACK_DOWNLOAD_URL", DefaultDownloadURL),
			HttpTimeoutSeconds: getEnvInt("ATTACK_HTTP_TIMEOUT_SECONDS", 120),
			IncludeDeprecated:  getEnvBool("ATTACK_INCLUDE_DEPRECATED", false),
		},
		Semantic: SemanticConfig{
			TopK:      getEnvInt("SEMANTIC_TOP_K", DefaultTopK),
			Model:     getEnv("SEMANTIC_MODEL_NAME", ""),
			BatchSize: getEnvInt("SEMANTIC_BATCH_SIZE", 64),
			Python: PythonConfig{
				ConfigDir:              getEnv("SEMANTIC_PYTHON_CONFIG_DIR", defaultConfigDir),
				Interpreter:            getEnv("SEMANTIC_PYTHON_INTERPRETER", ""),
				SkipInstall:            getEnvBool("SEMANTIC_PYTHON_SKIP_INSTALL", false),
				ProcessShutdownTimeout: getEnvInt("SEMANTIC_PYTHON_PROCESS_SHUTDOWN_TIMEOUT", 5),
			},
			OpenAI: OpenAIConfig{
				APIKey:     getEnv("OPENAI_API_KEY", ""),
				BaseURL:    getEnv("OPENAI_BASE_URL", ""),
				MaxChars:   getEnvInt("OPENAI_MAX_CHARS", 30000),
				MaxRetries: getEnvInt("OPENAI_MAX_RETRIES", 2),
			},
		},
		Coverage: CoverageConfig{
			Enabled:     getEnvBool("COVERAGE_ENABLED", true),
			Aggregation: Aggregation(strings.ToLower(getEnv("COVERAGE_AGGREGATION", string(AggregateMax)))),
			OutputFile:  getEnv("COVERAGE_OUTPUT_FILE", ""),
		},
		Output: OutputConfig{
			OutputFile: getEnv("OUTPUT_FILE", "output.json"),
		},
	}, nil
}

func (c *Config) Validate() error {
	if c.Output.InputFile == "" {
		return fmt.Errorf("input file is required")
	}
	if c.Output.OutputFile == "" {
		return fmt.Errorf("output file is required")
	}
	if c.Semantic.Model == "" {
		return fmt.Errorf("semantic model is required")
	}
	if c.Semantic.TopK < 1 {
		return fmt.Errorf("top K must be at least 1, got %d", c.Semantic.TopK)
	}
	if c.Semantic.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1, got %d", c.Semantic.BatchSize)
	}
	if c.Attack.File == "" {
		return fmt.Errorf("ATT&CK taxonomy file is required")
	}
	switch c.Coverage.Aggregation {
	case AggregateMax, AggregateMean:
	default:
		return fmt.Errorf("unknown coverage aggregation %q, want %q or %q",
			c.Coverage.Aggregation, AggregateMax, AggregateMean)
	}
	return nil
}

func parseEnvironment(envStr string) Environment {
	env := Environment(strings.ToLower(envStr))

	switch env {
	case Development, Production:
		return env
	default:
		return Production
	}
}

func getLogLevel(env Environment) string {
	if env == Production {
		return getEnv("APP_LOG_LEVEL", "info")
	}

	return getEnv("APP_LOG_LEVEL", "debug")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
