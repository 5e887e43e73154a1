package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	apperrors "spendtrend/internal/errors"
)

// EnvPrefix namespaces every environment variable, e.g. SPENDTREND_ANALYSIS_BREAK_YEAR
const EnvPrefix = "SPENDTREND"

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Paths    PathsConfig    `yaml:"paths" envconfig:"PATHS"`
	Tracing  TracingConfig  `yaml:"tracing" envconfig:"TRACING"`
	Analysis AnalysisConfig `yaml:"analysis" envconfig:"ANALYSIS"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int             `yaml:"port" envconfig:"PORT" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s" validate:"gt=0"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s" validate:"gt=0"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"100" validate:"gte=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"50" validate:"gte=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn warning error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/spendtrend.log"`
}

// PathsConfig contains input and output locations
type PathsConfig struct {
	Input     string `yaml:"input" envconfig:"INPUT"`
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR" default:"output"`
}

// TracingConfig selects the span exporter
type TracingConfig struct {
	Exporter    string `yaml:"exporter" envconfig:"EXPORTER" default:"none" validate:"oneof=none stdout"`
	ServiceName string `yaml:"service_name" envconfig:"SERVICE_NAME" default:"spendtrend"`
}

// Load reads defaults and environment variables, overlays the YAML file at
// path (or the first config file found when path is empty) and validates
// the result. Environment variables take precedence over the file.
func Load(path string) (*Config, error) {
	var env Config
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return nil, apperrors.NewConfigError("failed to load config from env", err)
	}
	env.Analysis.Metrics = DefaultMetrics()

	cfg := env
	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		fileCfg, err := loadFromFile(path)
		if err != nil {
			return nil, apperrors.NewConfigError(fmt.Sprintf("failed to load config file %s", path), err)
		}
		cfg = mergeConfigs(*fileCfg, env, explicitEnv())
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadFromFile loads configuration from a YAML file on top of the defaults
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	cfg.Analysis.Deflators = nil
	cfg.Analysis.Metrics = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Analysis.Deflators == nil {
		cfg.Analysis.Deflators = DefaultDeflatorTable()
	}
	if cfg.Analysis.Metrics == nil {
		cfg.Analysis.Metrics = DefaultMetrics()
	}
	return cfg, nil
}

// explicitEnv returns the SPENDTREND_* variables set in the environment
func explicitEnv() map[string]bool {
	set := make(map[string]bool)
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, EnvPrefix+"_") {
			set[strings.TrimPrefix(name, EnvPrefix+"_")] = true
		}
	}
	return set
}

// mergeConfigs walks both configs and keeps the env value for every field
// whose variable was explicitly set; all other fields come from the file.
func mergeConfigs(fileConfig, envConfig Config, setVars map[string]bool) Config {
	merged := fileConfig
	mergeStruct(reflect.ValueOf(&merged).Elem(), reflect.ValueOf(envConfig), "", setVars)
	return merged
}

func mergeStruct(dst, src reflect.Value, prefix string, setVars map[string]bool) {
	typ := dst.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		name := field.Tag.Get("envconfig")
		if name == "" {
			continue
		}
		key := name
		if prefix != "" {
			key = prefix + "_" + name
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Duration(0)) {
			mergeStruct(dst.Field(i), src.Field(i), key, setVars)
			continue
		}
		if setVars[key] {
			dst.Field(i).Set(src.Field(i))
		}
	}
}

// findConfigFile returns the first config file in the usual locations
func findConfigFile() string {
	locations := []string{
		"spendtrend.yaml",
		"configs/spendtrend.yaml",
		"../configs/spendtrend.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

var validate = validator.New()

// Validate checks struct tags and the cross-field rules of the analysis
// section. Every failure is a configuration error.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return apperrors.NewConfigError("config validation failed", err)
	}
	return c.Analysis.validate()
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/spendtrend.log",
		},
		Paths: PathsConfig{
			OutputDir: "output",
		},
		Tracing: TracingConfig{
			Exporter:    "none",
			ServiceName: AppName,
		},
		Analysis: DefaultAnalysis(),
	}
}
