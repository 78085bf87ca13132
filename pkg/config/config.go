package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"RegimeLab/internal/domain/models"
	"RegimeLab/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"oneof=development staging production test"`
	Log         struct {
		Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format     string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output     string `yaml:"output" default:"stdout"`
		MaxSizeMB  int    `yaml:"max_size_mb" default:"100" validate:"gte=1"`
		MaxBackups int    `yaml:"max_backups" default:"5" validate:"gte=0"`
		MaxAgeDays int    `yaml:"max_age_days" default:"30" validate:"gte=0"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10m"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		// AnalyzeBurst and AnalyzeRefill throttle fit-starting endpoints per client IP.
		AnalyzeBurst  float64 `yaml:"analyze_burst" default:"5" validate:"gte=0"`
		AnalyzeRefill float64 `yaml:"analyze_refill_per_sec" default:"0.05" validate:"gte=0"`
	} `yaml:"server"`
	Metrics struct {
		Path string `yaml:"path" default:"/metrics" validate:"startswith=/"`
	} `yaml:"metrics"`
	Data struct {
		Source  string   `yaml:"source" default:"csv" validate:"oneof=csv clickhouse"`
		CSVDir  string   `yaml:"csv_dir" default:"data"`
		From    string   `yaml:"from" default:"2005-01-01" validate:"datetime=2006-01-02"`
		Symbols []string `yaml:"symbols" default:"[\"^GSPC\"]" validate:"min=1,dive,required"`
	} `yaml:"data"`
	Model struct {
		StateCounts []int   `yaml:"state_counts" default:"[2,3,4,5]" validate:"min=1,dive,gte=2,lte=10"`
		Restarts    int     `yaml:"restarts" default:"10" validate:"gte=1,lte=100"`
		MaxIter     int     `yaml:"max_iter" default:"200" validate:"gte=1"`
		Tol         float64 `yaml:"tol" default:"0.01" validate:"gt=0"`
		MinCovar    float64 `yaml:"min_covar" default:"0.001" validate:"gt=0"`
		Workers     int     `yaml:"workers" validate:"gte=0"`
	} `yaml:"model"`
	Backtest struct {
		Allocation map[int]float64 `yaml:"allocation" default:"{\"0\":1.0,\"1\":0.0,\"2\":0.3,\"3\":1.0,\"4\":0.7}"`
		// RegimeNames are display labels only. HMM state numbering is not stable across fits.
		RegimeNames map[int]string `yaml:"regime_names"`
	} `yaml:"backtest"`
	ClickHouse struct {
		Host           string        `yaml:"host"`
		Port           int           `yaml:"port" default:"9000"`
		Database       string        `yaml:"database" default:"regimelab"`
		User           string        `yaml:"user" default:"default"`
		Password       string        `yaml:"password"`
		UseHTTP        bool          `yaml:"use_http"`
		AsyncInsert    bool          `yaml:"async_insert"`
		DialTimeout    time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout    time.Duration `yaml:"read_timeout" default:"30s"`
		StoreArtifacts bool          `yaml:"store_artifacts"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled          bool          `yaml:"enabled"`
		Brokers          []string      `yaml:"brokers"`
		Topic            string        `yaml:"topic" default:"regime.analysis.completed"`
		Compression      string        `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		RequiredAcks     int           `yaml:"required_acks" default:"-1" validate:"oneof=-1 0 1"`
		MaxAttempts      int           `yaml:"max_attempts" default:"3" validate:"gte=1"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		AutoCreateTopics bool          `yaml:"auto_create_topics"`
	} `yaml:"kafka"`
	Cache struct {
		ReportTTL  time.Duration `yaml:"report_ttl" default:"168h"`
		MemorySize int           `yaml:"memory_size" default:"256" validate:"gte=1"`
		MemoryTTL  time.Duration `yaml:"memory_ttl" default:"10m"`
		Redis      struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db" validate:"gte=0"`
			Prefix   string `yaml:"prefix" default:"regimelab"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Artifacts struct {
		Dir      string `yaml:"dir" default:"results"`
		Disabled bool   `yaml:"disabled"`
	} `yaml:"artifacts"`
	Jobs struct {
		Enabled    bool          `yaml:"enabled"`
		Workers    int           `yaml:"workers" default:"1" validate:"gte=1,lte=16"`
		RetryLimit int           `yaml:"retry_limit" default:"2" validate:"gte=0"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"1m"`
	} `yaml:"jobs"`
	Schedule struct {
		Enabled bool          `yaml:"enabled"`
		Cron    string        `yaml:"cron" default:"30 22 * * 1-5"`
		Timeout time.Duration `yaml:"timeout" default:"15m"`
	} `yaml:"schedule"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	return load(path, false)
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	return load(path, true)
}

// Default returns the built-in configuration.
func Default() (*Config, error) {
	var c Config
	return finish(&c)
}

func load(path string, env bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if env {
		c.applyEnv()
	}
	return finish(&c)
}

// finish fills defaults after decoding so YAML maps replace, not merge with, default maps.
func finish(c *Config) (*Config, error) {
	if err := defaults.Set(c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("REGIME_SYMBOLS"); v != "" {
		c.Data.Symbols = splitList(v)
	}
	if v := os.Getenv("REGIME_DATA_SOURCE"); v != "" {
		c.Data.Source = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
		c.Cache.Redis.Enabled = true
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
}

var validate = validator.New()

// Validate checks struct tags first, then cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	var errs []error
	if c.Data.Source == "clickhouse" && c.ClickHouse.Host == "" {
		errs = append(errs, errors.New("clickhouse.host is required when data.source is clickhouse"))
	}
	if c.ClickHouse.StoreArtifacts && c.ClickHouse.Host == "" {
		errs = append(errs, errors.New("clickhouse.host is required when clickhouse.store_artifacts is set"))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers cannot be empty when kafka is enabled"))
	}
	if c.Jobs.Enabled && !c.Cache.Redis.Enabled {
		errs = append(errs, errors.New("jobs require cache.redis.enabled"))
	}
	if c.Schedule.Enabled {
		if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
			errs = append(errs, fmt.Errorf("schedule.cron: %w", err))
		}
	}
	// Every label the largest candidate model can produce needs a weight.
	if err := c.Policy().Validate(slices.Max(c.Model.StateCounts)); err != nil {
		errs = append(errs, fmt.Errorf("backtest.allocation: %w", err))
	}
	return errors.Join(errs...)
}

// Policy returns the configured allocation as a domain policy.
func (c *Config) Policy() models.AllocationPolicy {
	return models.AllocationPolicy(c.Backtest.Allocation)
}

// DataFrom is the parsed data.from date.
func (c *Config) DataFrom() time.Time {
	return util.ParseDayDefault(c.Data.From, time.Time{})
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
