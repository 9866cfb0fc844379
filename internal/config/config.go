package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Default values for configuration fields
const (
	DefaultListenAddr       = ":8080"
	DefaultBatchSize        = 100
	DefaultProgressInterval = 1000
	DefaultRunTimeout       = time.Minute
	DefaultBenchIterations  = 10000
	DefaultWordlistDir      = "dictionary"
	DefaultExchange         = "dictattack"
	DefaultDatabase         = "dictattack"
	DefaultCollection       = "results"
	DefaultLogLevel         = "info"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidConfig, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidConfig }

// Duration accepts Go duration strings such as "90s" in TOML.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

type Config struct {
	ListenAddr string       `toml:"listen_addr"`
	LogLevel   string       `toml:"log_level"`
	Attack     AttackConfig `toml:"attack"`
	AMQP       AMQPConfig   `toml:"amqp"`
	Mongo      MongoConfig  `toml:"mongo"`
}

type AttackConfig struct {
	BatchSize        int      `toml:"batch_size"`
	ProgressInterval int      `toml:"progress_interval"`
	RunTimeout       Duration `toml:"run_timeout"`
	MaxConcurrent    int      `toml:"max_concurrent"`
	WordlistDir      string   `toml:"wordlist_dir"`
	// BenchIterations is how many digests a measured estimate times.
	BenchIterations int `toml:"bench_iterations"`
}

// AMQPConfig enables the progress event publisher when URL is set.
type AMQPConfig struct {
	URL      string `toml:"url"`
	Exchange string `toml:"exchange"`
}

// MongoConfig enables the persistent result store when URI is set.
type MongoConfig struct {
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

func Default() *Config {
	return &Config{
		ListenAddr: DefaultListenAddr,
		LogLevel:   DefaultLogLevel,
		Attack: AttackConfig{
			BatchSize:        DefaultBatchSize,
			ProgressInterval: DefaultProgressInterval,
			RunTimeout:       Duration(DefaultRunTimeout),
			WordlistDir:      DefaultWordlistDir,
			BenchIterations:  DefaultBenchIterations,
		},
		AMQP:  AMQPConfig{Exchange: DefaultExchange},
		Mongo: MongoConfig{Database: DefaultDatabase, Collection: DefaultCollection},
	}
}

// Parse decodes TOML content over the defaults and validates the result.
func Parse(content []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads path when it is non-empty, then applies environment overrides.
func Load(path string, getenv func(string) string) (*Config, error) {
	content := []byte{}
	if path != "" {
		var err error
		content, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	cfg, err := Parse(content)
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if getenv == nil {
		return nil
	}
	if v := getenv("LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := getenv("AMQP_URL"); v != "" {
		c.AMQP.URL = v
	}
	if v := getenv("MONGO_URI"); v != "" {
		c.Mongo.URI = v
	}
	if v := getenv("WORDLIST_DIR"); v != "" {
		c.Attack.WordlistDir = v
	}
	if v := getenv("BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &ValidationError{Field: "BATCH_SIZE", Reason: err.Error()}
		}
		c.Attack.BatchSize = n
	}
	return nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddr) == "" {
		return &ValidationError{Field: "listen_addr", Reason: "must not be empty"}
	}
	if c.Attack.BatchSize <= 0 {
		return &ValidationError{Field: "attack.batch_size", Reason: "must be positive"}
	}
	if c.Attack.ProgressInterval < 0 {
		return &ValidationError{Field: "attack.progress_interval", Reason: "must not be negative"}
	}
	if c.Attack.RunTimeout < 0 {
		return &ValidationError{Field: "attack.run_timeout", Reason: "must not be negative"}
	}
	if c.Attack.MaxConcurrent < 0 {
		return &ValidationError{Field: "attack.max_concurrent", Reason: "must not be negative"}
	}
	if c.Attack.BenchIterations <= 0 {
		return &ValidationError{Field: "attack.bench_iterations", Reason: "must be positive"}
	}
	if c.AMQP.URL != "" && c.AMQP.Exchange == "" {
		return &ValidationError{Field: "amqp.exchange", Reason: "required when amqp.url is set"}
	}
	if c.Mongo.URI != "" && (c.Mongo.Database == "" || c.Mongo.Collection == "") {
		return &ValidationError{Field: "mongo", Reason: "database and collection are required when uri is set"}
	}
	return nil
}
