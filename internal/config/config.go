package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	envprovider "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the root configuration shared by the API server and the CLI.
type Config struct {
	App       AppConfig       `koanf:"app"`
	Postgres  PostgresConfig  `koanf:"postgres"`
	Redis     RedisConfig     `koanf:"redis"`
	Snowflake SnowflakeConfig `koanf:"snowflake"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Log       LogConfig       `koanf:"log"`
}

type AppConfig struct {
	Port       string `koanf:"port" validate:"required"`
	Platform   string `koanf:"platform" validate:"required,oneof=dev local production"`
	SigningKey string `koanf:"signing_key"`
}

type PostgresConfig struct {
	URL string `koanf:"url"`
}

// RedisConfig is optional; an empty Addr disables the processed-article
// cache and the run lock.
type RedisConfig struct {
	Addr string `koanf:"addr"`
	DB   int    `koanf:"db" validate:"gte=0"`
}

type SnowflakeConfig struct {
	MachineID int `koanf:"machine_id" validate:"gte=0,lte=1023"`
	// Shards are extra machine ids this process owns exclusively. POST /ids
	// may mint on any of them.
	Shards []int `koanf:"shards" validate:"dive,gte=0,lte=1023"`
}

// Owned returns MachineID followed by the distinct Shards.
func (c SnowflakeConfig) Owned() []int {
	out := []int{c.MachineID}
	seen := map[int]bool{c.MachineID: true}
	for _, id := range c.Shards {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

type PipelineConfig struct {
	ContentDir    string `koanf:"content_dir"`
	UploadDir     string `koanf:"upload_dir" validate:"required"`
	PublicBaseURL string `koanf:"public_base_url"`
	DefaultUserID int64  `koanf:"default_user_id" validate:"gt=0"`
	Workers       int    `koanf:"workers" validate:"gte=1,lte=64"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=debug info warn error DEBUG INFO WARN ERROR"`
	Format string `koanf:"format" validate:"omitempty,oneof=text json"`
}

// envKeys maps environment variables onto koanf paths.
var envKeys = map[string]string{
	"api_port":             "app.port",
	"platform":             "app.platform",
	"signing_key":          "app.signing_key",
	"db_url":               "postgres.url",
	"redis_addr":           "redis.addr",
	"redis_db":             "redis.db",
	"snowflake_machine_id": "snowflake.machine_id",
	"snowflake_shards":     "snowflake.shards",
	"content_dir":          "pipeline.content_dir",
	"upload_dir":           "pipeline.upload_dir",
	"public_base_url":      "pipeline.public_base_url",
	"default_user_id":      "pipeline.default_user_id",
	"pipeline_workers":     "pipeline.workers",
	"log_level":            "log.level",
	"log_format":           "log.format",
}

// Defaults returns the configuration used before any file or environment
// override is applied.
func Defaults() Config {
	return Config{
		App: AppConfig{
			Port:     "8080",
			Platform: "dev",
		},
		Snowflake: SnowflakeConfig{MachineID: 1},
		Pipeline: PipelineConfig{
			ContentDir:    "content",
			UploadDir:     "uploads",
			PublicBaseURL: "http://localhost:8080/uploads",
			DefaultUserID: 2,
			Workers:       4,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads .env (if present), then the YAML file named by CONFIG_PATH (if
// set), then the process environment, and validates the result.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("config: unable to read .env", "error", err)
	}
	return load(os.Getenv("CONFIG_PATH"))
}

func load(path string) (Config, error) {
	k := koanf.New(".")
	cfg := Defaults()

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	err := k.Load(envprovider.Provider(".", envprovider.Opt{
		TransformFunc: func(key, value string) (string, any) {
			mapped, ok := envKeys[strings.ToLower(key)]
			if !ok {
				return "", nil
			}
			if mapped == "snowflake.shards" {
				// comma separated list
				return mapped, strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ' ' })
			}
			return mapped, value
		},
	}), nil)
	if err != nil {
		return Config{}, fmt.Errorf("config: load environment: %w", err)
	}

	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func Validate(cfg Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// IsDev reports whether destructive admin endpoints are allowed.
func (c Config) IsDev() bool {
	return c.App.Platform == "dev"
}

// NewLogger builds the slog logger described by the log section.
func (c LogConfig) NewLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
