package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/yourorg/table-export/internal/export"
	"github.com/yourorg/table-export/internal/render"
)

// Config aggregates application settings sourced from environment variables.
type Config struct {
	Export   ExportConfig   `mapstructure:"export"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Temporal TemporalConfig `mapstructure:"temporal"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	API      APIConfig      `mapstructure:"api"`
	Log      LogConfig      `mapstructure:"log"`
}

type ExportConfig struct {
	ChunkSize    int           `mapstructure:"chunk_size"`
	BaseName     string        `mapstructure:"base_name"`
	Renderer     string        `mapstructure:"renderer"`
	Title        string        `mapstructure:"title"`
	ProcessDelay time.Duration `mapstructure:"process_delay"`
	Timezone     string        `mapstructure:"timezone"`
}

type StorageConfig struct {
	OutputURI  string `mapstructure:"output_uri"`
	ScratchDir string `mapstructure:"scratch_dir"`
	// RequestURI is where the API stores request documents for workflows.
	RequestURI string `mapstructure:"request_uri"`
	// StagingURI, when set, holds formatted rows between workflow activities
	// so they can run on different hosts.
	StagingURI string `mapstructure:"staging_uri"`
}

type TemporalConfig struct {
	Address   string `mapstructure:"address"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type APIConfig struct {
	Port int `mapstructure:"port"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration solely from environment variables (with defaults).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("export.chunk_size", 5000)
	v.SetDefault("export.base_name", "Document")
	v.SetDefault("export.renderer", render.KindPDF)
	v.SetDefault("export.title", "")
	v.SetDefault("export.process_delay", "0s")
	v.SetDefault("export.timezone", "UTC")
	v.SetDefault("storage.output_uri", "file:///var/table-export/out")
	v.SetDefault("storage.scratch_dir", "/var/table-export/tmp")
	v.SetDefault("storage.request_uri", "file:///var/table-export/requests")
	v.SetDefault("storage.staging_uri", "")
	v.SetDefault("temporal.address", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "table-export")
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("api.port", 8080)
	v.SetDefault("log.level", "info")
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string][]string{
		"export.chunk_size":    {"EXPORT_CHUNK_SIZE"},
		"export.base_name":     {"EXPORT_BASE_NAME"},
		"export.renderer":      {"EXPORT_RENDERER"},
		"export.title":         {"EXPORT_TITLE"},
		"export.process_delay": {"EXPORT_PROCESS_DELAY"},
		"export.timezone":      {"EXPORT_TIMEZONE"},
		"storage.output_uri":   {"OUTPUT_URI"},
		"storage.scratch_dir":  {"SCRATCH_DIR"},
		"storage.request_uri":  {"REQUEST_URI"},
		"storage.staging_uri":  {"STAGING_URI"},
		// TEMPORAL_TARGET_HOST is accepted for compatibility
		"temporal.address":    {"TEMPORAL_ADDRESS", "TEMPORAL_TARGET_HOST"},
		"temporal.namespace":  {"TEMPORAL_NAMESPACE"},
		"temporal.task_queue": {"TEMPORAL_TASK_QUEUE"},
		"metrics.addr":        {"METRICS_ADDR"},
		"api.port":            {"PORT"},
		"log.level":           {"LOG_LEVEL"},
	}

	for key, envs := range mappings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, strings.Join(envs, ","), err)
		}
	}
	return nil
}

func validate(cfg Config) error {
	if cfg.Export.ChunkSize <= 0 {
		return errors.New("export chunk size must be positive")
	}
	if cfg.Export.ProcessDelay < 0 {
		return errors.New("export process delay must not be negative")
	}
	if _, err := render.New(cfg.Export.Renderer, render.Options{}); err != nil {
		return fmt.Errorf("export renderer: %w", err)
	}
	if _, err := time.LoadLocation(cfg.Export.Timezone); err != nil {
		return fmt.Errorf("export timezone: %w", err)
	}
	if cfg.Storage.OutputURI == "" {
		return errors.New("output uri is required")
	}
	if cfg.Storage.ScratchDir == "" {
		return errors.New("scratch dir is required")
	}
	if cfg.API.Port <= 0 {
		return errors.New("api port must be positive")
	}
	return nil
}

// Location resolves the configured timezone for date formatting.
func (e ExportConfig) Location() *time.Location {
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// CoordinatorConfig maps the export section onto export.Config.
func (c *Config) CoordinatorConfig(log *zap.Logger) export.Config {
	return export.Config{
		ChunkSize:    c.Export.ChunkSize,
		ProcessDelay: c.Export.ProcessDelay,
		BaseName:     c.Export.BaseName,
		RendererKind: c.Export.Renderer,
		Location:     c.Export.Location(),
		Logger:       log,
	}
}

// Coordinator builds an export coordinator from the export section.
func (c *Config) Coordinator(log *zap.Logger) *export.Coordinator {
	return export.New(c.CoordinatorConfig(log))
}
