// Package config provides configuration management for the colocation scheduler.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/TellToldTold/cloud-comp-arch-project/internal/domain"
)

// Config holds all configuration for the scheduler daemon.
type Config struct {
	Controller ControllerConfig `mapstructure:"controller"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
	Service    ServiceConfig    `mapstructure:"service"`
	Runner     RunnerConfig     `mapstructure:"runner"`
	Server     ServerConfig     `mapstructure:"server"`
	Events     EventsConfig     `mapstructure:"events"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ControllerConfig holds the control loop and state machine settings.
type ControllerConfig struct {
	// TickInterval is the control loop cadence.
	TickInterval time.Duration `mapstructure:"tick_interval"`

	// TotalCores is the fixed size of the machine's core set.
	TotalCores int `mapstructure:"total_cores"`

	// ServiceCore is the service's dedicated core.
	ServiceCore int `mapstructure:"service_core"`

	// SharedCore is the core the service expands onto when its dedicated
	// core saturates; batch jobs may keep using it while colocated.
	SharedCore int `mapstructure:"shared_core"`

	// HighWatermark is the dedicated-core utilization (percent) above which
	// the service expands onto the shared core.
	HighWatermark float64 `mapstructure:"high_watermark"`

	// LowWatermark is the utilization below which the service shrinks back,
	// or evicted jobs are re-admitted.
	LowWatermark float64 `mapstructure:"low_watermark"`

	// EvictionThreshold is the stricter utilization above which colocated
	// jobs are evicted from the shared core, one per tick.
	EvictionThreshold float64 `mapstructure:"eviction_threshold"`

	// Jobs is the static ordered batch job list, started first-ready-first-served.
	Jobs []string `mapstructure:"jobs"`

	// JobThreads is the worker thread count per batch job. Zero means "as
	// many threads as batch cores at start time".
	JobThreads int `mapstructure:"job_threads"`

	// MaxConcurrentJobs caps how many batch jobs run at once.
	MaxConcurrentJobs int `mapstructure:"max_concurrent_jobs"`
}

// MonitorConfig holds CPU sampling settings.
type MonitorConfig struct {
	// SampleInterval is how long one utilization sample accumulates.
	SampleInterval time.Duration `mapstructure:"sample_interval"`
}

// ServiceConfig identifies the managed latency-critical service.
type ServiceConfig struct {
	// ProcessName is the OS process name the affinity controller targets.
	ProcessName string `mapstructure:"process_name"`

	// Threads is the service's worker thread count, recorded in the event log.
	Threads int `mapstructure:"threads"`
}

// RunnerConfig holds batch job runner settings.
type RunnerConfig struct {
	// StopGrace is how long a job may shut down gracefully before it is killed.
	StopGrace time.Duration `mapstructure:"stop_grace"`

	// PullImages fetches all job images before the run starts.
	PullImages bool `mapstructure:"pull_images"`
}

// ServerConfig holds the optional status HTTP server settings.
type ServerConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// Address returns the server address string.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// EventsConfig holds the event log settings.
type EventsConfig struct {
	// Path is the append-only event log file.
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// JobNames validates and returns the configured batch job list.
func (c ControllerConfig) JobNames() ([]domain.JobName, error) {
	names := make([]domain.JobName, 0, len(c.Jobs))
	for _, s := range c.Jobs {
		name, err := domain.JobFromString(s)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

// Validate checks cross-field constraints that viper cannot express.
func (c *Config) Validate() error {
	ctl := c.Controller
	if ctl.TotalCores < 2 {
		return fmt.Errorf("%w: need at least 2 cores, got %d", domain.ErrInvalidArgument, ctl.TotalCores)
	}
	if ctl.ServiceCore < 0 || ctl.ServiceCore >= ctl.TotalCores {
		return fmt.Errorf("%w: service core %d outside 0..%d", domain.ErrInvalidArgument, ctl.ServiceCore, ctl.TotalCores-1)
	}
	if ctl.SharedCore < 0 || ctl.SharedCore >= ctl.TotalCores || ctl.SharedCore == ctl.ServiceCore {
		return fmt.Errorf("%w: shared core %d must differ from service core inside 0..%d",
			domain.ErrInvalidArgument, ctl.SharedCore, ctl.TotalCores-1)
	}
	if ctl.LowWatermark >= ctl.HighWatermark {
		return fmt.Errorf("%w: low watermark %.1f must be below high watermark %.1f",
			domain.ErrInvalidArgument, ctl.LowWatermark, ctl.HighWatermark)
	}
	if ctl.EvictionThreshold < ctl.HighWatermark {
		return fmt.Errorf("%w: eviction threshold %.1f must be at or above high watermark %.1f",
			domain.ErrInvalidArgument, ctl.EvictionThreshold, ctl.HighWatermark)
	}
	if _, err := c.Controller.JobNames(); err != nil {
		return err
	}
	return nil
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("COLOSCHED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Controller
	v.SetDefault("controller.tick_interval", "2s")
	v.SetDefault("controller.total_cores", 4)
	v.SetDefault("controller.service_core", 0)
	v.SetDefault("controller.shared_core", 1)
	v.SetDefault("controller.high_watermark", 90.0)
	v.SetDefault("controller.low_watermark", 50.0)
	v.SetDefault("controller.eviction_threshold", 95.0)
	v.SetDefault("controller.jobs", []string{
		"blackscholes", "canneal", "dedup", "ferret", "freqmine", "radix", "vips",
	})
	v.SetDefault("controller.job_threads", 0)
	v.SetDefault("controller.max_concurrent_jobs", 1)

	// Monitor
	v.SetDefault("monitor.sample_interval", "200ms")

	// Service
	v.SetDefault("service.process_name", "memcached")
	v.SetDefault("service.threads", 2)

	// Runner
	v.SetDefault("runner.stop_grace", "15s")
	v.SetDefault("runner.pull_images", false)

	// Server
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})

	// Events
	v.SetDefault("events.path", "scheduler.log")

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
