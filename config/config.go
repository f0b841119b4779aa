// Package config loads application settings from defaults, an optional
// YAML file and TIMEPIECE_* environment variables, in increasing priority.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/warp/timepiece/payroll"
	"github.com/warp/timepiece/timesheet"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"db"`
	Log       LogConfig       `mapstructure:"log"`
	Payroll   PayrollConfig   `mapstructure:"payroll"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

type DatabaseConfig struct {
	// Path is a SQLite file path, or ":memory:".
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PayrollConfig is the on-disk form of payroll.Config.
type PayrollConfig struct {
	// LeaveProjects maps a paid-leave category to a project id.
	LeaveProjects     map[string]string `mapstructure:"leave_projects"`
	WeekStart         string            `mapstructure:"week_start"`
	OvertimeThreshold string            `mapstructure:"overtime_threshold"`
	CountedStatuses   []string          `mapstructure:"counted_statuses"`
}

type SchedulerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// Load reads configuration. An empty path searches ./config and . for
// config.yaml; a missing file there is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173", "http://localhost:8080"})

	v.SetDefault("db.path", "timepiece.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("payroll.leave_projects", map[string]string{})
	v.SetDefault("payroll.week_start", "sunday")
	v.SetDefault("payroll.overtime_threshold", "40")
	v.SetDefault("payroll.counted_statuses", []string{string(timesheet.StatusApproved)})

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval", "1h")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("TIMEPIECE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks fields that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("invalid config: db.path is required")
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return fmt.Errorf("invalid config: scheduler.interval must be positive")
	}
	if _, err := c.PayrollConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// PayrollConfig converts the payroll section into a validated payroll.Config.
func (c *Config) PayrollConfig() (payroll.Config, error) {
	pc := payroll.DefaultConfig()

	if c.Payroll.WeekStart != "" {
		day, err := timesheet.ParseWeekday(c.Payroll.WeekStart)
		if err != nil {
			return pc, fmt.Errorf("payroll.week_start: %w", err)
		}
		pc.WeekStart = day
	}
	if c.Payroll.OvertimeThreshold != "" {
		threshold, err := decimal.NewFromString(c.Payroll.OvertimeThreshold)
		if err != nil {
			return pc, fmt.Errorf("payroll.overtime_threshold: %w", err)
		}
		pc.OvertimeThreshold = threshold
	}
	if len(c.Payroll.CountedStatuses) > 0 {
		pc.CountedStatuses = nil
		for _, s := range c.Payroll.CountedStatuses {
			st, err := timesheet.ParseStatus(s)
			if err != nil {
				return pc, fmt.Errorf("payroll.counted_statuses: %w", err)
			}
			pc.CountedStatuses = append(pc.CountedStatuses, st)
		}
	}
	for category, id := range c.Payroll.LeaveProjects {
		pc.LeaveProjects[category] = timesheet.ProjectID(id)
	}

	return pc, pc.Validate()
}
