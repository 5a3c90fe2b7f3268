package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// AppConfig holds global application configuration
var AppConfig *Config
var once sync.Once

type Config struct {
	AppName    string           `mapstructure:"app_name"`
	Port       string           `mapstructure:"port"`
	Env        string           `mapstructure:"env"`
	Debug      bool             `mapstructure:"debug"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Log        LogConfig        `mapstructure:"log"`
	Report     ReportConfig     `mapstructure:"report"`
	Completion CompletionConfig `mapstructure:"completion"`
	Sync       SyncConfig       `mapstructure:"sync"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Backup     BackupConfig     `mapstructure:"backup"`
	Retention  RetentionConfig  `mapstructure:"retention"`
}

type DatabaseConfig struct {
	DSN             string `mapstructure:"dsn"`
	Host            string `mapstructure:"host"`
	Port            string `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	Name            string `mapstructure:"name"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // seconds
	LogLevel        string `mapstructure:"log_level"`         // silent, error, warn, info
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

type ReportConfig struct {
	NormalHours  float64 `mapstructure:"normal_hours"`
	SanityFactor int     `mapstructure:"sanity_factor"`
}

type CompletionConfig struct {
	PackagingKeyword string `mapstructure:"packaging_keyword"`
}

type SyncConfig struct {
	DefaultWindowDays int  `mapstructure:"default_window_days"`
	OnApprove         bool `mapstructure:"on_approve"`
	StaleRunMinutes   int  `mapstructure:"stale_run_minutes"`
}

type SchedulerConfig struct {
	Enabled                bool   `mapstructure:"enabled"`
	ERPSyncIntervalMinutes int    `mapstructure:"erp_sync_interval_minutes"`
	ConvertIntervalMinutes int    `mapstructure:"convert_interval_minutes"`
	SweepIntervalMinutes   int    `mapstructure:"sweep_interval_minutes"`
	ReportSyncTime         string `mapstructure:"report_sync_time"`
	BackupTime             string `mapstructure:"backup_time"`
	CleanupTime            string `mapstructure:"cleanup_time"`
}

type BackupConfig struct {
	Dir           string   `mapstructure:"dir"`
	Command       string   `mapstructure:"command"`
	Args          []string `mapstructure:"args"`
	RetentionDays int      `mapstructure:"retention_days"`
}

type RetentionConfig struct {
	LogDays int `mapstructure:"log_days"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "mes")
	v.SetDefault("port", "8080")
	v.SetDefault("env", "development")
	v.SetDefault("debug", false)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", "3306")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "mes")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.conn_max_lifetime", 3600)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("report.normal_hours", 8.0)
	v.SetDefault("report.sanity_factor", 10)

	v.SetDefault("completion.packaging_keyword", "Shipping-Packaging")

	v.SetDefault("sync.default_window_days", 7)
	v.SetDefault("sync.on_approve", false)
	v.SetDefault("sync.stale_run_minutes", 120)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.erp_sync_interval_minutes", 30)
	v.SetDefault("scheduler.convert_interval_minutes", 30)
	v.SetDefault("scheduler.sweep_interval_minutes", 15)
	v.SetDefault("scheduler.report_sync_time", "02:30")
	v.SetDefault("scheduler.backup_time", "03:00")
	v.SetDefault("scheduler.cleanup_time", "03:30")

	v.SetDefault("backup.dir", "var/backups")
	v.SetDefault("backup.command", "mysqldump")
	v.SetDefault("backup.args", []string{})
	v.SetDefault("backup.retention_days", 30)

	v.SetDefault("retention.log_days", 90)
}

// Load reads config.yaml (optional) and MES_* environment variables.
// configPath overrides the search path when set.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		_ = v.ReadInConfig()
	}

	v.SetEnvPrefix("MES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Default returns the built-in defaults without reading files or env.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// LoadAppConfig initializes the global AppConfig variable
func LoadAppConfig() {
	once.Do(func() {
		cfg, err := Load("")
		if err != nil {
			cfg = Default()
		}
		AppConfig = cfg
	})
}

// App returns AppConfig, loading it on first use.
func App() *Config {
	LoadAppConfig()
	return AppConfig
}
