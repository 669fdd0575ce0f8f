package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Predictor PredictorConfig `mapstructure:"predictor"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Worker    WorkerConfig    `mapstructure:"worker"`
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	RateLimitRPS   int `mapstructure:"rate_limit_rps"`
	RateLimitBurst int `mapstructure:"rate_limit_burst"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	Enabled  bool   `mapstructure:"enabled"`
}

type PredictorConfig struct {
	URL      string        `mapstructure:"url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// SchedulerConfig carries the engine policy knobs. The risk thresholds and
// offsets are policy, not constants, so deployments can tune them.
type SchedulerConfig struct {
	HighRiskThreshold     float64       `mapstructure:"high_risk_threshold"`
	ModerateRiskThreshold float64       `mapstructure:"moderate_risk_threshold"`
	PreReminderLead       time.Duration `mapstructure:"pre_reminder_lead"`
	HighRiskDelay         time.Duration `mapstructure:"high_risk_delay"`
	ModerateRiskDelay     time.Duration `mapstructure:"moderate_risk_delay"`
	GraceWindow           time.Duration `mapstructure:"grace_window"`
	RetryWindow           time.Duration `mapstructure:"retry_window"`
	RetryDelay            time.Duration `mapstructure:"retry_delay"`
	HabitWindow           int           `mapstructure:"habit_window"`
	HabitLateThreshold    time.Duration `mapstructure:"habit_late_threshold"`
	CaregiverAlertEvery   int64         `mapstructure:"caregiver_alert_every"`
}

type WorkerConfig struct {
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
	SweepBatchSize   int           `mapstructure:"sweep_batch_size"`
	GenerateInterval time.Duration `mapstructure:"generate_interval"`
	HealthPort       int           `mapstructure:"health_port"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.timeout_seconds", 30)
	viper.SetDefault("server.rate_limit_rps", 50)
	viper.SetDefault("server.rate_limit_burst", 100)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")

	viper.SetDefault("redis.url", "redis://localhost:6379/0")
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.min_idle_conns", 2)

	viper.SetDefault("jwt.expiry_hours", 24)

	viper.SetDefault("predictor.timeout", 3*time.Second)
	viper.SetDefault("predictor.cache_ttl", 5*time.Minute)

	viper.SetDefault("scheduler.high_risk_threshold", 0.75)
	viper.SetDefault("scheduler.moderate_risk_threshold", 0.5)
	viper.SetDefault("scheduler.pre_reminder_lead", 15*time.Minute)
	viper.SetDefault("scheduler.high_risk_delay", 30*time.Minute)
	viper.SetDefault("scheduler.moderate_risk_delay", 15*time.Minute)
	viper.SetDefault("scheduler.grace_window", time.Hour)
	viper.SetDefault("scheduler.retry_window", time.Hour)
	viper.SetDefault("scheduler.retry_delay", 30*time.Minute)
	viper.SetDefault("scheduler.habit_window", 5)
	viper.SetDefault("scheduler.habit_late_threshold", 15*time.Minute)
	viper.SetDefault("scheduler.caregiver_alert_every", 3)

	viper.SetDefault("worker.sweep_interval", 2*time.Minute)
	viper.SetDefault("worker.sweep_batch_size", 200)
	viper.SetDefault("worker.generate_interval", time.Hour)
	viper.SetDefault("worker.health_port", 8081)
}
