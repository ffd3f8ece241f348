package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Upload  UploadConfig  `mapstructure:"upload"`
	Removal RemovalConfig `mapstructure:"removal"`
	Payment PaymentConfig `mapstructure:"payment"`
	Sentry  SentryConfig  `mapstructure:"sentry"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	AllowOrigins []string      `mapstructure:"allow_origins"`
	LogLevel     string        `mapstructure:"log_level"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// CacheConfig 结果缓存，driver 取值 redis / memory / none
type CacheConfig struct {
	Driver        string        `mapstructure:"driver"`
	MemoryMaxCost int64         `mapstructure:"memory_max_cost"`
	TTL           time.Duration `mapstructure:"ttl"`
}

type UploadConfig struct {
	MaxSize      int64    `mapstructure:"max_size"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

// RemovalConfig 背景去除。APIKey 为空或为 "free" 时只走本地流程
type RemovalConfig struct {
	APIKey        string        `mapstructure:"api_key"`
	APIURL        string        `mapstructure:"api_url"`
	Size          string        `mapstructure:"size"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Sensitivity   float64       `mapstructure:"sensitivity"`
	Border        string        `mapstructure:"border"`
	Workers       int           `mapstructure:"workers"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	QueueTimeout  time.Duration `mapstructure:"queue_timeout"`
	MaxPixels     int64         `mapstructure:"max_pixels"`
}

type PaymentConfig struct {
	SecretKey string        `mapstructure:"secret_key"`
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

const (
	CacheRedis  = "redis"
	CacheMemory = "memory"
	CacheNone   = "none"
)

// Load 从 YAML 文件加载配置，文件不存在时只使用默认值和环境变量
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// 设置默认值
	setDefaults(v)
	bindEnv(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
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

// New 使用默认配置路径加载配置
func New() (*Config, error) {
	path := os.Getenv("REMOVERIO_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	return Load(path)
}

// Validate 检查配置取值
func (c *Config) Validate() error {
	if !(c.Removal.Sensitivity > 0 && c.Removal.Sensitivity <= 1) {
		return fmt.Errorf("removal.sensitivity must be in (0, 1], got %v", c.Removal.Sensitivity)
	}
	switch c.Removal.Border {
	case "background", "classify":
	default:
		return fmt.Errorf("removal.border must be background or classify, got %q", c.Removal.Border)
	}
	switch c.Cache.Driver {
	case CacheRedis, CacheMemory, CacheNone:
	default:
		return fmt.Errorf("cache.driver must be redis, memory or none, got %q", c.Cache.Driver)
	}
	if c.Removal.Timeout <= 0 {
		return errors.New("removal.timeout must be positive")
	}
	if c.Removal.QueueTimeout <= 0 {
		return errors.New("removal.queue_timeout must be positive")
	}
	if c.Removal.MaxPixels <= 0 {
		return errors.New("removal.max_pixels must be positive")
	}
	if c.Removal.MaxConcurrent <= 0 {
		return errors.New("removal.max_concurrent must be positive")
	}
	if c.Payment.Timeout <= 0 {
		return errors.New("payment.timeout must be positive")
	}
	if c.Upload.MaxSize <= 0 {
		return errors.New("upload.max_size must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.log_level", "")
	v.SetDefault("server.allow_origins", []string{"http://localhost:5173", "http://127.0.0.1:5173"})

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("cache.driver", CacheRedis)
	v.SetDefault("cache.memory_max_cost", 256<<20)
	v.SetDefault("cache.ttl", time.Hour)

	v.SetDefault("upload.max_size", 10*1024*1024)
	v.SetDefault("upload.allowed_types", []string{
		"image/jpeg", "image/png", "image/webp", "image/bmp", "image/tiff", "image/gif",
	})

	v.SetDefault("removal.api_key", "")
	v.SetDefault("removal.api_url", "https://api.remove.bg/v1.0/removebg")
	v.SetDefault("removal.size", "auto")
	v.SetDefault("removal.timeout", 30*time.Second)
	v.SetDefault("removal.sensitivity", 0.15)
	v.SetDefault("removal.border", "background")
	v.SetDefault("removal.workers", 0)
	v.SetDefault("removal.max_concurrent", 4)
	v.SetDefault("removal.queue_timeout", 30*time.Second)
	// 与 remove.bg 的输入上限一致
	v.SetDefault("removal.max_pixels", 25_000_000)

	v.SetDefault("payment.secret_key", "")
	v.SetDefault("payment.base_url", "https://api.paystack.co")
	v.SetDefault("payment.timeout", 10*time.Second)

	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "development")
}

func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("removal.api_key", "REMOVE_BG_API_KEY")
	_ = v.BindEnv("payment.secret_key", "PAYSTACK_SECRET_KEY")
	_ = v.BindEnv("sentry.dsn", "SENTRY_DSN")
	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("server.mode", "GIN_MODE")
	_ = v.BindEnv("server.log_level", "LOG_LEVEL")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
}
