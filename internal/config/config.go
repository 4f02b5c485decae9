// Package config loads runtime configuration from an optional YAML file,
// a .env file, and YTT_-prefixed environment variables, in that order of
// increasing precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type QueueConfig struct {
	Backend            string        `mapstructure:"backend"` // "redis" or "memory"
	RedisAddress       string        `mapstructure:"redis_address"`
	RedisPassword      string        `mapstructure:"redis_password"`
	RedisDB            int           `mapstructure:"redis_db"`
	Prefix             string        `mapstructure:"prefix"`
	Concurrency        int           `mapstructure:"concurrency"`
	MaxAttempts        int           `mapstructure:"max_attempts"`
	MaxStalls          int           `mapstructure:"max_stalls"`
	BackoffBase        time.Duration `mapstructure:"backoff_base"`
	LockDuration       time.Duration `mapstructure:"lock_duration"`
	RenewInterval      time.Duration `mapstructure:"renew_interval"`
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	CompletedRetention time.Duration `mapstructure:"completed_retention"`
}

type CookiesConfig struct {
	Path string `mapstructure:"path"`
}

type ToolsConfig struct {
	CaptionsEnabled   bool          `mapstructure:"captions_enabled"`
	SubLang           string        `mapstructure:"sub_lang"`
	MetadataTimeout   time.Duration `mapstructure:"metadata_timeout"`
	CaptionTimeout    time.Duration `mapstructure:"caption_timeout"`
	AudioTimeout      time.Duration `mapstructure:"audio_timeout"`
	WhisperBinary     string        `mapstructure:"whisper_binary"`
	WhisperModelPath  string        `mapstructure:"whisper_model_path"`
	WhisperModelName  string        `mapstructure:"whisper_model_name"`
	WhisperLanguage   string        `mapstructure:"whisper_language"`
	TranscribeTimeout time.Duration `mapstructure:"transcribe_timeout"`
}

type StorageConfig struct {
	Backend         string `mapstructure:"backend"` // "s3" or "fs"
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	PublicBaseURL   string `mapstructure:"public_base_url"`
	LocalDir        string `mapstructure:"local_dir"`
	LocalBaseURL    string `mapstructure:"local_base_url"`
}

type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Queue   QueueConfig   `mapstructure:"queue"`
	Cookies CookiesConfig `mapstructure:"cookies"`
	Tools   ToolsConfig   `mapstructure:"tools"`
	Storage StorageConfig `mapstructure:"storage"`
	WorkDir string        `mapstructure:"work_dir"`
}

// Load reads configuration. configPath may be empty, in which case
// config.yaml is looked up in the working directory and ./config.
func Load(configPath string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("YTT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if strings.TrimSpace(configPath) != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", configPath, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		_ = v.ReadInConfig()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("queue.backend", "redis")
	v.SetDefault("queue.redis_address", "localhost:6379")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.prefix", "ytt")
	v.SetDefault("queue.concurrency", 1)
	v.SetDefault("queue.max_attempts", 3)
	v.SetDefault("queue.max_stalls", 2)
	v.SetDefault("queue.backoff_base", "2s")
	v.SetDefault("queue.lock_duration", "30s")
	v.SetDefault("queue.renew_interval", "15s")
	v.SetDefault("queue.poll_interval", "500ms")
	v.SetDefault("queue.completed_retention", "24h")

	v.SetDefault("cookies.path", "")

	v.SetDefault("tools.captions_enabled", true)
	v.SetDefault("tools.sub_lang", "en")
	v.SetDefault("tools.metadata_timeout", "30s")
	v.SetDefault("tools.caption_timeout", "30s")
	v.SetDefault("tools.audio_timeout", "10m")
	v.SetDefault("tools.whisper_binary", "whisper-cli")
	v.SetDefault("tools.whisper_model_path", "models/ggml-base.en.bin")
	v.SetDefault("tools.whisper_model_name", "whisper-base.en")
	v.SetDefault("tools.whisper_language", "en")
	v.SetDefault("tools.transcribe_timeout", "1h")

	v.SetDefault("storage.backend", "fs")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.local_dir", "artifacts")
	v.SetDefault("storage.local_base_url", "")

	v.SetDefault("work_dir", "")
}

func validate(cfg Config) error {
	switch cfg.Queue.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("unknown queue backend %q (expected redis or memory)", cfg.Queue.Backend)
	}
	switch cfg.Storage.Backend {
	case "fs":
	case "s3":
		if strings.TrimSpace(cfg.Storage.Bucket) == "" {
			return fmt.Errorf("storage backend s3 requires storage.bucket")
		}
	default:
		return fmt.Errorf("unknown storage backend %q (expected s3 or fs)", cfg.Storage.Backend)
	}
	if cfg.Queue.Concurrency < 1 {
		return fmt.Errorf("queue.concurrency must be at least 1")
	}
	return nil
}
