package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the voiceline backend.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Databases DatabasesConfig `mapstructure:"databases"`
	Media     MediaConfig     `mapstructure:"media"`
	Payments  PaymentsConfig  `mapstructure:"payments"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug     bool   `mapstructure:"debug"`
	LogLevel  string `mapstructure:"log_level"`
	Listen    string `mapstructure:"listen"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// ServerConfig contains HTTP server behaviour toggles.
type ServerConfig struct {
	CORSOrigins    []string      `mapstructure:"cors_origins"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ProvidersConfig groups the external service credentials.
type ProvidersConfig struct {
	VoicePlatform VoicePlatformConfig `mapstructure:"voice_platform"`
	OpenAi        OpenAiConfig        `mapstructure:"openai"`
}

// VoicePlatformConfig configures the remote voice-agent platform API.
type VoicePlatformConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// OpenAiConfig configures the chat-completion provider.
type OpenAiConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	CompletionModel string        `mapstructure:"completion_model"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// MediaConfig configures the real-time media token issuer.
type MediaConfig struct {
	APIKey    string        `mapstructure:"api_key"`
	APISecret string        `mapstructure:"api_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// PaymentsConfig configures the payments provider and webhook verification.
type PaymentsConfig struct {
	APIKey        string `mapstructure:"api_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	BaseURL       string `mapstructure:"base_url"`
}

// SchedulerConfig controls the background auto-sync loop.
type SchedulerConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	SyncCron string `mapstructure:"sync_cron"`
}

// DatabasesConfig contains database connection settings.
type DatabasesConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig describes the relational store connection.
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("databases.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("databases.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds a Postgres connection string from either the url or the parts.
func (p PostgresConfig) DSN() string {
	if strings.TrimSpace(p.URL) != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

// RedisConfig describes the redis connection used for sync locks.
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Pass string `mapstructure:"pass"`
	DB   int    `mapstructure:"db"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" || strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("databases.redis.host and databases.redis.port are required")
	}
	return nil
}

// Addr renders host:port for the redis client.
func (r RedisConfig) Addr() string { return fmt.Sprintf("%s:%s", r.Host, r.Port) }

// LoadConfig loads config from file
func LoadConfig(path string) *Config {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("json")   // REQUIRED if the config file does not have the extension in the name
	viper.SetDefault("general.listen", ":8001")
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("providers.voice_platform.base_url", "https://api.retellai.com")
	viper.SetDefault("providers.voice_platform.timeout", 30*time.Second)
	viper.SetDefault("providers.openai.completion_model", "gpt-4o")
	viper.SetDefault("providers.openai.temperature", 0.7)
	viper.SetDefault("providers.openai.max_tokens", 2048)
	viper.SetDefault("providers.openai.timeout", 60*time.Second)
	viper.SetDefault("media.token_ttl", time.Hour)
	viper.SetDefault("scheduler.enabled", false)
	viper.SetDefault("scheduler.sync_cron", "@hourly")

	if path == "" {
		viper.AddConfigPath("./app/config") // path to look for the config file in
		viper.AddConfigPath("./config")     // path to look for the config file in
		viper.AddConfigPath(".")            // optionally look for config in the working directory
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)                                // bin/
		viper.AddConfigPath(filepath.Join(exeDir, ".."))           // repo root
		viper.AddConfigPath(filepath.Join(exeDir, "..", "config")) // repo root/config
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("VOICELINE")
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)

	viper.AutomaticEnv() // read in environment variables that match (VOICELINE_*)

	err := viper.ReadInConfig() // Find and read the config file
	if err != nil {             // Handle errors reading the config file
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var config Config
	if err = viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.Databases.Postgres.Validate(); err != nil {
		panic(err)
	}
	if err := config.Databases.Redis.Validate(); err != nil {
		panic(err)
	}
	return &config
}
