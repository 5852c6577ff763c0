package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server" json:"server"`
	Database      DatabaseConfig      `mapstructure:"database" json:"database"`
	Log           LogConfig           `mapstructure:"log" json:"log"`
	Auth          AuthConfig          `mapstructure:"auth" json:"auth"`
	LLM           LLMConfig           `mapstructure:"llm" json:"llm"`
	Transcription TranscriptionConfig `mapstructure:"transcription" json:"transcription"`
	Audio         AudioConfig         `mapstructure:"audio" json:"audio"`
}

type ServerConfig struct {
	Host        string `mapstructure:"host" json:"host"`
	Port        int    `mapstructure:"port" json:"port"`
	CORSOrigins string `mapstructure:"cors_origins" json:"cors_origins"`
	// BodyLimitMB caps request bodies; it must fit the largest audio upload.
	BodyLimitMB int `mapstructure:"body_limit_mb" json:"body_limit_mb"`
	// OperationTimeout bounds one generation or transcription request.
	OperationTimeout time.Duration `mapstructure:"operation_timeout" json:"operation_timeout"`
}

type DatabaseConfig struct {
	// Driver is one of "postgres", "pgx" or "sqlite".
	Driver   string `mapstructure:"driver" json:"driver"`
	Host     string `mapstructure:"host" json:"host"`
	Port     int    `mapstructure:"port" json:"port"`
	User     string `mapstructure:"user" json:"user"`
	Password string `mapstructure:"password" json:"password"`
	Database string `mapstructure:"database" json:"database"`
	SSLMode  string `mapstructure:"sslmode" json:"sslmode"`
	// Path is the database file when Driver is "sqlite".
	Path string `mapstructure:"path" json:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
}

type AuthConfig struct {
	JWTSecret       string        `mapstructure:"jwt_secret" json:"-"`
	Issuer          string        `mapstructure:"issuer" json:"issuer"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl" json:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl" json:"refresh_token_ttl"`
}

// LLMConfig configures the completion backend.
type LLMConfig struct {
	// Backend selects the completion implementation: "openai" or "local".
	Backend     string        `mapstructure:"backend" json:"backend"`
	APIKey      string        `mapstructure:"api_key" json:"-"`
	BaseURL     string        `mapstructure:"base_url" json:"base_url,omitempty"`
	Model       string        `mapstructure:"model" json:"model"`
	MaxTokens   int           `mapstructure:"max_tokens" json:"max_tokens"`
	Temperature float32       `mapstructure:"temperature" json:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout" json:"timeout"`

	MaxRetries     int           `mapstructure:"max_retries" json:"max_retries"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay" json:"retry_base_delay"`
	// RequestsPerMinute feeds the token bucket in front of the remote API.
	RequestsPerMinute int `mapstructure:"requests_per_minute" json:"requests_per_minute"`

	// MaxChunkChars is the threshold above which long bodies are split.
	MaxChunkChars  int `mapstructure:"max_chunk_chars" json:"max_chunk_chars"`
	MaxConcurrency int `mapstructure:"max_concurrency" json:"max_concurrency"`

	// PromptsFile replaces the built-in stage templates when set.
	PromptsFile string `mapstructure:"prompts_file" json:"prompts_file,omitempty"`
}

type TranscriptionConfig struct {
	// Backend selects the transcriber: "openai" or "local".
	Backend  string `mapstructure:"backend" json:"backend"`
	APIKey   string `mapstructure:"api_key" json:"-"`
	BaseURL  string `mapstructure:"base_url" json:"base_url,omitempty"`
	Model    string `mapstructure:"model" json:"model"`
	Language string `mapstructure:"language" json:"language"`
}

type AudioConfig struct {
	StorageDir string `mapstructure:"storage_dir" json:"storage_dir"`
	TempDir    string `mapstructure:"temp_dir" json:"temp_dir"`
	// MaxUploadMB rejects uploads above this size before any remote call.
	MaxUploadMB int `mapstructure:"max_upload_mb" json:"max_upload_mb"`
	// DirectThresholdMB: files below are transcribed in a single call.
	DirectThresholdMB float64       `mapstructure:"direct_threshold_mb" json:"direct_threshold_mb"`
	SegmentDuration   time.Duration `mapstructure:"segment_duration" json:"segment_duration"`
	MaxConcurrency    int           `mapstructure:"max_concurrency" json:"max_concurrency"`
	FFmpegPath        string        `mapstructure:"ffmpeg_path" json:"ffmpeg_path"`
	FFprobePath       string        `mapstructure:"ffprobe_path" json:"ffprobe_path"`
	AllowedExtensions []string      `mapstructure:"allowed_extensions" json:"allowed_extensions"`
}

// Load reads configuration from file, defaults and environment.
// A missing config file is not an error; defaults and env still apply.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")

	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if homeDir, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(homeDir, ".pedagogiskdialog"))
	}

	return load(v)
}

// LoadFile reads configuration from an explicit file path.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix("PD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	loadEnvOverrides(&cfg)

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("server.body_limit_mb", 210)
	v.SetDefault("server.operation_timeout", 15*time.Minute)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "pedagogisk")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "pedagogisk_dialog")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "data/sessions.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "pedagogisk-dialog")
	v.SetDefault("auth.access_token_ttl", 15*time.Minute)
	v.SetDefault("auth.refresh_token_ttl", 7*24*time.Hour)

	v.SetDefault("llm.backend", "openai")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.max_tokens", 4000)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.timeout", 2*time.Minute)
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.retry_base_delay", time.Second)
	v.SetDefault("llm.requests_per_minute", 60)
	v.SetDefault("llm.max_chunk_chars", 2000)
	v.SetDefault("llm.max_concurrency", 3)
	v.SetDefault("llm.prompts_file", "")

	v.SetDefault("transcription.backend", "openai")
	v.SetDefault("transcription.api_key", "")
	v.SetDefault("transcription.base_url", "")
	v.SetDefault("transcription.model", "whisper-1")
	v.SetDefault("transcription.language", "sv")

	v.SetDefault("audio.storage_dir", "data/audio")
	v.SetDefault("audio.temp_dir", "")
	v.SetDefault("audio.max_upload_mb", 200)
	v.SetDefault("audio.direct_threshold_mb", 5)
	v.SetDefault("audio.segment_duration", 10*time.Minute)
	v.SetDefault("audio.max_concurrency", 4)
	v.SetDefault("audio.ffmpeg_path", "ffmpeg")
	v.SetDefault("audio.ffprobe_path", "ffprobe")
	v.SetDefault("audio.allowed_extensions", []string{"wav", "mp3", "m4a", "mp4", "webm", "ogg"})
}

func loadEnvOverrides(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	// Database overrides
	if dbHost := os.Getenv("POSTGRES_HOST"); dbHost != "" {
		cfg.Database.Host = dbHost
	}
	if dbPort := os.Getenv("POSTGRES_PORT"); dbPort != "" {
		if port, err := strconv.Atoi(dbPort); err == nil {
			cfg.Database.Port = port
		}
	}
	if dbUser := os.Getenv("POSTGRES_USER"); dbUser != "" {
		cfg.Database.User = dbUser
	}
	if dbPass := os.Getenv("POSTGRES_PASSWORD"); dbPass != "" {
		cfg.Database.Password = dbPass
	}
	if dbName := os.Getenv("POSTGRES_DB"); dbName != "" {
		cfg.Database.Database = dbName
	}

	// The transcriber shares the completion key unless one is set explicitly.
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = key
	}
	if cfg.Transcription.APIKey == "" {
		cfg.Transcription.APIKey = cfg.LLM.APIKey
	}
}

// DirectThresholdBytes returns the direct-transcription threshold in bytes.
func (a AudioConfig) DirectThresholdBytes() int64 {
	return int64(a.DirectThresholdMB * 1024 * 1024)
}

// MaxUploadBytes returns the upload limit in bytes.
func (a AudioConfig) MaxUploadBytes() int64 {
	return int64(a.MaxUploadMB) * 1024 * 1024
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
