package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"tunedetect/pkg/logger"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const DefaultConfigPath = "configs/config.yaml"

type Config struct {
	Telegram struct {
		Token         string        `yaml:"token" env:"TELEGRAM_BOT_TOKEN" env-required:"true"`
		GroupID       int64         `yaml:"group_id" env:"GROUP_ID" env-required:"true"`
		ChannelID     int64         `yaml:"channel_id" env:"CHANNEL_ID" env-required:"true"`
		AdminUserID   int64         `yaml:"admin_user_id" env:"ADMIN_USER_ID" env-required:"true"`
		PollTimeout   time.Duration `yaml:"poll_timeout" env:"TELEGRAM_POLL_TIMEOUT" env-default:"10s"`
		GroupLink     string        `yaml:"group_link" env:"GROUP_LINK"`
		ChannelLink   string        `yaml:"channel_link" env:"CHANNEL_LINK"`
		MemberTimeout time.Duration `yaml:"membership_timeout" env:"MEMBERSHIP_TIMEOUT" env-default:"5s"`
		MaxUploadMB   int64         `yaml:"max_upload_mb" env:"MAX_UPLOAD_MB" env-default:"20"`
	} `yaml:"telegram"`

	ACRCloud struct {
		Host         string        `yaml:"host" env:"ACR_HOST" env-required:"true"`
		AccessKey    string        `yaml:"access_key" env:"ACR_ACCESS_KEY" env-required:"true"`
		AccessSecret string        `yaml:"access_secret" env:"ACR_ACCESS_SECRET" env-required:"true"`
		Timeout      time.Duration `yaml:"timeout" env:"ACR_TIMEOUT" env-default:"10s"`
	} `yaml:"acrcloud"`

	RateLimit struct {
		Limit    int           `yaml:"limit" env:"RATE_LIMIT" env-default:"3"`
		Interval time.Duration `yaml:"interval" env:"RATE_INTERVAL" env-default:"60s"`
	} `yaml:"rate_limit"`

	Media struct {
		TransientDir    string        `yaml:"transient_dir" env:"TRANSIENT_DIR" env-default:"data/requests"`
		MaxVideoMB      int64         `yaml:"max_video_mb" env:"MAX_VIDEO_MB" env-default:"100"`
		MaxVideoHeight  int           `yaml:"max_video_height" env:"MAX_VIDEO_HEIGHT" env-default:"360"`
		DownloadTimeout time.Duration `yaml:"download_timeout" env:"DOWNLOAD_TIMEOUT" env-default:"5m"`
		YtDLPBin        string        `yaml:"ytdlp_bin" env:"YTDLP_BIN" env-default:"yt-dlp"`
		FFmpegBin       string        `yaml:"ffmpeg_bin" env:"FFMPEG_BIN" env-default:"ffmpeg"`
	} `yaml:"media"`

	Songs struct {
		Dir     string `yaml:"dir" env:"SONG_DIR" env-default:"data/music"`
		Bitrate string `yaml:"bitrate" env:"SONG_BITRATE" env-default:"192k"`
	} `yaml:"songs"`

	Redis struct {
		Addr     string        `yaml:"addr" env:"REDIS_ADDR" env-default:""`
		Password string        `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
		DB       int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
		MatchTTL time.Duration `yaml:"match_ttl" env:"MATCH_CACHE_TTL" env-default:"24h"`
	} `yaml:"redis"`

	RabbitMQ struct {
		URL string `yaml:"url" env:"RABBITMQ_URL"`
	} `yaml:"rabbitmq"`

	S3 struct {
		Endpoint  string `yaml:"endpoint" env:"S3_ENDPOINT"`
		Region    string `yaml:"region" env:"S3_REGION" env-default:"us-east-1"`
		AccessKey string `yaml:"access_key" env:"S3_ACCESS_KEY"`
		SecretKey string `yaml:"secret_key" env:"S3_SECRET_KEY"`
		Bucket    string `yaml:"bucket" env:"S3_BUCKET"`
	} `yaml:"s3"`

	Debug bool `yaml:"debug" env:"LOG_DEBUG" env-default:"false"`
}

// LoadConfig reads configs/config.yaml when it exists and overlays the environment.
// A missing required value is returned as an error.
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(DefaultConfigPath)
}

func LoadConfigFrom(path string) (*Config, error) {
	// Load .env file
	_ = godotenv.Load()

	var cfg Config
	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, err
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Info("Config loaded successfully")
	return &cfg, nil
}

// Validate checks value ranges that struct tags cannot express
func (c *Config) Validate() error {
	var errs []error
	if c.RateLimit.Limit <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT must be positive, got %d", c.RateLimit.Limit))
	}
	if c.RateLimit.Interval <= 0 {
		errs = append(errs, fmt.Errorf("RATE_INTERVAL must be positive, got %s", c.RateLimit.Interval))
	}
	if c.Media.MaxVideoMB <= 0 {
		errs = append(errs, fmt.Errorf("MAX_VIDEO_MB must be positive, got %d", c.Media.MaxVideoMB))
	}
	if c.ACRCloud.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("ACR_TIMEOUT must be positive, got %s", c.ACRCloud.Timeout))
	}
	if c.S3.Endpoint != "" && c.S3.Bucket == "" {
		errs = append(errs, errors.New("S3_BUCKET is required when S3_ENDPOINT is set"))
	}
	// TRANSIENT_DIR is wiped at startup, so it must not contain the song store
	if c.Media.TransientDir != "" && c.Songs.Dir != "" && dirsOverlap(c.Media.TransientDir, c.Songs.Dir) {
		errs = append(errs, fmt.Errorf("TRANSIENT_DIR %q and SONG_DIR %q must not overlap", c.Media.TransientDir, c.Songs.Dir))
	}
	return errors.Join(errs...)
}

// dirsOverlap reports whether a and b are the same directory or one contains the other
func dirsOverlap(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return within(absA, absB) || within(absB, absA)
}

func within(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// MaxUploadBytes bounds files users upload directly
func (c *Config) MaxUploadBytes() int64 {
	return c.Telegram.MaxUploadMB * 1024 * 1024
}

// MaxVideoBytes is the size ceiling applied before any video download
func (c *Config) MaxVideoBytes() int64 {
	return c.Media.MaxVideoMB * 1024 * 1024
}
