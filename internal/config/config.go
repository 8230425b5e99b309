// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// QueueConfig tunes the scheduling engine.
type QueueConfig struct {
	GlobalConcurrency int           `yaml:"global_concurrency"` // cap on processing jobs across all tiers
	CandidateWindow   int           `yaml:"candidate_window"`   // dispatch scan window size
	PollInterval      time.Duration `yaml:"poll_interval"`      // supervisor dispatch tick
	Workers           int           `yaml:"workers"`            // worker pool size
	TimeoutMinutes    int           `yaml:"timeout_minutes"`    // processing deadline
	WatchdogInterval  time.Duration `yaml:"watchdog_interval"`  // stuck-job scan cadence
	IndexerInterval   time.Duration `yaml:"indexer_interval"`   // queue position recompute cadence
}

// ProcessingTimeout is the deadline after which a processing job counts as
// stuck.
func (q QueueConfig) ProcessingTimeout() time.Duration {
	return time.Duration(q.TimeoutMinutes) * time.Minute
}

type APIConfig struct {
	Port      int           `yaml:"port"`
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type ArtifactsConfig struct {
	Dir     string `yaml:"dir"`      // local artifact directory
	BaseURL string `yaml:"base_url"` // public prefix for stored artifacts
}

type GenerationConfig struct {
	ImageModel string `yaml:"image_model"`
	VideoModel string `yaml:"video_model"`
	AudioModel string `yaml:"audio_model"`
	AudioVoice string `yaml:"audio_voice"`
}

type Config struct {
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Queue      QueueConfig      `yaml:"queue"`
	API        APIConfig        `yaml:"api"`
	Artifacts  ArtifactsConfig  `yaml:"artifacts"`
	Generation GenerationConfig `yaml:"generation"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Queue.GlobalConcurrency <= 0 {
		cfg.Queue.GlobalConcurrency = 10
	}
	if cfg.Queue.CandidateWindow <= 0 {
		cfg.Queue.CandidateWindow = 10
	}
	if cfg.Queue.PollInterval <= 0 {
		cfg.Queue.PollInterval = 500 * time.Millisecond
	}
	if cfg.Queue.Workers <= 0 {
		cfg.Queue.Workers = 8
	}
	if cfg.Queue.TimeoutMinutes <= 0 {
		cfg.Queue.TimeoutMinutes = 10
	}
	if cfg.Queue.WatchdogInterval <= 0 {
		cfg.Queue.WatchdogInterval = 5 * time.Minute
	}
	if cfg.Queue.IndexerInterval <= 0 {
		cfg.Queue.IndexerInterval = 15 * time.Second
	}
	if cfg.API.Port == 0 {
		cfg.API.Port = 8080
	}
	if cfg.API.TokenTTL <= 0 {
		cfg.API.TokenTTL = 24 * time.Hour
	}
	if cfg.Artifacts.Dir == "" {
		cfg.Artifacts.Dir = "artifacts"
	}
	if cfg.Artifacts.BaseURL == "" {
		cfg.Artifacts.BaseURL = "/artifacts"
	}
	if cfg.Generation.ImageModel == "" {
		cfg.Generation.ImageModel = "dall-e-3"
	}
	if cfg.Generation.VideoModel == "" {
		cfg.Generation.VideoModel = "veo-2.0-generate-001"
	}
	if cfg.Generation.AudioModel == "" {
		cfg.Generation.AudioModel = "tts-1"
	}
	if cfg.Generation.AudioVoice == "" {
		cfg.Generation.AudioVoice = "alloy"
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.API.JWTSecret == "" && !dev {
		return nil, errors.New("api.jwt_secret is required outside dev mode")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
