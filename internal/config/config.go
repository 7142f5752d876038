package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	LogConfig logger.LogConfig `json:"log_config"`
	AI        AIConfig         `json:"ai"`
	Paper     PaperConfig      `json:"paper"`
	Video     VideoConfig      `json:"video"`
}

type AIConfig struct {
	Provider        string      `json:"provider"`
	ChatModel       string      `json:"chat_model"`
	EmbedModel      string      `json:"embed_model"`
	StoryboardModel string      `json:"storyboard_model"`
	Timeout         int         `json:"timeout"`
	Data            interface{} `json:"data"`
	Fallbacks       []AIBackend `json:"fallbacks"`
}

// AIBackend is tried after the primary provider fails. Empty models inherit
// the primary provider's models.
type AIBackend struct {
	Provider        string      `json:"provider"`
	ChatModel       string      `json:"chat_model"`
	EmbedModel      string      `json:"embed_model"`
	StoryboardModel string      `json:"storyboard_model"`
	Data            interface{} `json:"data"`
}

type BackendConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type PaperConfig struct {
	Port            int           `json:"port"`
	Extractor       BackendConfig `json:"extractor"`
	Index           BackendConfig `json:"index"`
	EmbedCacheSize  int           `json:"embed_cache_size"`
	ProxyRPS        float64       `json:"proxy_rps"`
	ProxyBurst      int           `json:"proxy_burst"`
	// VideoServiceURL enables /generate_video and /media/videos on the paper service.
	VideoServiceURL string `json:"video_service_url"`
	VideoTimeout    int    `json:"video_timeout"`
}

type VideoConfig struct {
	Port               int             `json:"port"`
	MediaRoot          string          `json:"media_root"`
	ScratchDir         string          `json:"scratch_dir"`
	FileStore          FileStoreConfig `json:"file_store"`
	Narration          BackendConfig   `json:"narration"`
	FontPath           string          `json:"font_path"`
	FFmpegPath         string          `json:"ffmpeg_path"`
	ScratchMaxAgeHours int             `json:"scratch_max_age_hours"`
	CleanupSpec        string          `json:"cleanup_spec"`
	PaperContext       bool            `json:"paper_context"`
	ClosingText        string          `json:"closing_text"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// VideoDir is where published videos live for the local store.
func (c VideoConfig) VideoDir() string {
	return filepath.Join(c.MediaRoot, "videos", "1080p60")
}

func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()
		if err := json.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}
	applyDefaults(&cfg)
	applyEnv(&cfg, os.Getenv)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "azure_openai"
	}
	if cfg.AI.ChatModel == "" {
		cfg.AI.ChatModel = "gpt-4"
	}
	if cfg.AI.EmbedModel == "" {
		cfg.AI.EmbedModel = "text-embedding-3-large"
	}
	if cfg.AI.StoryboardModel == "" {
		cfg.AI.StoryboardModel = "gpt-4-32k"
	}
	for i := range cfg.AI.Fallbacks {
		fb := &cfg.AI.Fallbacks[i]
		if fb.ChatModel == "" {
			fb.ChatModel = cfg.AI.ChatModel
		}
		if fb.EmbedModel == "" {
			fb.EmbedModel = cfg.AI.EmbedModel
		}
		if fb.StoryboardModel == "" {
			fb.StoryboardModel = cfg.AI.StoryboardModel
		}
	}
	if cfg.Paper.Port == 0 {
		cfg.Paper.Port = 8000
	}
	if cfg.Paper.Extractor.Type == "" {
		cfg.Paper.Extractor.Type = "azure"
	}
	if cfg.Paper.Index.Type == "" {
		cfg.Paper.Index.Type = "azure"
	}
	if cfg.Paper.EmbedCacheSize == 0 {
		cfg.Paper.EmbedCacheSize = 100
	}
	if cfg.Paper.ProxyRPS == 0 {
		cfg.Paper.ProxyRPS = 0.5
	}
	if cfg.Paper.ProxyBurst == 0 {
		cfg.Paper.ProxyBurst = 50
	}
	if cfg.Paper.VideoTimeout == 0 {
		cfg.Paper.VideoTimeout = 3600
	}
	if cfg.Video.Port == 0 {
		cfg.Video.Port = 3000
	}
	if cfg.Video.MediaRoot == "" {
		cfg.Video.MediaRoot = "media"
	}
	if cfg.Video.ScratchDir == "" {
		cfg.Video.ScratchDir = filepath.Join(cfg.Video.MediaRoot, "scratch")
	}
	if cfg.Video.FileStore.Type == "" {
		cfg.Video.FileStore.Type = "local"
	}
	if cfg.Video.FileStore.Type == "local" && cfg.Video.FileStore.Data == nil {
		cfg.Video.FileStore.Data = map[string]interface{}{"dir": cfg.Video.VideoDir()}
	}
	if cfg.Video.Narration.Type == "" {
		cfg.Video.Narration.Type = "azure"
	}
	if cfg.Video.FFmpegPath == "" {
		cfg.Video.FFmpegPath = "ffmpeg"
	}
	if cfg.Video.ScratchMaxAgeHours == 0 {
		cfg.Video.ScratchMaxAgeHours = 24
	}
	if cfg.Video.CleanupSpec == "" {
		cfg.Video.CleanupSpec = "17 * * * *"
	}
}

type envLookup func(string) string

func applyEnv(cfg *Config, getenv envLookup) {
	if cfg.AI.Provider == "azure_openai" {
		cfg.AI.Data = overrideFromEnv(cfg.AI.Data, getenv, map[string]string{
			"endpoint": "AZURE_OPENAI_ENDPOINT",
			"api_key":  "AZURE_OPENAI_KEY",
		})
	}
	if cfg.Paper.Extractor.Type == "azure" {
		cfg.Paper.Extractor.Data = overrideFromEnv(cfg.Paper.Extractor.Data, getenv, map[string]string{
			"endpoint": "AZURE_DOC_INTEL_ENDPOINT",
			"api_key":  "AZURE_DOC_INTEL_KEY",
		})
	}
	if cfg.Paper.Index.Type == "azure" {
		cfg.Paper.Index.Data = overrideFromEnv(cfg.Paper.Index.Data, getenv, map[string]string{
			"endpoint": "AZURE_SEARCH_ENDPOINT",
			"api_key":  "AZURE_SEARCH_KEY",
		})
	}
	if cfg.Video.Narration.Type == "azure" {
		cfg.Video.Narration.Data = overrideFromEnv(cfg.Video.Narration.Data, getenv, map[string]string{
			"api_key": "AZURE_SPEECH_KEY",
			"region":  "AZURE_SPEECH_REGION",
		})
	}
}

func overrideFromEnv(data interface{}, getenv envLookup, mapping map[string]string) interface{} {
	m, ok := data.(map[string]interface{})
	if !ok || m == nil {
		m = map[string]interface{}{}
	}
	for key, env := range mapping {
		if v := strings.TrimSpace(getenv(env)); v != "" {
			m[key] = v
		}
	}
	return m
}

func validate(cfg *Config) error {
	if cfg.Paper.EmbedCacheSize < 0 {
		return fmt.Errorf("paper.embed_cache_size must not be negative")
	}
	if cfg.Paper.VideoTimeout < 0 {
		return fmt.Errorf("paper.video_timeout must not be negative")
	}
	for i, fb := range cfg.AI.Fallbacks {
		if strings.TrimSpace(fb.Provider) == "" {
			return fmt.Errorf("ai.fallbacks[%d].provider is required", i)
		}
	}
	switch cfg.Video.FileStore.Type {
	case "local", "s3":
	default:
		return fmt.Errorf("video.file_store.type must be local or s3")
	}
	return nil
}
