package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	envConfigPath        = "KONOHA_CONFIG"
	envPrefix            = "KONOHA_PREFIX"
	envBotName           = "KONOHA_BOT_NAME"
	envOwnerNumber       = "KONOHA_OWNER_NUMBER"
	envSessionDir        = "KONOHA_SESSION_DIR"
	envGeniusToken       = "GENIUS_API_TOKEN"
	envGeniusAccessToken = "GENIUS_ACCESS_TOKEN"
	envOpenAIKey         = "OPENAI_API_KEY"
	envTelegramBotToken  = "TELEGRAM_BOT_TOKEN"
	envTelegramAllowFrom = "TELEGRAM_ALLOW_FROM"
)

// Config is the root runtime configuration. It is built once at startup and
// handed to every component by pointer.
type Config struct {
	Bot        BotConfig        `json:"bot" yaml:"bot"`
	Features   FeaturesConfig   `json:"features" yaml:"features"`
	Storage    StorageConfig    `json:"storage" yaml:"storage"`
	Supervisor SupervisorConfig `json:"supervisor" yaml:"supervisor"`
	Channels   ChannelsConfig   `json:"channels" yaml:"channels"`
	Media      MediaConfig      `json:"media" yaml:"media"`
	Lyrics     LyricsConfig     `json:"lyrics" yaml:"lyrics"`
	TTS        TTSConfig        `json:"tts" yaml:"tts"`
	Help       HelpConfig       `json:"help" yaml:"help"`
	Sticker    StickerConfig    `json:"sticker" yaml:"sticker"`
	Gateway    GatewayConfig    `json:"gateway" yaml:"gateway"`
	Logging    LoggingConfig    `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// BotConfig holds identity settings shown in replies.
type BotConfig struct {
	Name        string `json:"name" yaml:"name"`
	Version     string `json:"version" yaml:"version"`
	Owner       string `json:"owner" yaml:"owner"`
	OwnerNumber string `json:"owner_number" yaml:"owner_number"`
	Prefix      string `json:"prefix" yaml:"prefix"`
	ThemeEmoji  string `json:"theme_emoji" yaml:"theme_emoji"`
}

// FeaturesConfig toggles optional chat behaviors.
type FeaturesConfig struct {
	Welcome        bool `json:"welcome" yaml:"welcome"`
	Goodbye        bool `json:"goodbye" yaml:"goodbye"`
	AutoReadStatus bool `json:"auto_read_status" yaml:"auto_read_status"`
}

// StorageConfig locates persisted and scratch state on disk.
type StorageConfig struct {
	SessionDir string `json:"session_dir" yaml:"session_dir"`
	DataDir    string `json:"data_dir" yaml:"data_dir"`
	TempDir    string `json:"temp_dir" yaml:"temp_dir"`
}

// OwnerFile returns the path of the owner registry file.
func (s StorageConfig) OwnerFile() string {
	return filepath.Join(s.DataDir, "owner.json")
}

// SupervisorConfig bounds the reconnect loop.
type SupervisorConfig struct {
	MaxReconnectAttempts  int `json:"max_reconnect_attempts" yaml:"max_reconnect_attempts"`
	ReconnectDelaySeconds int `json:"reconnect_delay_seconds" yaml:"reconnect_delay_seconds"`
}

// ReconnectDelay returns the fixed backoff between reconnect attempts.
func (s SupervisorConfig) ReconnectDelay() time.Duration {
	return time.Duration(s.ReconnectDelaySeconds) * time.Second
}

// ChannelsConfig stores transport adapter settings.
type ChannelsConfig struct {
	WhatsApp WhatsAppConfig `json:"whatsapp" yaml:"whatsapp"`
	Telegram TelegramConfig `json:"telegram" yaml:"telegram"`
	Console  ConsoleConfig  `json:"console" yaml:"console"`
}

// WhatsAppConfig configures the WhatsApp multi-device channel.
type WhatsAppConfig struct {
	Enabled           bool    `json:"enabled" yaml:"enabled"`
	Pairing           string  `json:"pairing" yaml:"pairing"`
	SendRatePerSecond float64 `json:"send_rate_per_second" yaml:"send_rate_per_second"`
	SendBurst         int     `json:"send_burst" yaml:"send_burst"`
}

// TelegramConfig configures Telegram channel integration.
type TelegramConfig struct {
	Enabled   bool     `json:"enabled" yaml:"enabled"`
	Token     string   `json:"token" yaml:"token"`
	Proxy     string   `json:"proxy" yaml:"proxy"`
	AllowFrom []string `json:"allow_from" yaml:"allow_from"`
}

// ConsoleConfig enables the local terminal channel.
type ConsoleConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// MediaConfig configures external download and transcode tools.
type MediaConfig struct {
	YTDLPPath           string `json:"yt_dlp_path" yaml:"yt_dlp_path"`
	FFmpegPath          string `json:"ffmpeg_path" yaml:"ffmpeg_path"`
	VideoTimeoutSeconds int    `json:"video_timeout_seconds" yaml:"video_timeout_seconds"`
	AudioTimeoutSeconds int    `json:"audio_timeout_seconds" yaml:"audio_timeout_seconds"`
	MaxVideoBytes       int64  `json:"max_video_bytes" yaml:"max_video_bytes"`
}

// LyricsConfig configures the lyrics source chain.
type LyricsConfig struct {
	GeniusToken    string   `json:"genius_token" yaml:"genius_token"`
	GeniusBaseURL  string   `json:"genius_base_url" yaml:"genius_base_url"`
	Sources        []string `json:"sources" yaml:"sources"`
	TimeoutSeconds int      `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// TTSConfig configures speech synthesis providers.
type TTSConfig struct {
	Providers   []string        `json:"providers" yaml:"providers"`
	DefaultLang string          `json:"default_lang" yaml:"default_lang"`
	MaxChars    int             `json:"max_chars" yaml:"max_chars"`
	OpenAI      OpenAITTSConfig `json:"openai" yaml:"openai"`
}

// OpenAITTSConfig configures the OpenAI speech endpoint.
type OpenAITTSConfig struct {
	APIKey                string `json:"api_key" yaml:"api_key"`
	BaseURL               string `json:"base_url" yaml:"base_url"`
	Model                 string `json:"model" yaml:"model"`
	Voice                 string `json:"voice" yaml:"voice"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds" yaml:"request_timeout_seconds"`
}

// HelpConfig controls the help menu layout.
type HelpConfig struct {
	ClientForm string `json:"client_form" yaml:"client_form"`
	ImagePath  string `json:"image_path" yaml:"image_path"`
}

// StickerConfig sets the sticker pack metadata.
type StickerConfig struct {
	PackName  string `json:"pack_name" yaml:"pack_name"`
	Publisher string `json:"publisher" yaml:"publisher"`
}

// GatewayConfig configures the HTTP status server.
type GatewayConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Host    string `json:"host" yaml:"host"`
	Port    int    `json:"port" yaml:"port"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty" yaml:"format,omitempty"`
	Level     string `json:"level,omitempty" yaml:"level,omitempty"`
	AddSource bool   `json:"add_source,omitempty" yaml:"add_source,omitempty"`
}

// Default returns the built-in configuration used when no file overrides it.
func Default() *Config {
	return &Config{
		Bot: BotConfig{
			Name:       "Konoha Bot",
			Version:    "1.2.4",
			Owner:      "Bot Owner",
			Prefix:     ".",
			ThemeEmoji: "•",
		},
		Features: FeaturesConfig{Welcome: true, Goodbye: true, AutoReadStatus: true},
		Storage: StorageConfig{
			SessionDir: "./session",
			DataDir:    "./data",
			TempDir:    "./temp",
		},
		Supervisor: SupervisorConfig{MaxReconnectAttempts: 5, ReconnectDelaySeconds: 10},
		Channels: ChannelsConfig{
			WhatsApp: WhatsAppConfig{Enabled: true, Pairing: "code", SendRatePerSecond: 2, SendBurst: 4},
		},
		Media: MediaConfig{
			YTDLPPath:           "yt-dlp",
			FFmpegPath:          "ffmpeg",
			VideoTimeoutSeconds: 60,
			AudioTimeoutSeconds: 30,
			MaxVideoBytes:       64 << 20,
		},
		Lyrics: LyricsConfig{
			GeniusBaseURL:  "https://api.genius.com",
			Sources:        []string{"genius", "azlyrics", "google", "duckduckgo", "regional"},
			TimeoutSeconds: 15,
		},
		TTS: TTSConfig{
			Providers:   []string{"google", "openai"},
			DefaultLang: "en",
			MaxChars:    200,
			OpenAI:      OpenAITTSConfig{Model: "tts-1", Voice: "alloy", RequestTimeoutSeconds: 30},
		},
		Help:    HelpConfig{ClientForm: "auto"},
		Sticker: StickerConfig{PackName: "New WhatsApp Bot", Publisher: "Made with ❤️"},
		Gateway: GatewayConfig{Host: "127.0.0.1", Port: 18790},
	}
}

// LoadConfig resolves the config file, merges it over defaults, and applies
// .env and environment overrides.
func LoadConfig() (*Config, error) {
	configPath, err := findConfigPath()
	if err != nil {
		return nil, err
	}

	return LoadFile(configPath)
}

// LoadFile loads one explicit config file over defaults. An empty path loads
// defaults plus environment only.
func LoadFile(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := decode(configPath, content, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := loadDotEnv(configPath); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	normalize(cfg)

	if cfg.Bot.OwnerNumber == "" {
		owners, err := ReadOwners(cfg.Storage.OwnerFile())
		if err != nil {
			return nil, err
		}
		if len(owners) > 0 {
			cfg.Bot.OwnerNumber = owners[0]
		}
	}

	return cfg, nil
}

// Validate reports settings that make the runtime unusable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Bot.Prefix) == "" {
		return errors.New("bot.prefix must not be empty")
	}
	if c.Supervisor.MaxReconnectAttempts < 0 {
		return errors.New("supervisor.max_reconnect_attempts must not be negative")
	}
	switch c.Help.ClientForm {
	case "auto", "web", "mobile":
	default:
		return fmt.Errorf("help.client_form %q must be auto, web or mobile", c.Help.ClientForm)
	}
	switch c.Channels.WhatsApp.Pairing {
	case "code", "qr":
	default:
		return fmt.Errorf("channels.whatsapp.pairing %q must be code or qr", c.Channels.WhatsApp.Pairing)
	}

	return nil
}

func decode(configPath string, content []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(content, cfg)
	default:
		return json.Unmarshal(content, cfg)
	}
}

// loadDotEnv reads a .env file next to the config file or in the cwd.
// Variables already present in the environment win.
func loadDotEnv(configPath string) error {
	candidates := []string{".env"}
	if configPath != "" {
		candidates = append([]string{filepath.Join(filepath.Dir(configPath), ".env")}, candidates...)
	}

	for _, candidate := range slices.Compact(candidates) {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		if err := godotenv.Load(candidate); err != nil {
			return fmt.Errorf("load env file %s: %w", candidate, err)
		}
		return nil
	}

	return nil
}

// applyEnvOverrides injects selected env-driven settings on top of file config.
func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	if value := strings.TrimSpace(os.Getenv(envPrefix)); value != "" {
		cfg.Bot.Prefix = value
	}
	if value := strings.TrimSpace(os.Getenv(envBotName)); value != "" {
		cfg.Bot.Name = value
	}
	if value := strings.TrimSpace(os.Getenv(envOwnerNumber)); value != "" {
		cfg.Bot.OwnerNumber = value
	}
	if value := strings.TrimSpace(os.Getenv(envSessionDir)); value != "" {
		cfg.Storage.SessionDir = value
	}

	if token := strings.TrimSpace(os.Getenv(envGeniusToken)); token != "" {
		cfg.Lyrics.GeniusToken = token
	} else if token := strings.TrimSpace(os.Getenv(envGeniusAccessToken)); token != "" {
		cfg.Lyrics.GeniusToken = token
	}

	if key := strings.TrimSpace(os.Getenv(envOpenAIKey)); key != "" {
		cfg.TTS.OpenAI.APIKey = key
	}

	if token := strings.TrimSpace(os.Getenv(envTelegramBotToken)); token != "" {
		cfg.Channels.Telegram.Token = token
	}

	if rawAllowFrom := strings.TrimSpace(os.Getenv(envTelegramAllowFrom)); rawAllowFrom != "" {
		cfg.Channels.Telegram.AllowFrom = parseCSV(rawAllowFrom)
	}
}

// normalize fills zero values a partial config file may have cleared.
func normalize(cfg *Config) {
	defaults := Default()

	if strings.TrimSpace(cfg.Bot.Prefix) == "" {
		cfg.Bot.Prefix = defaults.Bot.Prefix
	}
	if cfg.Supervisor.ReconnectDelaySeconds <= 0 {
		cfg.Supervisor.ReconnectDelaySeconds = defaults.Supervisor.ReconnectDelaySeconds
	}
	if cfg.Media.VideoTimeoutSeconds <= 0 {
		cfg.Media.VideoTimeoutSeconds = defaults.Media.VideoTimeoutSeconds
	}
	if cfg.Media.AudioTimeoutSeconds <= 0 {
		cfg.Media.AudioTimeoutSeconds = defaults.Media.AudioTimeoutSeconds
	}
	if cfg.Lyrics.TimeoutSeconds <= 0 {
		cfg.Lyrics.TimeoutSeconds = defaults.Lyrics.TimeoutSeconds
	}
	if cfg.TTS.MaxChars <= 0 {
		cfg.TTS.MaxChars = defaults.TTS.MaxChars
	}
	if strings.TrimSpace(cfg.TTS.DefaultLang) == "" {
		cfg.TTS.DefaultLang = defaults.TTS.DefaultLang
	}
	cfg.Help.ClientForm = strings.ToLower(strings.TrimSpace(cfg.Help.ClientForm))
	if cfg.Help.ClientForm == "" {
		cfg.Help.ClientForm = defaults.Help.ClientForm
	}
	cfg.Channels.WhatsApp.Pairing = strings.ToLower(strings.TrimSpace(cfg.Channels.WhatsApp.Pairing))
	if cfg.Channels.WhatsApp.Pairing == "" {
		cfg.Channels.WhatsApp.Pairing = defaults.Channels.WhatsApp.Pairing
	}
}

// parseCSV splits comma-separated values and returns a trimmed compact slice.
func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	return slices.Clip(clean)
}

// findConfigPath resolves the active config file location.
//
// Precedence is KONOHA_CONFIG first, then cwd-local fallback paths. No file
// at all is fine: defaults and environment apply.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv(envConfigPath)); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("%s does not point to a file: %s", envConfigPath, value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config.yaml"),
		filepath.Join(cwd, "config", "config.json"),
		filepath.Join(cwd, "config", "config.yaml"),
	}

	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", candidate, err)
		}
	}

	return "", nil
}
