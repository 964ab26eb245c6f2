package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken  string        `yaml:"discord_token"`
	DatabaseURL   string        `yaml:"database_url"`
	LogLevel      string        `yaml:"log_level"`
	Health        HealthConfig  `yaml:"health"`
	Channels      ChannelConfig `yaml:"channels"`
	Roles         RoleConfig    `yaml:"roles"`
	Spam          SpamConfig    `yaml:"spam"`
	Notifications NotifyConfig  `yaml:"notifications"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// ChannelConfig holds channel names, resolved per guild at send time.
type ChannelConfig struct {
	ModerationLogs string `yaml:"moderation_logs"`
	ServerLogs     string `yaml:"server_logs"`
}

type RoleConfig struct {
	Muted string   `yaml:"muted"`
	Bad   []string `yaml:"bad"`
	Good  []string `yaml:"good"`
}

type SpamConfig struct {
	MaxIntervalMs                 int      `yaml:"max_interval_ms"`
	MaxDuplicatesIntervalSeconds  int      `yaml:"max_duplicates_interval_seconds"`
	MaxBannedWordsIntervalSeconds int      `yaml:"max_banned_words_interval_seconds"`
	KickThreshold                 int      `yaml:"kick_threshold"`
	MuteThreshold                 int      `yaml:"mute_threshold"`
	BanThreshold                  int      `yaml:"ban_threshold"`
	DeletionHorizonSeconds        int      `yaml:"deletion_horizon_seconds"`
	PruneIntervalSeconds          int      `yaml:"prune_interval_seconds"`
	WindowResetMinutes            int      `yaml:"window_reset_minutes"`
	AllowedExtensions             []string `yaml:"allowed_extensions"`
	DefaultExpressions            []string `yaml:"default_expressions"`
}

type NotifyConfig struct {
	DMEnabled         bool `yaml:"dm_enabled"`
	DMCooldownSeconds int  `yaml:"dm_cooldown_seconds"`
}

func DefaultConfig() Config {
	return Config{
		DatabaseURL: "warden.db",
		LogLevel:    "info",
		Health:      HealthConfig{Enabled: false, Addr: ":8080"},
		Channels: ChannelConfig{
			ModerationLogs: "mod-logs",
			ServerLogs:     "server-logs",
		},
		Roles: RoleConfig{
			Muted: "muted",
			Bad:   []string{"not-in-development", "muted"},
			Good:  []string{"admin", "contributor", "moderator", "bot"},
		},
		Spam: SpamConfig{
			MaxIntervalMs:                 500,
			MaxDuplicatesIntervalSeconds:  60,
			MaxBannedWordsIntervalSeconds: 60,
			KickThreshold:                 5,
			MuteThreshold:                 10,
			BanThreshold:                  15,
			DeletionHorizonSeconds:        10,
			PruneIntervalSeconds:          10,
			WindowResetMinutes:            30,
			AllowedExtensions:             []string{".txt", ".log"},
			DefaultExpressions: []string{
				`discord\.gg`,
				`twitch\.tv`,
				`\bnazi\b`,
				`\bslut\b`,
				`\bwhore\b`,
			},
		},
		Notifications: NotifyConfig{DMEnabled: true, DMCooldownSeconds: 5},
	}
}

// Load reads .env, the YAML file at CONFIG_PATH (default config.yaml) and the
// environment, in that order of increasing precedence.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	cfg.Roles.Bad = lowerAll(cfg.Roles.Bad)
	cfg.Roles.Good = lowerAll(cfg.Roles.Good)
	cfg.Roles.Muted = strings.ToLower(cfg.Roles.Muted)
	cfg.Spam.AllowedExtensions = lowerAll(cfg.Spam.AllowedExtensions)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the ladder ordering and that the history window outlives
// every detection interval.
func (c Config) Validate() error {
	s := c.Spam
	if s.KickThreshold <= 0 || s.MuteThreshold <= 0 || s.BanThreshold <= 0 {
		return errors.New("spam thresholds must be positive")
	}
	if !(s.KickThreshold < s.MuteThreshold && s.MuteThreshold < s.BanThreshold) {
		return fmt.Errorf("spam thresholds must satisfy kick < mute < ban, got %d/%d/%d", s.KickThreshold, s.MuteThreshold, s.BanThreshold)
	}
	if s.MaxIntervalMs <= 0 || s.MaxDuplicatesIntervalSeconds <= 0 || s.MaxBannedWordsIntervalSeconds <= 0 {
		return errors.New("spam intervals must be positive")
	}
	reset := s.WindowResetInterval()
	for _, interval := range []time.Duration{s.MaxInterval(), s.MaxDuplicatesInterval(), s.MaxBannedWordsInterval()} {
		if reset <= interval {
			return fmt.Errorf("window reset interval %s must exceed detection interval %s", reset, interval)
		}
	}
	if s.DeletionHorizonSeconds <= 0 || s.PruneIntervalSeconds <= 0 {
		return errors.New("deletion horizon and prune interval must be positive")
	}
	return nil
}

func (s SpamConfig) MaxInterval() time.Duration {
	return time.Duration(s.MaxIntervalMs) * time.Millisecond
}

func (s SpamConfig) MaxDuplicatesInterval() time.Duration {
	return time.Duration(s.MaxDuplicatesIntervalSeconds) * time.Second
}

func (s SpamConfig) MaxBannedWordsInterval() time.Duration {
	return time.Duration(s.MaxBannedWordsIntervalSeconds) * time.Second
}

func (s SpamConfig) DeletionHorizon() time.Duration {
	return time.Duration(s.DeletionHorizonSeconds) * time.Second
}

func (s SpamConfig) PruneInterval() time.Duration {
	return time.Duration(s.PruneIntervalSeconds) * time.Second
}

func (s SpamConfig) WindowResetInterval() time.Duration {
	return time.Duration(s.WindowResetMinutes) * time.Minute
}

func (n NotifyConfig) DMCooldown() time.Duration {
	return time.Duration(n.DMCooldownSeconds) * time.Second
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.DatabaseURL = envString("DATABASE_URL", cfg.DatabaseURL)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Channels.ModerationLogs = envString("MODERATION_LOGS_CHANNEL", cfg.Channels.ModerationLogs)
	cfg.Channels.ServerLogs = envString("SERVER_LOGS_CHANNEL", cfg.Channels.ServerLogs)
	cfg.Roles.Muted = envString("MUTED_ROLE", cfg.Roles.Muted)
	cfg.Roles.Bad = envList("BAD_ROLES", cfg.Roles.Bad)
	cfg.Roles.Good = envList("GOOD_ROLES", cfg.Roles.Good)
	cfg.Spam.MaxIntervalMs = envInt("SPAM_MAX_INTERVAL_MS", cfg.Spam.MaxIntervalMs)
	cfg.Spam.MaxDuplicatesIntervalSeconds = envInt("SPAM_MAX_DUPLICATES_INTERVAL_SECONDS", cfg.Spam.MaxDuplicatesIntervalSeconds)
	cfg.Spam.MaxBannedWordsIntervalSeconds = envInt("SPAM_MAX_BANNED_WORDS_INTERVAL_SECONDS", cfg.Spam.MaxBannedWordsIntervalSeconds)
	cfg.Spam.KickThreshold = envInt("SPAM_KICK_THRESHOLD", cfg.Spam.KickThreshold)
	cfg.Spam.MuteThreshold = envInt("SPAM_MUTE_THRESHOLD", cfg.Spam.MuteThreshold)
	cfg.Spam.BanThreshold = envInt("SPAM_BAN_THRESHOLD", cfg.Spam.BanThreshold)
	cfg.Spam.WindowResetMinutes = envInt("SPAM_WINDOW_RESET_MINUTES", cfg.Spam.WindowResetMinutes)
	cfg.Spam.AllowedExtensions = envList("SPAM_ALLOWED_EXTENSIONS", cfg.Spam.AllowedExtensions)
	cfg.Notifications.DMEnabled = envBool("DM_ENABLED", cfg.Notifications.DMEnabled)
	cfg.Notifications.DMCooldownSeconds = envInt("DM_COOLDOWN_SECONDS", cfg.Notifications.DMCooldownSeconds)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(strings.ToLower(level)))
	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		out = append(out, strings.ToLower(strings.TrimSpace(value)))
	}
	return out
}
