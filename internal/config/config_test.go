package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidateLadderOrdering(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Spam.MuteThreshold = cfg.Spam.BanThreshold
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for mute == ban")
	}

	cfg = DefaultConfig()
	cfg.Spam.KickThreshold = 12
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for kick > mute")
	}
}

func TestValidateWindowOutlivesIntervals(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Spam.WindowResetMinutes = 1
	cfg.Spam.MaxDuplicatesIntervalSeconds = 60
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error when reset interval equals duplicate interval")
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
database_url: file.db
roles:
  muted: Silenced
  good: [Staff]
spam:
  kick_threshold: 3
  mute_threshold: 6
  ban_threshold: 9
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("SPAM_BAN_THRESHOLD", "20")
	t.Setenv("BAD_ROLES", "Muted, jail")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabaseURL != "file.db" {
		t.Fatalf("unexpected database url %q", cfg.DatabaseURL)
	}
	if cfg.Spam.KickThreshold != 3 || cfg.Spam.MuteThreshold != 6 || cfg.Spam.BanThreshold != 20 {
		t.Fatalf("unexpected thresholds %+v", cfg.Spam)
	}
	if cfg.Roles.Muted != "silenced" || cfg.Roles.Good[0] != "staff" {
		t.Fatalf("expected lower-cased role names, got %+v", cfg.Roles)
	}
	if len(cfg.Roles.Bad) != 2 || cfg.Roles.Bad[0] != "muted" || cfg.Roles.Bad[1] != "jail" {
		t.Fatalf("unexpected bad roles %v", cfg.Roles.Bad)
	}
}
