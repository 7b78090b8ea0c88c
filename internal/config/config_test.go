package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandEnvVars(t *testing.T) {
	os.Setenv("MEETLY_TEST_TOKEN", "abc123")
	defer os.Unsetenv("MEETLY_TEST_TOKEN")

	cases := []struct {
		in   string
		want string
	}{
		{"${MEETLY_TEST_TOKEN}", "abc123"},
		{"${MEETLY_TEST_UNSET:-fallback}", "fallback"},
		{"${MEETLY_TEST_UNSET}", "${MEETLY_TEST_UNSET}"},
		{"prefix-${MEETLY_TEST_TOKEN}-suffix", "prefix-abc123-suffix"},
		{"no vars here", "no vars here"},
	}
	for _, c := range cases {
		if got := ExpandEnvVars(c.in); got != c.want {
			t.Errorf("ExpandEnvVars(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := Defaults()
	cfg.Channels.Web.Port = 9999
	cfg.Calendar.CalendarID = "team@example.com"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Channels.Web.Port != 9999 {
		t.Errorf("port = %d, want 9999", loaded.Channels.Web.Port)
	}
	if loaded.Calendar.CalendarID != "team@example.com" {
		t.Errorf("calendarId = %q", loaded.Calendar.CalendarID)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Defaults()
	cfg.Calendar.WorkdayEnd = 5 // before start
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for workdayEndHour before workdayStartHour")
	}

	cfg = Defaults()
	cfg.General.FailoverChain = []string{"nonexistent"}
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for unknown failover provider")
	}

	cfg = Defaults()
	cfg.General.Timezone = "Mars/Olympus_Mons"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for bad timezone")
	}
}

func TestGetSetByPath(t *testing.T) {
	cfg := Defaults()

	if err := SetByPath(cfg, "channels.web.port", "3000"); err != nil {
		t.Fatalf("SetByPath: %v", err)
	}
	if cfg.Channels.Web.Port != 3000 {
		t.Errorf("port = %d, want 3000", cfg.Channels.Web.Port)
	}

	val, err := GetByPath(cfg, "scheduler.defaultDurationMinutes")
	if err != nil {
		t.Fatalf("GetByPath: %v", err)
	}
	if n, ok := val.(float64); !ok || n != 30 {
		t.Errorf("defaultDurationMinutes = %v, want 30", val)
	}
}

func TestSanitizeMasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Calendar.APIKey = "super-secret-key-value"
	cfg.Channels.Telegram.Token = "123456:ABCDEFtoken"

	clean := Sanitize(cfg)
	if clean.Calendar.APIKey == cfg.Calendar.APIKey {
		t.Error("calendar apiKey was not masked")
	}
	if clean.Channels.Telegram.Token == cfg.Channels.Telegram.Token {
		t.Error("telegram token was not masked")
	}
	// Original untouched.
	if cfg.Calendar.APIKey != "super-secret-key-value" {
		t.Error("Sanitize mutated the original config")
	}
}
