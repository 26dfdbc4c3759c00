package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseDotEnv(t *testing.T) {
	values, err := parseDotEnv(strings.NewReader(`
# comment

A=one
export B=two
C="three"
D='hello world'
E=value # trailing comment
not a pair
=orphan
`))
	if err != nil {
		t.Fatalf("parseDotEnv: %v", err)
	}

	want := map[string]string{"A": "one", "B": "two", "C": "three", "D": "hello world", "E": "value"}
	if len(values) != len(want) {
		t.Fatalf("got %d values, want %d: %v", len(values), len(want), values)
	}
	for k, v := range want {
		if values[k] != v {
			t.Fatalf("%s=%q, want %q", k, values[k], v)
		}
	}
}

func TestLoadDotEnv_DoesNotOverwriteExistingEnv(t *testing.T) {
	t.Setenv("KEEP", "already")
	t.Setenv("FILL", "")

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("KEEP=fromfile\nFILL=fromfile\n"), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}

	if err := loadDotEnv(path); err != nil {
		t.Fatalf("loadDotEnv: %v", err)
	}

	if got := os.Getenv("KEEP"); got != "already" {
		t.Fatalf("KEEP=%q, want %q", got, "already")
	}
	if got := os.Getenv("FILL"); got != "fromfile" {
		t.Fatalf("FILL=%q, want %q", got, "fromfile")
	}
}

func TestLoadDotEnv_MissingFileIsIgnored(t *testing.T) {
	if err := loadDotEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("loadDotEnv: %v", err)
	}
}

func TestLoad_DefaultsAndOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("APP_ENV", "")
	t.Setenv("PORT", "9090")
	t.Setenv("STATUS_TTL", "2s")
	t.Setenv("REDIS_ADDR", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "9090" {
		t.Fatalf("Port=%q, want 9090", cfg.Port)
	}
	if cfg.StatusTTL != 2*time.Second {
		t.Fatalf("StatusTTL=%v, want 2s", cfg.StatusTTL)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Fatalf("SessionTTL=%v, want 24h", cfg.SessionTTL)
	}
	if !cfg.IsDev() {
		t.Fatalf("expected dev mode by default")
	}
}

func TestLoad_RejectsBadDuration(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STATUS_TTL", "soon")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid STATUS_TTL")
	}
}
