package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
addr = ":9100"
db_path = "custom.db"

[engine]
max_rounds = 5
turn_delay_ms = 100

[video]
endpoint = "https://render.example.com/generate"
retries = 3
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":9100" || cfg.Server.DBPath != "custom.db" {
		t.Fatalf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Engine.MaxRounds != 5 {
		t.Fatalf("unexpected engine config: %+v", cfg.Engine)
	}
	if cfg.Engine.TurnDelay() != 100*time.Millisecond {
		t.Fatalf("unexpected turn delay: %v", cfg.Engine.TurnDelay())
	}
	if cfg.Video.Endpoint != "https://render.example.com/generate" || cfg.Video.Retries != 3 {
		t.Fatalf("unexpected video config: %+v", cfg.Video)
	}
	// Sections absent from the file keep defaults.
	if cfg.Server.OutputsDir != filepath.Join("outputs", "videos") {
		t.Fatalf("unexpected outputs dir: %s", cfg.Server.OutputsDir)
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatalf("explicit missing file should fail")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Server.Addr != ":8000" {
		t.Fatalf("unexpected default addr: %s", cfg.Server.Addr)
	}
	if cfg.Engine.MaxRounds != 3 || cfg.Engine.TurnDelay() != 800*time.Millisecond {
		t.Fatalf("unexpected engine defaults: %+v", cfg.Engine)
	}
	if cfg.Video.Timeout() != 0 {
		t.Fatalf("video timeout should default to zero: %v", cfg.Video.Timeout())
	}
}

func TestAPIURLEnvOverride(t *testing.T) {
	t.Setenv(APIURLEnv, "http://staging.example.com:8000/")
	if got := APIURL(); got != "http://staging.example.com:8000" {
		t.Fatalf("unexpected api url: %s", got)
	}

	t.Setenv(APIURLEnv, "")
	if got := APIURL(); got != DefaultAPIURL {
		t.Fatalf("expected default url, got %s", got)
	}
}
