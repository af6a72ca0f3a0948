package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
server:
  address: "127.0.0.1"
  port: 9090
  db_path: "/var/lib/msgd"
security:
  cors:
    allowed_origins: ["https://app.example.com"]
  rate_limit:
    rps: 7.5
    burst: 20
  signing_keys: ["s1", "s2"]
  master_key_hex: "ab"
moderation:
  denylist: ["idiot", "stupid"]
  ban_threshold: 3
  ban_day_factor: 2
limits:
  max_plaintext: 64KB
logging:
  level: debug
sweep:
  enabled: true
  cron: "0 2 * * *"
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr() != "127.0.0.1:9090" {
		t.Fatalf("Addr = %q", cfg.Addr())
	}
	if cfg.Server.DBPath != "/var/lib/msgd" {
		t.Fatalf("DBPath = %q", cfg.Server.DBPath)
	}
	if cfg.Security.RateLimit.RPS != 7.5 || cfg.Security.RateLimit.Burst != 20 {
		t.Fatalf("rate limit = %v/%v", cfg.Security.RateLimit.RPS, cfg.Security.RateLimit.Burst)
	}
	if len(cfg.Security.SigningKeys) != 2 {
		t.Fatalf("signing keys = %v", cfg.Security.SigningKeys)
	}
	if cfg.Moderation.BanThreshold != 3 || cfg.Moderation.BanDayFactor != 2 {
		t.Fatalf("moderation = %+v", cfg.Moderation)
	}
	if got := int64(cfg.Limits.MaxPlaintext); got != 64000 {
		t.Fatalf("max_plaintext = %d, want 64000", got)
	}
	if !cfg.Sweep.Enabled || cfg.Sweep.Cron != "0 2 * * *" {
		t.Fatalf("sweep = %+v", cfg.Sweep)
	}
}

func TestSizeBytesForms(t *testing.T) {
	cases := map[string]int64{
		"max_plaintext: 1024":  1024,
		"max_plaintext: 64KiB": 64 * 1024,
		"max_plaintext: 1MB":   1000 * 1000,
	}
	for in, want := range cases {
		cfg, err := Load(writeConfig(t, "limits:\n  "+in+"\n"))
		if err != nil {
			t.Fatalf("Load(%q): %v", in, err)
		}
		if got := int64(cfg.Limits.MaxPlaintext); got != want {
			t.Errorf("%q = %d, want %d", in, got, want)
		}
	}
}

func TestAddrDefaults(t *testing.T) {
	var cfg Config
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Fatalf("default Addr = %q", cfg.Addr())
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MSGD_ADDR", "10.1.2.3:7000")
	t.Setenv("MSGD_DB_PATH", "/tmp/env-db")
	t.Setenv("MSGD_RATE_RPS", "2.5")
	t.Setenv("MSGD_RATE_BURST", "4")
	t.Setenv("MSGD_SIGNING_KEYS", "k1, k2,")
	t.Setenv("MSGD_DENYLIST", "spam,scam")
	t.Setenv("MSGD_LOG_LEVEL", "warn")

	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	if !LoadEnvOverrides(cfg) {
		t.Fatal("env overrides not detected")
	}
	if cfg.Addr() != "10.1.2.3:7000" {
		t.Fatalf("Addr = %q", cfg.Addr())
	}
	if cfg.Server.DBPath != "/tmp/env-db" {
		t.Fatalf("DBPath = %q", cfg.Server.DBPath)
	}
	if cfg.Security.RateLimit.RPS != 2.5 || cfg.Security.RateLimit.Burst != 4 {
		t.Fatalf("rate limit = %v/%v", cfg.Security.RateLimit.RPS, cfg.Security.RateLimit.Burst)
	}
	if len(cfg.Security.SigningKeys) != 2 || cfg.Security.SigningKeys[0] != "k1" {
		t.Fatalf("signing keys = %v", cfg.Security.SigningKeys)
	}
	if len(cfg.Moderation.Denylist) != 2 || cfg.Moderation.Denylist[1] != "scam" {
		t.Fatalf("denylist = %v", cfg.Moderation.Denylist)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("level = %q", cfg.Logging.Level)
	}
}

func TestLoadEffectiveMissingFile(t *testing.T) {
	cfg, _, err := LoadEffective(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadEffective: %v", err)
	}
	if cfg == nil {
		t.Fatal("nil config")
	}
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Fatalf("Addr = %q", cfg.Addr())
	}
}

func TestResolveConfigPath(t *testing.T) {
	if got := ResolveConfigPath("/flag.yaml", true); got != "/flag.yaml" {
		t.Fatalf("flag set: %q", got)
	}
	t.Setenv("MSGD_CONFIG", "/env.yaml")
	if got := ResolveConfigPath("/flag.yaml", false); got != "/env.yaml" {
		t.Fatalf("env fallback: %q", got)
	}
}
