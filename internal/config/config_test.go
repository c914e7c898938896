package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"MODE", "HTTP_ADDR", "BACKEND", "DB_DRIVER", "ACCESS_TTL"} {
		t.Setenv(k, "")
	}
	cfg := FromEnv(Config{})
	if cfg.Mode != ModeOffline {
		t.Fatalf("mode = %q, want offline", cfg.Mode)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("addr = %q", cfg.HTTPAddr)
	}
	if cfg.Backend != BackendSQL || cfg.DBDriver != "sqlite" {
		t.Fatalf("backend = %q driver = %q", cfg.Backend, cfg.DBDriver)
	}
	if cfg.AccessTTL != time.Hour {
		t.Fatalf("access ttl = %v", cfg.AccessTTL)
	}
	if got := cfg.CORSOrigins(); len(got) != 2 {
		t.Fatalf("offline origins = %v", got)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tq.yaml")
	body := []byte(`
mode: online
backend: supabase
supabase_url: https://proj.supabase.co/
supabase_anon_key: anon
access_ttl: 15m
cors_origins_online: ["https://a.example", "https://b.example"]
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("MODE", "")
	t.Setenv("BACKEND", "")
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("ACCESS_TTL", "")
	t.Setenv("CORS_ORIGINS_ONLINE", "")
	t.Setenv("SUPABASE_ANON_KEY", "from-env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != ModeOnline || cfg.Backend != BackendSupabase {
		t.Fatalf("mode=%q backend=%q", cfg.Mode, cfg.Backend)
	}
	if cfg.SupabaseURL != "https://proj.supabase.co" {
		t.Fatalf("supabase url = %q", cfg.SupabaseURL)
	}
	if cfg.SupabaseAnonKey != "from-env" {
		t.Fatalf("env should override file, got %q", cfg.SupabaseAnonKey)
	}
	if cfg.AccessTTL != 15*time.Minute {
		t.Fatalf("access ttl = %v", cfg.AccessTTL)
	}
	if got := cfg.CORSOrigins(); len(got) != 2 || got[1] != "https://b.example" {
		t.Fatalf("online origins = %v", got)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
