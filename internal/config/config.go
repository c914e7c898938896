package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// Backend selects the remote store implementation.
type Backend string

const (
	BackendSQL      Backend = "sql"
	BackendSupabase Backend = "supabase"
)

type Config struct {
	Mode      Mode   `yaml:"mode"`
	HTTPAddr  string `yaml:"http_addr"`
	PublicURL string `yaml:"public_url"`

	Backend Backend `yaml:"backend"`

	DBDriver string `yaml:"db_driver"`
	DBDSN    string `yaml:"db_dsn"`

	// sqlstore token signing
	AuthHMACSecret string        `yaml:"auth_hmac_secret"`
	AccessTTL      time.Duration `yaml:"access_ttl"`
	RefreshTTL     time.Duration `yaml:"refresh_ttl"`

	SupabaseURL       string `yaml:"supabase_url"`
	SupabaseAnonKey   string `yaml:"supabase_anon_key"`
	SupabaseJWTSecret string `yaml:"supabase_jwt_secret"`

	BlobBasePath  string `yaml:"blob_base_path"`
	BlobPublicURL string `yaml:"blob_public_url"` // prefix for avatar URLs

	CORSOriginsOnline  []string `yaml:"cors_origins_online"`
	CORSOriginsOffline []string `yaml:"cors_origins_offline"`

	RemoteTimeout time.Duration `yaml:"remote_timeout"`

	EnableGoogleAuth   bool   `yaml:"enable_google_auth"`
	GoogleClientID     string `yaml:"google_client_id"`
	GoogleClientSecret string `yaml:"google_client_secret"`
	GoogleRedirectURI  string `yaml:"google_redirect_uri"`
}

// Load reads the optional YAML file named by CONFIG_FILE and then applies
// environment variables on top of it.
func Load() (Config, error) {
	base := Config{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		fc, err := LoadFile(path)
		if err != nil {
			return Config{}, err
		}
		base = *fc
	}
	return FromEnv(base), nil
}

func LoadFile(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := &Config{}
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", filename, err)
	}
	return cfg, nil
}

// FromEnv fills cfg from the environment. Values already present in cfg act
// as defaults that the environment may override.
func FromEnv(cfg Config) Config {
	mode := Mode(envOr("MODE", string(cfg.Mode)))
	if mode == "" {
		mode = ModeOffline
	}
	pub := envOr("PUBLIC_URL", cfg.PublicURL)

	backend := Backend(envOr("BACKEND", string(cfg.Backend)))
	if backend == "" {
		backend = BackendSQL
	}

	return Config{
		Mode:      mode,
		HTTPAddr:  envOr("HTTP_ADDR", orStr(cfg.HTTPAddr, ":8080")),
		PublicURL: pub,
		Backend:   backend,

		DBDriver: envOr("DB_DRIVER", orStr(cfg.DBDriver, "sqlite")),
		DBDSN:    envOr("DB_DSN", cfg.DBDSN),

		AuthHMACSecret: envOr("AUTH_HMAC_SECRET", orStr(cfg.AuthHMACSecret, "supersecret-dev-key")),
		AccessTTL:      envDuration("ACCESS_TTL", orDur(cfg.AccessTTL, time.Hour)),
		RefreshTTL:     envDuration("REFRESH_TTL", orDur(cfg.RefreshTTL, 30*24*time.Hour)),

		SupabaseURL:       strings.TrimSuffix(envOr("SUPABASE_URL", cfg.SupabaseURL), "/"),
		SupabaseAnonKey:   envOr("SUPABASE_ANON_KEY", cfg.SupabaseAnonKey),
		SupabaseJWTSecret: envOr("SUPABASE_JWT_SECRET", cfg.SupabaseJWTSecret),

		BlobBasePath:  envOr("BLOB_BASE_PATH", orStr(cfg.BlobBasePath, "./data")),
		BlobPublicURL: envOr("BLOB_PUBLIC_URL", orStr(cfg.BlobPublicURL, strings.TrimSuffix(pub, "/")+"/blobs")),

		CORSOriginsOnline:  csvOr("CORS_ORIGINS_ONLINE", orList(cfg.CORSOriginsOnline, "https://tq-random.app")),
		CORSOriginsOffline: csvOr("CORS_ORIGINS_OFFLINE", orList(cfg.CORSOriginsOffline, "http://localhost:5173,http://localhost:3000")),

		RemoteTimeout: envDuration("REMOTE_TIMEOUT", orDur(cfg.RemoteTimeout, 10*time.Second)),

		EnableGoogleAuth:   envBool("ENABLE_GOOGLE_AUTH", cfg.EnableGoogleAuth),
		GoogleClientID:     envOr("GOOGLE_CLIENT_ID", cfg.GoogleClientID),
		GoogleClientSecret: envOr("GOOGLE_CLIENT_SECRET", cfg.GoogleClientSecret),
		GoogleRedirectURI:  envOr("GOOGLE_REDIRECT_URI", orStr(cfg.GoogleRedirectURI, strings.TrimSuffix(pub, "/")+"/api/auth/google/callback")),
	}
}

// CORSOrigins returns the allow-list for the active mode.
func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func envDuration(k string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(k)); err == nil && d > 0 {
		return d
	}
	return def
}
func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func orStr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
func orDur(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
func orList(v []string, def string) string {
	if len(v) == 0 {
		return def
	}
	return strings.Join(v, ",")
}
