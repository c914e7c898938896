package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/tq-random/tq-random/internal/account"
	api "github.com/tq-random/tq-random/internal/api/http"
	"github.com/tq-random/tq-random/internal/auth"
	authmw "github.com/tq-random/tq-random/internal/auth/middleware"
	"github.com/tq-random/tq-random/internal/config"
	"github.com/tq-random/tq-random/internal/db"
	"github.com/tq-random/tq-random/internal/guard"
	"github.com/tq-random/tq-random/internal/quiz"
	"github.com/tq-random/tq-random/internal/remote"
	"github.com/tq-random/tq-random/internal/remote/sqlstore"
	"github.com/tq-random/tq-random/internal/remote/supabase"
	"github.com/tq-random/tq-random/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	backend, blobs, local, ready := openBackend(cfg)

	routes, err := guard.NewRoutes(guard.DefaultRoutes())
	if err != nil {
		log.Fatalf("routes: %v", err)
	}

	deps := api.Deps{
		Backend:    backend,
		Quiz:       quiz.NewService(backend),
		Accounts:   account.NewService(backend, backend, blobs),
		Navigators: guard.NewNavigators(guard.New(routes)),
	}
	if local {
		deps.LocalBlobs = blobs
	}
	if cfg.EnableGoogleAuth {
		deps.Google = auth.NewGoogle(auth.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURI,
			PublicURL:    cfg.PublicURL,
		}, backend)
	}

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", api.NavSessionHeader},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	api.Mount(r, deps)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := ready(ctx); err != nil {
			log.Printf("readyz: %v", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
	})

	log.Printf("listening on %s (mode=%s, backend=%s)", cfg.HTTPAddr, cfg.Mode, cfg.Backend)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}

// openBackend builds the remote store and blob store for cfg. local
// reports whether blobs are served by this process.
func openBackend(cfg config.Config) (remote.Backend, storage.BlobStore, bool, func(context.Context) error) {
	switch cfg.Backend {
	case config.BackendSupabase:
		if cfg.SupabaseURL == "" || cfg.SupabaseAnonKey == "" {
			log.Fatalf("supabase backend needs SUPABASE_URL and SUPABASE_ANON_KEY")
		}
		c := supabase.New(cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.SupabaseJWTSecret, cfg.RemoteTimeout)
		return c, c.Storage(), false, func(context.Context) error { return nil }

	case config.BackendSQL:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
		if err != nil {
			log.Fatalf("db open failed: %v", err)
		}
		bs, err := storage.NewFSStore(cfg.BlobBasePath, cfg.BlobPublicURL)
		if err != nil {
			log.Fatalf("blob store: %v", err)
		}
		store := sqlstore.New(dbh, authmw.NewAuthService(cfg.AuthHMACSecret), cfg.AccessTTL, cfg.RefreshTTL)
		return store, bs, true, dbh.PingContext
	}
	log.Fatalf("unknown backend %q", cfg.Backend)
	return nil, nil, false, nil
}
