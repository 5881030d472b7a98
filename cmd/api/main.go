package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/girderhq/girder/internal/auth"
	"github.com/girderhq/girder/internal/config"
	"github.com/girderhq/girder/internal/httpapi"
	"github.com/girderhq/girder/internal/obs"
)

var (
	version = "0.4.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := sql.Open("pgx", cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	defer db.Close()

	var blacklist auth.Blacklist
	if cfg.RedisURL != "" {
		rb, err := auth.NewRedisBlacklist(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis blacklist: %v", err)
		}
		defer rb.Close()
		blacklist = rb
	} else {
		blacklist = auth.NewMemoryBlacklist()
	}

	tokens, err := auth.NewTokenService(cfg.Auth.Secret,
		auth.WithIssuer(cfg.Auth.Issuer),
		auth.WithAccessTTL(cfg.Auth.AccessTTL),
		auth.WithRefreshTTL(cfg.Auth.RefreshTTL),
	)
	if err != nil {
		log.Fatalf("token service: %v", err)
	}

	store := auth.NewPGStore(db)
	sessions, err := auth.NewService(store, tokens, blacklist)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}
	rbac, err := auth.NewRBACService(store, auth.NewCatalog())
	if err != nil {
		log.Fatalf("rbac service: %v", err)
	}
	projects, err := auth.NewProjectAccess(store)
	if err != nil {
		log.Fatalf("project access: %v", err)
	}

	api := httpapi.New(sessions, rbac, projects, httpapi.Config{
		AccessCookie:  cfg.Auth.AccessCookie,
		RefreshCookie: cfg.Auth.RefreshCookie,
		SecureCookies: cfg.Production,
		AccessTTL:     cfg.Auth.AccessTTL,
		RefreshTTL:    cfg.Auth.RefreshTTL,
		MaxBodyBytes:  cfg.Server.MaxBodyBytes,
		RateBurst:     cfg.Server.RateBurst,
		RatePerSecond: cfg.Server.RatePerSecond,
	}, httpapi.ReadyProbe{DB: db}, version)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	log.Printf("Starting girder-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}
