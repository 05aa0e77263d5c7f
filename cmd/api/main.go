package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/freddynasr/trailtailor/internal/app"
	"github.com/freddynasr/trailtailor/internal/blob"
	"github.com/freddynasr/trailtailor/internal/config"
	"github.com/freddynasr/trailtailor/internal/draft"
	"github.com/freddynasr/trailtailor/internal/gitrepo"
	"github.com/freddynasr/trailtailor/internal/search"
	"github.com/freddynasr/trailtailor/internal/store"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	applied, err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir)
	if err != nil {
		log.Fatalf("migrations failed: %v", err)
	}
	if len(applied) > 0 {
		log.Printf("applied migrations: %s", strings.Join(applied, ", "))
	}

	if err := os.MkdirAll(cfg.ReposDir, 0o755); err != nil {
		log.Fatalf("failed to create repos dir: %v", err)
	}

	dataStore := store.NewPostgresStore(db)
	gitService := gitrepo.New(cfg.ReposDir)

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgfts)
	go searchService.ReindexAllFromPG(ctx)

	opts := []app.Option{app.WithSearch(searchService)}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		drafts, err := draft.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Printf("WARNING: draft store unavailable, unsaved edits will not be recoverable: %v", err)
		} else {
			defer drafts.Close()
			opts = append(opts, app.WithDrafts(drafts))
		}
	}

	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		archive, err := blob.New(ctx, blob.Options{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			log.Printf("WARNING: publish archive unavailable: %v", err)
		} else {
			opts = append(opts, app.WithArchive(archive))
		}
	}

	service := app.New(cfg, dataStore, gitService, opts...)
	if cfg.SessionIdle > 0 {
		go service.RunReaper(ctx, time.Minute)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Trailtailor API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
