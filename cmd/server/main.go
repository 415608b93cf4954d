// Command server runs the reelshare collection API.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reelshare/internal/bootstrap"
	"reelshare/internal/config"
	"reelshare/internal/seed"
	"reelshare/internal/server"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	flushTraces, err := bootstrap.InitObservability(cfg, "reelshare-api", os.Stdout)
	if err != nil {
		log.Fatalf("Failed to initialize observability: %v", err)
	}

	ctx := context.Background()
	db, rdb, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{
		SeedIfEmpty: true,
		SeedOptions: seed.DefaultOptions,
	})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	srv, err := server.NewServerWithDeps(cfg, db, rdb)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server resource shutdown error: %v", err)
		}
		if err := flushTraces(ctx); err != nil {
			log.Printf("Trace flush error: %v", err)
		}
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
