package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"vitals-scan-be/internal/bootstrap"
	"vitals-scan-be/internal/config"
	"vitals-scan-be/internal/server"
	"vitals-scan-be/internal/tracer"
)

func main() {
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.Vitals.LicenseKey == "" {
		log.Println("[WARN] VITALS_LICENSE_KEY is not set; every measurement will fail with a configuration error")
	}

	container := bootstrap.NewContainer(cfg)
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := container.ConsumerService.Consume(ctx); err != nil {
		log.Fatalf("Failed to start results consumer: %v", err)
	}
	if container.AuditService != nil {
		if err := container.AuditService.Start(); err != nil {
			log.Printf("[WARN] Audit subscriber not running: %v", err)
		}
	}

	srv := server.New(cfg, container)
	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		if err := srv.Shutdown(); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	if err := srv.Run(); err != nil {
		log.Printf("Server stopped: %v", err)
	}
}
