package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"invoicing-session-control/internal/api"
	"invoicing-session-control/internal/config"
	"invoicing-session-control/internal/db"
	"invoicing-session-control/internal/events"
	"invoicing-session-control/internal/events/producer"
	licenserepo "invoicing-session-control/internal/license/repository"
	licenseservice "invoicing-session-control/internal/license/service"
	"invoicing-session-control/internal/security"
	sessionrepo "invoicing-session-control/internal/session/repository"
	sessionservice "invoicing-session-control/internal/session/service"
	"invoicing-session-control/internal/telemetry/otel"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, "invoicing-session-control", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Printf("otel shutdown: %v", err)
		}
	}()

	var emitter events.Emitter
	if brokers := cfg.SessionEventBrokersList(); len(brokers) > 0 {
		kafkaProducer, err := producer.NewKafkaProducer(brokers, cfg.SessionEventTopic)
		if err != nil {
			log.Fatalf("kafka producer: %v", err)
		}
		defer kafkaProducer.Close()
		emitter = kafkaProducer
		log.Printf("session events -> kafka topic %s", cfg.SessionEventTopic)
	} else if cfg.OTLPEndpoint != "" {
		emitter = otel.NewEventEmitter(providers.LoggerProvider)
		log.Println("session events -> OTLP log export")
	} else {
		log.Println("KAFKA_BROKERS not set; session events disabled")
	}

	licenses := licenseservice.NewRegistry(licenserepo.NewPostgresRepository(conn), cfg.DefaultMaxLogins)
	sessions := sessionrepo.NewPostgresRepository(conn)
	reaper := sessionservice.NewReaper(sessions, cfg.StaleThresholdDuration(), emitter)
	admission := sessionservice.NewAdmissionController(sessions, licenses, reaper, emitter)

	var verifier *security.TokenVerifier
	if cfg.JWTPublicKey != "" {
		key, err := security.ParsePublicKey(cfg.JWTPublicKey)
		if err != nil {
			log.Fatalf("jwt public key: %v", err)
		}
		verifier = security.NewTokenVerifier(key, cfg.JWTIssuer, cfg.JWTAudience)
	} else {
		log.Println("JWT_PUBLIC_KEY not set; request authentication disabled")
	}

	handler := api.NewHandler(admission, sessions, licenses, conn)
	router := handler.SetupRoutes(verifier)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	// Background sweep so stale seats free up even when no admissions arrive.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.ReapIntervalDuration())
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				reapCtx, reapCancel := context.WithTimeout(gctx, 30*time.Second)
				if _, err := reaper.Reap(reapCtx); err != nil {
					log.Printf("background reap: %v", err)
				}
				reapCancel()
			}
		}
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		select {
		case <-quit:
		case <-gctx.Done():
			return nil
		}
		log.Println("shutting down HTTP server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		cancel()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server: %v", err)
	}

	// Give in-flight async event emits a moment to land before the producer closes.
	time.Sleep(events.ShutdownDrainDuration)
	log.Println("HTTP server stopped")
}
