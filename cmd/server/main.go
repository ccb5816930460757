package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/majisafe/bridge/internal/anchor"
	"github.com/majisafe/bridge/internal/api"
	"github.com/majisafe/bridge/internal/asset"
	"github.com/majisafe/bridge/internal/config"
	"github.com/majisafe/bridge/internal/dkg"
	"github.com/majisafe/bridge/internal/pipeline"
	"github.com/majisafe/bridge/internal/pump"
	"github.com/majisafe/bridge/internal/repository"
	"github.com/majisafe/bridge/internal/session"
	"github.com/majisafe/bridge/internal/verify"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Initializing database at %s", cfg.DBPath)
	db, err := repository.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init DB: %v", err)
	}
	defer db.Close()

	eventRepo := repository.NewEventRepo(db)

	// Outbound clients.
	dkgClient := dkg.NewClient(cfg.DKGNodeURL, cfg.DKGTimeout)
	pumpClient := pump.NewClient(cfg.PumpControllerURL, cfg.PumpTimeout)

	var chain pipeline.ChainSubmitter
	if cfg.ChainRPCURL != "" {
		chain = anchor.NewChainClient(cfg.ChainRPCURL, cfg.ChainTimeout)
	} else {
		log.Println("[main] CHAIN_RPC_URL not set, on-chain anchoring disabled")
	}

	tracker := session.NewTracker(cfg.SessionIdleExpiry)
	builder := asset.NewBuilder()

	svc := pipeline.NewService(tracker, builder, dkgClient, chain, pumpClient, eventRepo, pipeline.Options{
		MinSettlementValue: cfg.MinSettlementValue,
		DispenseLiters:     cfg.DispenseLiters,
		DispenseSeconds:    cfg.DispenseSeconds,
		PublishRetries:     cfg.PublishRetries,
		PublishBackoff:     cfg.PublishBackoff,
	})

	verifier, err := verify.New(eventRepo, dkgClient, cfg.VerifyCacheSize)
	if err != nil {
		log.Fatalf("Failed to create verifier: %v", err)
	}

	router := api.NewRouter(svc, eventRepo, verifier, cfg.DKGNodeURL, cfg.Origins())

	log.Printf("MajiSafe Payment-to-Dispense Bridge")
	log.Printf("Listening on http://localhost:%s", cfg.ServerPort)
	log.Printf("API base: http://localhost:%s/api/v1", cfg.ServerPort)
	log.Printf("")
	log.Printf("Endpoints:")
	log.Printf("  POST   /api/v1/sms")
	log.Printf("  POST   /api/v1/confirmations")
	log.Printf("  GET    /api/v1/session")
	log.Printf("  GET    /api/v1/events")
	log.Printf("  POST   /api/v1/events/{eventID}/anchor")
	log.Printf("  GET    /api/v1/verify")
	log.Printf("  GET    /api/v1/status")

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited")
}
