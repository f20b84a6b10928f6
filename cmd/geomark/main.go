package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/geomark-app/geomark/internal/achievement"
	"github.com/geomark-app/geomark/internal/blockchain"
	"github.com/geomark-app/geomark/internal/collection"
	"github.com/geomark-app/geomark/internal/config"
	"github.com/geomark-app/geomark/internal/http_api"
	"github.com/geomark-app/geomark/internal/ledger"
	"github.com/geomark-app/geomark/internal/mint"
	"github.com/geomark-app/geomark/internal/notificator"
	"github.com/geomark-app/geomark/internal/repository"
	"github.com/geomark-app/geomark/internal/risk"
	"github.com/geomark-app/geomark/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "geomark",
		Usage: "Geomark is a location-based collectible game backend",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "postgres-user", Aliases: []string{"u"}, Usage: "Postgres user"},
			&cli.StringFlag{Name: "postgres-password", Aliases: []string{"p"}, Usage: "Postgres password"},
			&cli.StringFlag{Name: "postgres-host", Aliases: []string{"t"}, Usage: "Postgres host"},
			&cli.IntFlag{Name: "postgres-port", Aliases: []string{"P"}, Usage: "Postgres port"},
			&cli.StringFlag{Name: "postgres-db", Aliases: []string{"d"}, Usage: "Postgres database name"},
			&cli.IntFlag{Name: "api-port", Aliases: []string{"a"}, Usage: "HTTP API port"},
			&cli.BoolFlag{Name: "chain-enabled", Aliases: []string{"c"}, Usage: "Enable on-chain minting"},
			&cli.StringFlag{Name: "chain-rpc-url", Aliases: []string{"r"}, Usage: "Core RPC URL"},
			&cli.StringFlag{Name: "collectible-contract-address", Aliases: []string{"s"}, Usage: "Collectible contract address"},
			&cli.BoolFlag{Name: "development", Aliases: []string{"D"}, Usage: "Development mode"},
		},
		Action: func(c *cli.Context) error {
			return run(c)
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	// Override with flags if set
	if c.IsSet("postgres-user") {
		cfg.PostgresUser = c.String("postgres-user")
	}
	if c.IsSet("postgres-password") {
		cfg.PostgresPassword = c.String("postgres-password")
	}
	if c.IsSet("postgres-host") {
		cfg.PostgresHost = c.String("postgres-host")
	}
	if c.IsSet("postgres-port") {
		cfg.PostgresPort = c.Int("postgres-port")
	}
	if c.IsSet("postgres-db") {
		cfg.PostgresDB = c.String("postgres-db")
	}
	if c.IsSet("api-port") {
		cfg.APIPort = c.Int("api-port")
	}
	if c.IsSet("chain-enabled") {
		cfg.ChainEnabled = c.Bool("chain-enabled")
	}
	if c.IsSet("chain-rpc-url") {
		cfg.ChainRPCURL = c.String("chain-rpc-url")
	}
	if c.IsSet("collectible-contract-address") {
		cfg.CollectibleContractAddress = c.String("collectible-contract-address")
	}
	if c.IsSet("development") {
		cfg.Development = c.Bool("development")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %v", err)
	}

	// Initialize logger
	logg, err := logger.NewLogger(cfg.Development)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %v", err)
	}

	// Initialize database
	db, err := repository.NewPostgresDB(cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDB, cfg.PostgresHost, cfg.PostgresPort, logg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %v", err)
	}

	// Initialize chain client
	chain := blockchain.NewGocore(cfg, logg)
	if err := chain.Run(); err != nil {
		return fmt.Errorf("failed to start the chain client: %v", err)
	}

	// Initialize operator alerting
	alerts := notificator.NewNotificator(logg, cfg)

	// Initialize services
	cache := risk.NewLocationCache(risk.DefaultEntryTTL)
	verifier := risk.NewVerifier(cache, logg)
	ledgerService := ledger.NewService(db, logg)
	evaluator := achievement.NewEvaluator(db, ledgerService, logg)
	orchestrator := collection.NewOrchestrator(db, verifier, ledgerService, evaluator, logg)
	coordinator := mint.NewCoordinator(db, chain, alerts, logg, mint.Options{
		PickupInterval:    cfg.MintPickupInterval,
		ConfirmAttempts:   cfg.MintConfirmAttempts,
		ConfirmBackoff:    cfg.MintConfirmBackoff,
		ReconcileInterval: cfg.MintReconcileInterval,
	})

	// Initialize API server
	apiServer := http_api.NewHTTPServer(orchestrator, ledgerService, cfg.APIPort, logg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	coordinator.Start(ctx)
	go apiServer.Start()

	<-ctx.Done()
	logg.Info("Shutting down...")

	if err := apiServer.Shutdown(); err != nil {
		logg.Error("Failed to shut down the HTTP server: ", err)
	}
	cache.Stop()
	if err := chain.Close(); err != nil {
		logg.Error("Failed to close the chain client: ", err)
	}
	if err := db.Close(); err != nil {
		logg.Error("Failed to close the database: ", err)
	}

	return nil
}
