package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"moneybee/internal/common"
	"moneybee/internal/config"
	"moneybee/internal/transfer"
)

// One-shot operator tool: re-derive the cascade for one customer from their
// current status, recovering from missed bus deliveries.
func main() {
	customerFlag := flag.String("customer", "", "Customer id (uuid) to reconcile")
	flag.Parse()

	if *customerFlag == "" {
		fmt.Println("Usage: reconcile -customer <uuid>")
		os.Exit(1)
	}
	customerID, err := uuid.Parse(*customerFlag)
	if err != nil {
		fmt.Printf("Invalid customer id %q: %v\n", *customerFlag, err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	_, loggerCleanup := common.InitializeLogger(cfg.LogLevel)
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	customers, fraud, rates, _, err := common.InitializeClients(cfg.Collaborators)
	if err != nil {
		zap.L().Fatal("Failed to initialize collaborator clients", zap.Error(err))
	}

	engine, err := transfer.NewService(transfer.Config{
		Store:     services.Store,
		Locks:     services.Locks,
		Publisher: services.Publisher,
		Customers: customers,
		Fraud:     fraud,
		Rates:     rates,
		Engine:    cfg.Engine,
	})
	if err != nil {
		zap.L().Fatal("Failed to build transfer engine", zap.Error(err))
	}

	common.PrintHeader(fmt.Sprintf("Reconciling customer %s", customerID), common.DefaultWidth)

	cancelled, err := engine.ReconcileCustomer(ctx, customerID)
	if err != nil {
		zap.L().Fatal("Reconciliation failed", zap.Error(err))
	}

	common.PrintFooter(fmt.Sprintf("Done: %d pending transfer(s) cancelled", cancelled), common.DefaultWidth)
}
