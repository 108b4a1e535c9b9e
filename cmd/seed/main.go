// Package main provides a CLI tool for seeding the database with demo data:
// two clients, a project and a draft quote.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"docflow/internal/config"
	"docflow/internal/domain"
	"docflow/internal/domain/catalogs/client"
	"docflow/internal/domain/catalogs/project"
	"docflow/internal/domain/documents"
	"docflow/internal/infrastructure/numerator"
	"docflow/internal/infrastructure/storage/postgres"
	"docflow/internal/infrastructure/storage/postgres/catalog_repo"
	"docflow/internal/infrastructure/storage/postgres/document_repo"
	"docflow/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
		Service:     "docflow-seed",
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalw("failed to load config", "error", err)
	}

	ctx := logger.WithLogger(context.Background(), log)

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("connected to database")

	txm := postgres.NewTxManager(pool)
	clients := client.NewService(catalog_repo.NewClientRepo(txm), txm)
	projects := project.NewService(catalog_repo.NewProjectRepo(txm), clients, txm)
	docs := documents.NewService(documents.Config{
		Repo:      document_repo.NewDocumentRepo(txm),
		Payments:  document_repo.NewPaymentRepo(txm),
		Clients:   clients,
		Projects:  projects,
		Numerator: numerator.New(func(ctx context.Context) numerator.Querier { return txm.GetQuerier(ctx) }),
		TxManager: txm,
	})

	existing, err := clients.List(ctx, domain.ListFilter{Limit: 1})
	if err != nil {
		log.Fatalw("failed to list clients", "error", err)
	}
	if existing.TotalCount > 0 {
		log.Infow("database already has clients, skipping seed", "count", existing.TotalCount)
		return
	}

	if err := seedDemoData(ctx, clients, projects, docs, log); err != nil {
		log.Fatalw("failed to seed demo data", "error", err)
	}
	log.Info("seeding completed successfully")
}

func seedDemoData(ctx context.Context, clients *client.Service, projects *project.Service, docs *documents.Service, log *logger.Logger) error {
	acme := client.NewClient("Acme Industries")
	acme.City = strPtr("Casablanca")
	acme.TaxID = strPtr("001234567000089")
	acme.Email = strPtr("purchasing@acme.example")
	if err := clients.Create(ctx, acme); err != nil {
		return fmt.Errorf("create client %s: %w", acme.Name, err)
	}

	atlas := client.NewClient("Atlas Logistics")
	atlas.City = strPtr("Tangier")
	if err := clients.Create(ctx, atlas); err != nil {
		return fmt.Errorf("create client %s: %w", atlas.Name, err)
	}

	warehouse := project.NewProject("Warehouse extension", acme.ID)
	if err := projects.Create(ctx, warehouse); err != nil {
		return fmt.Errorf("create project: %w", err)
	}

	quote, err := docs.Create(ctx, documents.CreateInput{
		Type:      documents.TypeQuote,
		ClientID:  &acme.ID,
		ProjectID: &warehouse.ID,
		Items: []documents.ItemInput{
			{Designation: "Steel beam HEA 200", Unit: "m", Quantity: decimal.NewFromInt(120), UnitPriceHT: decimal.RequireFromString("38.50")},
			{Designation: "Installation", Unit: "h", Quantity: decimal.NewFromInt(40), UnitPriceHT: decimal.NewFromInt(45)},
		},
	})
	if err != nil {
		return fmt.Errorf("create quote: %w", err)
	}

	log.Infow("demo data created",
		"clients", 2,
		"project", warehouse.Name,
		"quote", quote.Number,
		"total_ttc", quote.TotalTTC.StringFixed(2))
	return nil
}

func strPtr(s string) *string { return &s }
