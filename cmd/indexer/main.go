package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/seanblong/docsearch/internal/ai"
	"github.com/seanblong/docsearch/internal/config"
	"github.com/seanblong/docsearch/internal/indexer"
	"github.com/seanblong/docsearch/internal/store"
	"github.com/spf13/pflag"
)

func main() {
	fs := pflag.NewFlagSet("docsearch-indexer", pflag.ExitOnError)

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	zerolog.SetGlobalLevel(level)

	provider := strings.ToLower(cfg.Provider)
	log.Printf("using provider: %s", provider)
	var clientConfig *ai.ClientConfig
	switch provider {
	case "openai":
		clientConfig = &ai.ClientConfig{
			APIKey:     cfg.APIKey,
			EmbedModel: cfg.EmbedModel,
			Dim:        cfg.Dim,
			ProjectID:  cfg.ProjectID,
			Provider:   ai.ProviderOpenAI,
		}
	case "vertexai", "google":
		clientConfig = &ai.ClientConfig{
			APIKey:     cfg.APIKey,
			EmbedModel: cfg.EmbedModel,
			Dim:        cfg.Dim,
			ProjectID:  cfg.ProjectID,
			Location:   cfg.Location,
			Provider:   ai.ProviderVertexAI,
		}
	case "stub":
		clientConfig = &ai.ClientConfig{
			Dim:      cfg.Dim,
			Provider: ai.ProviderStub,
		}
	default:
		log.Fatalf("unsupported provider: %s", provider)
	}

	ctx := context.Background()

	client, err := ai.NewClient(ctx, clientConfig)
	if err != nil {
		log.Fatal(err)
	}
	if client.Dim() == 0 {
		log.Fatal("embedding dimension must be set")
	}

	var st store.IndexStore
	if cfg.Database != "" {
		pg, err := store.NewPGStore(ctx, cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pg.Close()
		if err := pg.Migrate(ctx, client.Dim()); err != nil {
			log.Fatal(err)
		}
		st = pg
	} else {
		dir, err := cfg.ResolveIndexDir()
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("using index directory: %s", dir)
		st = store.NewFileStore(dir)
	}

	ix := indexer.New(st, client, cfg.DocsDir, cfg.Window, cfg.Overlap)
	summary, err := ix.Run(ctx)
	if err != nil {
		log.Printf("build failed: %v", err)
		os.Exit(1)
	}

	fmt.Printf("indexed %d documents (%d skipped) into %d chunks, %d vectors\n",
		summary.Documents, summary.Skipped, summary.Chunks, summary.Vectors)
}
