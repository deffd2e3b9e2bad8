package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/seanblong/docsearch/internal/ai"
	"github.com/seanblong/docsearch/internal/config"
	"github.com/seanblong/docsearch/internal/search"
	"github.com/seanblong/docsearch/internal/store"
	"github.com/spf13/pflag"
)

func main() {
	fs := pflag.NewFlagSet("docsearch-search", pflag.ExitOnError)
	fs.String("query", "", "Query text")
	fs.Int("k", search.DefaultK, "Number of results")
	fs.Bool("context", false, "Print assembled context instead of ranked results")
	fs.Int("max-length", search.DefaultMaxContextLength, "Maximum context length in characters")
	fs.Bool("list", false, "List indexed source documents and exit")

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

	query, _ := fs.GetString("query")
	k, _ := fs.GetInt("k")
	wantContext, _ := fs.GetBool("context")
	maxLength, _ := fs.GetInt("max-length")
	listOnly, _ := fs.GetBool("list")
	if query == "" && fs.NArg() > 0 {
		query = strings.Join(fs.Args(), " ")
	}
	if query == "" && !listOnly {
		log.Fatal("a query is required (--query or positional arguments)")
	}

	ctx := context.Background()

	// Listing needs no embeddings, so skip client construction and its
	// credential requirements for that path.
	var client ai.Client
	if !listOnly {
		client, err = newEmbeddingClient(ctx, cfg)
		if err != nil {
			log.Fatal(err)
		}
	}

	var st store.IndexStore
	if cfg.Database != "" {
		pg, err := store.NewPGStore(ctx, cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pg.Close()
		st = pg
	} else {
		dir, err := cfg.ResolveIndexDir()
		if err != nil {
			log.Fatal(err)
		}
		st = store.NewFileStore(dir)
	}

	svc := search.New(client, st, search.Options{MinScore: cfg.MinScore})
	if err := svc.Init(ctx); err != nil {
		log.Fatalf("Failed to load index: %v", err)
	}
	if !svc.Ready() {
		printJSON(svc.Health())
		fmt.Fprintln(os.Stderr, "no index found; run the indexer first")
		os.Exit(1)
	}

	switch {
	case listOnly:
		printJSON(svc.ListDocuments())
	case wantContext:
		contextStr, err := svc.Context(ctx, query, maxLength)
		if err != nil {
			log.Fatalf("context assembly failed: %v", err)
		}
		fmt.Println(contextStr)
	default:
		results, err := svc.Search(ctx, query, k)
		if err != nil {
			log.Fatalf("search failed: %v", err)
		}
		printJSON(results)
	}
}

func newEmbeddingClient(ctx context.Context, cfg config.Specification) (ai.Client, error) {
	var clientConfig *ai.ClientConfig
	switch strings.ToLower(cfg.Provider) {
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
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
	return ai.NewClient(ctx, clientConfig)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("failed to encode output: %v", err)
	}
}
