package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type Specification struct {
	Provider   string  `yaml:"provider"`
	APIKey     string  `yaml:"providerApiKey" envconfig:"PROVIDER_API_KEY"`
	EmbedModel string  `yaml:"providerEmbedModel" envconfig:"PROVIDER_EMBEDDING_MODEL"`
	ProjectID  string  `yaml:"providerProjectID" envconfig:"PROVIDER_PROJECT_ID"`
	Location   string  `yaml:"providerLocation" envconfig:"PROVIDER_LOCATION"`
	Dim        int     `yaml:"providerDim" envconfig:"EMBED_DIM"`
	Database   string  `yaml:"database" envconfig:"DB_URL"`
	DocsDir    string  `yaml:"docsDir" split_words:"true"`
	IndexDir   string  `yaml:"indexDir" split_words:"true"`
	Window     int     `yaml:"chunkWindow" envconfig:"CHUNK_WINDOW"`
	Overlap    int     `yaml:"chunkOverlap" envconfig:"CHUNK_OVERLAP"`
	MinScore   float64 `yaml:"minScore" split_words:"true"`
	LogLevel   string  `yaml:"logLevel" split_words:"true"`

	flags *pflag.FlagSet `ignored:"true"`
}

const envPrefix = "DOCSEARCH"

// indexDirCandidates are conventional index locations probed, in order, when
// no directory is configured explicitly.
var indexDirCandidates = []string{
	"vector_store",
	"rag/vector_store",
	"data/vector_store",
}

// defaultIndexDir is created when nothing is configured and no candidate exists.
const defaultIndexDir = "vector_store"

func (s *Specification) Usage() {
	fmt.Fprint(os.Stderr, s.flags.FlagUsages())
}

// Load => defaults < YAML < env < flags.
// configPath may be ""; if so we auto-discover.
func Load(configPath string, fs *pflag.FlagSet) (Specification, error) {
	var cfg Specification

	// set defaults (lowest precedence)
	setDefaults(&cfg)
	bindFlags(fs, &cfg)

	// config file
	path := configPath
	if path == "" {
		if v := os.Getenv(envPrefix + "_CONFIG"); v != "" {
			path = v
		} else {
			for _, cand := range []string{
				"config/docsearch.yaml",
				"config/config.yaml",
				"./docsearch.yaml",
				"./config.yaml",
			} {
				if fileExists(cand) {
					path = cand
					break
				}
			}
		}
	}

	if path != "" {
		if !fileExists(path) {
			return Specification{}, fmt.Errorf("config file not found: %s", path)
		}
		if err := loadYAML(path, &cfg); err != nil {
			return Specification{}, fmt.Errorf("load yaml %s: %w", path, err)
		}
	}

	// env overrides config file
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Specification{}, fmt.Errorf("env override: %w", err)
	}

	// flags override everything
	if err := fs.Parse(os.Args[1:]); err != nil {
		return Specification{}, err
	}
	applyChangedFlags(fs, &cfg)

	// Minimal sanity
	if cfg.Window <= 0 || cfg.Overlap < 0 || cfg.Overlap >= cfg.Window {
		return Specification{}, fmt.Errorf("invalid chunk configuration: window %d, overlap %d (overlap must be smaller than window)", cfg.Window, cfg.Overlap)
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

// ResolveIndexDir returns the directory holding the persisted index.
// Precedence: explicit configuration, then the first existing conventional
// location, then a default that is created if missing.
func (s *Specification) ResolveIndexDir() (string, error) {
	if strings.TrimSpace(s.IndexDir) != "" {
		return s.IndexDir, nil
	}
	for _, cand := range indexDirCandidates {
		if dirExists(cand) {
			return cand, nil
		}
	}
	if err := os.MkdirAll(defaultIndexDir, 0o755); err != nil {
		return "", fmt.Errorf("create index directory %s: %w", defaultIndexDir, err)
	}
	return defaultIndexDir, nil
}

// ---------- helpers ----------

func loadYAML(path string, into any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, into)
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}

func dirExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}

func bindFlags(fs *pflag.FlagSet, c *Specification) {
	fs.String("config", "", "Path to config file")

	// If --config is provided on the command line, capture it now so
	// config discovery (which runs before flags.Parse) can use it.
	for i, a := range os.Args {
		if a == "--config" {
			if i+1 < len(os.Args) && !strings.HasPrefix(os.Args[i+1], "-") {
				_ = os.Setenv(envPrefix+"_CONFIG", os.Args[i+1])
			}
		} else if strings.HasPrefix(a, "--config=") {
			parts := strings.SplitN(a, "=", 2)
			if len(parts) == 2 {
				_ = os.Setenv(envPrefix+"_CONFIG", parts[1])
			}
		}
	}

	fs.String("provider", c.Provider, "Provider (e.g., stub, openai, vertexai)")
	fs.String("provider-api-key", c.APIKey, "Provider API key")
	fs.String("provider-embedding-model", c.EmbedModel, "Provider embedding model")
	fs.String("provider-project-id", c.ProjectID, "Provider project ID")
	fs.String("provider-location", c.Location, "Provider location/region")

	fs.Int("embed-dim", c.Dim, "Embedding dimensionality")

	fs.String("db-url", c.Database, "Database URL (DSN); empty selects the file store")

	fs.String("docs-dir", c.DocsDir, "Directory of plain-text documents to index")
	fs.String("index-dir", c.IndexDir, "Directory holding the persisted index")
	fs.Int("chunk-window", c.Window, "Chunk window size in words")
	fs.Int("chunk-overlap", c.Overlap, "Chunk overlap in words")
	fs.Float64("min-score", c.MinScore, "Minimum similarity score for context assembly (0 disables)")

	fs.String("log-level", c.LogLevel, "Log level (debug|info|warn|error)")

	// Used later for usage/help
	// create a shallow copy of fs (so Usage can be called safely without mutating caller)
	copied := pflag.NewFlagSet("temp", pflag.ContinueOnError)
	*copied = *fs
	c.flags = copied
}

func applyChangedFlags(fs *pflag.FlagSet, c *Specification) {
	setStr := func(name string, dst *string) {
		if fs.Changed(name) {
			v, _ := fs.GetString(name)
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if fs.Changed(name) {
			v, _ := fs.GetInt(name)
			*dst = v
		}
	}
	setFloat := func(name string, dst *float64) {
		if fs.Changed(name) {
			v, _ := fs.GetFloat64(name)
			*dst = v
		}
	}

	// (We ignore --config here; it's for discovery.)
	setStr("provider", &c.Provider)
	setStr("provider-api-key", &c.APIKey)
	setStr("provider-embedding-model", &c.EmbedModel)
	setStr("provider-project-id", &c.ProjectID)
	setStr("provider-location", &c.Location)

	setInt("embed-dim", &c.Dim)

	setStr("db-url", &c.Database)

	setStr("docs-dir", &c.DocsDir)
	setStr("index-dir", &c.IndexDir)
	setInt("chunk-window", &c.Window)
	setInt("chunk-overlap", &c.Overlap)
	setFloat("min-score", &c.MinScore)

	setStr("log-level", &c.LogLevel)
}

func setDefaults(c *Specification) {
	c.Provider = "stub"
	c.Location = "us-central1"
	c.DocsDir = "docs"
	c.Window = 500
	c.Overlap = 50
	c.MinScore = 0
	c.LogLevel = "info"
	c.Dim = 0
	c.Database = ""
}
