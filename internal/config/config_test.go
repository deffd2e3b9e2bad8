package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

// clearTestEnv removes every DOCSEARCH_* variable so tests start from a
// clean environment.
func clearTestEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, envPrefix+"_") {
			key := strings.SplitN(kv, "=", 2)[0]
			t.Setenv(key, "")
			if err := os.Unsetenv(key); err != nil {
				t.Fatalf("Failed to unset %s: %v", key, err)
			}
		}
	}
}

func resetArgs(t *testing.T, args ...string) {
	t.Helper()
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = append([]string{"test"}, args...)
}

func TestSpecificationDefaults(t *testing.T) {
	clearTestEnv(t)
	resetArgs(t)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg, err := Load("", fs)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Provider != "stub" {
		t.Errorf("Expected default provider 'stub', got %q", cfg.Provider)
	}
	if cfg.DocsDir != "docs" {
		t.Errorf("Expected default docs dir 'docs', got %q", cfg.DocsDir)
	}
	if cfg.Window != 500 || cfg.Overlap != 50 {
		t.Errorf("Expected default chunking 500/50, got %d/%d", cfg.Window, cfg.Overlap)
	}
	if cfg.MinScore != 0 {
		t.Errorf("Expected min score disabled by default, got %f", cfg.MinScore)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log level 'info', got %q", cfg.LogLevel)
	}
	if cfg.Location != "us-central1" {
		t.Errorf("Expected default location 'us-central1', got %q", cfg.Location)
	}
	if cfg.Database != "" {
		t.Errorf("Expected file store by default, got database %q", cfg.Database)
	}
}

func TestLoadFromYAMLFile(t *testing.T) {
	clearTestEnv(t)
	resetArgs(t)

	path := filepath.Join(t.TempDir(), "docsearch.yaml")
	content := `
provider: openai
providerApiKey: yaml-key
providerEmbedModel: text-embedding-3-small
docsDir: /srv/docs
indexDir: /srv/vector_store
chunkWindow: 300
chunkOverlap: 30
minScore: 0.25
logLevel: debug
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg, err := Load(path, fs)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Provider != "openai" || cfg.APIKey != "yaml-key" {
		t.Errorf("Provider settings not loaded: %q / %q", cfg.Provider, cfg.APIKey)
	}
	if cfg.EmbedModel != "text-embedding-3-small" {
		t.Errorf("Embed model not loaded: %q", cfg.EmbedModel)
	}
	if cfg.DocsDir != "/srv/docs" || cfg.IndexDir != "/srv/vector_store" {
		t.Errorf("Directories not loaded: %q / %q", cfg.DocsDir, cfg.IndexDir)
	}
	if cfg.Window != 300 || cfg.Overlap != 30 {
		t.Errorf("Chunking not loaded: %d/%d", cfg.Window, cfg.Overlap)
	}
	if cfg.MinScore != 0.25 {
		t.Errorf("Min score not loaded: %f", cfg.MinScore)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Log level not loaded: %q", cfg.LogLevel)
	}
}

func TestLoadFromEnvironmentVariables(t *testing.T) {
	clearTestEnv(t)
	resetArgs(t)

	t.Setenv("DOCSEARCH_PROVIDER", "vertexai")
	t.Setenv("DOCSEARCH_PROVIDER_PROJECT_ID", "my-project")
	t.Setenv("DOCSEARCH_EMBED_DIM", "768")
	t.Setenv("DOCSEARCH_DOCS_DIR", "/env/docs")
	t.Setenv("DOCSEARCH_CHUNK_WINDOW", "250")
	t.Setenv("DOCSEARCH_CHUNK_OVERLAP", "25")
	t.Setenv("DOCSEARCH_MIN_SCORE", "0.5")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg, err := Load("", fs)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Provider != "vertexai" || cfg.ProjectID != "my-project" {
		t.Errorf("Provider settings not read from env: %q / %q", cfg.Provider, cfg.ProjectID)
	}
	if cfg.Dim != 768 {
		t.Errorf("Dimension not read from env: %d", cfg.Dim)
	}
	if cfg.DocsDir != "/env/docs" {
		t.Errorf("Docs dir not read from env: %q", cfg.DocsDir)
	}
	if cfg.Window != 250 || cfg.Overlap != 25 {
		t.Errorf("Chunking not read from env: %d/%d", cfg.Window, cfg.Overlap)
	}
	if cfg.MinScore != 0.5 {
		t.Errorf("Min score not read from env: %f", cfg.MinScore)
	}
}

func TestLoadFromFlags(t *testing.T) {
	clearTestEnv(t)
	resetArgs(t, "--provider", "openai", "--chunk-window", "100", "--chunk-overlap", "10", "--min-score", "0.4")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg, err := Load("", fs)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Provider != "openai" {
		t.Errorf("Provider not read from flags: %q", cfg.Provider)
	}
	if cfg.Window != 100 || cfg.Overlap != 10 {
		t.Errorf("Chunking not read from flags: %d/%d", cfg.Window, cfg.Overlap)
	}
	if cfg.MinScore != 0.4 {
		t.Errorf("Min score not read from flags: %f", cfg.MinScore)
	}
}

func TestConfigPrecedence(t *testing.T) {
	clearTestEnv(t)

	path := filepath.Join(t.TempDir(), "docsearch.yaml")
	if err := os.WriteFile(path, []byte("provider: yaml-provider\ndocsDir: yaml-docs\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Env beats YAML, flags beat both.
	t.Setenv("DOCSEARCH_PROVIDER", "env-provider")
	resetArgs(t, "--docs-dir", "flag-docs")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg, err := Load(path, fs)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Provider != "env-provider" {
		t.Errorf("Env should override YAML, got provider %q", cfg.Provider)
	}
	if cfg.DocsDir != "flag-docs" {
		t.Errorf("Flags should override YAML, got docs dir %q", cfg.DocsDir)
	}
}

func TestConfigFileFromEnvironment(t *testing.T) {
	clearTestEnv(t)
	resetArgs(t)

	path := filepath.Join(t.TempDir(), "docsearch.yaml")
	if err := os.WriteFile(path, []byte("provider: from-env-config\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DOCSEARCH_CONFIG", path)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg, err := Load("", fs)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Provider != "from-env-config" {
		t.Errorf("Config file from environment not used, got provider %q", cfg.Provider)
	}
}

func TestAutoDiscoverConfigFile(t *testing.T) {
	clearTestEnv(t)
	resetArgs(t)
	t.Chdir(t.TempDir())

	if err := os.MkdirAll("config", 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join("config", "docsearch.yaml"), []byte("provider: discovered\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg, err := Load("", fs)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Provider != "discovered" {
		t.Errorf("Auto-discovery failed, got provider %q", cfg.Provider)
	}
}

func TestNonExistentConfigFile(t *testing.T) {
	clearTestEnv(t)
	resetArgs(t)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	if _, err := Load("/no/such/config.yaml", fs); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestInvalidYAMLFile(t *testing.T) {
	clearTestEnv(t)
	resetArgs(t)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("provider: [unclosed\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	if _, err := Load(path, fs); err == nil {
		t.Error("Expected error for invalid YAML")
	}
}

func TestValidation(t *testing.T) {
	cases := []struct {
		name    string
		window  string
		overlap string
	}{
		{"zero window", "0", "0"},
		{"negative overlap", "100", "-1"},
		{"overlap equals window", "100", "100"},
		{"overlap exceeds window", "100", "150"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearTestEnv(t)
			resetArgs(t)
			t.Setenv("DOCSEARCH_CHUNK_WINDOW", tc.window)
			t.Setenv("DOCSEARCH_CHUNK_OVERLAP", tc.overlap)

			fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
			if _, err := Load("", fs); err == nil {
				t.Errorf("Expected validation error for window=%s overlap=%s", tc.window, tc.overlap)
			}
		})
	}
}

func TestResolveIndexDirExplicit(t *testing.T) {
	cfg := Specification{IndexDir: "/explicit/path"}
	dir, err := cfg.ResolveIndexDir()
	if err != nil {
		t.Fatalf("ResolveIndexDir failed: %v", err)
	}
	if dir != "/explicit/path" {
		t.Errorf("Expected explicit path, got %q", dir)
	}
}

func TestResolveIndexDirCandidates(t *testing.T) {
	t.Chdir(t.TempDir())
	if err := os.MkdirAll("rag/vector_store", 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := Specification{}
	dir, err := cfg.ResolveIndexDir()
	if err != nil {
		t.Fatalf("ResolveIndexDir failed: %v", err)
	}
	if dir != "rag/vector_store" {
		t.Errorf("Expected existing candidate 'rag/vector_store', got %q", dir)
	}
}

func TestResolveIndexDirCandidateOrder(t *testing.T) {
	t.Chdir(t.TempDir())
	if err := os.MkdirAll("vector_store", 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll("rag/vector_store", 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := Specification{}
	dir, err := cfg.ResolveIndexDir()
	if err != nil {
		t.Fatalf("ResolveIndexDir failed: %v", err)
	}
	if dir != "vector_store" {
		t.Errorf("Expected first candidate 'vector_store', got %q", dir)
	}
}

func TestResolveIndexDirCreatesDefault(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg := Specification{}
	dir, err := cfg.ResolveIndexDir()
	if err != nil {
		t.Fatalf("ResolveIndexDir failed: %v", err)
	}
	if dir != defaultIndexDir {
		t.Errorf("Expected default %q, got %q", defaultIndexDir, dir)
	}
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		t.Errorf("Default index directory was not created: %v", err)
	}
}

func TestFileExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.yaml")
	if fileExists(path) {
		t.Error("fileExists true for missing file")
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !fileExists(path) {
		t.Error("fileExists false for existing file")
	}
	if fileExists(filepath.Dir(path)) {
		t.Error("fileExists true for a directory")
	}
}
