package main

import (
	"path/filepath"
	"testing"

	"github.com/BrightDesk/LeadPipe/internal/store"
)

func TestLoadEnvironmentConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("LEADPIPE_STATE_DIR", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("API_ADDR", "")
	t.Setenv("LEADPIPE_CATALOG", "")
	t.Setenv("LEADPIPE_SUMMARY_THRESHOLD", "")

	config := loadEnvironmentConfig()
	if config.StateDir != DefaultStateDir {
		t.Errorf("expected default state dir, got %q", config.StateDir)
	}
	want := filepath.Join(DefaultStateDir, DefaultDBFileName)
	if config.DatabaseURL != want {
		t.Errorf("expected SQLite fallback %q, got %q", want, config.DatabaseURL)
	}
}

func TestLoadEnvironmentConfigSummaryThreshold(t *testing.T) {
	t.Setenv("LEADPIPE_SUMMARY_THRESHOLD", "30")
	config := loadEnvironmentConfig()
	if config.SummaryThreshold != 30 {
		t.Errorf("expected threshold 30, got %d", config.SummaryThreshold)
	}

	t.Setenv("LEADPIPE_SUMMARY_THRESHOLD", "banana")
	config = loadEnvironmentConfig()
	if config.SummaryThreshold != 0 {
		t.Errorf("expected invalid threshold ignored, got %d", config.SummaryThreshold)
	}
}

func TestBuildStoreSelection(t *testing.T) {
	st, err := buildStore("")
	if err != nil {
		t.Fatalf("buildStore failed: %v", err)
	}
	if _, ok := st.(*store.InMemoryStore); !ok {
		t.Errorf("expected in-memory store for empty DSN, got %T", st)
	}

	path := filepath.Join(t.TempDir(), "leadpipe.db")
	st, err = buildStore(path)
	if err != nil {
		t.Fatalf("buildStore sqlite failed: %v", err)
	}
	defer st.Close()
	if _, ok := st.(*store.SQLiteStore); !ok {
		t.Errorf("expected SQLite store for file DSN, got %T", st)
	}
}

func TestBuildGenAIClientDegradedMode(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if client := buildGenAIClient(""); client != nil {
		t.Errorf("expected nil client without a key, got %T", client)
	}

	if client := buildGenAIClient("sk-test"); client == nil {
		t.Error("expected client with an explicit key")
	}
}

func TestLoadCatalogEmbeddedDefault(t *testing.T) {
	catalog, err := loadCatalog("")
	if err != nil {
		t.Fatalf("loadCatalog failed: %v", err)
	}
	if len(catalog.Services) == 0 || len(catalog.Experts) == 0 {
		t.Error("embedded catalog is empty")
	}

	if _, err := loadCatalog("/does/not/exist.yaml"); err == nil {
		t.Error("expected error for missing catalog file")
	}
}
