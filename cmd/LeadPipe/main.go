package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/BrightDesk/LeadPipe/internal/api"
	"github.com/BrightDesk/LeadPipe/internal/flow"
	"github.com/BrightDesk/LeadPipe/internal/genai"
	"github.com/BrightDesk/LeadPipe/internal/match"
	"github.com/BrightDesk/LeadPipe/internal/phase"
	"github.com/BrightDesk/LeadPipe/internal/prd"
	"github.com/BrightDesk/LeadPipe/internal/store"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for LeadPipe state data
	DefaultStateDir = "/var/lib/leadpipe"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "leadpipe.db"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(*flags.dbDSN); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// Build the store per the configured DSN
	st, err := buildStore(*flags.dbDSN)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// Build the drafting client; a missing key degrades rather than aborts
	ai := buildGenAIClient(*flags.openaiKey)

	// Load the service/expert catalog
	catalog, err := loadCatalog(*flags.catalogPath)
	if err != nil {
		slog.Error("Failed to load catalog", "error", err, "path", *flags.catalogPath)
		os.Exit(1)
	}

	manager := flow.NewManager(st, match.NewMatcher(catalog), phase.NewMachine(*flags.stallThreshold), ai, *flags.summaryThreshold)
	generator := prd.NewGenerator(st, ai, manager)
	server := api.NewServer(manager, generator, st)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping LeadPipe with configured modules",
		"dsn_set", *flags.dbDSN != "",
		"genai_configured", ai != nil,
		"catalog", *flags.catalogPath,
		"api_addr", *flags.apiAddr)
	if err := server.Run(ctx, *flags.apiAddr); err != nil {
		slog.Error("LeadPipe failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("LeadPipe exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL      string
	StateDir         string
	OpenAIKey        string
	APIAddr          string
	CatalogPath      string
	SummaryThreshold int
}

// Flags holds command line flag values
type Flags struct {
	stateDir         *string
	dbDSN            *string
	openaiKey        *string
	apiAddr          *string
	catalogPath      *string
	summaryThreshold *int
	stallThreshold   *int
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StateDir:    os.Getenv("LEADPIPE_STATE_DIR"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		APIAddr:     os.Getenv("API_ADDR"),
		CatalogPath: os.Getenv("LEADPIPE_CATALOG"),
	}

	if raw := os.Getenv("LEADPIPE_SUMMARY_THRESHOLD"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			config.SummaryThreshold = parsed
		} else {
			slog.Warn("Ignoring invalid LEADPIPE_SUMMARY_THRESHOLD", "value", raw)
		}
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No LEADPIPE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"LEADPIPE_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"LEADPIPE_CATALOG", config.CatalogPath,
		"LEADPIPE_SUMMARY_THRESHOLD", config.SummaryThreshold)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:         flag.String("state-dir", config.StateDir, "state directory for LeadPipe data (overrides $LEADPIPE_STATE_DIR)"),
		dbDSN:            flag.String("db-dsn", config.DatabaseURL, "database DSN for the session store (overrides $DATABASE_URL)"),
		openaiKey:        flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:          flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		catalogPath:      flag.String("catalog", config.CatalogPath, "path to a service/expert catalog YAML (overrides $LEADPIPE_CATALOG)"),
		summaryThreshold: flag.Int("summary-threshold", config.SummaryThreshold, "message count before conversation summarization (overrides $LEADPIPE_SUMMARY_THRESHOLD)"),
		stallThreshold:   flag.Int("stall-threshold", 0, "turns without progress before an explicit field prompt (0 = default)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"catalog", *flags.catalogPath,
		"summaryThreshold", *flags.summaryThreshold,
		"stallThreshold", *flags.stallThreshold)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(dsn string) error {
	if dsn == "" || store.DetectDSNType(dsn) == "postgres" {
		return nil
	}
	stateDir := filepath.Dir(dsn)
	slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
		return err
	}
	return nil
}

// buildStore selects a store backend from the DSN
func buildStore(dsn string) (store.Store, error) {
	if dsn == "" {
		slog.Debug("No database DSN provided, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithPostgresDSN(dsn))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", dsn)
	return store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
}

// buildGenAIClient creates the drafting client, or returns nil when no key
// is configured so the service runs in degraded mode.
func buildGenAIClient(key string) genai.ClientInterface {
	var opts []genai.Option
	if key != "" {
		opts = append(opts, genai.WithAPIKey(key))
	}
	client, err := genai.NewClient(opts...)
	if err != nil {
		slog.Warn("GenAI client not configured; replies and PRD drafting degrade", "error", err)
		return nil
	}
	return client
}

// loadCatalog loads the operator catalog, falling back to the embedded one
func loadCatalog(path string) (*match.Catalog, error) {
	if path != "" {
		return match.NewCatalogFromFile(path)
	}
	return match.DefaultCatalog()
}
