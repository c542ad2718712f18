// counselbot is the Korean-language banking consultation assistant service:
// it loads scenario documents, wires the dialogue core, and serves the HTTP
// and WebSocket transport.
package main

import (
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/modubank/counselbot/internal/api"
	"github.com/modubank/counselbot/internal/flow"
	"github.com/modubank/counselbot/internal/genai"
	"github.com/modubank/counselbot/internal/scenario"
	"github.com/modubank/counselbot/internal/scheduler"
	"github.com/modubank/counselbot/internal/store"
	"github.com/modubank/counselbot/internal/util"
)

// Default configuration constants.
const (
	DefaultAPIAddr      = ":8080"
	DefaultScenarioDir  = "scenarios"
	DefaultSessionTTL   = 30 * time.Minute
	DefaultEvictionCron = "*/5 * * * *"
)

type config struct {
	apiAddr        string
	scenarioDir    string
	openAIModel    string
	maxStageVisits int
	sessionTTL     time.Duration
	evictionCron   string
	logLevel       string
}

func main() {
	cfg := loadEnvironmentConfig()

	flag.StringVar(&cfg.apiAddr, "addr", cfg.apiAddr, "API listen address")
	flag.StringVar(&cfg.scenarioDir, "scenarios", cfg.scenarioDir, "directory of scenario JSON documents")
	flag.Parse()

	initializeLogger(cfg.logLevel)

	registry, err := scenario.Load(cfg.scenarioDir)
	if err != nil {
		slog.Error("Scenario loading failed", "dir", cfg.scenarioDir, "error", err)
		os.Exit(1)
	}

	var client genai.ClientInterface
	genaiOpts := []genai.Option{}
	if cfg.openAIModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(cfg.openAIModel))
	}
	if c, err := genai.NewClient(genaiOpts...); err != nil {
		slog.Warn("GenAI client unavailable, running pattern-only", "error", err)
	} else {
		client = c
	}

	sessionStore := store.NewInMemoryStore()

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	if err := sched.ScheduleSessionEviction(cfg.evictionCron, sessionStore, cfg.sessionTTL); err != nil {
		slog.Error("Failed to schedule session eviction", "cron", cfg.evictionCron, "error", err)
		os.Exit(1)
	}

	orchestrator := flow.NewOrchestrator(flow.Config{
		Registry:       registry,
		Store:          sessionStore,
		Client:         client,
		MaxStageVisits: cfg.maxStageVisits,
	})

	server := api.NewServer(orchestrator, cfg.apiAddr)
	slog.Info("Bootstrapping counselbot",
		"addr", cfg.apiAddr, "scenarios", registry.IDs(),
		"sessionTTL", cfg.sessionTTL, "maxStageVisits", cfg.maxStageVisits, "llm", client != nil)
	if err := server.Run(); err != nil {
		slog.Error("counselbot failed to run", "error", err)
		os.Exit(1)
	}
}

// loadEnvironmentConfig loads configuration from the environment and an
// optional .env file.
func loadEnvironmentConfig() config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}
	return config{
		apiAddr:        util.ParseStringEnv("COUNSELBOT_API_ADDR", DefaultAPIAddr),
		scenarioDir:    util.ParseStringEnv("COUNSELBOT_SCENARIO_DIR", DefaultScenarioDir),
		openAIModel:    os.Getenv("COUNSELBOT_OPENAI_MODEL"),
		maxStageVisits: util.ParseIntEnv("COUNSELBOT_MAX_STAGE_VISITS", flow.DefaultMaxStageVisits),
		sessionTTL:     util.ParseDurationEnv("COUNSELBOT_SESSION_TTL", DefaultSessionTTL),
		evictionCron:   util.ParseStringEnv("COUNSELBOT_EVICTION_CRON", DefaultEvictionCron),
		logLevel:       util.ParseStringEnv("COUNSELBOT_LOG_LEVEL", "info"),
	}
}

// initializeLogger sets up structured logging on stdout.
func initializeLogger(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
}
