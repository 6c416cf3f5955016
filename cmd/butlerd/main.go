package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/greybell/butler/pkg/app"
	"github.com/greybell/butler/pkg/config"
	"github.com/greybell/butler/pkg/infrastructure/memoryjournal"
	"github.com/greybell/butler/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "butlerd:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML config file")
	workDir := flag.String("workdir", "", "override the butler work directory")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *workDir != "" {
		cfg.WorkDir = *workDir
	}

	logger.Init(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	log := logger.L().With("component", "butlerd")

	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}

	butler := app.NewButlerService(app.ButlerConfig{
		WorkDir:          cfg.WorkDir,
		DefaultChannel:   cfg.Butler.DefaultChannel,
		DefaultRecipient: cfg.Butler.DefaultRecipient,
		LLMFallback:      cfg.Butler.LLMFallback,
	})

	if cfg.Memory.JournalPath != "" {
		journal, err := memoryjournal.Open(cfg.Memory.JournalPath)
		if err != nil {
			return fmt.Errorf("open memory journal: %w", err)
		}
		defer journal.Close()
		butler.SetMemoryStore(journal)
	}

	for _, profile := range cfg.RuleProfiles {
		if _, err := butler.LoadRuleProfile(profile); err != nil {
			log.Error("failed to load rule profile", "profile", profile, "error", err)
		}
	}

	butler.Start()
	defer butler.Stop()

	status := butler.GetStatus()
	log.Info("butlerd ready",
		"work_dir", cfg.WorkDir,
		"rules", status.RuleCount,
		"jobs", status.Scheduler.JobCount)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	return nil
}
