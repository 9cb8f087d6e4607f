package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/voxvid/voxvid/pkg/akool"
	"github.com/voxvid/voxvid/pkg/config"
	"github.com/voxvid/voxvid/pkg/gateway"
	"github.com/voxvid/voxvid/pkg/logger"
	"github.com/voxvid/voxvid/pkg/relay"
	"github.com/voxvid/voxvid/pkg/store"
	"github.com/voxvid/voxvid/pkg/ttsopenai"
)

var (
	version   = "dev"
	gitCommit string
	buildTime string
)

func formatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

func printVersion() {
	fmt.Printf("voxvid %s\n", formatVersion())
	if buildTime != "" {
		fmt.Printf("  Build: %s\n", buildTime)
	}
	fmt.Printf("  Go: %s\n", runtime.Version())
}

func main() {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "serve":
		serveCmd()
	case "version", "--version", "-v":
		printVersion()
	case "help", "--help", "-h":
		printHelp()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printHelp()
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Printf("voxvid - testimonial video relay v%s\n\n", version)
	fmt.Println("Usage: voxvid <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve       Start the relay HTTP server (default)")
	fmt.Println("  version     Show version information")
}

func serveCmd() {
	// A .env file is a convenience for local runs; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	if cfg.LogFile != "" {
		if err := logger.EnableFileLogging(cfg.LogFile); err != nil {
			fmt.Printf("Error opening log file: %v\n", err)
			os.Exit(1)
		}
	}
	gateway.SetVersion(formatVersion())

	jobs, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		logger.FatalCF("main", "failed to open job store", map[string]any{
			"path":  cfg.Store.Path,
			"error": err.Error(),
		})
	}
	defer jobs.Close()

	tts := ttsopenai.NewClient(cfg.TTSOpenAI.APIKey, cfg.TTSOpenAI.BaseURL, cfg.Relay.ProviderTimeout)
	video := akool.NewClient(cfg.Akool.ClientID, cfg.Akool.ClientSecret, cfg.Akool.BaseURL, cfg.Relay.ProviderTimeout)

	relaySvc := relay.NewService(cfg, jobs, tts, video)
	server := gateway.NewServer(cfg, relaySvc, video, jobs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := relay.NewSweeper(jobs, cfg.Relay.JobTTL, cfg.Relay.SweepInterval)
	go sweeper.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.InfoCF("main", "voxvid started", map[string]any{
		"version":  formatVersion(),
		"callback": cfg.Relay.CallbackBaseURL,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.InfoCF("main", "shutting down", map[string]any{"signal": sig.String()})
	case err := <-errCh:
		if err != nil {
			logger.FatalCF("main", "server failed", map[string]any{"error": err.Error()})
		}
		return
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.ErrorCF("main", "shutdown error", map[string]any{"error": err.Error()})
	}
}
