// ABOUTME: Entry point for coven-adapter, the bot messaging endpoint host
// ABOUTME: Subcommands serve the bot, create config, check health and toggle emulator OAuth cards

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/coven-adapter/internal/adapter"
	"github.com/2389/coven-adapter/internal/bot"
	"github.com/2389/coven-adapter/internal/config"
	"github.com/2389/coven-adapter/internal/credentials"
	"github.com/2389/coven-adapter/internal/dedupe"
	"github.com/2389/coven-adapter/internal/middleware"
	"github.com/2389/coven-adapter/internal/references"
	"github.com/2389/coven-adapter/internal/server"
	"github.com/2389/coven-adapter/internal/transcript"
	"github.com/2389/coven-adapter/internal/turn"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                                           _             _
  ___ _____   _____ _ __         __ _  __| | __ _ _ __ | |_ ___ _ __
 / __/ _ \ \ / / _ \ '_ \ _____ / _' |/ _' |/ _' | '_ \| __/ _ \ '__|
| (_| (_) \ V /  __/ | | |_____| (_| | (_| | (_| | |_) | ||  __/ |
 \___\___/ \_/ \___|_| |_|      \__,_|\__,_|\__,_| .__/ \__\___|_|
                                                 |_|
`

// getConfigPath returns the path to the adapter config file.
// Priority: COVEN_ADAPTER_CONFIG env var > XDG_CONFIG_HOME/coven/adapter.yaml > ~/.config/coven/adapter.yaml
func getConfigPath() string {
	if envPath := os.Getenv(config.EnvConfigPath); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "adapter.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "coven", "adapter.yaml")
}

// loadConfig reads the config file, or returns defaults when none exists.
func loadConfig(path string) (*config.Config, bool, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return config.Default(), false, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, false, fmt.Errorf("loading config: %w", err)
	}
	return cfg, true, nil
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: coven-adapter <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                          Start the messaging endpoint")
		fmt.Println("  init                           Create a new config file interactively")
		fmt.Println("  health                         Check adapter health")
		fmt.Println("  emulate-oauth URL [on|off]     Toggle OAuth card emulation on an emulator")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	case "emulate-oauth":
		err = runEmulateOAuth(ctx, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, fromFile, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	if fromFile {
		fmt.Printf("Config:    %s\n", configPath)
	} else {
		fmt.Printf("Config:    ")
		gray.Println("defaults (no file)")
	}
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s/api/messages\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("App ID:    ")
	if cfg.Bot.AppID == "" {
		yellow.Println("none (authentication disabled)")
	} else {
		fmt.Println(cfg.Bot.AppID)
	}
	if cfg.Bot.OAuthConnection != "" {
		green.Print("    ▶ ")
		fmt.Printf("Sign-in:   %s\n", cfg.Bot.OAuthConnection)
	}
	fmt.Println()

	logger.Info("starting coven-adapter",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"channel_service", cfg.Bot.ChannelService,
	)

	creds := credentials.NewResolver(cfg.Bot.Settings())
	ad := adapter.New(creds, adapter.Options{}, logger)
	ad.OnTurnError(func(ctx context.Context, tc *turn.Context, err error) error {
		logger.Error("unhandled turn error", "error", err, "activity_id", tc.Activity().ID)
		_, sendErr := tc.SendText(ctx, "Sorry, something went wrong.")
		return errors.Join(err, sendErr)
	})

	registry := references.New(logger)
	stack := []turn.Middleware{middleware.NewLogging(logger)}
	if cfg.Dedupe.Enabled {
		cache := dedupe.New(cfg.Dedupe.TTL, cfg.Dedupe.MaxEntries, cfg.Dedupe.SweepInterval)
		defer cache.Close()
		stack = append(stack, middleware.NewDedupe(cache, logger))
	}
	stack = append(stack, middleware.CaptureReferences(registry))

	var feed *transcript.Broadcaster
	if cfg.Transcript.Enabled {
		feed = transcript.NewBroadcaster(logger)
		stack = append(stack, middleware.Transcript(feed))
	}
	ad.Use(stack...)

	echo := bot.NewEcho(ad, cfg.Bot.OAuthConnection, logger)
	srv, err := server.New(cfg, ad, server.Options{
		Bot:         echo.OnTurn,
		References:  registry,
		Notify:      bot.Notify,
		Transcripts: feed,
	}, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return srv.Run(ctx)
}

func runHealth(ctx context.Context) error {
	cfg, _, err := loadConfig(getConfigPath())
	if err != nil {
		return err
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

// runEmulateOAuth switches OAuth card emulation on a running emulator.
func runEmulateOAuth(ctx context.Context, args []string) error {
	emulate, serviceURL, err := parseEmulateArgs(args)
	if err != nil {
		return err
	}

	cfg, _, err := loadConfig(getConfigPath())
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging)

	ad := adapter.New(credentials.NewResolver(cfg.Bot.Settings()), adapter.Options{}, logger)
	if err := ad.EmulateOAuthCards(ctx, serviceURL, emulate); err != nil {
		return fmt.Errorf("emulating OAuth cards: %w", err)
	}

	state := "off"
	if emulate {
		state = "on"
	}
	color.New(color.FgGreen).Printf("  ✓ OAuth card emulation %s for %s\n", state, serviceURL)
	return nil
}

func parseEmulateArgs(args []string) (emulate bool, serviceURL string, err error) {
	if len(args) == 0 || len(args) > 2 {
		return false, "", fmt.Errorf("usage: coven-adapter emulate-oauth URL [on|off]")
	}
	serviceURL = args[0]
	emulate = true
	if len(args) == 2 {
		switch args[1] {
		case "on", "true":
		case "off", "false":
			emulate = false
		default:
			return false, "", fmt.Errorf("expected on or off, got %q", args[1])
		}
	}
	return emulate, serviceURL, nil
}
