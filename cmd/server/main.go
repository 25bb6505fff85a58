// Package main implements the studbud binary: the HTTP server that hosts
// study sessions, and a one-shot generate command for local use.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/phrazzld/studbud/internal/config"
	"github.com/phrazzld/studbud/internal/platform/logger"
	"github.com/phrazzld/studbud/internal/platform/provider"
	"github.com/phrazzld/studbud/internal/prompt"
)

// Set at build time with -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const appName = "studbud"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Generate flashcards and quizzes from study material",
		Long: `studbud turns uploaded files, pasted text or a bare topic into
flashcards or multiple-choice quizzes using a configured LLM provider.

Configuration is read from config.yaml, a local .env file and
STUDBUD_* environment variables.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")

	cmd.AddCommand(serveCmd(&configPath))
	cmd.AddCommand(generateCmd(&configPath))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, log, err := loadAppConfig(*configPath)
			if err != nil {
				return err
			}

			app, err := initializeApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			return app.Run(ctx)
		},
	}
}

// loadAppConfig reads .env, loads the configuration and sets up logging.
func loadAppConfig(configPath string) (*config.Config, *slog.Logger, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	log.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"provider", cfg.LLM.Provider)
	if cfg.LLM.APIKey == "" {
		log.Warn("no LLM API key configured; generations will fail authentication")
	}

	return cfg, log, nil
}

// initializeApp builds the configured provider and the application around it.
func initializeApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*application, error) {
	prompts, err := prompt.Load(cfg.LLM.PromptTemplatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt templates: %w", err)
	}

	gen, err := provider.New(ctx, log.With("component", "llm_generator"), cfg.LLM, prompts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM generator: %w", err)
	}

	return newApplication(cfg, log, gen)
}
