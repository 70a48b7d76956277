package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/autotag/internal"
	pkgconfig "github.com/starford/autotag/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if vault := cmd.String("vault"); vault != "" {
		cfg.Vault.Path = vault
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

// pathArg returns the single document argument, required unless --all is set.
func pathArg(cmd *cli.Command) (string, bool, error) {
	all := cmd.Bool("all")
	path := cmd.Args().First()
	if all && path != "" {
		return "", false, errors.New("pass either a document path or --all, not both")
	}
	if !all && path == "" {
		return "", false, errors.New("document path is required (or use --all)")
	}
	return path, all, nil
}

func tag(ctx context.Context, cmd *cli.Command) error {
	path, all, err := pathArg(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunTag(ctx, path, all, internal.WithConfig(cfg))
}

func untag(ctx context.Context, cmd *cli.Command) error {
	path, all, err := pathArg(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunUntag(ctx, path, all, internal.WithConfig(cfg))
}

func models(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunModels(ctx, internal.WithConfig(cfg))
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

func allFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "all",
		Usage: "Process every document in the vault",
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "autotag",
		Usage:  "Tag Markdown notes with vocabulary hashtags and LLM summaries from a local Ollama",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "vault",
				Usage:   "Vault directory (overrides vault.path)",
				Sources: cli.EnvVars("AUTOTAG_VAULT"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Watch the vault, auto-tag changed notes and serve the HTTP API",
				Action: serve,
			},
			{
				Name:      "tag",
				Usage:     "Tag one note, or all eligible notes with --all",
				ArgsUsage: "[PATH]",
				Flags:     []cli.Flag{allFlag()},
				Action:    tag,
			},
			{
				Name:      "untag",
				Usage:     "Remove tags from one note, or from all notes with --all",
				ArgsUsage: "[PATH]",
				Flags:     []cli.Flag{allFlag()},
				Action:    untag,
			},
			{
				Name:   "models",
				Usage:  "List models available from Ollama",
				Action: models,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the tagging tools over MCP stdio",
				Action: mcp,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
