package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/autotag/internal/apperr"
	"github.com/starford/autotag/internal/mcpserver"
	"github.com/starford/autotag/internal/tagservice"
)

// Version is reported by the MCP server.
var Version = "dev"

// ErrBatchFailures is returned when a batch finished with failed documents.
var ErrBatchFailures = errors.New("some documents failed")

// RunTag tags one document, or every eligible document when all is set.
func RunTag(ctx context.Context, path string, all bool, opts ...Option) error {
	return oneShot(ctx, opts, func(ctx context.Context, app *application, c *components) error {
		if all {
			res, err := c.svc.TagAll(ctx)
			if err != nil {
				return err
			}
			return printBatch(app, "tagged", res)
		}
		out, err := c.svc.TagDocument(ctx, path)
		if err != nil {
			if errors.Is(err, apperr.ErrConcurrentEdit) {
				fmt.Fprintf(app.out, "skipped: %s changed during tagging\n", path)
				return nil
			}
			return err
		}
		if out == tagservice.OutcomeUnchanged {
			fmt.Fprintf(app.out, "unchanged: %s\n", path)
		}
		return nil
	})
}

// RunUntag untags one document, or every document when all is set.
func RunUntag(ctx context.Context, path string, all bool, opts ...Option) error {
	return oneShot(ctx, opts, func(ctx context.Context, app *application, c *components) error {
		if all {
			res, err := c.svc.UntagAll(ctx)
			if err != nil {
				return err
			}
			return printBatch(app, "untagged", res)
		}
		changed, err := c.svc.UntagDocument(ctx, path)
		if err != nil {
			return err
		}
		if !changed {
			fmt.Fprintf(app.out, "unchanged: %s\n", path)
		}
		return nil
	})
}

// RunModels prints the models offered by the language model service.
func RunModels(ctx context.Context, opts ...Option) error {
	return oneShot(ctx, opts, func(ctx context.Context, app *application, c *components) error {
		selected := c.state.Model()
		for _, name := range c.svc.Models(ctx) {
			marker := " "
			if name == selected {
				marker = "*"
			}
			fmt.Fprintf(app.out, "%s %s\n", marker, name)
		}
		return nil
	})
}

// RunMCP serves the tagging tools over MCP stdio. Logs go to stderr since
// stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := applyOptions(opts)
	if err != nil {
		return err
	}
	logger := newLogger(app.config, os.Stderr)
	c, err := wire(ctx, app.config, logger, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	logger.Info("mcp: serving on stdio", slog.String("vault_path", app.config.Vault.Path))
	return mcpserver.New(c.svc, Version).ServeStdio()
}

func oneShot(ctx context.Context, opts []Option, fn func(context.Context, *application, *components) error) error {
	app, err := applyOptions(opts)
	if err != nil {
		return err
	}
	logger := newLogger(app.config, os.Stderr)
	c, err := wire(ctx, app.config, logger, printNotifier{w: app.out})
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(ctx, app, c)
}

func printBatch(app *application, verb string, res tagservice.BatchResult) error {
	fmt.Fprintf(app.out, "%s %d of %d documents (%d unchanged, %d skipped, %d failed)\n",
		verb, res.Changed, res.Total, res.Unchanged, res.Skipped, res.Failed)
	if res.Failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrBatchFailures, res.Failed, res.Total)
	}
	return nil
}
