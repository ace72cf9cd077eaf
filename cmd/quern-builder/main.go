package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/cochaviz/quern/internal/config"
	simple "github.com/cochaviz/quern/internal/configurations"
	"github.com/cochaviz/quern/internal/logging"
	"github.com/cochaviz/quern/internal/version"
)

const defaultLogLevel = "info"

func main() {
	var levelVar slog.LevelVar
	levelVar.Set(slog.LevelInfo)

	logger := logging.NewCLI(os.Stderr, &levelVar)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(&logger, &levelVar)
	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("build interrupted", "error", err)
			os.Exit(130)
		}
		logger.Error("build failed", "error", err)
		os.Exit(1)
	}
}

func newRootCommand(logger **slog.Logger, levelVar *slog.LevelVar) *cobra.Command {
	var (
		logLevel  = defaultLogLevel
		logFormat = "text"
	)

	root := &cobra.Command{
		Use:           "quern-builder path/to/quern.yaml [more.yaml ...]",
		Short:         "Build portage-based system images, optionally as docker images",
		Version:       version.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := parseLogLevel(logLevel)
			if err != nil {
				return err
			}
			levelVar.Set(level)

			switch logFormat {
			case "text":
			case "json":
				*logger = logging.NewJSON(os.Stderr, levelVar)
				slog.SetDefault(*logger)
			default:
				return fmt.Errorf("unknown log format %q", logFormat)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return printTemplate(cmd.OutOrStdout(), cmd.CommandPath())
			}

			files, err := expandPaths(args)
			if err != nil {
				return err
			}

			image, err := simple.Build(cmd.Context(), files, os.Environ(), simple.Options{
				Logger: *logger,
				Level:  levelVar,
			})
			if err != nil {
				return err
			}
			(*logger).Info("image ready", "path", strings.TrimPrefix(image.URI, "file://"), "checksum", image.Checksum)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", defaultLogLevel, "Set log verbosity (debug, info, warning, error)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", logFormat, "Set log format (text, json)")
	return root
}

func printTemplate(w io.Writer, command string) error {
	_, err := fmt.Fprintf(w, "Usage: %s path/to/quern.yaml\n\nExample configuration file:\n\n%s", command, config.Template(config.DefaultNamespace))
	return err
}

func expandPaths(paths []string) ([]string, error) {
	expanded := make([]string, 0, len(paths))
	for _, path := range paths {
		p, err := homedir.Expand(path)
		if err != nil {
			return nil, fmt.Errorf("expand %s: %w", path, err)
		}
		expanded = append(expanded, p)
	}
	return expanded, nil
}

func parseLogLevel(value string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error", "err":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", value)
	}
}
