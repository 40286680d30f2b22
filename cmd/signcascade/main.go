// Command signcascade translates text and speech into sign language
// identifier sequences.
//
//	signcascade serve            run the HTTP API
//	signcascade resolve TEXT...  resolve text from the command line
//	signcascade corpus check     validate the reference corpora
//	signcascade mcp              serve MCP tools on stdio
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

	"github.com/MrWong99/signcascade/internal/config"
)

// version is set with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

// cli carries state shared by all subcommands once the root pre-run has
// loaded the configuration.
type cli struct {
	configPath string
	envFile    string
	cfg        *config.Config
	level      slog.LevelVar
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "signcascade",
		Short:         "Translate text and speech into sign language identifiers",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load()
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "config.yaml", "path to the YAML configuration file")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before the configuration; missing files are ignored")

	root.AddCommand(
		newServeCmd(c),
		newResolveCmd(c),
		newCorpusCmd(c),
		newMCPCmd(c),
	)
	return root
}

// load reads the env file and the configuration and installs the logger.
func (c *cli) load() error {
	if c.envFile != "" {
		if err := godotenv.Load(c.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", c.envFile, err)
		}
	}

	cfg, err := config.Load(c.configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file %q not found; copy configs/example.yaml to get started", c.configPath)
		}
		return err
	}
	c.cfg = cfg

	c.level.Set(cfg.LogLevel.Slog())
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &c.level})))
	return nil
}
