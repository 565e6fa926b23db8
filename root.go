package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/ghdrive/internal/config"
	"github.com/tonimelisma/ghdrive/internal/ghapi"
	"github.com/tonimelisma/ghdrive/internal/namespace"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagJSON       bool
	flagVerbose    bool
	flagDebug      bool
	flagQuiet      bool
)

// skipConfigAnnotation marks commands that must run even when the config
// file is broken, such as logout.
const skipConfigAnnotation = "ghdrive/skip-config"

// errAborted is returned when the user declines a confirmation prompt.
var errAborted = errors.New("aborted")

// CLIFlags is a snapshot of the global flags for one invocation.
type CLIFlags struct {
	ConfigPath string
	JSON       bool
	Verbose    bool
	Debug      bool
	Quiet      bool
}

// CLIContext carries everything a command needs after the root pre-run:
// resolved config, logger, and flags. Commands fetch it with
// mustCLIContext(cmd.Context()).
type CLIContext struct {
	Flags   CLIFlags
	Cfg     *config.Config
	CfgPath string
	Env     config.EnvOverrides
	Logger  *slog.Logger
	Level   *slog.LevelVar
}

type cliContextKey struct{}

func withCLIContext(ctx context.Context, cc *CLIContext) context.Context {
	return context.WithValue(ctx, cliContextKey{}, cc)
}

// mustCLIContext returns the CLIContext installed by the root pre-run.
// A missing context is a programming error.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		panic("CLIContext not set: command ran without the root PersistentPreRunE")
	}

	return cc
}

func currentFlags() CLIFlags {
	return CLIFlags{
		ConfigPath: flagConfigPath,
		JSON:       flagJSON,
		Verbose:    flagVerbose,
		Debug:      flagDebug,
		Quiet:      flagQuiet,
	}
}

// newRootCmd builds the root command with every subcommand registered.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ghdrive",
		Short: "GitHub as a filesystem",
		Long: `ghdrive exposes GitHub accounts, repositories, folders and files as one
path hierarchy:

  owner/repo/dir/file.txt

Paths can be listed, read and written from the command line or through a
FUSE mount. Every write is a commit on the repository's default branch.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := loadCLIContext(cmd)
			if err != nil {
				return err
			}

			cmd.SetContext(withCLIContext(cmd.Context(), cc))

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log informational messages")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "log debug messages including every API call")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "only log errors and suppress status output")

	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
	cmd.MarkFlagsMutuallyExclusive("debug", "quiet")

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newWhoamiCmd())
	cmd.AddCommand(newLsCmd())
	cmd.AddCommand(newCatCmd())
	cmd.AddCommand(newPutCmd())
	cmd.AddCommand(newRmCmd())
	cmd.AddCommand(newRmrepoCmd())
	cmd.AddCommand(newMkdirCmd())
	cmd.AddCommand(newStatCmd())
	cmd.AddCommand(newMountCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newCacheCmd())

	return cmd
}

// loadCLIContext resolves configuration through the override chain and
// builds the logger. Commands annotated with skipConfigAnnotation fall
// back to defaults when the file cannot be loaded.
func loadCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	flags := currentFlags()
	env := config.ReadEnvOverrides()

	cli := config.CLIOverrides{
		ConfigPath: flags.ConfigPath,
		LogLevel:   cliLogLevel(flags),
	}

	if f := cmd.Flags().Lookup("read-only"); f != nil && f.Changed {
		readOnly := f.Value.String() == "true"
		cli.ReadOnly = &readOnly
	}

	cfg, path, err := config.Resolve(env, cli)
	if err != nil {
		if cmd.Annotations[skipConfigAnnotation] != "true" {
			return nil, fmt.Errorf("loading config: %w", err)
		}

		cfg = config.DefaultConfig()
	}

	level := new(slog.LevelVar)
	level.Set(parseLevel(cfg.Logging.LogLevel))

	logger := newLogger(os.Stderr, cfg.Logging.LogFormat, level, isTerminal(os.Stderr))
	if err != nil {
		logger.Warn("ignoring unloadable config", slog.String("path", path), slog.String("error", err.Error()))
	}

	return &CLIContext{
		Flags:   flags,
		Cfg:     cfg,
		CfgPath: path,
		Env:     env,
		Logger:  logger,
		Level:   level,
	}, nil
}

// cliLogLevel turns the verbosity flags into a log level override.
// Flags always beat config and environment.
func cliLogLevel(flags CLIFlags) *string {
	var level string

	switch {
	case flags.Debug:
		level = "debug"
	case flags.Verbose:
		level = "info"
	case flags.Quiet:
		level = "error"
	default:
		return nil
	}

	return &level
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// newLogger builds the process logger. format "auto" picks text on a
// terminal and JSON otherwise.
func newLogger(w io.Writer, format string, level *slog.LevelVar, tty bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	if format == "json" || (format == "auto" && !tty) {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	if hint := errorHint(err); hint != "" {
		fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	}

	os.Exit(1)
}

// errorHint suggests a next step for well-known failures.
func errorHint(err error) string {
	switch {
	case errors.Is(err, ghapi.ErrNotLoggedIn), errors.Is(err, ghapi.ErrUnauthorized):
		return "run 'ghdrive login' or set GITHUB_TOKEN"
	case errors.Is(err, ghapi.ErrRateLimited):
		return "GitHub rate limit reached; wait and retry"
	case errors.Is(err, namespace.ErrConflict):
		return "the file changed on GitHub since it was read; retry the command"
	case errors.Is(err, namespace.ErrTooLarge):
		return "the repository tree is too large to list in one request"
	case errors.Is(err, namespace.ErrNotEmpty):
		return "use -r to delete a folder and everything in it"
	case errors.Is(err, namespace.ErrUnsupported):
		return "repositories are removed with 'ghdrive rmrepo'; owners cannot be created or deleted"
	default:
		return ""
	}
}
