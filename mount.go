package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/ghdrive/internal/config"
	"github.com/tonimelisma/ghdrive/internal/ghapi"
	"github.com/tonimelisma/ghdrive/internal/mount"
	"github.com/tonimelisma/ghdrive/internal/namespace"
)

// unmountRetry is how often a busy mountpoint is retried after shutdown.
const unmountRetry = time.Second

// rawRef is the ref streamed reads are served from: the default branch.
const rawRef = "HEAD"

func newMountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mount <mountpoint>",
		Short: "Mount GitHub as a FUSE filesystem",
		Long: `Mount the namespace at a local directory and serve it until interrupted.

Top-level directories are your organizations and your user account. Files
written through the mount are committed when they are closed. Send SIGINT
or SIGTERM to unmount; a second signal exits without waiting.

The config file is watched while mounted; log level changes apply
immediately.`,
		Args: cobra.ExactArgs(1),
		RunE: runMount,
	}

	cmd.Flags().Bool("read-only", false, "reject all writes")
	cmd.Flags().Bool("allow-other", false, "let other users access the mount (needs user_allow_other)")
	cmd.Flags().Bool("fuse-debug", false, "log every FUSE request")

	return cmd
}

func runMount(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	logger := cc.Logger
	ctx := shutdownContext(cmd.Context(), logger)

	allowOther, err := cmd.Flags().GetBool("allow-other")
	if err != nil {
		return err
	}

	fuseDebug, err := cmd.Flags().GetBool("fuse-debug")
	if err != nil {
		return err
	}

	ioCtx, stopIO := mountContext(ctx)
	defer stopIO()

	s, err := NewSession(ioCtx, cc)
	if err != nil {
		return err
	}
	defer s.Close()

	_, _, streamThreshold := cc.Cfg.Sizes()
	_, _, attrTimeout := cc.Cfg.Durations()

	server, err := mount.Mount(ioCtx, mount.Options{
		Mountpoint:      args[0],
		Namespace:       s.Drive,
		Raw:             rawOpener(s.Client),
		StreamThreshold: streamThreshold,
		ReadOnly:        cc.Cfg.Mount.ReadOnly,
		AllowOther:      allowOther || cc.Cfg.Mount.AllowOther,
		AttrTimeout:     attrTimeout,
		Debug:           fuseDebug,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	cc.Statusf("Mounted at %s. Press Ctrl-C to unmount.\n", args[0])

	if err := serve(ctx, cc, server); err != nil {
		return err
	}

	cc.Statusf("Unmounted %s.\n", args[0])

	return nil
}

// mountContext derives the context that remote I/O behind the mount runs
// under. It keeps parent's values but not its cancellation: the first
// signal starts the unmount, and reads and flushes still in flight must
// finish. Call stop once the server has been unmounted.
func mountContext(parent context.Context) (ctx context.Context, stop context.CancelFunc) {
	return context.WithCancel(context.WithoutCancel(parent))
}

// serve runs the mount until it is unmounted externally or ctx ends,
// reloading the config file alongside.
func serve(ctx context.Context, cc *CLIContext, server *fuse.Server) error {
	logger := cc.Logger
	unmounted := make(chan struct{})

	g, gctx := errgroup.WithContext(ctx)
	watchCtx, stopWatch := context.WithCancel(gctx)

	g.Go(func() error {
		server.Wait()
		close(unmounted)

		return nil
	})

	g.Go(func() error {
		defer stopWatch()
		return unmountOnDone(gctx, server, unmounted, logger)
	})

	g.Go(func() error {
		holder := config.NewHolder(cc.Cfg, cc.CfgPath)

		err := config.Watch(watchCtx, holder, logger, func(c *config.Config) {
			applyReload(cc, c)
		})
		if err != nil {
			logger.Warn("config reload disabled", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("serving mount: %w", err)
	}

	return nil
}

// unmountOnDone unmounts once ctx ends, retrying while the mountpoint is
// busy. It returns early if the filesystem was unmounted externally.
func unmountOnDone(ctx context.Context, server *fuse.Server, unmounted <-chan struct{}, logger *slog.Logger) error {
	select {
	case <-unmounted:
		return nil
	case <-ctx.Done():
	}

	for {
		err := server.Unmount()
		if err == nil {
			<-unmounted
			return nil
		}

		logger.Warn("unmount failed, retrying", slog.String("error", err.Error()))

		select {
		case <-unmounted:
			return nil
		case <-time.After(unmountRetry):
		}
	}
}

// applyReload picks up settings that can change while mounted. Only the
// log level qualifies, and only when no verbosity flag pinned it.
func applyReload(cc *CLIContext, c *config.Config) {
	if cliLogLevel(cc.Flags) != nil {
		return
	}

	level := parseLevel(c.Logging.LogLevel)
	if level != cc.Level.Level() {
		cc.Level.Set(level)
		cc.Logger.Info("log level changed", slog.String("level", level.String()))
	}
}

// rawOpener streams large files from the raw content host of the
// default branch.
func rawOpener(c *ghapi.Client) mount.RawOpener {
	return func(ctx context.Context, e namespace.Entity) (io.ReaderAt, error) {
		r, err := c.OpenRaw(ctx, e.Owner, e.Repo, rawRef, e.Path)
		if err != nil {
			return nil, err
		}

		return r, nil
	}
}
