package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/ghdrive/internal/namespace"
)

// driveAPI is the namespace surface the file commands use.
// *namespace.Drive satisfies it.
type driveAPI interface {
	Resolve(ctx context.Context, p string) (namespace.Entity, error)
	Children(ctx context.Context, e namespace.Entity) ([]namespace.Entity, error)
	ReadFile(ctx context.Context, p string) ([]byte, namespace.Entity, error)
	CreateFile(ctx context.Context, p string, content []byte) (namespace.Entity, error)
	WriteFile(ctx context.Context, p string, content []byte) (namespace.Entity, error)
	DeleteEntry(ctx context.Context, p string, recursive bool) error
	DeleteRepo(ctx context.Context, p string) error
	CreateDirectory(ctx context.Context, p string) (namespace.Entity, error)
}

func newLsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List owners, repositories, folders or files",
		Long: `List the children of a path. Without a path, lists the organizations
you belong to followed by your own user account.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runLs,
	}

	cmd.Flags().BoolP("long", "l", false, "show kind, size and blob SHA")

	return cmd
}

func newCatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <path>",
		Short: "Print a file's content",
		Args:  cobra.ExactArgs(1),
		RunE:  runCat,
	}
}

func newPutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put <local-file|-> <path>",
		Short: "Commit a local file (or stdin) to a repository path",
		Long: `Upload content to owner/repo/path as one commit on the default branch.
An existing file is overwritten unless --no-clobber is given.`,
		Args: cobra.ExactArgs(2),
		RunE: runPut,
	}

	cmd.Flags().Bool("no-clobber", false, "fail if the file already exists")

	return cmd
}

func newRmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <path>",
		Short: "Delete a file or folder",
		Long: `Delete a file, or with --recursive a folder and everything in it. Each
deleted file is its own commit. Repositories are deleted with rmrepo.`,
		Args: cobra.ExactArgs(1),
		RunE: runRm,
	}

	cmd.Flags().BoolP("recursive", "r", false, "delete folders and their contents")

	return cmd
}

func newRmrepoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rmrepo <owner/repo>",
		Short: "Delete a repository",
		Long: `Permanently delete a repository on GitHub. The token needs the
delete_repo scope. You are asked to type the repository name unless --yes
is given.`,
		Args: cobra.ExactArgs(1),
		RunE: runRmrepo,
	}

	cmd.Flags().Bool("yes", false, "skip the confirmation prompt")

	return cmd
}

func newMkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a repository or folder",
		Long: `Create owner/repo as a new repository, or owner/repo/dir as a folder.
Git does not track empty directories, so a folder is created by committing a
placeholder file (content.placeholder_name) inside it.`,
		Args: cobra.ExactArgs(1),
		RunE: runMkdir,
	}
}

func newStatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <path>",
		Short: "Show what a path resolves to",
		Args:  cobra.ExactArgs(1),
		RunE:  runStat,
	}
}

// cleanRemotePath strips leading and trailing slashes; "" is the root.
func cleanRemotePath(p string) string {
	return strings.Trim(p, "/")
}

// withDrive opens a session for the command and runs fn against its drive.
func withDrive(cmd *cobra.Command, fn func(ctx context.Context, cc *CLIContext, d driveAPI) error) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	s, err := NewSession(ctx, cc)
	if err != nil {
		return err
	}
	defer s.Close()

	return fn(ctx, cc, s.Drive)
}

func runLs(cmd *cobra.Command, args []string) error {
	p := ""
	if len(args) > 0 {
		p = args[0]
	}

	long, err := cmd.Flags().GetBool("long")
	if err != nil {
		return err
	}

	return withDrive(cmd, func(ctx context.Context, cc *CLIContext, d driveAPI) error {
		return listPath(ctx, d, os.Stdout, p, long, cc.Flags.JSON)
	})
}

// listPath prints the children of p, or p itself when it is a file.
func listPath(ctx context.Context, d driveAPI, w io.Writer, p string, long, asJSON bool) error {
	e, err := d.Resolve(ctx, cleanRemotePath(p))
	if err != nil {
		return err
	}

	entries := []namespace.Entity{e}

	if e.IsDir() {
		entries, err = d.Children(ctx, e)
		if err != nil {
			return err
		}
	}

	if asJSON {
		out := make([]entityOutput, 0, len(entries))
		for _, c := range entries {
			out = append(out, toEntityOutput(c))
		}

		return printJSON(w, out)
	}

	if !long {
		for _, c := range entries {
			fmt.Fprintln(w, displayName(c))
		}

		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, c := range entries {
		size := "-"
		if c.Kind == namespace.KindFile {
			size = formatSize(c.Size)
		}

		rows = append(rows, []string{c.Kind.String(), size, shortSha(c.Sha), displayName(c)})
	}

	printTable(w, []string{"KIND", "SIZE", "SHA", "NAME"}, rows)

	return nil
}

func shortSha(sha string) string {
	const n = 7
	if len(sha) > n {
		return sha[:n]
	}

	if sha == "" {
		return "-"
	}

	return sha
}

func runCat(cmd *cobra.Command, args []string) error {
	return withDrive(cmd, func(ctx context.Context, cc *CLIContext, d driveAPI) error {
		data, e, err := d.ReadFile(ctx, cleanRemotePath(args[0]))
		if err != nil {
			return err
		}

		cc.Logger.Debug("cat", slog.String("path", e.VirtualPath()), slog.Int("bytes", len(data)))

		_, err = os.Stdout.Write(data)

		return err
	})
}

func runPut(cmd *cobra.Command, args []string) error {
	noClobber, err := cmd.Flags().GetBool("no-clobber")
	if err != nil {
		return err
	}

	content, err := readLocal(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}

	return withDrive(cmd, func(ctx context.Context, cc *CLIContext, d driveAPI) error {
		e, err := putFile(ctx, d, cleanRemotePath(args[1]), content, noClobber)
		if err != nil {
			return err
		}

		if cc.Flags.JSON {
			return printJSON(os.Stdout, toEntityOutput(e))
		}

		cc.Statusf("Committed /%s (%s, %s)\n", e.VirtualPath(), formatSize(e.Size), shortSha(e.Sha))

		return nil
	})
}

// readLocal reads a local file, or stdin when name is "-".
func readLocal(name string, stdin io.Reader) ([]byte, error) {
	if name == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}

		return data, nil
	}

	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	return data, nil
}

func putFile(ctx context.Context, d driveAPI, p string, content []byte, noClobber bool) (namespace.Entity, error) {
	if noClobber {
		return d.CreateFile(ctx, p, content)
	}

	return d.WriteFile(ctx, p, content)
}

func runRm(cmd *cobra.Command, args []string) error {
	recursive, err := cmd.Flags().GetBool("recursive")
	if err != nil {
		return err
	}

	return withDrive(cmd, func(ctx context.Context, cc *CLIContext, d driveAPI) error {
		p := cleanRemotePath(args[0])

		if err := d.DeleteEntry(ctx, p, recursive); err != nil {
			return err
		}

		cc.Statusf("Deleted /%s\n", p)

		return nil
	})
}

func runRmrepo(cmd *cobra.Command, args []string) error {
	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return err
	}

	p := cleanRemotePath(args[0])

	if !yes && !confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), p) {
		return errAborted
	}

	return withDrive(cmd, func(ctx context.Context, cc *CLIContext, d driveAPI) error {
		if err := d.DeleteRepo(ctx, p); err != nil {
			return err
		}

		cc.Statusf("Deleted repository %s\n", p)

		return nil
	})
}

// confirm asks the user to retype name and reports whether they did.
func confirm(in io.Reader, out io.Writer, name string) bool {
	fmt.Fprintf(out, "This permanently deletes %s and its history.\nType the repository name to confirm: ", name)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}

	return strings.TrimSpace(line) == name
}

func runMkdir(cmd *cobra.Command, args []string) error {
	return withDrive(cmd, func(ctx context.Context, cc *CLIContext, d driveAPI) error {
		e, err := d.CreateDirectory(ctx, cleanRemotePath(args[0]))
		if err != nil {
			return err
		}

		if cc.Flags.JSON {
			return printJSON(os.Stdout, toEntityOutput(e))
		}

		cc.Statusf("Created %s /%s\n", e.Kind, e.VirtualPath())

		return nil
	})
}

func runStat(cmd *cobra.Command, args []string) error {
	return withDrive(cmd, func(ctx context.Context, cc *CLIContext, d driveAPI) error {
		return statPath(ctx, d, os.Stdout, args[0], cc.Flags.JSON)
	})
}

func statPath(ctx context.Context, d driveAPI, w io.Writer, p string, asJSON bool) error {
	e, err := d.Resolve(ctx, cleanRemotePath(p))
	if err != nil {
		return err
	}

	if asJSON {
		return printJSON(w, toEntityOutput(e))
	}

	fmt.Fprintf(w, "Path:  /%s\n", e.VirtualPath())
	fmt.Fprintf(w, "Kind:  %s\n", e.Kind)

	switch e.Kind {
	case namespace.KindRepo:
		fmt.Fprintf(w, "Owner: %s\n", e.Owner)
	case namespace.KindFolder, namespace.KindFile:
		fmt.Fprintf(w, "Repo:  %s/%s\n", e.Owner, e.Repo)

		if e.Sha != "" {
			fmt.Fprintf(w, "SHA:   %s\n", e.Sha)
		}
	}

	if e.Kind == namespace.KindFile {
		fmt.Fprintf(w, "Size:  %s (%d bytes)\n", formatSize(e.Size), e.Size)
	}

	return nil
}
