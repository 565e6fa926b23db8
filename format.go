package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/tonimelisma/ghdrive/internal/namespace"
)

// statusf prints a status message to stderr unless quiet mode is set.
func statusf(quiet bool, format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// Statusf is statusf bound to the invocation's --quiet flag.
func (cc *CLIContext) Statusf(format string, args ...any) {
	statusf(cc.Flags.Quiet, format, args...)
}

// formatSize returns a human-readable size such as "1.5 KiB".
func formatSize(n int64) string {
	if n < 0 {
		n = 0
	}

	return humanize.IBytes(uint64(n))
}

// entityOutput is the JSON shape of one namespace entry.
type entityOutput struct {
	Path  string `json:"path"`
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Owner string `json:"owner,omitempty"`
	Repo  string `json:"repo,omitempty"`
	Sha   string `json:"sha,omitempty"`
	Size  *int64 `json:"size,omitempty"`
}

func toEntityOutput(e namespace.Entity) entityOutput {
	out := entityOutput{
		Path: "/" + e.VirtualPath(),
		Name: displayName(e),
		Kind: e.Kind.String(),
		Sha:  e.Sha,
	}

	switch e.Kind {
	case namespace.KindRepo:
		out.Owner = e.Owner
	case namespace.KindFolder, namespace.KindFile:
		out.Owner = e.Owner
		out.Repo = e.Repo
	}

	if e.Kind == namespace.KindFile {
		size := e.Size
		out.Size = &size
	}

	return out
}

// displayName is the entry's last path segment, with a trailing slash on
// anything that can be listed.
func displayName(e namespace.Entity) string {
	name := e.Name
	if e.Kind == namespace.KindRoot {
		name = "/"
	}

	if e.IsDir() && e.Kind != namespace.KindRoot {
		name += "/"
	}

	return name
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	return nil
}

// printTable writes aligned columns to the given writer.
// headers and each row must have the same length.
func printTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}

	printRow(w, headers, widths)

	for _, row := range rows {
		printRow(w, row, widths)
	}
}

func printRow(w io.Writer, cells []string, widths []int) {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
	}

	fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
}
