package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// statusf prints a status message to stderr unless --quiet is set.
func statusf(format string, args ...any) {
	if !flagQuiet {
		fmt.Fprintf(stderr, format, args...)
	}
}

// countPrinter formats counts with thousands separators in summaries.
var countPrinter = message.NewPrinter(language.English)

// formatCount returns n with thousands separators (e.g. "12,345").
func formatCount(n int) string {
	return countPrinter.Sprintf("%d", n)
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
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
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	printRow(w, headers, widths)

	for _, row := range rows {
		printRow(w, row, widths)
	}
}

// printRow writes a single padded row.
func printRow(w io.Writer, cells []string, widths []int) {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
	}

	fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// progressLine returns a callback that redraws "label done/total" in place
// on w, or nil when w is not a terminal or --quiet is set. Callers never
// invoke the callback concurrently.
func progressLine(w io.Writer, label string) func(done, total int) {
	if flagQuiet || !isTerminal(w) {
		return nil
	}

	return func(done, total int) {
		fmt.Fprintf(w, "\r%s %s/%s", label, formatCount(done), formatCount(total))

		if done == total {
			fmt.Fprintln(w)
		}
	}
}
