package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ZebulonRouseFrantzich/manifold/internal/service"
)

const commandTimeout = 2 * time.Minute

// runInstall executes the install command.
func runInstall(args []string) error {
	opts, err := parseArgs(args)
	if err != nil {
		return err
	}
	if opts.help {
		printInstallHelp()
		return nil
	}
	id, err := opts.targetID()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.svc.InstallBase(ctx, service.InstallBaseRequest{ID: id, Mirror: opts.mirror})
	if err != nil {
		return fmt.Errorf("install %s: %w", id, err)
	}
	return a.emit(res.Success, res, func(w io.Writer) {
		fmt.Fprintln(w, res.Message)
		if res.Success {
			printCandidates(w, res.Candidates)
		}
	})
}

// printCandidates writes the optional entries as an aligned table.
func printCandidates(w io.Writer, candidates []service.Candidate) {
	if len(candidates) == 0 {
		fmt.Fprintln(w, "No optional entries available.")
		return
	}

	width := 2
	for _, c := range candidates {
		width = max(width, len(c.ID))
	}

	fmt.Fprintf(w, "\nOptional entries (%d):\n", len(candidates))
	for _, c := range candidates {
		mark := " "
		if c.AlreadyInstalled {
			mark = "*"
		}
		fmt.Fprintf(w, "  %s %-*s  %s\n", mark, width, c.ID, c.Name)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "* = installed")
}

func printInstallHelp() {
	fmt.Println("Install the base script for a title")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  manifold install <id> [options]")
	fmt.Println()
	fmt.Println("Downloads the script and merges keys from metadata. An existing")
	fmt.Println("script is kept; the optional entries are listed either way.")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --mirror <class>   public (default) or alternate")
	fmt.Println("  --json             Print the result as JSON")
	fmt.Println("  -h, --help         Show this help message")
}
