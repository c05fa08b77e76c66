package main

import (
	"context"
	"fmt"
	"io"

	"github.com/ZebulonRouseFrantzich/manifold/internal/service"
)

// runList executes the list command.
func runList(args []string) error {
	opts, err := parseArgs(args)
	if err != nil {
		return err
	}
	if opts.help {
		printListHelp()
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

	res, err := a.svc.ListOptionalEntries(ctx, service.ListRequest{ID: id, Mirror: opts.mirror})
	if err != nil {
		return fmt.Errorf("list %s: %w", id, err)
	}
	return a.emit(res.Success, res, func(w io.Writer) {
		if !res.Success {
			fmt.Fprintln(w, res.Message)
			return
		}
		printCandidates(w, res.Candidates)
	})
}

func printListHelp() {
	fmt.Println("List optional entries for a title")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  manifold list <id> [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --mirror <class>   public (default) or alternate")
	fmt.Println("  --json             Print the result as JSON")
	fmt.Println("  -h, --help         Show this help message")
}
