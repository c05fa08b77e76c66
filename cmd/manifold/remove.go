package main

import (
	"context"
	"fmt"
	"io"

	"github.com/ZebulonRouseFrantzich/manifold/internal/service"
)

// runRemove executes the remove command.
func runRemove(args []string) error {
	opts, err := parseArgs(args)
	if err != nil {
		return err
	}
	if opts.help {
		printRemoveHelp()
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

	res, err := a.svc.RemoveAll(ctx, service.RemoveRequest{ID: id})
	if err != nil {
		return fmt.Errorf("remove %s: %w", id, err)
	}
	return a.emit(res.Success, res, func(w io.Writer) {
		fmt.Fprintln(w, res.Message)
		for _, p := range res.DeletedPaths {
			fmt.Fprintf(w, "  - %s\n", p)
		}
	})
}

func printRemoveHelp() {
	fmt.Println("Remove everything installed for a title")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  manifold remove <id> [options]")
	fmt.Println()
	fmt.Println("Deletes the script, its sidecar, and the revision and stats files")
	fmt.Println("of the title and every entry it references.")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --json             Print the result as JSON")
	fmt.Println("  -h, --help         Show this help message")
}
