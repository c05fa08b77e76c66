package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ZebulonRouseFrantzich/manifold/internal/ident"
	"github.com/ZebulonRouseFrantzich/manifold/internal/service"
)

// runSelect executes the select command.
func runSelect(args []string) error {
	opts, err := parseArgs(args)
	if err != nil {
		return err
	}
	if opts.help {
		printSelectHelp()
		return nil
	}
	id, err := opts.targetID()
	if err != nil {
		return err
	}
	selected, err := selectedIDs(opts.positional[1:])
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

	res, err := a.svc.InstallSelected(ctx, service.InstallSelectedRequest{
		ID:       id,
		Selected: selected,
		Mirror:   opts.mirror,
	})
	if err != nil {
		return fmt.Errorf("select %s: %w", id, err)
	}
	return a.emit(res.Success, res, func(w io.Writer) {
		fmt.Fprintln(w, res.Message)
		if len(res.InstalledIDs) > 0 {
			fmt.Fprintf(w, "Installed: %s\n", strings.Join(res.InstalledIDs, ", "))
		}
		if len(res.FailedIDs) > 0 {
			fmt.Fprintf(w, "Failed: %s\n", strings.Join(res.FailedIDs, ", "))
		}
	})
}

// selectedIDs accepts ids as separate arguments or comma separated.
func selectedIDs(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, ok := ident.Extract(part)
			if !ok {
				return nil, fmt.Errorf("not an id: %q", part)
			}
			out = append(out, id)
		}
	}
	return out, nil
}

func printSelectHelp() {
	fmt.Println("Replace the optional entries of an installed title")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  manifold select <id> [entry-id...] [options]")
	fmt.Println()
	fmt.Println("The given entries replace every optional entry in the script.")
	fmt.Println("With no entries, all optional entries are removed.")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  manifold select 100 101 102")
	fmt.Println("  manifold select 100 101,102 --mirror alternate")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --mirror <class>   public (default) or alternate")
	fmt.Println("  --json             Print the result as JSON")
	fmt.Println("  -h, --help         Show this help message")
}
