package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ZebulonRouseFrantzich/manifold/internal/service"
)

// runLogin executes the login command.
func runLogin(args []string) error {
	opts, err := parseArgs(args)
	if err != nil {
		return err
	}
	if opts.help {
		printLoginHelp()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.close()

	var res service.Result
	switch {
	case opts.reload:
		res = a.svc.ReloadCredential()
	case opts.clear:
		res = a.svc.SetCredential("")
	default:
		token, err := loginToken(opts.positional, os.Stdin)
		if err != nil {
			return err
		}
		res = a.svc.SetCredential(token)
	}
	return a.emit(res.Success, res, func(w io.Writer) {
		fmt.Fprintln(w, res.Message)
	})
}

// loginToken takes the token from the arguments, or the first line of r
// when none is given, so it can be piped in without reaching shell history.
func loginToken(positional []string, r io.Reader) (string, error) {
	if len(positional) > 0 {
		return strings.TrimSpace(positional[0]), nil
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read token: %w", err)
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return "", fmt.Errorf("missing token (use --clear to remove the stored one)")
	}
	return token, nil
}

func printLoginHelp() {
	fmt.Println("Store the credential for the alternate mirror")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  manifold login [token] [options]")
	fmt.Println()
	fmt.Println("Without a token argument the token is read from stdin.")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --clear            Remove the stored credential")
	fmt.Println("  --reload           Re-read the credential file")
	fmt.Println("  --json             Print the result as JSON")
	fmt.Println("  -h, --help         Show this help message")
}
