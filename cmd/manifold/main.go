package main

import (
	"errors"
	"fmt"
	"os"
)

// Version will be set at build time via -ldflags
var Version = "v0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		return
	}

	var err error
	switch os.Args[1] {
	case "--version", "version":
		printVersion()
		return
	case "install":
		err = runInstall(os.Args[2:])
	case "list":
		err = runList(os.Args[2:])
	case "select":
		err = runSelect(os.Args[2:])
	case "remove":
		err = runRemove(os.Args[2:])
	case "login":
		err = runLogin(os.Args[2:])
	case "--help", "-h", "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(2)
	}

	if err != nil {
		if !errors.Is(err, errOperationFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("manifold - fetch and merge manifest scripts")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  manifold --version                     Show version information")
	fmt.Println("  manifold install <id> [options]        Install the base script for a title")
	fmt.Println("  manifold list <id> [options]           List optional entries")
	fmt.Println("  manifold select <id> [ids...] [opts]   Replace the optional entries (none clears)")
	fmt.Println("  manifold remove <id> [options]         Remove everything installed for a title")
	fmt.Println("  manifold login [token] [options]       Store, clear or reload the credential")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config <path>    Settings file (default: " + defaultConfigPath() + ")")
	fmt.Println("  --mirror <class>   public (default) or alternate")
	fmt.Println("  --alternate        Shorthand for --mirror alternate")
	fmt.Println("  --json             Print results as JSON")
	fmt.Println("  --metrics          Print Prometheus metrics to stderr on exit")
	fmt.Println()
	fmt.Println("An <id> may be a bare id, a store URL or a label such as \"100 - Example Game\".")
}
