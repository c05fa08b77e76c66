package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ZebulonRouseFrantzich/manifold/internal/config"
	"github.com/ZebulonRouseFrantzich/manifold/internal/ident"
	"github.com/ZebulonRouseFrantzich/manifold/internal/logging"
	"github.com/ZebulonRouseFrantzich/manifold/internal/metrics"
	"github.com/ZebulonRouseFrantzich/manifold/internal/mirror"
	"github.com/ZebulonRouseFrantzich/manifold/internal/platform"
	"github.com/ZebulonRouseFrantzich/manifold/internal/service"
)

// errOperationFailed marks a result that was printed but did not succeed.
var errOperationFailed = errors.New("operation failed")

// options are the flags shared by every subcommand.
type options struct {
	configPath string
	mirror     mirror.Class
	json       bool
	metrics    bool
	help       bool
	// clear and reload apply to login only.
	clear      bool
	reload     bool
	positional []string
}

func defaultConfigPath() string {
	if p := os.Getenv("MANIFOLD_CONFIG"); p != "" {
		return p
	}
	return config.DefaultPath()
}

// parseArgs reads flags and positional arguments in any order.
func parseArgs(args []string) (*options, error) {
	opts := &options{configPath: defaultConfigPath(), mirror: mirror.Public}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "--help", "-h":
			opts.help = true
		case "--json":
			opts.json = true
		case "--metrics":
			opts.metrics = true
		case "--alternate":
			opts.mirror = mirror.Alternate
		case "--clear":
			opts.clear = true
		case "--reload":
			opts.reload = true
		case "--config", "--mirror":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("%s requires a value", arg)
			}
			i++
			if arg == "--config" {
				opts.configPath = args[i]
				continue
			}
			class, err := mirror.ParseClass(args[i])
			if err != nil {
				return nil, err
			}
			opts.mirror = class
		default:
			if len(arg) > 1 && arg[0] == '-' {
				return nil, fmt.Errorf("unknown option: %s", arg)
			}
			opts.positional = append(opts.positional, arg)
		}
	}
	return opts, nil
}

// targetID extracts the title id from the first positional argument.
func (o *options) targetID() (string, error) {
	if len(o.positional) == 0 {
		return "", fmt.Errorf("missing id")
	}
	id, ok := ident.Extract(o.positional[0])
	if !ok {
		return "", fmt.Errorf("not an id: %q", o.positional[0])
	}
	return id, nil
}

// app holds what a subcommand needs after startup.
type app struct {
	svc      *service.ManifestService
	logger   *zap.Logger
	registry *prometheus.Registry
	opts     *options
	out      io.Writer
}

func newApp(ctx context.Context, opts *options) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	var m metrics.Metrics = metrics.Noop{}
	var registry *prometheus.Registry
	if cfg.Metrics.Enabled || opts.metrics {
		registry = prometheus.NewRegistry()
		prom, err := metrics.NewProm(cfg.Metrics.Namespace, registry)
		if err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		m = prom
	}

	svc, err := service.NewFromConfig(ctx, cfg, service.Options{
		Metrics:  m,
		Logger:   logger,
		Detector: platform.NewDetector(),
	})
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return &app{svc: svc, logger: logger, registry: registry, opts: opts, out: os.Stdout}, nil
}

func (a *app) close() {
	if a.opts.metrics && a.registry != nil {
		if err := metrics.WriteText(os.Stderr, a.registry); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: write metrics: %v\n", err)
		}
	}
	_ = a.logger.Sync()
}

// emit prints v as JSON or through text, and turns an unsuccessful result
// into errOperationFailed.
func (a *app) emit(success bool, v any, text func(w io.Writer)) error {
	if a.opts.json {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return err
		}
	} else {
		text(a.out)
	}
	if !success {
		return errOperationFailed
	}
	return nil
}
