// Package main provides the cfdeploy binary: manifest-driven application
// deployment against a cloud platform, replacing per-project deploy scripts.
//
// Usage:
//
//	cfdeploy [-config file] <command> [args...]
//
// Commands:
//
//	deploy <manifest.yml>                       - Push every application in the manifest
//	service create <service> <plan> <instance>  - Provision a marketplace service if missing
//	service destroy <instance>                  - Delete a marketplace service instance
//	routes prune                                - Delete orphaned routes
//	url <app> [--https]                         - Print the first URL of an application
//	version                                     - Show version
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/cloudpilot/cfdeploy/internal/core/retry"
	"github.com/cloudpilot/cfdeploy/internal/shell/cf"
	"github.com/cloudpilot/cfdeploy/internal/shell/store"
)

// Exit codes
const (
	ExitSuccess     = 0
	ExitError       = 1
	ExitUsage       = 2
	ExitConfigError = 3
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("cfdeploy", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}

	rest := fs.Args()
	if len(rest) == 0 {
		usage()
		return ExitUsage
	}

	if rest[0] == "version" {
		fmt.Printf("cfdeploy %s (built %s)\n", Version, BuildTime)
		return ExitSuccess
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}
	logger := SetupLogger(cfg)

	deployer, cleanup, err := buildDeployer(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		return ExitConfigError
	}
	defer cleanup()

	ctx := context.Background()
	if err := dispatch(ctx, deployer, rest); err != nil {
		if err == errUsage {
			usage()
			return ExitUsage
		}
		logger.Error("command failed", "command", rest[0], "error", err)
		return ExitError
	}
	return ExitSuccess
}

var errUsage = fmt.Errorf("usage")

// dispatch routes a parsed command line to the deployer.
func dispatch(ctx context.Context, deployer *cf.Deployer, args []string) error {
	switch args[0] {
	case "deploy":
		if len(args) != 2 {
			return errUsage
		}
		return deployer.DeployManifest(ctx, args[1])

	case "service":
		if len(args) < 2 {
			return errUsage
		}
		switch args[1] {
		case "create":
			if len(args) != 5 {
				return errUsage
			}
			return deployer.CreateServiceIfMissing(ctx, args[2], args[3], args[4])
		case "destroy":
			if len(args) != 3 {
				return errUsage
			}
			destroyed, err := deployer.DestroyService(ctx, args[2])
			if err != nil {
				return err
			}
			if !destroyed {
				return fmt.Errorf("service instance %s still exists after deletion", args[2])
			}
			return nil
		}
		return errUsage

	case "routes":
		if len(args) != 2 || args[1] != "prune" {
			return errUsage
		}
		return deployer.DeleteOrphanedRoutes(ctx)

	case "url":
		urlFlags := flag.NewFlagSet("url", flag.ContinueOnError)
		https := urlFlags.Bool("https", false, "Use the https scheme")
		if err := urlFlags.Parse(args[1:]); err != nil {
			return errUsage
		}
		if urlFlags.NArg() != 1 {
			return errUsage
		}
		u, err := deployer.ApplicationURL(ctx, urlFlags.Arg(0), *https)
		if err != nil {
			return err
		}
		fmt.Println(u)
		return nil
	}

	return errUsage
}

// buildDeployer wires the platform client, retry policy, and optional
// deployment history into a deployer.
func buildDeployer(cfg *Config, logger *slog.Logger) (*cf.Deployer, func(), error) {
	client := cf.NewHTTPClient(cf.ClientConfig{
		APIURL:  cfg.API.URL,
		Token:   cfg.API.Token,
		Timeout: cfg.API.Timeout,
	}, logger)

	policy := &retry.Policy{
		MaxAttempts:     cfg.Retry.MaxAttempts,
		Strategy:        retry.Strategy(cfg.Retry.Backoff),
		InitialInterval: cfg.Retry.InitialInterval,
		MaxInterval:     cfg.Retry.MaxInterval,
		Retryable:       cf.IsRetryable,
	}

	cleanup := func() {}
	var history cf.DeployRecorder
	if cfg.History.Enabled {
		s, err := store.NewSQLiteStore(cfg.History.DSN)
		if err != nil {
			return nil, nil, err
		}
		history = s
		cleanup = func() { s.Close() }
	}

	return cf.NewDeployer(client, policy, history, logger), cleanup, nil
}

func usage() {
	fmt.Fprint(os.Stderr, `usage: cfdeploy [-config file] <command> [args...]

Commands:
  deploy <manifest.yml>                       Push every application in the manifest
  service create <service> <plan> <instance>  Provision a marketplace service if missing
  service destroy <instance>                  Delete a marketplace service instance
  routes prune                                Delete orphaned routes
  url <app> [--https]                         Print the first URL of an application
  version                                     Show version
`)
}
