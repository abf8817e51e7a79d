package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/odyssey-erp/vendorsync/cmd/vendorctl/cli"
	"github.com/odyssey-erp/vendorsync/internal/importer"
	"github.com/odyssey-erp/vendorsync/internal/platform/db"
	"github.com/odyssey-erp/vendorsync/migrations"
)

const usage = `usage: vendorctl <command> [flags]

commands:
  validate         check vendor and pricing rule files
  import           queue an import for a vendor
  test-connection  check that a vendor's feed answers
  queue            show queue statistics
  migrate          apply database migrations
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
	os.Exit(run(os.Args[1], os.Args[2:]))
}

func run(command string, args []string) int {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	redisAddr := fs.String("redis", envOr("REDIS_ADDR", "127.0.0.1:6379"), "redis address")

	switch command {
	case "validate":
		vendorsFile := fs.String("vendors", envOr("VENDORS_FILE", ""), "vendor config file")
		rulesFile := fs.String("rules", envOr("RULES_FILE", ""), "pricing rules file")
		jsonOut := fs.Bool("json", false, "emit JSON")
		if err := fs.Parse(args); err != nil {
			return 1
		}
		return cli.ValidateCommand(cli.ValidateOptions{VendorsFile: *vendorsFile, RulesFile: *rulesFile, JSONOutput: *jsonOut})
	case "import":
		vendorID := fs.Int64("vendor", 0, "vendor id")
		mode := fs.String("mode", string(importer.ModeFull), "import mode: full, new_only or update_only")
		if err := fs.Parse(args); err != nil {
			return 1
		}
		if *vendorID <= 0 {
			fmt.Fprintln(os.Stderr, "import: --vendor is required")
			return 1
		}
		return withJobs(*redisAddr, func(ctx context.Context, jobs *cli.JobsCLI) error {
			taskID, err := jobs.TriggerImport(ctx, *vendorID, importer.Mode(*mode))
			if err != nil {
				return err
			}
			fmt.Printf("queued import for vendor %d as task %s\n", *vendorID, taskID)
			return nil
		})
	case "test-connection":
		vendorsFile := fs.String("vendors", envOr("VENDORS_FILE", ""), "vendor config file")
		vendorID := fs.Int64("vendor", 0, "vendor id")
		timeout := fs.Duration("timeout", 30*time.Second, "feed request timeout")
		if err := fs.Parse(args); err != nil {
			return 1
		}
		ctx, cancel := context.WithTimeout(context.Background(), *timeout+5*time.Second)
		defer cancel()
		return cli.TestConnectionCommand(ctx, cli.ConnectionOptions{VendorsFile: *vendorsFile, VendorID: *vendorID, Timeout: *timeout})
	case "migrate":
		dsn := fs.String("dsn", envOr("PG_DSN", ""), "postgres dsn")
		if err := fs.Parse(args); err != nil {
			return 1
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		pool, err := db.New(ctx, db.Options{DSN: *dsn, ApplicationName: "vendorctl"})
		if err != nil {
			fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
			return 1
		}
		defer pool.Close()
		if err := migrations.Up(ctx, pool); err != nil {
			fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
			return 1
		}
		fmt.Println("migrations applied")
		return 0
	case "queue":
		if err := fs.Parse(args); err != nil {
			return 1
		}
		return withJobs(*redisAddr, func(ctx context.Context, jobs *cli.JobsCLI) error {
			stats, err := jobs.InspectQueue(ctx)
			if err != nil {
				return err
			}
			return json.NewEncoder(os.Stdout).Encode(stats)
		})
	}
	fmt.Fprint(os.Stderr, usage)
	return 1
}

func withJobs(redisAddr string, fn func(context.Context, *cli.JobsCLI) error) int {
	jobs, err := cli.NewJobsCLI(redisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "jobs: %v\n", err)
		return 1
	}
	defer jobs.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := fn(ctx, jobs); err != nil {
		fmt.Fprintf(os.Stderr, "jobs: %v\n", err)
		return 1
	}
	return 0
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
