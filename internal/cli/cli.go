// Package cli implements the command-line interface for bagbrowser.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os/signal"
	"sort"
	"syscall"

	"github.com/bagbrowser/bagbrowser/internal/app"
	"github.com/bagbrowser/bagbrowser/internal/config"
	"github.com/bagbrowser/bagbrowser/internal/query"
	"github.com/bagbrowser/bagbrowser/pkg/humanfmt"
	"github.com/bagbrowser/bagbrowser/pkg/logging"
)

// Build information, set by main.
var (
	Version = "dev"
	Commit  = "unknown"
)

const usage = `usage: bagbrowser <command> [options]
commands:
  serve     run the HTTP API and/or the ingest daemon (see -mode)
  freshen   fetch manifests for bags the cache does not hold yet, once
  spaces    print the number of cached bags per space
  query     print one page of bags matching a query
  version   print version information`

// Run executes the CLI with the given arguments, writing command output to stdout.
func Run(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	switch args[0] {
	case "serve":
		return runServe(args[1:])
	case "freshen":
		return runFreshen(args[1:], stdout)
	case "spaces":
		return runSpaces(args[1:], stdout)
	case "query":
		return runQuery(args[1:], stdout)
	case "version":
		fmt.Fprintf(stdout, "bagbrowser version %s (commit: %s)\n", Version, Commit)
		return nil
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage)
		return nil
	default:
		return fmt.Errorf("unknown command: %s\n%s", args[0], usage)
	}
}

// commonFlags are accepted by every command that touches the cache.
type commonFlags struct {
	configFile string
	dataDir    string
	database   string
	debug      bool
	human      bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configFile, "config", "", "path to configuration file (YAML or JSON)")
	fs.StringVar(&c.dataDir, "data-dir", "", "base directory for local state")
	fs.StringVar(&c.database, "db", "", "path to the bag cache database")
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging")
	fs.BoolVar(&c.human, "human", false, "human-readable console logs")
}

// load builds the configuration: defaults, then file, then environment,
// then flags. It also initializes the process logger.
func (c *commonFlags) load() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if c.configFile != "" {
		var err error
		cfg, err = config.LoadFromFile(c.configFile)
		if err != nil {
			return nil, err
		}
	}
	if err := config.LoadFromEnv(cfg); err != nil {
		return nil, err
	}

	if c.dataDir != "" {
		cfg.DataDir = c.dataDir
	}
	if c.database != "" {
		cfg.DatabasePath = c.database
	}
	if c.debug {
		cfg.Log.Debug = true
	}
	if c.human {
		cfg.Log.Human = true
	}

	cfg.Resolve()
	logging.Init(cfg.Log.Debug, cfg.Log.Human)
	return cfg, nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	mode := fs.String("mode", "", "services to run: all, serve, ingest")
	addr := fs.String("addr", "", "HTTP listen address")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := common.load()
	if err != nil {
		return err
	}
	if *mode != "" {
		cfg.Mode = config.Mode(*mode)
	}
	if *addr != "" {
		cfg.HTTP.Addr = *addr
	}

	application, err := app.New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		return err
	}
	return application.WaitForShutdown(ctx)
}

func runFreshen(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("freshen", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	source := fs.String("source", "", "manifest source type: local, s3")
	path := fs.String("path", "", "manifest root directory for the local source")
	bucket := fs.String("bucket", "", "manifest bucket for the s3 source")
	prefix := fs.String("prefix", "", "key prefix of the manifests")
	batchSize := fs.Int("batch-size", 0, "bags per commit")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := common.load()
	if err != nil {
		return err
	}
	if *source != "" {
		cfg.Ingest.Source.Type = *source
	}
	if *path != "" {
		cfg.Ingest.Source.Path = *path
	}
	if *bucket != "" {
		cfg.Ingest.Source.Bucket = *bucket
	}
	if *prefix != "" {
		cfg.Ingest.Source.Prefix = *prefix
	}
	if *batchSize > 0 {
		cfg.Ingest.BatchSize = *batchSize
	}
	cfg.Mode = config.ModeIngest
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cat, err := app.OpenCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	defer cat.Close()

	freshener, err := app.NewFreshener(ctx, cfg, cat)
	if err != nil {
		return err
	}

	stats, err := freshener.Freshen(ctx)
	fmt.Fprintf(stdout, "listed %s, already cached %s, stored %s, missing %s in %s\n",
		humanfmt.IntComma(int64(stats.Listed)),
		humanfmt.IntComma(int64(stats.Known)),
		humanfmt.IntComma(int64(stats.Stored)),
		humanfmt.IntComma(int64(stats.Missing)),
		humanfmt.Duration(stats.Duration))
	return err
}

func runSpaces(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("spaces", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := common.load()
	if err != nil {
		return err
	}

	ctx := context.Background()
	cat, err := app.OpenCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	defer cat.Close()

	counts, err := cat.Spaces(ctx)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(stdout, "%s\t%s\n", name, humanfmt.IntComma(counts[name]))
	}
	return nil
}

func runQuery(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	space := fs.String("space", "", "space to query (required)")
	prefix := fs.String("prefix", "", "external identifier prefix")
	after := fs.String("created-after", "", "earliest creation date, e.g. 2019-01-01")
	before := fs.String("created-before", "", "latest creation date, e.g. 2019-12-31")
	page := fs.Int("page", 1, "page number, starting at 1")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *space == "" {
		return errors.New("-space is required")
	}

	cfg, err := common.load()
	if err != nil {
		return err
	}

	qc, err := query.NewContext(*space, *prefix, *after, *before, *page, cfg.Query.PageSize)
	if err != nil {
		return err
	}

	ctx := context.Background()
	cat, err := app.OpenCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	defer cat.Close()

	result, err := cat.QueryUncached(ctx, qc)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "%s bags, %s files, %s (page %d of %d)\n",
		humanfmt.IntComma(result.TotalCount),
		humanfmt.IntComma(result.TotalFileCount),
		humanfmt.Bytes(result.TotalFileSize),
		qc.Page, result.TotalPages(qc.PageSize))
	for _, bag := range result.Bags {
		fmt.Fprintf(stdout, "%s\t%s\t%s\t%s\n",
			bag.ID(),
			bag.CreatedDate,
			humanfmt.IntComma(bag.FileCount),
			humanfmt.Bytes(bag.TotalFileSize))
	}
	return nil
}
