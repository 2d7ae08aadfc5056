// Command dasite is a visual-regression testing tool for websites: it
// captures full-page screenshots with headless Chrome, optionally crawling
// same-domain links breadth-first, and compares captures against accepted
// baselines.
//
// Usage:
//
//	dasite https://example.com                  # capture the seed page
//	dasite -crawl https://example.com           # crawl and capture the site
//	dasite -compare https://example.com         # capture then compare
//	dasite -accept                              # promote current -> baseline
//	dasite -compare -report -threshold 0.5 https://example.com
//
// Crawling is opt-in: without -crawl only the seed URL is captured.
//
// Exit codes: 0 on success (including first-run baseline creation); 1 on any
// error, when differences exceed the threshold, or on any detected
// difference under the default zero threshold.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/dasite/crawl"
	"github.com/hazyhaar/dasite/history"
	"github.com/hazyhaar/dasite/idgen"
	"github.com/hazyhaar/dasite/imagediff"
	"github.com/hazyhaar/dasite/mcptool"
	"github.com/hazyhaar/dasite/report"
	"github.com/hazyhaar/dasite/snapshot"
)

type flags struct {
	configPath string
	crawl      bool
	compare    bool
	accept     bool
	threshold  float64
	output     string
	report     bool
	export     string
	format     string
	pruneDays  int
	exportDir  string
	importDir  string
	serveAddr  string
	mcpMode    bool
	historyN   int
	remote     string
	headful    bool
	stealth    bool
	maxPages   int
	logLevel   string
}

func main() {
	var f flags
	flag.StringVar(&f.configPath, "config", "", "path to dasite.yaml config file")
	flag.BoolVar(&f.crawl, "crawl", false, "follow same-domain links breadth-first (default: capture only the seed URL)")
	flag.BoolVar(&f.compare, "compare", false, "compare current captures against baselines after capture")
	flag.BoolVar(&f.accept, "accept", false, "promote every current capture to baseline and exit")
	flag.Float64Var(&f.threshold, "threshold", 0, "overall failure cutoff in percent (fail iff max diff is strictly greater)")
	flag.StringVar(&f.output, "output", "", "output directory (default ./dasite)")
	flag.BoolVar(&f.report, "report", false, "write an HTML report after comparing")
	flag.StringVar(&f.export, "export", "", "export the comparison report to this path")
	flag.StringVar(&f.format, "format", "json", "export format: pdf | json | markdown")
	flag.IntVar(&f.pruneDays, "prune", 0, "delete baselines older than N days and exit")
	flag.StringVar(&f.exportDir, "export-baselines", "", "copy all baselines into this directory and exit")
	flag.StringVar(&f.importDir, "import-baselines", "", "import baselines from this directory and exit")
	flag.StringVar(&f.serveAddr, "serve", "", "serve the output directory report viewer on this address and block")
	flag.BoolVar(&f.mcpMode, "mcp", false, "run as an MCP stdio server exposing capture/compare/accept tools")
	flag.IntVar(&f.historyN, "history", 0, "print the last N runs and exit")
	flag.StringVar(&f.remote, "remote", "", "WebSocket URL of a running Chrome to attach to instead of launching")
	flag.BoolVar(&f.headful, "headful", false, "show the browser window")
	flag.BoolVar(&f.stealth, "stealth", false, "apply anti-detection page setup")
	flag.IntVar(&f.maxPages, "max-pages", 0, "crawl page limit (0 = unlimited)")
	flag.StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch f.logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, &f, flag.Args()); err != nil {
		logger.Error("dasite: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, f *flags, args []string) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}

	store := snapshot.New(cfg.Output, logger)

	diffOpts, err := diffOptions(cfg)
	if err != nil {
		return err
	}

	// Management modes run one operation and return.
	switch {
	case f.historyN > 0:
		return printHistory(ctx, cfg.Output, f.historyN)
	case f.pruneDays > 0:
		removed, err := store.Prune(time.Duration(f.pruneDays) * 24 * time.Hour)
		if err != nil {
			return err
		}
		fmt.Printf("pruned %d baselines older than %d days\n", removed, f.pruneDays)
		return nil
	case f.exportDir != "":
		count, err := store.Export(f.exportDir)
		if err != nil {
			return err
		}
		fmt.Printf("exported %d baselines to %s\n", count, f.exportDir)
		return nil
	case f.importDir != "":
		count, err := store.Import(f.importDir)
		if err != nil {
			return err
		}
		fmt.Printf("imported %d baselines from %s\n", count, f.importDir)
		return nil
	case f.accept:
		count, err := store.Accept()
		if err != nil {
			return err
		}
		fmt.Printf("accepted %d captures as baselines\n", count)
		return nil
	case f.serveAddr != "":
		return report.Serve(ctx, f.serveAddr, cfg.Output, logger)
	case f.mcpMode:
		return runMCP(ctx, logger, cfg, store, diffOpts)
	}

	seedURL := ""
	if len(args) > 0 {
		seedURL = args[0]
	}

	if seedURL != "" {
		if err := capture(ctx, logger, cfg, store, seedURL); err != nil {
			return err
		}
	}

	if !wantsCompare(f) {
		if seedURL == "" {
			flag.Usage()
			return fmt.Errorf("dasite: nothing to do: pass a <url> or a mode flag")
		}
		return nil
	}

	return compareAndReport(ctx, logger, f, cfg, store, diffOpts, seedURL)
}

// wantsCompare reports whether this invocation should run the comparison.
// -report and -export only make sense over comparison results, so either
// implies -compare rather than silently doing nothing.
func wantsCompare(f *flags) bool {
	return f.compare || f.report || f.export != ""
}

func loadConfig(f *flags) (*crawl.Config, error) {
	var cfg *crawl.Config
	var err error
	if f.configPath != "" {
		cfg, err = crawl.LoadConfigFile(f.configPath)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = crawl.DefaultConfig()
	}

	// Flags that were set on the command line override the file.
	set := make(map[string]bool)
	flag.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	if set["output"] {
		cfg.Output = f.output
	}
	if set["crawl"] {
		cfg.Crawl.Enabled = f.crawl
	}
	if set["max-pages"] {
		cfg.Crawl.MaxPages = f.maxPages
	}
	if set["threshold"] {
		cfg.Compare.Threshold = f.threshold
	}
	if set["remote"] {
		cfg.Browser.Remote = f.remote
	}
	if set["headful"] {
		cfg.Browser.Headful = f.headful
	}
	if set["stealth"] {
		cfg.Browser.Stealth = f.stealth
	}
	if set["report"] {
		cfg.Report.HTML = f.report
	}
	return cfg, nil
}

func diffOptions(cfg *crawl.Config) (imagediff.Options, error) {
	highlight, err := imagediff.ParseHexColor(cfg.Compare.Highlight)
	if err != nil {
		return imagediff.Options{}, err
	}
	return imagediff.Options{
		PixelThreshold: cfg.Compare.PixelThreshold,
		Highlight:      highlight,
		Alpha:          cfg.Compare.Alpha,
	}, nil
}

// capture launches the browser, runs the crawl (or single-page visit), and
// guarantees the browser is closed even when the crawl errors.
func capture(ctx context.Context, logger *slog.Logger, cfg *crawl.Config, store *snapshot.Store, seedURL string) error {
	browser, err := crawl.StartBrowser(ctx, crawl.BrowserOptions{
		RemoteURL:  cfg.Browser.Remote,
		Headful:    cfg.Browser.Headful,
		Stealth:    cfg.Browser.Stealth,
		NavTimeout: cfg.Browser.NavTimeout,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	defer browser.Close()

	crawler := crawl.New(browser, store, logger,
		crawl.WithFollowLinks(cfg.Crawl.Enabled),
		crawl.WithMaxPages(cfg.Crawl.MaxPages),
	)

	result, err := crawler.Run(ctx, seedURL)
	if err != nil {
		return err
	}
	fmt.Printf("captured %d pages (%d failed)\n", len(result.Visited), result.Failed)
	return nil
}

func compareAndReport(ctx context.Context, logger *slog.Logger, f *flags, cfg *crawl.Config, store *snapshot.Store, diffOpts imagediff.Options, seedURL string) error {
	comparisons, err := store.CompareAll(diffOpts)
	if err != nil {
		return err
	}
	if len(comparisons) == 0 {
		fmt.Println("no screenshots to compare; capture some pages first")
		return nil
	}

	run := report.Build(idgen.Prefixed("run_", idgen.Default)(), seedURL, cfg.Compare.Threshold, comparisons)

	if hist, err := history.Open(cfg.Output); err != nil {
		logger.Warn("dasite: history unavailable", "error", err)
	} else {
		if err := hist.RecordRun(ctx, run); err != nil {
			logger.Warn("dasite: record run failed", "error", err)
		}
		hist.Close()
	}

	if cfg.Report.HTML {
		path, err := report.WriteHTML(run, cfg.Output, cfg.Report.Title)
		if err != nil {
			return err
		}
		fmt.Printf("report written to %s\n", path)
	}

	if f.export != "" {
		if err := exportRun(run, f, cfg); err != nil {
			return err
		}
		fmt.Printf("exported %s report to %s\n", f.format, f.export)
	}

	if run.CreatedBaselines > 0 {
		fmt.Printf("%d baselines created, re-run to compare\n", run.CreatedBaselines)
	}
	for _, t := range run.Targets {
		if t.Changed {
			fmt.Printf("%s: %.4f%% changed (%d regions)\n", t.Target, t.DiffPercentage, len(t.Regions))
		}
	}

	if run.Errors > 0 {
		return fmt.Errorf("dasite: %d comparisons failed", run.Errors)
	}
	if !run.Passed {
		return fmt.Errorf("dasite: differences exceed threshold: max diff %.4f%% > threshold %.4f%%",
			run.MaxDiff, run.Threshold)
	}
	fmt.Printf("pass: %d targets, %d changed, max diff %.4f%% (threshold %.4f%%)\n",
		len(run.Targets), run.ChangedCount, run.MaxDiff, run.Threshold)
	return nil
}

func exportRun(run *report.Run, f *flags, cfg *crawl.Config) error {
	switch f.format {
	case "json":
		return report.WriteJSON(run, f.export)
	case "markdown":
		return report.WriteMarkdown(run, cfg.Output, cfg.Report.Title, f.export)
	case "pdf":
		return report.WritePDF(run, f.export)
	default:
		return fmt.Errorf("dasite: unknown export format %q (want pdf, json or markdown)", f.format)
	}
}

func printHistory(ctx context.Context, outputDir string, n int) error {
	hist, err := history.Open(outputDir)
	if err != nil {
		return err
	}
	defer hist.Close()

	runs, err := hist.RecentRuns(ctx, n)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no recorded runs")
		return nil
	}
	for _, r := range runs {
		status := "pass"
		if !r.Passed {
			status = "FAIL"
		}
		fmt.Printf("%s  %s  %s  targets=%d changed=%d max_diff=%.4f%% threshold=%.4f%%\n",
			r.StartedAt.Format(time.RFC3339), status, r.ID, r.Targets, r.Changed, r.MaxDiff, r.Threshold)
	}
	return nil
}

// runMCP serves dasite tools over stdio. Captures launch a browser per call
// so the server holds no Chrome between requests.
func runMCP(ctx context.Context, logger *slog.Logger, cfg *crawl.Config, store *snapshot.Store, diffOpts imagediff.Options) error {
	captureFn := func(ctx context.Context, pageURL string) (string, error) {
		browser, err := crawl.StartBrowser(ctx, crawl.BrowserOptions{
			RemoteURL:  cfg.Browser.Remote,
			Headful:    cfg.Browser.Headful,
			Stealth:    cfg.Browser.Stealth,
			NavTimeout: cfg.Browser.NavTimeout,
			Logger:     logger,
		})
		if err != nil {
			return "", err
		}
		defer browser.Close()

		crawler := crawl.New(browser, store, logger)
		result, err := crawler.Run(ctx, pageURL)
		if err != nil {
			return "", err
		}
		if len(result.Visited) == 0 {
			return "", fmt.Errorf("dasite: nothing captured for %s", pageURL)
		}
		return result.Visited[0], nil
	}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "dasite",
		Version: "1.0.0",
	}, nil)
	mcptool.New(store, diffOpts, captureFn, logger).Register(srv)

	logger.Info("dasite: MCP stdio server starting", "output", filepath.Clean(cfg.Output))
	return mcptool.Serve(ctx, srv)
}
