package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rostercal/internal/config"
	"rostercal/internal/convert"
	appLog "rostercal/internal/log"
	"rostercal/internal/roster"
	"rostercal/internal/spool"
	"rostercal/internal/tracker"
	"rostercal/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	logLevel   string

	// One-shot conversion.
	inPath   string
	outPath  string
	cutoff   string
	timezone string

	// Other modes.
	watch bool
	track string
}

func main() {
	flags := parseFlags()

	if flags.logLevel != "" {
		appLog.SetLevel(parseLogLevel(flags.logLevel))
	}
	appLog.Info("rostercal starting", "version", "0.1.0")

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI overrides.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.timezone != "" {
		conf.Timezone = flags.timezone
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	opts := convert.Options{
		Timezone:       conf.Timezone,
		TrackerBaseURL: conf.Tracker.BaseURL,
	}
	if flags.cutoff != "" {
		cutoff, err := time.Parse("2006-01-02", flags.cutoff)
		if err != nil {
			appLog.Error("cutoff must be YYYY-MM-DD", err, "cutoff", flags.cutoff)
			os.Exit(1)
		}
		opts.Cutoff = cutoff
	}

	switch {
	case flags.track != "":
		if err := runTrack(ctx, conf, flags.track); err != nil {
			appLog.Error("track lookup failed", err, "flight", flags.track)
			os.Exit(1)
		}

	case flags.inPath != "":
		if err := runConvert(flags, opts); err != nil {
			appLog.Error("conversion failed", err, "in", flags.inPath)
			os.Exit(1)
		}

	case flags.watch:
		watcher := spool.NewWatcher(conf.SpoolDir, conf.OutputDir, conf.WatchCron,
			roster.NewPDFExtractor(), opts)
		if err := watcher.Run(ctx); err != nil {
			appLog.Error("spool watcher failed", err)
			os.Exit(1)
		}

	default:
		if err := web.StartServer(ctx, conf, roster.NewPDFExtractor()); err != nil {
			appLog.Error("HTTP server failed", err)
			os.Exit(1)
		}
	}

	appLog.Info("rostercal exiting")
}

// runConvert performs one roster-to-calendar conversion and writes the
// output file.
func runConvert(flags flagConfig, opts convert.Options) error {
	res, err := convert.RunFile(flags.inPath, roster.NewPDFExtractor(), opts)
	if err != nil {
		return err
	}

	outPath := flags.outPath
	if outPath == "" {
		outPath = res.Filename
	}
	if err := os.WriteFile(outPath, res.ICS, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}

	fmt.Printf("%s: %d duties, %d events -> %s\n",
		flags.inPath, len(res.Records), len(res.Events), outPath)
	return nil
}

// runTrack prints the playback links for a flight number.
func runTrack(ctx context.Context, conf *config.Config, flightNumber string) error {
	resolver := tracker.NewResolver(conf.Tracker.BaseURL, conf.Tracker.CacheDir)
	links, err := resolver.Resolve(ctx, flightNumber)
	if err != nil {
		return err
	}
	if len(links) == 0 {
		fmt.Printf("no playback links found for %s\n", flightNumber)
		return nil
	}
	for _, link := range links {
		fmt.Println(link)
	}
	return nil
}

func parseLogLevel(s string) appLog.Level {
	switch s {
	case "debug":
		return appLog.LevelDebug
	case "warn":
		return appLog.LevelWarn
	case "error":
		return appLog.LevelError
	default:
		return appLog.LevelInfo
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/rostercal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.StringVar(&cfg.inPath, "in", "", "Roster document to convert (PDF or extracted text); runs once and exits")
	flag.StringVar(&cfg.outPath, "out", "", "Output .ics path (defaults to a name derived from the roster period)")
	flag.StringVar(&cfg.cutoff, "cutoff", "", "Exclude duties before this date (YYYY-MM-DD)")
	flag.StringVar(&cfg.timezone, "timezone", "", "IANA timezone the roster clock times are local to (overrides config)")
	flag.BoolVar(&cfg.watch, "watch", false, "Watch the spool directory on the configured cron schedule")
	flag.StringVar(&cfg.track, "track", "", "Print playback links for a flight number (e.g. LO135) and exit")

	flag.Parse()

	return cfg
}
