// Package spool converts roster PDFs dropped into a directory on a cron
// schedule.
package spool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/robfig/cron/v3"

	"rostercal/internal/convert"
	appLog "rostercal/internal/log"
	"rostercal/internal/roster"
)

// Watcher scans a spool directory for roster PDFs and writes the generated
// .ics next to them in the output directory. A PDF is converted once; a
// PDF whose output already exists is left alone.
type Watcher struct {
	spoolDir  string
	outputDir string
	cronSpec  string
	extractor roster.TextExtractor
	opts      convert.Options
}

func NewWatcher(spoolDir, outputDir, cronSpec string, extractor roster.TextExtractor, opts convert.Options) *Watcher {
	return &Watcher{
		spoolDir:  spoolDir,
		outputDir: outputDir,
		cronSpec:  cronSpec,
		extractor: extractor,
		opts:      opts,
	}
}

// Run scans once immediately, then on the cron schedule until ctx is
// cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(w.cronSpec, func() {
		w.ScanOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("spool: bad cron expression %q: %w", w.cronSpec, err)
	}

	appLog.Info("spool watcher starting",
		"spool_dir", w.spoolDir,
		"output_dir", w.outputDir,
		"cron", w.cronSpec,
	)

	w.ScanOnce(ctx)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	appLog.Info("spool watcher stopped")
	return nil
}

// ScanOnce converts every pending roster PDF in the spool directory. It
// returns how many documents were converted and any per-document errors;
// one bad roster does not block the rest.
func (w *Watcher) ScanOnce(ctx context.Context) (int, []error) {
	paths, err := filepath.Glob(filepath.Join(w.spoolDir, "*.pdf"))
	if err != nil {
		return 0, []error{fmt.Errorf("spool: scan %s: %w", w.spoolDir, err)}
	}

	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return 0, []error{fmt.Errorf("spool: create output dir: %w", err)}
	}

	converted := 0
	var errs []error
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		outPath := w.outputPathFor(path)
		if _, err := os.Stat(outPath); err == nil {
			continue
		}

		res, err := convert.RunFile(path, w.extractor, w.opts)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(path), err))
			appLog.Error("spool conversion failed", err, "path", path)
			continue
		}
		if err := os.WriteFile(outPath, res.ICS, 0o644); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(path), err))
			appLog.Error("spool output write failed", err, "path", outPath)
			continue
		}

		converted++
		appLog.Info("spool conversion done",
			"roster", filepath.Base(path),
			"output", filepath.Base(outPath),
			"events", len(res.Events),
		)
	}

	return converted, errs
}

// outputPathFor maps spool/roster.pdf to <outputDir>/roster.ics.
func (w *Watcher) outputPathFor(pdfPath string) string {
	base := filepath.Base(pdfPath)
	name := strings.TrimSuffix(base, filepath.Ext(base)) + ".ics"
	return filepath.Join(w.outputDir, name)
}
