package exporter

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"haruki-wwise-audio/utils"
	"haruki-wwise-audio/utils/wwisecodecs/bnk"
	harukiLogger "haruki-wwise-audio/utils/logger"
)

var logger = harukiLogger.NewLogger("Exporter", "INFO", nil)

const defaultConcurrency = 16

// Result is the outcome of one entry of a batch.
type Result struct {
	Location string
	Path     string
	Skipped  bool
	Err      error
}

type Summary struct {
	Total   int
	Dumped  int
	Skipped int
	Failed  int
	Results []Result
}

// ExportEntries writes entries under outputDir with bounded concurrency. A
// failing entry is logged and counted; it never stops the others. The
// returned error is only set when ctx ends the batch early.
func ExportEntries(ctx context.Context, outputDir string, entries []bnk.Entry, opts Options) (Summary, error) {
	workers := opts.Concurrency
	if workers <= 0 {
		workers = defaultConcurrency
	}
	results := make([]Result, len(entries))
	var done atomic.Int64

	var g errgroup.Group
	g.SetLimit(workers)
	for i, entry := range entries {
		i, entry := i, entry
		if ctx.Err() != nil {
			results[i] = Result{Location: entry.Location(false), Err: ctx.Err()}
			continue
		}
		g.Go(func() error {
			results[i] = safeExportOne(ctx, outputDir, entry, opts)
			res := results[i]
			n := int(done.Add(1))
			switch {
			case res.Err != nil:
				logger.Warnf("Unable to dump %s: %v", res.Location, res.Err)
			case res.Skipped:
				logger.Debugf("%s already exists, skipping...", res.Location)
			default:
				logger.Progressf(n, len(entries), "Dumped %s", res.Location)
			}
			return nil
		})
	}
	_ = g.Wait()

	summary := Summary{Total: len(entries), Results: results}
	for _, r := range results {
		switch {
		case r.Err != nil:
			summary.Failed++
		case r.Skipped:
			summary.Skipped++
		default:
			summary.Dumped++
		}
	}
	logger.Infof("Dumped %d out of %d entries !!", summary.Dumped, summary.Total)
	return summary, ctx.Err()
}

// safeExportOne turns a panic while exporting entry into a failed Result.
func safeExportOne(ctx context.Context, outputDir string, entry bnk.Entry, opts Options) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			if res.Location == "" {
				res.Location = entry.Location(opts.Convert)
				res.Path = outputPath(outputDir, entry.Type(), res.Location)
			}
			res.Skipped = false
			res.Err = fmt.Errorf("panic in export of %d: %v", entry.ID(), r)
		}
	}()
	return exportOne(ctx, outputDir, entry, opts)
}

func exportOne(ctx context.Context, outputDir string, entry bnk.Entry, opts Options) Result {
	location := entry.Location(opts.Convert)
	res := Result{Location: location, Path: outputPath(outputDir, entry.Type(), location)}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	if opts.SkipExisting && exported(res.Path, opts) {
		res.Skipped = true
		return res
	}
	res.Err = ExportEntry(entry, res.Path, opts)
	return res
}

// exported reports whether a previous run already produced path, or its
// post conversion output when the WAV was removed afterwards.
func exported(path string, opts Options) bool {
	if utils.FileExists(path) {
		return true
	}
	target, ok := postConvertPath(path, opts.PostConvert)
	return ok && utils.FileExists(target)
}
