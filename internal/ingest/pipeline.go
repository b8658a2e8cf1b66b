// Package ingest drives zipfiles through the parse-place-store cycle. A
// failed zipfile is logged and skipped; a bulk ingest run keeps going past
// individual bad products.
package ingest

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/auscophub/archive/internal/archive"
	"github.com/auscophub/archive/internal/meta"
	"github.com/auscophub/archive/internal/observability"
)

// Result records the outcome of ingesting one zipfile.
type Result struct {
	Zipfile    string
	Meta       *meta.ZipfileMeta
	StoredPath string
	Err        error
}

// Pipeline ingests zipfiles into an archive with a fixed-size worker pool.
type Pipeline struct {
	storer  *archive.Storer
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock
	workers int
}

// New creates a Pipeline writing through the given storer.
func New(storer *archive.Storer, logger *slog.Logger, metrics *observability.Metrics, workers int) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		storer:  storer,
		logger:  logger,
		metrics: metrics,
		clock:   clockwork.NewRealClock(),
		workers: workers,
	}
}

// WithClock substitutes the clock, for tests.
func (p *Pipeline) WithClock(clock clockwork.Clock) *Pipeline {
	p.clock = clock
	return p
}

// Run ingests the given zipfiles and returns one result per input, in input
// order. Individual failures are reported in the results, not as an error;
// the returned error is only non-nil when the context is cancelled.
func (p *Pipeline) Run(ctx context.Context, zipfiles []string) ([]Result, error) {
	p.metrics.IngestRunning.Set(1)
	defer p.metrics.IngestRunning.Set(0)

	p.logger.Info("ingest run started",
		"zipfile_count", len(zipfiles),
		"workers", p.workers,
	)

	jobs := make(chan int)
	results := make([]Result, len(zipfiles))

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = p.processOne(ctx, zipfiles[i])
			}
		}()
	}

	var ctxErr error
feed:
	for i := range zipfiles {
		if ctx.Err() != nil {
			ctxErr = ctx.Err()
			break
		}
		select {
		case <-ctx.Done():
			ctxErr = ctx.Err()
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	p.logger.Info("ingest run finished",
		"zipfile_count", len(zipfiles),
		"failed", failed,
	)
	return results, ctxErr
}

// Watch polls a directory for zipfiles and ingests whatever it finds, until
// the context is cancelled. It relies on the storer moving files out of the
// directory; run it with the copy transfer mode and every poll reprocesses
// the same files.
func (p *Pipeline) Watch(ctx context.Context, incomingDir string, interval time.Duration) error {
	p.logger.Info("watching for zipfiles",
		"dir", incomingDir,
		"interval", interval.String(),
	)
	for {
		zipfiles, err := listZipfiles(incomingDir)
		if err != nil {
			p.logger.Error("listing incoming directory failed", "error", err)
		} else if len(zipfiles) > 0 {
			if _, err := p.Run(ctx, zipfiles); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			p.logger.Info("watch stopping", "reason", ctx.Err())
			return nil
		case <-p.clock.After(interval):
		}
	}
}

// processOne runs the full parse-place-store cycle for a single zipfile.
func (p *Pipeline) processOne(ctx context.Context, zipfilename string) Result {
	start := p.clock.Now()
	res := Result{Zipfile: zipfilename}

	m, err := meta.Parse(zipfilename)
	if err != nil {
		p.metrics.ParseErrors.Inc()
		p.logger.Warn("skipping zipfile, metadata extraction failed",
			"zipfile", zipfilename,
			"error", err,
		)
		res.Err = err
		return res
	}
	res.Meta = m

	if err := fillFileInfo(zipfilename, m); err != nil {
		p.metrics.ParseErrors.Inc()
		p.logger.Warn("skipping zipfile, cannot checksum",
			"zipfile", zipfilename,
			"error", err,
		)
		res.Err = err
		return res
	}

	finalDir, err := p.storer.FinalDir(m)
	if err == nil {
		res.StoredPath, err = p.storer.StoreZipfile(zipfilename, finalDir)
	}
	if err == nil {
		err = p.storer.WriteSidecar(m, res.StoredPath)
	}
	if err == nil {
		err = p.storer.WritePreview(m, res.StoredPath)
	}
	if err != nil {
		p.metrics.StoreErrors.Inc()
		p.logger.Error("storing zipfile failed",
			"zipfile", zipfilename,
			"error", err,
		)
		res.Err = err
		return res
	}

	p.metrics.ZipfilesProcessed.WithLabelValues(m.SatelliteID).Inc()
	p.metrics.ZipfileBytes.Observe(float64(m.ZipfileSize))
	p.metrics.ProcessingDuration.Observe(p.clock.Since(start).Seconds())

	p.logger.DebugContext(ctx, "zipfile ingested",
		"zipfile", zipfilename,
		"stored", res.StoredPath,
	)
	return res
}

// fillFileInfo records the zipfile size and its locally computed MD5 digest.
func fillFileInfo(zipfilename string, m *meta.ZipfileMeta) error {
	f, err := os.Open(zipfilename)
	if err != nil {
		return fmt.Errorf("opening %s: %w", zipfilename, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", zipfilename, err)
	}
	m.ZipfileSize = info.Size()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("checksumming %s: %w", zipfilename, err)
	}
	m.MD5Local = hex.EncodeToString(h.Sum(nil))
	return nil
}

func listZipfiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	var zipfiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".zip" {
			zipfiles = append(zipfiles, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(zipfiles)
	return zipfiles, nil
}
