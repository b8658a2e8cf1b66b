package ingest_test

import (
	"archive/zip"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auscophub/archive/internal/archive"
	"github.com/auscophub/archive/internal/ingest"
	"github.com/auscophub/archive/internal/observability"
)

const testAnnotation = `<?xml version="1.0"?>
<product>
  <adsHeader>
    <missionId>S1A</missionId>
    <productType>GRD</productType>
    <polarisation>VV</polarisation>
    <mode>IW</mode>
    <swath>IW</swath>
    <startTime>2021-03-04T10:00:00.000000</startTime>
    <stopTime>2021-03-04T10:00:25.000000</stopTime>
    <absoluteOrbitNumber>12345</absoluteOrbitNumber>
  </adsHeader>
  <generalAnnotation>
    <productInformation><pass>Descending</pass></productInformation>
  </generalAnnotation>
  <geolocationGrid>
    <geolocationGridPointList count="3">
      <geolocationGridPoint><longitude>144</longitude><latitude>-34</latitude></geolocationGridPoint>
      <geolocationGridPoint><longitude>146</longitude><latitude>-34</latitude></geolocationGridPoint>
      <geolocationGridPoint><longitude>145</longitude><latitude>-32</latitude></geolocationGridPoint>
    </geolocationGridPointList>
  </geolocationGrid>
</product>`

// writeSen1Zip creates a parseable Sentinel-1 zipfile in dir.
func writeSen1Zip(t *testing.T, dir, basename string) string {
	t.Helper()
	name := filepath.Join(dir, basename)
	f, err := os.Create(name)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create(basename[:len(basename)-4] + ".SAFE/annotation/a.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(testAnnotation))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return name
}

func newTestPipeline(t *testing.T, root string, mode archive.TransferMode, workers int) *ingest.Pipeline {
	t.Helper()
	storer := &archive.Storer{
		Root:   root,
		Mode:   mode,
		Logger: slog.New(slog.DiscardHandler),
	}
	return ingest.New(storer, slog.New(slog.DiscardHandler), observability.NewMetricsForTesting(), workers)
}

func TestPipeline_Run(t *testing.T) {
	incoming := t.TempDir()
	root := t.TempDir()
	var zipfiles []string
	for i := 0; i < 3; i++ {
		zipfiles = append(zipfiles, writeSen1Zip(t, incoming, fmt.Sprintf("S1A_test_%d.zip", i)))
	}
	wantMD5 := md5sum(t, zipfiles[0])

	p := newTestPipeline(t, root, archive.Move, 2)
	results, err := p.Run(context.Background(), zipfiles)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i, r := range results {
		require.NoError(t, r.Err, "zipfile %d", i)
		assert.Equal(t, zipfiles[i], r.Zipfile)
		assert.FileExists(t, r.StoredPath)
		assert.FileExists(t, r.StoredPath[:len(r.StoredPath)-4]+".xml")
		assert.Contains(t, r.StoredPath, filepath.Join("Sentinel-1", "C-SAR", "GRD", "2021", "2021-03"))
	}
	assert.Equal(t, wantMD5, results[0].Meta.MD5Local)
	assert.NotZero(t, results[0].Meta.ZipfileSize)

	// Move mode empties the incoming directory.
	entries, err := os.ReadDir(incoming)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPipeline_Run_BadZipfileSkipped(t *testing.T) {
	incoming := t.TempDir()
	good := writeSen1Zip(t, incoming, "S1A_good.zip")
	bad := filepath.Join(incoming, "S1A_bad.zip")
	require.NoError(t, os.WriteFile(bad, []byte("not a zipfile"), 0o644))

	p := newTestPipeline(t, t.TempDir(), archive.Move, 1)
	results, err := p.Run(context.Background(), []string{good, bad})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.FileExists(t, results[0].StoredPath)
}

func TestPipeline_Run_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTestPipeline(t, t.TempDir(), archive.Move, 1)
	_, err := p.Run(ctx, []string{"/nonexistent/S1A_x.zip"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipeline_Watch(t *testing.T) {
	incoming := t.TempDir()
	root := t.TempDir()
	writeSen1Zip(t, incoming, "S1A_watched.zip")

	clock := clockwork.NewFakeClock()
	p := newTestPipeline(t, root, archive.Move, 1).WithClock(clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- p.Watch(ctx, incoming, time.Minute)
	}()

	// The first poll happens immediately; wait for the file to move out.
	require.Eventually(t, func() bool {
		entries, err := os.ReadDir(incoming)
		return err == nil && len(entries) == 0
	}, 5*time.Second, 10*time.Millisecond)

	// A second file arrives; advancing the clock triggers the next poll.
	writeSen1Zip(t, incoming, "S1A_watched_2.zip")
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Minute)

	require.Eventually(t, func() bool {
		entries, err := os.ReadDir(incoming)
		return err == nil && len(entries) == 0
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func md5sum(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(name)
	require.NoError(t, err)
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
