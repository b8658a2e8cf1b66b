package meta

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Parse reads the metadata record for the given SAFE zipfile, dispatching on
// the leading satellite identifier of its basename.
//
// Sentinel-5 products are gridded data files rather than zipped SAFE
// archives; their attribute dictionary must be extracted by a data-format
// reader and handed to ParseSen5Attributes, so Parse reports them as
// unsupported here.
func Parse(zipfilename string) (*ZipfileMeta, error) {
	base := filepath.Base(zipfilename)
	switch {
	case strings.HasPrefix(base, "S1"):
		return ParseSen1Zipfile(zipfilename)
	case strings.HasPrefix(base, "S2"):
		return ParseSen2Zipfile(zipfilename)
	case strings.HasPrefix(base, "S3"):
		return ParseSen3Zipfile(zipfilename)
	case strings.HasPrefix(base, "S5"):
		return nil, fmt.Errorf("%w: %s is a gridded data file, use ParseSen5Attributes with its attribute dictionary", ErrSen5Meta, base)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownSatellite, base)
}

// safeDirName finds the top-level .SAFE/ directory inside the archive.
func safeDirName(zr *zip.ReadCloser) (string, bool) {
	for _, f := range zr.File {
		name := f.Name
		// Some archives carry no explicit directory entries; derive the
		// SAFE root from any member path.
		for name != "" {
			dir := path.Dir(name)
			if dir == "." || dir == "/" {
				break
			}
			if strings.HasSuffix(dir, ".SAFE") {
				return dir + "/", true
			}
			name = dir
		}
		if strings.HasSuffix(f.Name, ".SAFE/") {
			return f.Name, true
		}
	}
	return "", false
}

// readMember returns the full contents of one archive member.
func readMember(zr *zip.ReadCloser, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open archive member %s: %w", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("failed to read archive member %s: %w", name, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("archive member %s not found", name)
}

// findPreview returns the first preview image member under the SAFE root,
// or nil when the product carries none. Preview absence is not an error.
func findPreview(zr *zip.ReadCloser, safeDir string) []byte {
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, safeDir) {
			continue
		}
		lower := strings.ToLower(f.Name)
		if strings.Contains(lower, "/preview/") &&
			(strings.HasSuffix(lower, ".png") || strings.HasSuffix(lower, ".jpg")) {
			data, err := readMember(zr, f.Name)
			if err == nil {
				return data
			}
		}
	}
	return nil
}

// parseSafeTime parses the ISO timestamp layout used inside SAFE metadata,
// with or without fractional seconds and a trailing Z.
func parseSafeTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{
		"2006-01-02T15:04:05.999999Z",
		"2006-01-02T15:04:05.999999",
		"2006-01-02T15:04:05Z",
		"2006-01-02T15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
