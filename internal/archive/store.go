package archive

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/auscophub/archive/internal/meta"
)

// TransferMode selects how a zipfile is materialized in its final directory.
type TransferMode int

const (
	// Move renames the file into place, falling back to copy-and-remove
	// when the rename crosses filesystems.
	Move TransferMode = iota
	// Copy leaves the source file untouched.
	Copy
	// Symlink places a symbolic link to the source file. Useful for
	// building a test layout over an existing flat holding.
	Symlink
)

// ParseTransferMode maps a configuration value onto a TransferMode.
func ParseTransferMode(s string) (TransferMode, error) {
	switch strings.ToLower(s) {
	case "", "move":
		return Move, nil
	case "copy":
		return Copy, nil
	case "symlink":
		return Symlink, nil
	}
	return 0, fmt.Errorf("unknown transfer mode %q", s)
}

func (m TransferMode) String() string {
	switch m {
	case Move:
		return "move"
	case Copy:
		return "copy"
	case Symlink:
		return "symlink"
	}
	return fmt.Sprintf("TransferMode(%d)", int(m))
}

// Storer materializes zipfiles and their companion files under an archive
// root directory.
//
// With Dummy set, every operation logs what it would do and touches nothing.
type Storer struct {
	Root   string
	Mode   TransferMode
	Dummy  bool
	Logger *slog.Logger
}

func (s *Storer) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// FinalDir returns the absolute final directory for the described zipfile,
// creating it when it does not already exist. An already-existing directory
// is the common case and is not an error.
func (s *Storer) FinalDir(m *meta.ZipfileMeta) (string, error) {
	rel, err := PlacePath(m)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(s.Root, filepath.FromSlash(rel))
	if s.Dummy {
		s.logger().Info("would create directory", "dir", dir)
		return dir, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	return dir, nil
}

// StoreZipfile puts the zipfile into finalDir using the configured transfer
// mode. Returns the final path of the zipfile.
func (s *Storer) StoreZipfile(zipfilename, finalDir string) (string, error) {
	dest := filepath.Join(finalDir, filepath.Base(zipfilename))
	if s.Dummy {
		s.logger().Info("would store zipfile", "src", zipfilename, "dest", dest, "mode", s.Mode)
		return dest, nil
	}

	switch s.Mode {
	case Move:
		if err := os.Rename(zipfilename, dest); err == nil {
			break
		}
		// Rename fails across filesystems; fall back to copy then remove.
		if err := copyFile(zipfilename, dest); err != nil {
			return "", err
		}
		if err := os.Remove(zipfilename); err != nil {
			return "", fmt.Errorf("removing source %s: %w", zipfilename, err)
		}
	case Copy:
		if err := copyFile(zipfilename, dest); err != nil {
			return "", err
		}
	case Symlink:
		abs, err := filepath.Abs(zipfilename)
		if err != nil {
			return "", fmt.Errorf("resolving %s: %w", zipfilename, err)
		}
		if err := os.Symlink(abs, dest); err != nil {
			return "", fmt.Errorf("linking %s: %w", dest, err)
		}
	default:
		return "", fmt.Errorf("unknown transfer mode %d", s.Mode)
	}

	s.logger().Debug("stored zipfile", "dest", dest)
	return dest, nil
}

// WriteSidecar writes the description XML next to the stored zipfile, named
// after it with a .xml suffix.
func (s *Storer) WriteSidecar(m *meta.ZipfileMeta, storedZipfile string) error {
	data, err := m.DescriptionXML()
	if err != nil {
		return fmt.Errorf("rendering sidecar for %s: %w", storedZipfile, err)
	}
	name := companionName(storedZipfile, ".xml")
	if s.Dummy {
		s.logger().Info("would write sidecar", "file", name)
		return nil
	}
	if err := os.WriteFile(name, data, 0o644); err != nil {
		return fmt.Errorf("writing sidecar %s: %w", name, err)
	}
	return nil
}

// WritePreview writes the product preview image next to the stored zipfile,
// if the product carries one.
func (s *Storer) WritePreview(m *meta.ZipfileMeta, storedZipfile string) error {
	if len(m.PreviewImage) == 0 {
		return nil
	}
	name := companionName(storedZipfile, ".png")
	if s.Dummy {
		s.logger().Info("would write preview", "file", name)
		return nil
	}
	if err := os.WriteFile(name, m.PreviewImage, 0o644); err != nil {
		return fmt.Errorf("writing preview %s: %w", name, err)
	}
	return nil
}

// companionName swaps the zipfile extension for the companion suffix.
func companionName(zipfilename, suffix string) string {
	base := strings.TrimSuffix(zipfilename, filepath.Ext(zipfilename))
	return base + suffix
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying to %s: %w", dest, err)
	}
	return out.Close()
}
