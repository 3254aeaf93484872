// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// maxExtractedBytes is the upper bound on total decompressed size (4 GB).
// Prevents decompression bombs when unpacking toolchain archives.
const maxExtractedBytes = 4 << 30

var (
	// ErrUnsupportedFormat indicates the archive file name matches no known format.
	ErrUnsupportedFormat = errors.New("unsupported archive format")

	// ErrUnsafePath indicates an archive entry would escape the destination directory.
	ErrUnsafePath = errors.New("archive entry escapes destination")

	// ErrTooLarge indicates the archive decompresses beyond the size bound.
	ErrTooLarge = errors.New("archive exceeds extraction size limit")
)

type (
	// Options controls extraction behavior.
	Options struct {
		// StripComponents removes this many leading path elements from
		// every entry, like tar --strip-components. Entries with fewer
		// elements are skipped.
		StripComponents int
	}

	// Format identifies a supported archive format.
	Format int
)

const (
	FormatUnknown Format = iota
	FormatTarGz
	FormatZip
)

// DetectFormat determines the archive format from the file name.
func DetectFormat(name string) Format {
	switch {
	case strings.HasSuffix(name, ".tar.gz") || strings.HasSuffix(name, ".tgz"):
		return FormatTarGz
	case strings.HasSuffix(name, ".zip"):
		return FormatZip
	}
	return FormatUnknown
}

// Extract unpacks the archive at archivePath into dest, creating dest if
// needed. The format is detected from the archive file name.
func Extract(archivePath, dest string, opts Options) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("creating destination directory: %w", err)
	}

	switch DetectFormat(archivePath) {
	case FormatTarGz:
		return extractTarGz(archivePath, dest, opts)
	case FormatZip:
		return extractZip(archivePath, dest, opts)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(archivePath))
	}
}

// extractTarGz streams the tar.gz archive entry by entry into dest.
func extractTarGz(archivePath, dest string, opts Options) (err error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer func() {
		// Read-only file handle; close errors are exotic.
		_ = f.Close()
	}()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("creating gzip reader: %w", err)
	}
	defer func() {
		// Gzip reader wraps the underlying file; we only read from it.
		_ = gz.Close()
	}()

	tr := tar.NewReader(gz)
	var written int64

	for {
		hdr, readErr := tr.Next()
		if errors.Is(readErr, io.EOF) {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("reading archive: %w", readErr)
		}

		target, ok, pathErr := resolveEntryPath(dest, hdr.Name, opts.StripComponents)
		if pathErr != nil {
			return pathErr
		}
		if !ok {
			continue
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if mkErr := os.MkdirAll(target, os.FileMode(hdr.Mode).Perm()|0o700); mkErr != nil {
				return fmt.Errorf("creating directory %s: %w", target, mkErr)
			}
		case tar.TypeReg:
			n, wrErr := writeEntry(target, tr, os.FileMode(hdr.Mode).Perm(), maxExtractedBytes-written)
			if wrErr != nil {
				return wrErr
			}
			written += n
		case tar.TypeSymlink:
			// Reject absolute targets and targets that climb out of dest.
			if linkErr := checkLinkTarget(dest, target, hdr.Linkname); linkErr != nil {
				return linkErr
			}
			_ = os.Remove(target)
			if linkErr := os.Symlink(hdr.Linkname, target); linkErr != nil {
				return fmt.Errorf("creating symlink %s: %w", target, linkErr)
			}
		default:
			// Hard links, devices, FIFOs: not expected in toolchain archives.
			continue
		}
	}
}

// extractZip unpacks the zip archive at archivePath into dest.
func extractZip(archivePath, dest string, opts Options) (err error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer func() { _ = zr.Close() }() // read-only archive handle

	var written int64
	for _, entry := range zr.File {
		target, ok, pathErr := resolveEntryPath(dest, entry.Name, opts.StripComponents)
		if pathErr != nil {
			return pathErr
		}
		if !ok {
			continue
		}

		if entry.FileInfo().IsDir() {
			if mkErr := os.MkdirAll(target, entry.Mode().Perm()|0o700); mkErr != nil {
				return fmt.Errorf("creating directory %s: %w", target, mkErr)
			}
			continue
		}

		rc, openErr := entry.Open()
		if openErr != nil {
			return fmt.Errorf("opening archive entry %s: %w", entry.Name, openErr)
		}
		n, wrErr := writeEntry(target, rc, entry.Mode().Perm(), maxExtractedBytes-written)
		_ = rc.Close()
		if wrErr != nil {
			return wrErr
		}
		written += n
	}
	return nil
}

// resolveEntryPath maps an archive entry name to a path under dest, applying
// StripComponents and rejecting traversal. ok is false when the entry should
// be skipped (stripped away entirely).
func resolveEntryPath(dest, name string, strip int) (target string, ok bool, err error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == "." {
		return "", false, nil
	}
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || clean == ".." {
		return "", false, fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}

	if strip > 0 {
		parts := strings.Split(clean, string(filepath.Separator))
		if len(parts) <= strip {
			return "", false, nil
		}
		clean = filepath.Join(parts[strip:]...)
	}

	target = filepath.Join(dest, clean)

	// Join cleans the result; targets outside dest mean the entry
	// smuggled in a traversal that survived the prefix check.
	if target != dest && !strings.HasPrefix(target, dest+string(filepath.Separator)) {
		return "", false, fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return target, true, nil
}

// checkLinkTarget validates a symlink's target stays inside dest.
func checkLinkTarget(dest, linkPath, linkTarget string) error {
	if filepath.IsAbs(linkTarget) {
		return fmt.Errorf("%w: absolute symlink target %s", ErrUnsafePath, linkTarget)
	}
	resolved := filepath.Join(filepath.Dir(linkPath), filepath.FromSlash(linkTarget))
	if resolved != dest && !strings.HasPrefix(resolved, dest+string(filepath.Separator)) {
		return fmt.Errorf("%w: symlink target %s", ErrUnsafePath, linkTarget)
	}
	return nil
}

// writeEntry copies an entry's contents into target, creating parent
// directories as needed and enforcing the remaining size budget.
func writeEntry(target string, r io.Reader, perm os.FileMode, remaining int64) (n int64, err error) {
	if remaining <= 0 {
		return 0, ErrTooLarge
	}

	if mkErr := os.MkdirAll(filepath.Dir(target), 0o755); mkErr != nil {
		return 0, fmt.Errorf("creating parent directory: %w", mkErr)
	}

	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm|0o200)
	if err != nil {
		return 0, fmt.Errorf("creating file %s: %w", target, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", target, closeErr)
		}
	}()

	n, err = io.Copy(f, io.LimitReader(r, remaining))
	if err != nil {
		return n, fmt.Errorf("writing %s: %w", target, err)
	}
	if n == remaining {
		return n, ErrTooLarge
	}
	return n, nil
}
