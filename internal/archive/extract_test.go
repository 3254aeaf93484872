// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

type tarEntry struct {
	name     string
	body     string
	mode     int64
	typeflag byte
	linkname string
}

// writeTarGz builds a tar.gz archive on disk from the given entries.
func writeTarGz(t *testing.T, entries []tarEntry) string {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for _, e := range entries {
		mode := e.mode
		if mode == 0 {
			mode = 0o644
		}
		typeflag := e.typeflag
		if typeflag == 0 {
			typeflag = tar.TypeReg
		}
		hdr := &tar.Header{
			Name:     e.name,
			Mode:     mode,
			Typeflag: typeflag,
			Linkname: e.linkname,
			Size:     int64(len(e.body)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if typeflag == tar.TypeReg {
			if _, err := tw.Write([]byte(e.body)); err != nil {
				t.Fatal(err)
			}
		}
	}

	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "test.tar.gz")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDetectFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want Format
	}{
		{"cmake-3.28.3-linux-x86_64.tar.gz", FormatTarGz},
		{"tools.tgz", FormatTarGz},
		{"ninja-linux.zip", FormatZip},
		{"python.tar.xz", FormatUnknown},
		{"README", FormatUnknown},
	}

	for _, tt := range tests {
		if got := DetectFormat(tt.name); got != tt.want {
			t.Errorf("DetectFormat(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestExtract_TarGz(t *testing.T) {
	t.Parallel()

	archive := writeTarGz(t, []tarEntry{
		{name: "cmake/", typeflag: tar.TypeDir, mode: 0o755},
		{name: "cmake/bin/", typeflag: tar.TypeDir, mode: 0o755},
		{name: "cmake/bin/cmake", body: "#!/bin/sh\necho cmake", mode: 0o755},
		{name: "cmake/README", body: "docs"},
	})

	dest := t.TempDir()
	if err := Extract(archive, dest, Options{}); err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	body, err := os.ReadFile(filepath.Join(dest, "cmake", "bin", "cmake"))
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "#!/bin/sh\necho cmake" {
		t.Errorf("unexpected file contents: %q", body)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(filepath.Join(dest, "cmake", "bin", "cmake"))
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm()&0o100 == 0 {
			t.Error("executable bit should be preserved")
		}
	}
}

func TestExtract_StripComponents(t *testing.T) {
	t.Parallel()

	archive := writeTarGz(t, []tarEntry{
		{name: "cmake-3.28.3-linux-x86_64/", typeflag: tar.TypeDir, mode: 0o755},
		{name: "cmake-3.28.3-linux-x86_64/bin/", typeflag: tar.TypeDir, mode: 0o755},
		{name: "cmake-3.28.3-linux-x86_64/bin/cmake", body: "bin", mode: 0o755},
	})

	dest := t.TempDir()
	if err := Extract(archive, dest, Options{StripComponents: 1}); err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dest, "bin", "cmake")); err != nil {
		t.Errorf("stripped entry not found: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "cmake-3.28.3-linux-x86_64")); !os.IsNotExist(err) {
		t.Error("versioned top-level directory should have been stripped")
	}
}

func TestExtract_RejectsTraversal(t *testing.T) {
	t.Parallel()

	archive := writeTarGz(t, []tarEntry{
		{name: "../outside", body: "escape"},
	})

	err := Extract(archive, t.TempDir(), Options{})
	if !errors.Is(err, ErrUnsafePath) {
		t.Fatalf("expected ErrUnsafePath, got %v", err)
	}
}

func TestExtract_RejectsAbsoluteSymlink(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("symlink entries not exercised on Windows")
	}

	archive := writeTarGz(t, []tarEntry{
		{name: "etc-passwd", typeflag: tar.TypeSymlink, linkname: "/etc/passwd"},
	})

	err := Extract(archive, t.TempDir(), Options{})
	if !errors.Is(err, ErrUnsafePath) {
		t.Fatalf("expected ErrUnsafePath, got %v", err)
	}
}

func TestExtract_AllowsRelativeSymlinkInside(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("symlink entries not exercised on Windows")
	}

	archive := writeTarGz(t, []tarEntry{
		{name: "bin/", typeflag: tar.TypeDir, mode: 0o755},
		{name: "bin/python3.11", body: "interpreter", mode: 0o755},
		{name: "bin/python3", typeflag: tar.TypeSymlink, linkname: "python3.11"},
	})

	dest := t.TempDir()
	if err := Extract(archive, dest, Options{}); err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	target, err := os.Readlink(filepath.Join(dest, "bin", "python3"))
	if err != nil {
		t.Fatal(err)
	}
	if target != "python3.11" {
		t.Errorf("symlink target = %q, want python3.11", target)
	}
}

func TestExtract_Zip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("ninja")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("ninja binary")); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "ninja-linux.zip")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	dest := t.TempDir()
	if err := Extract(path, dest, Options{}); err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	body, err := os.ReadFile(filepath.Join(dest, "ninja"))
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "ninja binary" {
		t.Errorf("unexpected contents: %q", body)
	}
}

func TestExtract_UnsupportedFormat(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "python.tar.xz")
	if err := os.WriteFile(path, []byte("xz"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := Extract(path, t.TempDir(), Options{})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}
