// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const (
	helloHash = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824" // sha256("hello")
)

func TestParseChecksums(t *testing.T) {
	t.Parallel()

	input := helloHash + "  cmake-3.28.3-linux-x86_64.tar.gz\n" +
		"\n" +
		"not a checksum line\n" +
		strings.ToUpper(helloHash) + "  node-v20.11.1-linux-x64.tar.gz\n"

	entries, err := ParseChecksums(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseChecksums() error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Filename != "cmake-3.28.3-linux-x86_64.tar.gz" {
		t.Errorf("entry 0 filename = %q", entries[0].Filename)
	}
	// Hashes are normalized to lowercase.
	if entries[1].Hash != helloHash {
		t.Errorf("entry 1 hash = %q, want lowercase %q", entries[1].Hash, helloHash)
	}
}

func TestParseChecksums_NoValidEntries(t *testing.T) {
	t.Parallel()

	_, err := ParseChecksums(strings.NewReader("garbage\nmore garbage\n"))
	if err == nil {
		t.Fatal("expected error for input with no valid entries")
	}
}

func TestFindChecksum(t *testing.T) {
	t.Parallel()

	entries := []ChecksumEntry{
		{Hash: helloHash, Filename: "a.tar.gz"},
	}

	hash, err := FindChecksum(entries, "a.tar.gz")
	if err != nil || hash != helloHash {
		t.Errorf("FindChecksum() = %q, %v", hash, err)
	}

	_, err = FindChecksum(entries, "missing.tar.gz")
	if !errors.Is(err, ErrChecksumNotFound) {
		t.Errorf("expected ErrChecksumNotFound, got %v", err)
	}
}

func TestVerifyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "payload")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := VerifyFile(path, helloHash); err != nil {
		t.Errorf("VerifyFile() with correct hash: %v", err)
	}
	if err := VerifyFile(path, strings.ToUpper(helloHash)); err != nil {
		t.Errorf("VerifyFile() should compare case-insensitively: %v", err)
	}

	err := VerifyFile(path, strings.Repeat("0", 64))
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("expected ErrChecksumMismatch, got %v", err)
	}

	var ce *ChecksumError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *ChecksumError, got %T", err)
	}
	if ce.Got != helloHash {
		t.Errorf("ChecksumError.Got = %q, want %q", ce.Got, helloHash)
	}
}

func TestVerifyFile_MissingFile(t *testing.T) {
	t.Parallel()

	if err := VerifyFile(filepath.Join(t.TempDir(), "nope"), helloHash); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestIsValidHash(t *testing.T) {
	t.Parallel()

	tests := []struct {
		hash  string
		valid bool
	}{
		{helloHash, true},
		{strings.ToUpper(helloHash), true},
		{"abc", false},
		{strings.Repeat("g", 64), false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsValidHash(tt.hash); got != tt.valid {
			t.Errorf("IsValidHash(%q) = %v, want %v", tt.hash, got, tt.valid)
		}
	}
}
