// SPDX-License-Identifier: MPL-2.0

// Package archive unpacks downloaded toolchain archives.
//
// Supported formats are tar.gz and zip, detected from the file name.
// Extraction rejects entries that would escape the destination directory
// and bounds the total decompressed size to guard against decompression
// bombs. Prebuilt toolchain archives usually nest everything under a
// single versioned top-level directory; StripComponents peels those
// leading path elements off so binaries land directly in the prefix.
package archive
