// SPDX-License-Identifier: MPL-2.0

// Package fetch downloads toolchain archives over HTTP.
//
// Downloads go to a ".partial" sibling of the destination and are resumed
// with Range requests when a previous run left one behind; the completed
// file is moved into place with an atomic same-directory rename. SHA256
// verification runs against the finished file, so a resumed transfer is
// still checked end to end.
package fetch
