// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
)

// partialSuffix marks an in-progress download next to its final destination.
const partialSuffix = ".partial"

// ErrTooLarge indicates a download exceeded the client's size cap.
var ErrTooLarge = errors.New("download exceeds size limit")

// DownloadFile fetches rawURL into dest. If an earlier run left a partial
// file behind, the transfer resumes from its current length with a Range
// request; servers that ignore the Range header cause a clean restart.
// The finished file reaches dest via an atomic same-directory rename, so
// dest either holds a complete download or does not exist.
//
// The partial file is deliberately kept on failure so the next attempt
// (typically driven by the retry executor) can continue where it stopped.
func (c *Client) DownloadFile(ctx context.Context, rawURL, dest string) (err error) {
	partial := dest + partialSuffix

	offset := int64(0)
	if info, statErr := os.Stat(partial); statErr == nil {
		offset = info.Size()
	}

	resp, err := c.get(ctx, rawURL, offset)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", redactURL(rawURL), err)
	}
	defer func() { _ = resp.Body.Close() }() // read-only HTTP response body

	switch resp.StatusCode {
	case http.StatusPartialContent:
		// Server honored the Range request; append to the partial file.
	case http.StatusOK:
		// Full body. Either there was no partial file, or the server does
		// not support ranges; start over either way.
		offset = 0
	case http.StatusRequestedRangeNotSatisfiable:
		// The partial file is at least as long as the resource. Most likely
		// a complete download whose rename was interrupted; finalize it.
		return finalizeDownload(partial, dest)
	default:
		return fmt.Errorf("downloading %s: unexpected status %d", redactURL(rawURL), resp.StatusCode)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if offset > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(partial, flags, 0o644)
	if err != nil {
		return fmt.Errorf("opening partial file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing partial file: %w", closeErr)
		}
	}()

	remaining := c.maxBytes - offset
	if remaining <= 0 {
		return fmt.Errorf("%w: partial file already at %d bytes", ErrTooLarge, offset)
	}

	n, err := io.Copy(f, io.LimitReader(resp.Body, remaining))
	if err != nil {
		return fmt.Errorf("writing %s: %w", partial, err)
	}
	if n == remaining {
		// LimitReader cut the body off at the cap.
		return fmt.Errorf("%w: %s", ErrTooLarge, redactURL(rawURL))
	}

	return finalizeDownload(partial, dest)
}

// finalizeDownload moves a completed partial file into its final place.
func finalizeDownload(partial, dest string) error {
	if err := os.Rename(partial, dest); err != nil {
		return fmt.Errorf("finalizing download: %w", err)
	}
	return nil
}
