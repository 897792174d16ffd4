// Package fetcher downloads source data over HTTP and FTP and parses the
// feed and dump formats the connectors consume (RSS, CSV, XLSX, JSON).
package fetcher

import (
	"context"
	"io"
)

// Fetcher downloads remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadBytes fetches the URL and returns the full body.
	DownloadBytes(ctx context.Context, url string) ([]byte, error)

	// DownloadIfChanged fetches the URL only if the ETag differs from the
	// one passed in. Returns (body, newETag, changed, error); body is nil
	// when the resource has not changed.
	DownloadIfChanged(ctx context.Context, url string, etag string) (io.ReadCloser, string, bool, error)
}
