package pypi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"pypitypes/internal/artifact"
)

var errRangeUnsupported = errors.New("server does not support range requests")

// listRemoteZip enumerates a wheel's entries by reading its zip central
// directory through HTTP range requests, avoiding the full download. The
// file's size comes from the release metadata; without it a probe request
// would be needed, so we simply fall back to a full download instead.
func (c *Client) listRemoteZip(ctx context.Context, file ReleaseFile) ([]artifact.Entry, error) {
	if file.Size <= 0 {
		return nil, errors.New("release metadata has no file size")
	}
	ra := &httpReaderAt{ctx: ctx, client: c, url: file.URL, size: file.Size}
	entries, err := artifact.ListZip(ra, file.Size)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// httpReaderAt adapts ranged GETs to io.ReaderAt so archive/zip can walk a
// remote wheel. Each ReadAt is one request; the zip reader only touches the
// end-of-central-directory record and the central directory, a few KiB for a
// typical wheel.
type httpReaderAt struct {
	ctx    context.Context
	client *Client
	url    string
	size   int64
}

func (r *httpReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	if off >= r.size {
		return 0, io.EOF
	}
	end := off + int64(len(p)) - 1
	if end >= r.size {
		end = r.size - 1
	}

	resp, err := r.client.get(r.ctx, r.url, fmt.Sprintf("bytes=%d-%d", off, end))
	if err != nil {
		return 0, err
	}
	defer drainClose(resp.Body)

	switch resp.StatusCode {
	case http.StatusPartialContent:
	case http.StatusOK:
		return 0, errRangeUnsupported
	default:
		return 0, fmt.Errorf("range request: unexpected status %d", resp.StatusCode)
	}

	want := int(end - off + 1)
	n, err := io.ReadFull(resp.Body, p[:want])
	if err != nil {
		return n, err
	}
	if int64(off)+int64(n) >= r.size && n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
