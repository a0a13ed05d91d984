package artifact

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"strings"
)

// ListZip enumerates the file entries of a zip archive. Wheels are plain zip
// files, and so are Windows-built sdists.
func ListZip(r io.ReaderAt, size int64) ([]Entry, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("read zip: %w", err)
	}
	entries := make([]Entry, 0, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		entries = append(entries, Entry{Path: f.Name, Size: int64(f.UncompressedSize64)})
	}
	return entries, nil
}

// ListTarGz enumerates the file entries of a gzipped tarball (the common
// sdist format) without buffering file contents.
func ListTarGz(r io.Reader) ([]Entry, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("read gzip: %w", err)
	}
	defer gz.Close()

	var entries []Entry
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		entries = append(entries, Entry{Path: hdr.Name, Size: hdr.Size})
	}
	return entries, nil
}

// ListBody enumerates an already-downloaded artifact body, dispatching on the
// artifact's filename.
func ListBody(filename string, body []byte) ([]Entry, error) {
	switch {
	case strings.HasSuffix(filename, ".whl"), strings.HasSuffix(filename, ".zip"), strings.HasSuffix(filename, ".egg"):
		return ListZip(bytes.NewReader(body), int64(len(body)))
	case strings.HasSuffix(filename, ".tar.gz"), strings.HasSuffix(filename, ".tgz"):
		return ListTarGz(bytes.NewReader(body))
	default:
		return nil, fmt.Errorf("unsupported artifact format: %s", filename)
	}
}
