// Package dataset reads the CSV files this tool consumes and maintains: the
// upstream top-packages list and the published typing dataset.
package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
)

// TopPackagesURL is the upstream popularity list the dataset tracks.
const TopPackagesURL = "https://raw.githubusercontent.com/hugovk/top-pypi-packages/main/top-pypi-packages.csv"

// TopPackagesColumn is the project-name column of the upstream list.
const TopPackagesColumn = "project"

// ResultColumn is the package-name column of the published dataset.
const ResultColumn = "package"

// ReadColumn returns the values of the named column, in row order, skipping
// empty cells.
func ReadColumn(r io.Reader, column string) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	col := -1
	for i, name := range header {
		if name == column {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("csv has no %q column", column)
	}

	var values []string
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		if col < len(row) && row[col] != "" {
			values = append(values, row[col])
		}
	}
	return values, nil
}

// ReadColumnFile is ReadColumn over a file path.
func ReadColumnFile(path, column string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadColumn(f, column)
}

// ReadColumnSet returns the distinct values of the named column. A missing
// file is an empty set, so a first run needs no pre-created dataset.
func ReadColumnSet(path, column string) (map[string]struct{}, error) {
	values, err := ReadColumnFile(path, column)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]struct{}{}, nil
	}
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set, nil
}

// FetchColumn downloads a CSV and returns the values of the named column.
func FetchColumn(ctx context.Context, hc *http.Client, url, column string) ([]string, error) {
	if hc == nil {
		hc = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	return ReadColumn(resp.Body, column)
}
