// Package input loads onboarding rows from tabular sources.
package input

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rzbill/stencil/pkg/types"
)

// ReadRows loads rows from a CSV file. The first record is the header;
// every following record becomes one row keyed by header name.
func ReadRows(path string) ([]types.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rows file: %w", err)
	}
	defer f.Close()

	rows, err := ReadRowsFrom(f)
	if err != nil {
		return nil, fmt.Errorf("read rows from %s: %w", path, err)
	}
	return rows, nil
}

// ReadRowsFrom parses CSV row data from a reader.
func ReadRowsFrom(r io.Reader) ([]types.Row, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("no header record")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, col := range header {
		header[i] = strings.TrimSpace(col)
	}

	var rows []types.Row
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if blank(record) {
			continue
		}

		row := make(types.Row, len(header))
		for i, col := range header {
			if col == "" {
				continue
			}
			row[col] = strings.TrimSpace(record[i])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
