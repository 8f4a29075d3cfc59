// Package dataset reads and writes the CSV files stages hand to each other.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"sjsage522/tcasworker/pkg/errors"
)

// Row is one record keyed by column name
type Row map[string]string

// Get returns the value of column, or "" when the row has no such column
func (r Row) Get(column string) string {
	return r[column]
}

// Table is an ordered dataset with a header
type Table struct {
	Columns []string
	Rows    []Row
}

// ReadTable reads a header-first CSV file. Every required column must appear in
// the header; otherwise a schema error is returned before any row is read.
func ReadTable(path string, required ...string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIO("", "open "+path, err)
	}
	defer f.Close()

	return Decode(f, path, required...)
}

// Decode parses CSV from r. name is only used in error messages.
func Decode(r io.Reader, name string, required ...string) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		if len(required) > 0 {
			return nil, errors.NewSchema("", name, required[0])
		}
		return &Table{}, nil
	}
	if err != nil {
		return nil, errors.NewIO("", "read header of "+name, err)
	}

	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	for _, col := range required {
		if !contains(header, col) {
			return nil, errors.NewSchema("", name, col)
		}
	}

	table := &Table{Columns: header}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewIO("", fmt.Sprintf("read %s line %d", name, line), err)
		}

		row := make(Row, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

// WriteTable writes rows under columns, in that order. The file is written to
// a temporary sibling and renamed, so readers never see a partial dataset.
func WriteTable(path string, columns []string, rows []Row) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.NewIO("", "create directory for "+path, err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.NewIO("", "create "+path, err)
	}
	tmpName := tmp.Name()

	if err := Encode(tmp, columns, rows); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.NewIO("", "write "+path, err)
	}
	// CreateTemp opens the file 0600
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.NewIO("", "chmod "+path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.NewIO("", "close "+path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.NewIO("", "rename "+path, err)
	}
	return nil
}

// Encode writes header and rows as CSV to w
func Encode(w io.Writer, columns []string, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}

	record := make([]string, len(columns))
	for _, row := range rows {
		for i, col := range columns {
			record[i] = row[col]
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
