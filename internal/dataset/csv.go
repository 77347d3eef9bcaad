package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ReadCSVFile reads a CSV file with a header line into a Frame
func ReadCSVFile(path string) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV reads CSV data with a header line into a Frame. Every column gets the
// narrowest tag all of its non-empty cells parse as: int64, float64, bool,
// datetime64[ns], or object. Empty cells become nil.
func ReadCSV(r io.Reader) (*Frame, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV records: %w", err)
	}

	columns := make([]Column, len(header))
	for j, name := range header {
		columns[j] = Column{Name: name, Type: inferCSVTag(records, j)}
	}

	rows := make([]Row, 0, len(records))
	for _, record := range records {
		row := make(Row, len(header))
		for j, col := range columns {
			row[col.Name] = parseCell(record[j], col.Type)
		}
		rows = append(rows, row)
	}

	return NewFrame(columns, rows), nil
}

func inferCSVTag(records [][]string, j int) string {
	candidates := []string{"int64", "float64", "bool", "datetime64[ns]"}
	seen := false
	for _, record := range records {
		cell := strings.TrimSpace(record[j])
		if cell == "" {
			continue
		}
		seen = true
		var remaining []string
		for _, tag := range candidates {
			if parseCell(cell, tag) != nil {
				remaining = append(remaining, tag)
			}
		}
		candidates = remaining
		if len(candidates) == 0 {
			return "object"
		}
	}
	if !seen {
		return "object"
	}
	return candidates[0]
}

func parseCell(cell, tag string) interface{} {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}
	switch tag {
	case "int64":
		if v, err := strconv.ParseInt(cell, 10, 64); err == nil {
			return v
		}
	case "float64":
		if v, err := strconv.ParseFloat(cell, 64); err == nil {
			return v
		}
	case "bool":
		switch strings.ToLower(cell) {
		case "true":
			return true
		case "false":
			return false
		}
	case "datetime64[ns]":
		for _, layout := range dateLayouts {
			if v, err := time.Parse(layout, cell); err == nil {
				return v
			}
		}
	default:
		return cell
	}
	return nil
}
