package loaders

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

type CsvLoader struct {
	stagingDir string
}

func NewCsvLoader(stagingDir string) *CsvLoader {
	return &CsvLoader{stagingDir: stagingDir}
}

// Load renders each row as "column: value" lines, one block per row.
func (l *CsvLoader) Load(ctx context.Context, doc Document) (string, error) {
	file, err := fileDocument(doc)
	if err != nil {
		return "", err
	}

	path, cleanup, err := stage(l.stagingDir, file)
	if err != nil {
		return "", err
	}
	defer cleanup()

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("error opening staged csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrParseFailure, err)
	}

	var rows []string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrParseFailure, err)
		}

		lines := make([]string, 0, len(record))
		for i, value := range record {
			column := fmt.Sprintf("column_%d", i)
			if i < len(header) {
				column = strings.TrimSpace(header[i])
			}
			lines = append(lines, column+": "+strings.TrimSpace(value))
		}
		rows = append(rows, strings.Join(lines, "\n"))
	}

	return strings.Join(rows, "\n\n"), nil
}
