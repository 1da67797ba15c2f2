package testutil

import (
	"encoding/csv"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

// WriteTable writes rows as a comma-separated file in t.TempDir and returns its path
func WriteTable(t *testing.T, rows [][]string) string {
	t.Helper()
	return WriteTableWithDelimiter(t, rows, ',')
}

// WriteTableWithDelimiter writes rows using the given field separator
func WriteTableWithDelimiter(t *testing.T, rows [][]string, delim rune) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "table.csv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = delim
	if err := w.WriteAll(rows); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

// WriteRaw writes content verbatim, for fixtures that csv.Writer cannot produce
func WriteRaw(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "raw.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

// NumericGrid builds a header row followed by rows x cols pseudo-random
// values drawn from a fixed seed. The values are returned alongside the
// string grid, column-major, for reference computations.
func NumericGrid(rows, cols int, seed int64) ([][]string, [][]float64) {
	rng := rand.New(rand.NewSource(seed))

	grid := make([][]string, 0, rows+1)
	header := make([]string, cols)
	for c := range header {
		header[c] = "c" + strconv.Itoa(c)
	}
	grid = append(grid, header)

	values := make([][]float64, cols)
	for c := range values {
		values[c] = make([]float64, 0, rows)
	}

	for r := 0; r < rows; r++ {
		row := make([]string, cols)
		for c := 0; c < cols; c++ {
			v := rng.NormFloat64()*1000 + 1e6
			row[c] = strconv.FormatFloat(v, 'g', -1, 64)
			values[c] = append(values[c], v)
		}
		grid = append(grid, row)
	}
	return grid, values
}
