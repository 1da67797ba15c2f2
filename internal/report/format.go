package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	apperrors "tabstat/internal/errors"
	"tabstat/internal/stats"
)

// Format selects an output encoding
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat accepts a format name in any case
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatCSV:
		return f, nil
	}
	return "", apperrors.NewInvalidRequestError(fmt.Sprintf("unknown output format %q", s), nil)
}

// formatFloat prints plain decimals for ordinary magnitudes and falls back to
// exponent form for very large or very small values.
func formatFloat(f float64) string {
	abs := math.Abs(f)
	if f == 0 || (abs >= 1e-6 && abs < 1e15) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func formatValue(v stats.Value) string {
	if v.Numeric {
		return formatFloat(v.Number)
	}
	return v.Text
}
