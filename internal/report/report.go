package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"tabstat/internal/engine"
	apperrors "tabstat/internal/errors"
	"tabstat/internal/stats"
	api "tabstat/pkg/contracts/api/v1"
)

// Write renders a successful response in format f
func Write(w io.Writer, f Format, resp *engine.Response) error {
	if resp == nil || resp.Result == nil {
		return apperrors.NewInvalidRequestError("nothing to report", nil)
	}

	switch f {
	case FormatText, "":
		return writeText(w, resp)
	case FormatJSON:
		return WriteJSON(w, ToContract(resp, nil))
	case FormatCSV:
		return writeCSV(w, resp)
	}
	return apperrors.NewInvalidRequestError(fmt.Sprintf("unknown output format %q", f), nil)
}

// WriteJSON writes a contract response as indented JSON
func WriteJSON(w io.Writer, resp api.StatsResponse) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	return nil
}

// records returns one [statistic, value] pair per result in reporting order
func records(resp *engine.Response) [][]string {
	ops := resp.Result.Ops()
	out := make([][]string, 0, len(ops)+1)
	for _, op := range ops {
		out = append(out, []string{op.String(), formatValue(resp.Result.Values[op])})
		if op == stats.Mode && resp.Result.ModeCount > 0 {
			out = append(out, []string{"mode_count", strconv.Itoa(resp.Result.ModeCount)})
		}
	}
	return out
}

func writeText(w io.Writer, resp *engine.Response) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Statistic", "Value"})
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.AppendBulk(records(resp))
	table.Render()

	_, err := fmt.Fprintf(w, "rows %s, cols %s: %d cells in %d chunks (%s)\n",
		resp.Selection.Rows, resp.Selection.Cols, resp.Result.Count, resp.Chunks, resp.Duration.Round(time.Microsecond))
	return err
}

func writeCSV(w io.Writer, resp *engine.Response) error {
	writer := csv.NewWriter(w)

	if err := writer.Write([]string{"statistic", "value"}); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for i, record := range records(resp) {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV writer: %w", err)
	}
	return nil
}
