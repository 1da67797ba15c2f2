// Package report renders engine results for people and programs.
//
// Three formats are supported:
//
// Text: a boxed table of statistic and value, followed by a one line
// summary of the selection.
//
// JSON: the api/v1 StatsResponse contract, indented.
//
// CSV: a "statistic,value" header followed by one record per statistic.
//
// Example usage:
//
//	resp, err := eng.Run(ctx, req)
//	if err == nil {
//		err = report.Write(os.Stdout, report.FormatText, resp)
//	}
package report
