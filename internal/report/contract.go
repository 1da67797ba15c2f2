package report

import (
	"encoding/json"
	"errors"

	"tabstat/internal/engine"
	apperrors "tabstat/internal/errors"
	"tabstat/internal/selection"
	api "tabstat/pkg/contracts/api/v1"
)

// ToContract converts the outcome of a run into the v1 response. When err is
// set the response carries an error and no result.
func ToContract(resp *engine.Response, err error) api.StatsResponse {
	out := api.StatsResponse{Status: apperrors.StatusCode(err)}
	if resp != nil {
		out.Status = resp.Status
		out.Chunks = resp.Chunks
		out.Threads = resp.Threads
		out.DurationMS = float64(resp.Duration.Microseconds()) / 1000
		if resp.Chunks > 0 {
			out.Selection = toSelection(resp.Selection)
		}
	}

	if err != nil {
		out.Error = toError(err)
		return out
	}
	if resp == nil || resp.Result == nil {
		return out
	}

	res := &api.StatsResult{
		Values:    make(map[string]json.RawMessage, len(resp.Result.Values)),
		ModeCount: resp.Result.ModeCount,
		Cells:     resp.Result.Count,
	}
	for _, op := range resp.Result.Ops() {
		raw, mErr := json.Marshal(resp.Result.Values[op])
		if mErr != nil {
			continue
		}
		res.Values[op.String()] = raw
	}
	out.Result = res
	return out
}

func toSelection(s selection.Selection) *api.Selection {
	return &api.Selection{
		Rows: api.Span{Start: s.Rows.Start, End: s.Rows.End},
		Cols: api.Span{Start: s.Cols.Start, End: s.Cols.End},
	}
}

func toError(err error) *api.StatsError {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return &api.StatsError{Type: string(apperrors.TypeOf(err)), Message: err.Error()}
	}

	out := &api.StatsError{Type: string(appErr.Type), Message: appErr.Message}
	if appErr.Cause != nil {
		out.Message += ": " + appErr.Cause.Error()
	}
	for k, v := range appErr.Context {
		if k == "path" {
			continue
		}
		if out.Context == nil {
			out.Context = make(map[string]interface{})
		}
		out.Context[k] = v
	}
	return out
}
