// Package api contains the HTTP contract of the tabstat service.
// Version v1 represents the current stable API version.
package api

import "encoding/json"

// StatsRequest asks for statistics over a rectangle of a table. Rows and Cols
// use the range grammar ("full", "AtoB", a single name or index); empty
// means full. Exactly one of Path and CSV must be set.
type StatsRequest struct {
	Path       string   `json:"path,omitempty" validate:"required_without=CSV,excluded_with=CSV"`
	CSV        string   `json:"csv,omitempty"`
	Delimiter  string   `json:"delimiter,omitempty"`
	Rows       string   `json:"rows,omitempty" validate:"max=256"`
	Cols       string   `json:"cols,omitempty" validate:"max=256"`
	Operations []string `json:"operations" validate:"required,min=1,max=6,dive,operation"`
	Threads    int      `json:"threads,omitempty" validate:"omitempty,min=1"`
}

// Span is an inclusive, zero-based index interval
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Selection is the resolved rectangle
type Selection struct {
	Rows Span `json:"rows"`
	Cols Span `json:"cols"`
}

// StatsResult holds one value per requested operation. Values are JSON
// numbers, except Mode over text cells which is a string.
type StatsResult struct {
	Values    map[string]json.RawMessage `json:"values"`
	ModeCount int                        `json:"mode_count,omitempty"`
	Cells     int64                      `json:"cells"`
}

// StatsError describes why a run failed
type StatsError struct {
	Type    string                 `json:"type"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// StatsResponse carries either Result or Error, never both. Status is the
// engine status code: zero on success.
type StatsResponse struct {
	Status     int          `json:"status"`
	Result     *StatsResult `json:"result,omitempty"`
	Error      *StatsError  `json:"error,omitempty"`
	Selection  *Selection   `json:"selection,omitempty"`
	Chunks     int          `json:"chunks,omitempty"`
	Threads    int          `json:"threads,omitempty"`
	DurationMS float64      `json:"duration_ms"`
}

// OK reports whether the response carries a result
func (r *StatsResponse) OK() bool {
	return r != nil && r.Status == 0 && r.Error == nil
}
