package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	apperrors "tabstat/internal/errors"
	"tabstat/internal/selection"
	"tabstat/internal/stats"
	"tabstat/internal/table"
)

// Request describes one statistics run. Either Path or Table must be set;
// a preloaded Table wins over Path.
type Request struct {
	Path  string       `validate:"required_without=Table"`
	Table *table.Table `validate:"-"`

	Rows selection.RangeSpec
	Cols selection.RangeSpec

	Operations stats.OperationSet `validate:"-"`
	Threads    int                `validate:"min=1"`

	// Progress, when set, is called once per finished chunk from the worker
	// goroutine that finished it. It must be safe for concurrent use.
	Progress func(ChunkProgress) `validate:"-"`
}

// ChunkProgress reports a finished chunk
type ChunkProgress struct {
	Chunk    int
	Rows     selection.Span
	Done     int
	Total    int
	Duration time.Duration
	Err      error
}

// Response is the outcome of a run. Status is zero on success and otherwise
// matches the error returned next to it.
type Response struct {
	Status    int
	Result    *stats.Result
	Selection selection.Selection
	Chunks    int
	Threads   int
	Duration  time.Duration
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// validate checks req against the struct rules
func (e *Engine) validate(req *Request) error {
	if err := e.validator.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return apperrors.NewInvalidRequestError(describe(verrs[0]), err)
		}
		return apperrors.NewInvalidRequestError("invalid request", err)
	}
	if req.Operations.IsEmpty() {
		return apperrors.NewInvalidRequestError("at least one operation is required", nil)
	}
	return nil
}

// clampThreads lowers req.Threads to the engine cap and reports whether it did
func (e *Engine) clampThreads(req *Request) bool {
	if e.maxThreads > 0 && req.Threads > e.maxThreads {
		req.Threads = e.maxThreads
		return true
	}
	return false
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required_without":
		return "a file path or table is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s", strings.ToLower(fe.Field()), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", strings.ToLower(fe.Field()), fe.Tag())
	}
}
