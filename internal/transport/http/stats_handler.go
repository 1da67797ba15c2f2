package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	apperrors "tabstat/internal/errors"
	"tabstat/internal/middleware"
	"tabstat/internal/report"
	api "tabstat/pkg/contracts/api/v1"
)

// StatsHandler handles statistics requests
type StatsHandler struct {
	runner       StatsRunner
	validator    *middleware.Validator
	errorHandler *apperrors.ErrorHandler
	opts         RequestOptions
	timeout      time.Duration
	logger       *slog.Logger
}

// NewStatsHandler creates a new stats handler. A zero timeout leaves the
// request context as is.
func NewStatsHandler(
	runner StatsRunner,
	validator *middleware.Validator,
	errorHandler *apperrors.ErrorHandler,
	opts RequestOptions,
	timeout time.Duration,
	logger *slog.Logger,
) *StatsHandler {
	return &StatsHandler{
		runner:       runner,
		validator:    validator,
		errorHandler: errorHandler,
		opts:         opts,
		timeout:      timeout,
		logger:       logger.With(slog.String("handler", "stats")),
	}
}

// Compute handles POST /api/v1/stats
func (h *StatsHandler) Compute(w http.ResponseWriter, r *http.Request) {
	var in api.StatsRequest
	if err := h.validator.Decode(r, &in); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	req, err := buildRequest(ctx, in, h.opts)
	if err != nil {
		h.errorHandler.HandleError(w, r, publicError(err, in))
		return
	}

	resp, err := h.runner.Run(ctx, req)
	if err != nil {
		h.errorHandler.HandleError(w, r, publicError(err, in))
		return
	}

	h.logger.DebugContext(ctx, "stats computed",
		slog.String("operations", req.Operations.String()),
		slog.Int("chunks", resp.Chunks))

	render.JSON(w, r, report.ToContract(resp, nil))
}
