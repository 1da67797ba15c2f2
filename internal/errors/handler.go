package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// Problem types following RFC 7807
const (
	TypeValidation     = "/errors/validation"
	TypeNotFound       = "/errors/not-found"
	TypeRateLimit      = "/errors/rate-limit"
	TypeInternal       = "/errors/internal"
	TypeTimeout        = "/errors/timeout"
	TypeMethodNotAllow = "/errors/method-not-allowed"
)

// Domain problem types, one per ErrorType
const (
	TypeFileNotFound   = "/errors/table/not-found"
	TypeMalformedTable = "/errors/table/malformed"
	TypeInvalidRange   = "/errors/range/invalid"
	TypeNonNumericData = "/errors/data/non-numeric"
	TypeWorkerFailure  = "/errors/engine/worker-failure"
	TypeEmptySelection = "/errors/range/empty"
	TypeCancelled      = "/errors/engine/cancelled"
)

type problemMapping struct {
	status      int
	problemType string
	title       string
}

var problemMappings = map[ErrorType]problemMapping{
	ErrTypeFileNotFound:   {http.StatusNotFound, TypeFileNotFound, "Table Not Found"},
	ErrTypeMalformedTable: {http.StatusUnprocessableEntity, TypeMalformedTable, "Malformed Table"},
	ErrTypeInvalidRange:   {http.StatusBadRequest, TypeInvalidRange, "Invalid Range"},
	ErrTypeNonNumericData: {http.StatusUnprocessableEntity, TypeNonNumericData, "Non-Numeric Data"},
	ErrTypeWorkerFailure:  {http.StatusInternalServerError, TypeWorkerFailure, "Worker Failure"},
	ErrTypeEmptySelection: {http.StatusBadRequest, TypeEmptySelection, "Empty Selection"},
	ErrTypeInvalidRequest: {http.StatusBadRequest, TypeValidation, "Invalid Request"},
	ErrTypeCancelled:      {http.StatusGatewayTimeout, TypeCancelled, "Request Cancelled"},
	ErrTypeConfig:         {http.StatusInternalServerError, TypeInternal, "Configuration Error"},
}

// HTTPStatus returns the HTTP status used when err is rendered as a problem
func HTTPStatus(err error) int {
	if m, ok := problemMappings[TypeOf(err)]; ok {
		return m.status
	}
	return http.StatusInternalServerError
}

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := middleware.GetReqID(r.Context())
	problem := h.ErrorToProblem(err, r)
	problem.WithExtension("trace_id", reqID)

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.String("error_type", string(TypeOf(err))),
		slog.Int("status", problem.Status),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	if h.includeStack && problem.Status >= http.StatusInternalServerError {
		problem.WithExtension("stack", getStackTrace())
	}

	render.Render(w, r, problem)
}

// ErrorToProblem converts an error to RFC 7807 Problem Details
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	var valErrs ValidationErrors
	if errors.As(err, &valErrs) {
		return NewProblemDetails(
			http.StatusBadRequest,
			TypeValidation,
			"Validation Failed",
			"One or more fields are invalid",
			r.URL.Path,
		).WithExtension("errors", []ValidationError(valErrs)).
			WithExtension("status_code", StatusInvalidRequest)
	}

	errType := TypeOf(err)
	m, ok := problemMappings[errType]
	if !ok {
		return NewProblemDetails(
			http.StatusInternalServerError,
			TypeInternal,
			"Internal Server Error",
			"An unexpected error occurred",
			r.URL.Path,
		).WithExtension("status_code", StatusUnknown)
	}

	detail := err.Error()
	var appErr *AppError
	if errors.As(err, &appErr) {
		detail = appErr.Message
	}

	problem := NewProblemDetails(m.status, m.problemType, m.title, detail, r.URL.Path).
		WithExtension("error_type", string(errType)).
		WithExtension("status_code", StatusCode(err))

	if appErr != nil {
		for k, v := range appErr.Context {
			// Server-side paths are not echoed back to clients.
			if k == "path" {
				continue
			}
			problem.WithExtension(k, v)
		}
	}

	return problem
}

// HandlePanic recovers from panics and returns RFC 7807 error
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	reqID := middleware.GetReqID(r.Context())

	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred",
		r.URL.Path,
	).WithExtension("trace_id", reqID)

	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
		problem.WithExtension("stack", getStackTrace())
	}

	render.Render(w, r, problem)
}

// NotFound returns a standard 404 error
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusNotFound,
		TypeNotFound,
		"Not Found",
		"The requested resource was not found",
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	render.Render(w, r, problem)
}

// MethodNotAllowed returns a standard 405 error
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusMethodNotAllowed,
		TypeMethodNotAllow,
		"Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method),
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	render.Render(w, r, problem)
}

func getStackTrace() string {
	buf := make([]byte, 1024*8)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
