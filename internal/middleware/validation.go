package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apperrors "tabstat/internal/errors"
	"tabstat/internal/stats"
)

// DefaultMaxBodySize bounds JSON request bodies
const DefaultMaxBodySize = 32 << 20

// Validator decodes JSON request bodies and validates them using struct tags
type Validator struct {
	validator   *validator.Validate
	logger      *slog.Logger
	maxBodySize int64
}

// NewValidator creates a new request validator
func NewValidator(logger *slog.Logger, maxBodySize int64) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Register custom validators
	_ = v.RegisterValidation("operation", isOperation)

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}

	return &Validator{
		validator:   v,
		logger:      logger.With(slog.String("component", "validator")),
		maxBodySize: maxBodySize,
	}
}

// Decode reads a JSON body into dst and validates it. Failures are returned
// as INVALID_REQUEST or ValidationErrors, ready for the error handler.
func (m *Validator) Decode(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return apperrors.NewInvalidRequestError("request body is required", nil)
	}

	body := io.LimitReader(r.Body, m.maxBodySize+1)
	data, err := io.ReadAll(body)
	if err != nil {
		return apperrors.NewInvalidRequestError("failed to read request body", err)
	}
	if int64(len(data)) > m.maxBodySize {
		return apperrors.NewInvalidRequestError(
			fmt.Sprintf("request body exceeds %d bytes", m.maxBodySize), nil).
			WithContext("max_size", m.maxBodySize)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		m.logger.DebugContext(r.Context(), "invalid JSON body",
			slog.String("error", err.Error()),
			slog.String("request_id", GetReqID(r.Context())),
		)
		return apperrors.NewInvalidRequestError("request body contains invalid JSON", err)
	}

	return m.ValidateStruct(dst)
}

// ValidateStruct validates a struct and returns validation errors
func (m *Validator) ValidateStruct(v interface{}) error {
	err := m.validator.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewInvalidRequestError("invalid request", err)
	}

	validationErrors := make(apperrors.ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		validationErrors = append(validationErrors, apperrors.ValidationError{
			Field:   fe.Field(),
			Message: formatValidationError(fe),
		})
	}
	return validationErrors
}

// ContentTypeValidator ensures requests have proper content type
func ContentTypeValidator(contentTypes ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			contentType := r.Header.Get("Content-Type")
			for _, allowed := range contentTypes {
				if strings.HasPrefix(contentType, allowed) {
					next.ServeHTTP(w, r)
					return
				}
			}

			problem := apperrors.NewProblemDetails(
				http.StatusUnsupportedMediaType,
				apperrors.TypeValidation,
				"Unsupported Media Type",
				fmt.Sprintf("Content-Type %q is not supported", contentType),
				r.URL.Path,
			).WithExtension("allowed", contentTypes).
				WithExtension("trace_id", GetReqID(r.Context()))
			render.Render(w, r, problem)
		})
	}
}

// formatValidationError phrases a field error without the field name
func formatValidationError(err validator.FieldError) string {
	param := err.Param()

	switch err.Tag() {
	case "required":
		return "is required"
	case "required_without":
		return fmt.Sprintf("is required when %s is empty", strings.ToLower(param))
	case "excluded_with":
		return fmt.Sprintf("must be empty when %s is set", strings.ToLower(param))
	case "min":
		return fmt.Sprintf("must be at least %s", param)
	case "max":
		return fmt.Sprintf("must be at most %s", param)
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(param, " ", ", "))
	case "operation":
		return fmt.Sprintf("must be one of: %s", strings.Join(operationNames(), ", "))
	default:
		return fmt.Sprintf("failed %s validation", err.Tag())
	}
}

// isOperation validates a statistic name
func isOperation(fl validator.FieldLevel) bool {
	_, err := stats.ParseOperation(fl.Field().String())
	return err == nil
}

func operationNames() []string {
	ops := stats.AllOperations()
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = op.String()
	}
	return names
}
