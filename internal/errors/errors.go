package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/neuroselftrack/internal/analysis"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/database"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/ingest"
)

// ErrorCategory defines the type of error for proper handling
type ErrorCategory string

const (
	CategoryValidation    ErrorCategory = "validation"
	CategoryNotFound      ErrorCategory = "not_found"
	CategorySignalQuality ErrorCategory = "signal_quality"
	CategoryComputation   ErrorCategory = "computation"
	CategoryTimeout       ErrorCategory = "timeout"
	CategoryRateLimit     ErrorCategory = "rate_limit"
	CategoryStorage       ErrorCategory = "storage"
	CategoryInternal      ErrorCategory = "internal"
	CategoryConfiguration ErrorCategory = "configuration"
)

// AppError wraps an errbuilder error with the HTTP context the API needs
type AppError struct {
	*errbuilder.ErrBuilder
	Category   ErrorCategory `json:"category"`
	HTTPStatus int           `json:"http_status"`
	Timestamp  time.Time     `json:"timestamp"`
	RequestID  string        `json:"request_id,omitempty"`
	StackTrace string        `json:"stack_trace,omitempty"`
}

// Error renders the error with a stable upper-case code derived from the category.
func (e *AppError) Error() string {
	codeStr := "UNKNOWN_ERROR"
	switch e.Category {
	case CategoryValidation:
		codeStr = "VALIDATION_ERROR"
	case CategoryNotFound:
		codeStr = "NOT_FOUND"
	case CategorySignalQuality:
		codeStr = "SIGNAL_QUALITY_REJECTED"
	case CategoryComputation:
		codeStr = "COMPUTATION_ERROR"
	case CategoryTimeout:
		codeStr = "TIMEOUT_ERROR"
	case CategoryRateLimit:
		codeStr = "RATE_LIMIT_EXCEEDED"
	case CategoryStorage:
		codeStr = "STORAGE_ERROR"
	case CategoryInternal:
		codeStr = "INTERNAL_ERROR"
	case CategoryConfiguration:
		codeStr = "CONFIGURATION_ERROR"
	}

	return fmt.Sprintf("[%s] %s", codeStr, e.ErrBuilder.Msg)
}

// ErrorResponse is the JSON body written for a failed request
type ErrorResponse struct {
	Error     string        `json:"error"`
	Message   string        `json:"message"`
	Category  ErrorCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	RequestID string        `json:"request_id,omitempty"`
}

// Response builds the body ErrorHandler renders.
func (e *AppError) Response() ErrorResponse {
	return ErrorResponse{
		Error:     e.Error(),
		Message:   e.ErrBuilder.Msg,
		Category:  e.Category,
		Timestamp: e.Timestamp,
		RequestID: e.RequestID,
	}
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.ErrBuilder.Unwrap()
}

// NewAppError creates an AppError from errbuilder with additional context
func NewAppError(builder *errbuilder.ErrBuilder, category ErrorCategory, httpStatus int) *AppError {
	return &AppError{
		ErrBuilder: builder,
		Category:   category,
		HTTPStatus: httpStatus,
		Timestamp:  time.Now(),
	}
}

func withDetails(builder *errbuilder.ErrBuilder, details map[string]string) *errbuilder.ErrBuilder {
	if len(details) == 0 {
		return builder
	}
	errorMap := errbuilder.ErrorMap{}
	for key, value := range details {
		errorMap.Set(key, errors.New(value))
	}
	return builder.WithDetails(errbuilder.NewErrDetails(errorMap))
}

// NewValidationError creates a validation error using errbuilder
func NewValidationError(message string, details ...interface{}) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(message)

	if len(details) > 0 {
		builder = withDetails(builder, map[string]string{
			"validation_details": fmt.Sprintf("%v", details[0]),
		})
	}

	return NewAppError(builder, CategoryValidation, http.StatusBadRequest)
}

// NewValidationErrorWithMap creates a validation error carrying one entry per invalid field
func NewValidationErrorWithMap(validationErrors map[string]string) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg("Multiple validation errors")

	return NewAppError(withDetails(builder, validationErrors), CategoryValidation, http.StatusBadRequest)
}

// NewPayloadTooLargeError reports an upload above the configured limit
func NewPayloadTooLargeError(limit int64) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("request body exceeds %d bytes", limit))

	return NewAppError(builder, CategoryValidation, http.StatusRequestEntityTooLarge)
}

// NewNotFoundError reports a missing resource such as a user or session
func NewNotFoundError(resource, id string) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg(fmt.Sprintf("%s not found", resource))
	builder = withDetails(builder, map[string]string{"id": id})

	return NewAppError(builder, CategoryNotFound, http.StatusNotFound)
}

// NewSignalQualityError reports a recording rejected by the quality gate
func NewSignalQualityError(report analysis.QualityReport) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg("EEG signal quality check failed")
	builder = withDetails(builder, map[string]string{
		"reason":  string(report.Reason),
		"channel": fmt.Sprintf("%d", report.Channel),
		"message": report.Message,
	})

	return NewAppError(builder, CategorySignalQuality, http.StatusUnprocessableEntity)
}

// NewComputationError wraps a numerical fault in the analysis pipeline
func NewComputationError(cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg("EEG analysis failed")

	var compErr *analysis.ComputationError
	if errors.As(cause, &compErr) {
		builder = withDetails(builder, map[string]string{"stage": compErr.Stage})
	}
	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return NewAppError(builder, CategoryComputation, http.StatusInternalServerError)
}

// NewTimeoutError creates a timeout error using errbuilder
func NewTimeoutError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeDeadlineExceeded).
		WithMsg(message)

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return NewAppError(builder, CategoryTimeout, http.StatusGatewayTimeout)
}

// NewRateLimitError creates a rate limit error using errbuilder
func NewRateLimitError(retryAfter string) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeResourceExhausted).
		WithMsg("Rate limit exceeded")
	builder = withDetails(builder, map[string]string{"retry_after": retryAfter})

	return NewAppError(builder, CategoryRateLimit, http.StatusTooManyRequests)
}

// NewStorageError wraps a failure of the session store
func NewStorageError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeUnavailable).
		WithMsg(message)

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return NewAppError(builder, CategoryStorage, http.StatusInternalServerError)
}

// NewInternalError creates an internal server error using errbuilder
func NewInternalError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg("Internal server error")
	builder = withDetails(builder, map[string]string{"internal_details": message})

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	appErr := NewAppError(builder, CategoryInternal, http.StatusInternalServerError)

	if gin.Mode() == gin.DebugMode || gin.Mode() == gin.TestMode {
		appErr.StackTrace = captureStackTrace()
	}

	return appErr
}

// NewConfigurationError creates a configuration error using errbuilder
func NewConfigurationError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg("Configuration error")
	builder = withDetails(builder, map[string]string{"config_details": message})

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return NewAppError(builder, CategoryConfiguration, http.StatusInternalServerError)
}

func captureStackTrace() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// ErrorHandler is a Gin middleware that renders the last handler error as JSON
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			appErr := ToAppError(c.Errors.Last().Err)
			appErr.RequestID = c.GetHeader("X-Request-ID")

			LogError(c, appErr)

			c.JSON(appErr.HTTPStatus, appErr.Response())
			return
		}
	}
}

// RecoveryHandler provides panic recovery with structured error responses
func RecoveryHandler() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, err interface{}) {
		appErr := NewInternalError(
			fmt.Sprintf("Panic recovered: %v", err),
			fmt.Errorf("%v", err),
		)
		appErr.StackTrace = captureStackTrace()

		LogError(c, appErr)
		c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.Response())
	})
}

// ToAppError converts any error to an AppError, mapping the domain sentinels
func ToAppError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	if ebErr, ok := err.(*errbuilder.ErrBuilder); ok {
		return NewAppError(ebErr, CategoryInternal, http.StatusInternalServerError)
	}

	var validationErr *database.ValidationError
	var compErr *analysis.ComputationError
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		return NewPayloadTooLargeError(maxBytesErr.Limit)
	case errors.As(err, &validationErr):
		return NewValidationErrorWithMap(validationDetails(err))
	case errors.Is(err, database.ErrInvalidInput), errors.Is(err, analysis.ErrInvalidConfig),
		errors.Is(err, ingest.ErrFormat):
		return NewValidationError(err.Error())
	case errors.Is(err, database.ErrNotFound):
		return NewNotFoundError("resource", err.Error())
	case errors.Is(err, analysis.ErrNoSamples):
		return NewValidationError("session has no EEG samples")
	case errors.As(err, &compErr):
		return NewComputationError(err)
	case errors.Is(err, context.Canceled):
		return NewTimeoutError("Request cancelled", err)
	case errors.Is(err, context.DeadlineExceeded):
		return NewTimeoutError("Request deadline exceeded", err)
	}

	return NewInternalError("An unexpected error occurred", err)
}

// validationDetails collects every *database.ValidationError inside a joined error.
func validationDetails(err error) map[string]string {
	details := map[string]string{}
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		if ve, ok := e.(*database.ValidationError); ok {
			details[ve.Field] = ve.Message
			return
		}
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(u.Unwrap())
		}
	}
	walk(err)
	return details
}

// LogError logs an error with appropriate level and context
func LogError(c *gin.Context, err *AppError) {
	logEntry := slog.With(
		"error_category", err.Category,
		"error_code", err.ErrBuilder.ErrCode(),
		"http_status", err.HTTPStatus,
		"ip", c.ClientIP(),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"request_id", c.GetHeader("X-Request-ID"),
	)

	errorMsg := err.ErrBuilder.Msg
	errorDetails := err.ErrBuilder.Details

	switch err.Category {
	case CategoryValidation, CategoryNotFound, CategoryRateLimit, CategorySignalQuality:
		if len(errorDetails.Errors) > 0 {
			logEntry.Warn(errorMsg, "details", errorDetails.Errors)
		} else {
			logEntry.Warn(errorMsg)
		}
	case CategoryTimeout:
		if cause := err.ErrBuilder.Unwrap(); cause != nil {
			logEntry.Info(errorMsg, "cause", cause)
		} else {
			logEntry.Info(errorMsg)
		}
	default:
		if cause := err.ErrBuilder.Unwrap(); cause != nil {
			logEntry.Error(errorMsg, "cause", cause)
		} else {
			logEntry.Error(errorMsg)
		}
	}

	if err.StackTrace != "" && (gin.Mode() == gin.DebugMode || gin.Mode() == gin.TestMode) {
		logEntry.Debug("stack_trace", "trace", err.StackTrace)
	}
}

// WrapError wraps an error with additional context
func WrapError(err error, message string, args ...interface{}) error {
	if err == nil {
		return nil
	}

	contextMsg := fmt.Sprintf(message, args...)
	return fmt.Errorf("%s: %w", contextMsg, err)
}

// SafeClose closes a resource and logs any error
func SafeClose(closer interface{ Close() error }, resourceName string) {
	if closer == nil {
		return
	}

	if err := closer.Close(); err != nil {
		slog.Warn("Failed to close resource",
			"resource", resourceName,
			"error", err)
	}
}
