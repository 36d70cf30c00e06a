package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/neuroselftrack/internal/analysis"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/database"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/ingest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestToAppError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category ErrorCategory
		status   int
	}{
		{"not found", fmt.Errorf("session abc: %w", database.ErrNotFound), CategoryNotFound, http.StatusNotFound},
		{"validation", &database.ValidationError{Field: "mood", Message: "must be between 1 and 5"}, CategoryValidation, http.StatusBadRequest},
		{"joined validation", errors.Join(
			&database.ValidationError{Field: "mood", Message: "bad"},
			&database.ValidationError{Field: "stress", Message: "bad"},
		), CategoryValidation, http.StatusBadRequest},
		{"invalid config", fmt.Errorf("%w: sampling rate", analysis.ErrInvalidConfig), CategoryValidation, http.StatusBadRequest},
		{"bad upload", fmt.Errorf("%w: csv line 3: channel1", ingest.ErrFormat), CategoryValidation, http.StatusBadRequest},
		{"upload too large", fmt.Errorf("reading upload: %w", &http.MaxBytesError{Limit: 10}), CategoryValidation, http.StatusRequestEntityTooLarge},
		{"no samples", analysis.ErrNoSamples, CategoryValidation, http.StatusBadRequest},
		{"computation", &analysis.ComputationError{Stage: "psd", Err: errors.New("boom")}, CategoryComputation, http.StatusInternalServerError},
		{"deadline", context.DeadlineExceeded, CategoryTimeout, http.StatusGatewayTimeout},
		{"cancelled", context.Canceled, CategoryTimeout, http.StatusGatewayTimeout},
		{"unknown", errors.New("disk on fire"), CategoryInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := ToAppError(tt.err)
			require.NotNil(t, appErr)
			assert.Equal(t, tt.category, appErr.Category)
			assert.Equal(t, tt.status, appErr.HTTPStatus)
		})
	}
}

func TestToAppErrorPassthrough(t *testing.T) {
	assert.Nil(t, ToAppError(nil))

	original := NewRateLimitError("60")
	wrapped := fmt.Errorf("limiter: %w", original)
	assert.Same(t, original, ToAppError(wrapped))
}

func TestValidationDetailsCollectsJoinedFields(t *testing.T) {
	err := errors.Join(
		&database.ValidationError{Field: "mood", Message: "out of range"},
		fmt.Errorf("context: %w", &database.ValidationError{Field: "meal_type", Message: "unknown"}),
	)

	details := validationDetails(err)
	assert.Equal(t, map[string]string{"mood": "out of range", "meal_type": "unknown"}, details)
}

func TestAppErrorMessages(t *testing.T) {
	assert.Equal(t, "[VALIDATION_ERROR] bad input", NewValidationError("bad input").Error())
	assert.Equal(t, "[NOT_FOUND] session not found", NewNotFoundError("session", "x").Error())
	assert.Equal(t, "[RATE_LIMIT_EXCEEDED] Rate limit exceeded", NewRateLimitError("60").Error())

	report := analysis.QualityReport{Reason: analysis.ReasonFlatline, Channel: 2, Message: "flat"}
	qualityErr := NewSignalQualityError(report)
	assert.Equal(t, http.StatusUnprocessableEntity, qualityErr.HTTPStatus)
	assert.Equal(t, CategorySignalQuality, qualityErr.Category)
}

func TestComputationErrorUnwraps(t *testing.T) {
	cause := &analysis.ComputationError{Stage: "metrics", Err: analysis.ErrMissingBand}
	appErr := NewComputationError(cause)

	assert.ErrorIs(t, appErr, analysis.ErrMissingBand)
}

func TestErrorHandlerRendersLastError(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/sessions/:id", func(c *gin.Context) {
		_ = c.Error(fmt.Errorf("session %s: %w", c.Param("id"), database.ErrNotFound))
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/sessions/abc", nil)
	req.Header.Set("X-Request-ID", "req-1")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "not_found", body["category"])
	assert.Equal(t, "req-1", body["request_id"])
	assert.Contains(t, body["error"], "NOT_FOUND")
}

func TestRecoveryHandler(t *testing.T) {
	r := gin.New()
	r.Use(RecoveryHandler())
	r.GET("/panic", func(c *gin.Context) {
		panic("unexpected nil band")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "internal", body["category"])
}

func TestWrapError(t *testing.T) {
	assert.Nil(t, WrapError(nil, "ignored"))

	err := WrapError(database.ErrNotFound, "loading session %s", "abc")
	assert.EqualError(t, err, "loading session abc: not found")
	assert.ErrorIs(t, err, database.ErrNotFound)
}
