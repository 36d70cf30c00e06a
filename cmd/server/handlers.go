package main

import (
	"bytes"
	"fmt"
	"io"
	"maps"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/neuroselftrack/internal/analysis"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/cache"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/database"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/errors"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/ingest"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/insights"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/privacy"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/types"
)

const defaultSessionLimit = 20

// handleHealth godoc
// @Summary Service health
// @Tags system
// @Produce json
// @Success 200 {object} types.HealthResponse
// @Failure 503 {object} types.HealthResponse
// @Router /health [get]
func (s *server) handleHealth(c *gin.Context) {
	ctx := c.Request.Context()

	status := http.StatusOK
	resp := types.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   version,
		Services:  map[string]string{"database": "ok"},
		Cache:     map[string]interface{}{"backend": s.results.Backend()},
	}

	if err := s.db.HealthCheck(ctx); err != nil {
		s.logger.Error("Database health check failed", "error", err)
		resp.Services["database"] = "down"
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}

	switch {
	case !s.redis.IsEnabled():
		resp.Services["redis"] = "disabled"
	case s.redis.HealthCheck(ctx) != nil:
		// The fallback store keeps serving from memory
		resp.Services["redis"] = "down"
	default:
		resp.Services["redis"] = "ok"
	}

	switch store := s.store.(type) {
	case *cache.FallbackStore:
		resp.Cache["breaker"] = store.Breaker().Stats()
	case *cache.Cache:
		resp.Cache["memory"] = store.Stats()
	}
	resp.Metrics = s.metrics.GetStats()
	resp.Metrics["database_pool"] = s.db.PoolStats()

	c.JSON(status, resp)
}

// handleCreateUser godoc
// @Summary Create a user
// @Tags users
// @Accept json
// @Produce json
// @Param user body types.CreateUserRequest true "User"
// @Success 201 {object} database.User
// @Failure 400 {object} errors.ErrorResponse
// @Router /users [post]
func (s *server) handleCreateUser(c *gin.Context) {
	var req types.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.NewValidationError("Invalid user body", err.Error()))
		return
	}
	if err := s.security.ValidateText("name", req.Name); err != nil {
		_ = c.Error(errors.NewValidationError(err.Error()))
		return
	}

	user, err := s.repo.CreateUser(c.Request.Context(), s.security.SanitizeText(req.Name))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// handleListUsers godoc
// @Summary List users
// @Tags users
// @Produce json
// @Router /users [get]
func (s *server) handleListUsers(c *gin.Context) {
	users, err := s.repo.ListUsers(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	if users == nil {
		users = []database.User{}
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// handleDeleteUser godoc
// @Summary Delete a user and all of their data
// @Tags privacy
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} privacy.DeletionReport
// @Failure 404 {object} errors.ErrorResponse
// @Router /users/{id} [delete]
func (s *server) handleDeleteUser(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.Param("id")

	report, err := s.privacy.DeleteUserData(ctx, userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	s.invalidate(ctx, userID, report.SessionIDs...)
	s.logger.SystemLogger("user_deleted", privacy.AnonymizeID(userID))

	c.JSON(http.StatusOK, report)
}

func (s *server) handlePrivacySummary(c *gin.Context) {
	summary, err := s.privacy.Summary(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// handleListSessions godoc
// @Summary Recent sessions of a user
// @Tags sessions
// @Produce json
// @Param id path string true "User ID"
// @Param limit query int false "Maximum sessions" default(20)
// @Success 200 {object} types.SessionListResponse
// @Router /users/{id}/sessions [get]
func (s *server) handleListSessions(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.Param("id")

	limit := defaultSessionLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			_ = c.Error(errors.NewValidationError("limit must be a positive integer"))
			return
		}
		limit = n
	}

	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		_ = c.Error(err)
		return
	}
	sessions, err := s.repo.ListRecentSessions(ctx, userID, limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if sessions == nil {
		sessions = []database.SessionOverview{}
	}
	c.JSON(http.StatusOK, types.SessionListResponse{UserID: userID, Sessions: sessions})
}

func (s *server) handleDateRange(c *gin.Context) {
	dr, err := s.repo.SessionDateRange(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dr)
}

// parseDay accepts a date or an RFC3339 time. A bare date used as an upper
// bound covers the whole day.
func parseDay(value string, end bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not a date (YYYY-MM-DD) or RFC3339 time", value)
	}
	if end {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

// userRecords loads the session records behind the insight views. It writes
// the error and returns false when the request cannot be served.
func (s *server) userRecords(c *gin.Context) (string, []database.SessionRecord, bool) {
	ctx := c.Request.Context()
	userID := c.Param("id")

	var filter database.RecordFilter
	var err error
	if from := c.Query("from"); from != "" {
		if filter.From, err = parseDay(from, false); err != nil {
			_ = c.Error(errors.NewValidationError("Invalid from parameter", err.Error()))
			return "", nil, false
		}
	}
	if to := c.Query("to"); to != "" {
		if filter.To, err = parseDay(to, true); err != nil {
			_ = c.Error(errors.NewValidationError("Invalid to parameter", err.Error()))
			return "", nil, false
		}
	}

	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		_ = c.Error(err)
		return "", nil, false
	}
	records, err := s.repo.ListSessionRecords(ctx, userID, filter)
	if err != nil {
		_ = c.Error(err)
		return "", nil, false
	}
	return userID, records, true
}

// handleInsights godoc
// @Summary Dashboard report: peak hours, activity patterns, best conditions
// @Tags insights
// @Produce json
// @Param id path string true "User ID"
// @Param from query string false "Start date"
// @Param to query string false "End date"
// @Router /users/{id}/insights [get]
func (s *server) handleInsights(c *gin.Context) {
	userID, records, ok := s.userRecords(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":  userID,
		"sessions": len(records),
		"insights": insights.Generate(records),
	})
}

func (s *server) handleRecommendations(c *gin.Context) {
	userID, records, ok := s.userRecords(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":         userID,
		"sessions":        len(records),
		"recommendations": insights.Recommendations(records),
	})
}

// handleCorrelations godoc
// @Summary Pearson correlations between self-reported metrics
// @Description Without metrics only pairs with |r| above the key threshold are returned.
// @Tags insights
// @Produce json
// @Param id path string true "User ID"
// @Param metrics query string false "Comma separated metric names"
// @Success 200 {object} types.CorrelationsResponse
// @Failure 400 {object} errors.ErrorResponse
// @Router /users/{id}/correlations [get]
func (s *server) handleCorrelations(c *gin.Context) {
	userID, records, ok := s.userRecords(c)
	if !ok {
		return
	}

	var correlations []insights.Correlation
	if raw := c.Query("metrics"); raw != "" {
		var metrics []string
		for _, m := range strings.Split(raw, ",") {
			if m = strings.TrimSpace(m); m != "" {
				metrics = append(metrics, m)
			}
		}
		var err error
		correlations, err = insights.Correlations(records, metrics)
		if err != nil {
			_ = c.Error(errors.NewValidationError(err.Error()))
			return
		}
	} else {
		correlations = insights.KeyCorrelations(records)
	}
	if correlations == nil {
		correlations = []insights.Correlation{}
	}

	c.JSON(http.StatusOK, types.CorrelationsResponse{
		UserID:       userID,
		Sessions:     len(records),
		Correlations: correlations,
	})
}

func (s *server) handleSummary(c *gin.Context) {
	userID, records, ok := s.userRecords(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "summary": insights.Summarize(records)})
}

// sanitizeSession checks and strips markup from the free-text fields.
func (s *server) sanitizeSession(req *types.LogSessionRequest) error {
	fields := req.TextFields()
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		if err := s.security.ValidateText(name, fields[name]); err != nil {
			return err
		}
	}

	req.Notes = s.security.SanitizeText(req.Notes)
	if req.Journal != nil {
		req.Journal.Notes = s.security.SanitizeText(req.Journal.Notes)
		req.Journal.Mood = s.security.SanitizeText(req.Journal.Mood)
		req.Journal.Tags = s.security.SanitizeText(req.Journal.Tags)
	}
	if req.Diet != nil {
		req.Diet.Notes = s.security.SanitizeText(req.Diet.Notes)
		for i, item := range req.Diet.FoodItems {
			req.Diet.FoodItems[i] = s.security.SanitizeText(item)
		}
	}
	return nil
}

// handleLogSession godoc
// @Summary Log a session with optional EEG, context, journal and diet
// @Tags sessions
// @Accept json
// @Produce json
// @Param session body types.LogSessionRequest true "Session"
// @Success 201 {object} types.LogSessionResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /sessions [post]
func (s *server) handleLogSession(c *gin.Context) {
	ctx := c.Request.Context()

	var req types.LogSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bodyError(err, "Invalid session body"))
		return
	}
	if err := s.sanitizeSession(&req); err != nil {
		_ = c.Error(errors.NewValidationError(err.Error()))
		return
	}

	in := req.ToInput(time.Now())
	session, err := s.repo.LogSession(ctx, in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	s.invalidate(ctx, session.UserID)

	c.JSON(http.StatusCreated, types.LogSessionResponse{Session: session, SampleCount: len(in.EEG)})
}

func (s *server) handleGetSession(c *gin.Context) {
	data, err := s.repo.GetSessionData(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if data.EEG == nil {
		data.EEG = []analysis.Sample{}
	}
	c.JSON(http.StatusOK, data)
}

func (s *server) handleDeleteSession(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.Param("id")

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := s.repo.DeleteSession(ctx, sessionID); err != nil {
		_ = c.Error(err)
		return
	}
	s.invalidate(ctx, session.UserID, sessionID)

	c.JSON(http.StatusOK, types.MessageResponse{Message: "session deleted"})
}

// bodyError reports a request body that could not be read or decoded. A body
// over the upload limit keeps its 413.
func bodyError(err error, message string) *errors.AppError {
	if appErr := errors.ToAppError(err); appErr.HTTPStatus == http.StatusRequestEntityTooLarge {
		return appErr
	}
	return errors.NewValidationError(message, err.Error())
}

// readUpload returns the uploaded recording with its file name and content
// type. Multipart uploads use the "file" field; any other body is the
// recording itself.
func readUpload(c *gin.Context) ([]byte, string, string, error) {
	if c.ContentType() == "multipart/form-data" {
		header, err := c.FormFile("file")
		if err != nil {
			return nil, "", "", fmt.Errorf("reading file field: %w", err)
		}
		f, err := header.Open()
		if err != nil {
			return nil, "", "", fmt.Errorf("opening upload: %w", err)
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			return nil, "", "", fmt.Errorf("reading upload: %w", err)
		}
		return data, header.Filename, header.Header.Get("Content-Type"), nil
	}

	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, "", "", fmt.Errorf("reading upload: %w", err)
	}
	return data, c.Query("filename"), c.GetHeader("Content-Type"), nil
}

// handleImportEEG godoc
// @Summary Import a CSV or EDF recording into a session
// @Tags eeg
// @Accept mpfd
// @Produce json
// @Param id path string true "Session ID"
// @Param file formData file false "Recording"
// @Param format query string false "csv or edf"
// @Param sampling_rate query number false "Sampling rate of CSV files without timestamps"
// @Success 201 {object} types.ImportResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 413 {object} errors.ErrorResponse
// @Router /sessions/{id}/eeg [post]
func (s *server) handleImportEEG(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.Param("id")

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	data, filename, contentType, err := readUpload(c)
	if err != nil {
		_ = c.Error(bodyError(err, "Invalid upload"))
		return
	}

	format := strings.ToLower(c.Query("format"))
	if format == "" {
		format = ingest.DetectFormat(filename, contentType)
	}
	if format != ingest.FormatCSV && format != ingest.FormatEDF {
		_ = c.Error(errors.NewValidationError("Unknown recording format; pass format=csv or format=edf"))
		return
	}

	rate := s.analyzer.Config().SamplingRate
	if raw := c.Query("sampling_rate"); raw != "" {
		rate, err = strconv.ParseFloat(raw, 64)
		if err != nil || rate <= 0 {
			_ = c.Error(errors.NewValidationError("sampling_rate must be a positive number"))
			return
		}
	}

	start := time.Now()
	samples, err := ingest.Read(format, bytes.NewReader(data), rate)
	if err != nil {
		s.logger.ImportLogger(sessionID, format, 0, time.Since(start), err)
		_ = c.Error(err)
		return
	}

	n, err := s.repo.AppendEEGSamples(ctx, sessionID, samples)
	s.logger.ImportLogger(sessionID, format, n, time.Since(start), err)
	if err != nil {
		_ = c.Error(err)
		return
	}
	s.metrics.RecordImport(format, n)
	s.invalidate(ctx, session.UserID, sessionID)

	c.JSON(http.StatusCreated, types.ImportResponse{SessionID: sessionID, Format: format, Imported: n})
}

// handleExportEDF godoc
// @Summary Export the session recording as EDF
// @Tags eeg
// @Produce application/edf
// @Param id path string true "Session ID"
// @Success 200 {file} file
// @Failure 404 {object} errors.ErrorResponse
// @Router /sessions/{id}/eeg.edf [get]
func (s *server) handleExportEDF(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.Param("id")

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	samples, err := s.repo.LoadEEGSamples(ctx, sessionID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if len(samples) == 0 {
		_ = c.Error(errors.NewNotFoundError("EEG recording", sessionID))
		return
	}

	// edf needs a seekable writer
	f, err := os.CreateTemp("", "neurotrack-*.edf")
	if err != nil {
		_ = c.Error(errors.NewStorageError("Failed to create export file", err))
		return
	}
	defer os.Remove(f.Name())
	defer errors.SafeClose(f, "edf export")

	opts := ingest.EDFOptions{
		SamplingRate: s.analyzer.Config().SamplingRate,
		PatientID:    privacy.AnonymizeID(session.UserID),
		RecordingID:  session.ID,
	}
	if err := ingest.WriteEDF(f, samples, opts); err != nil {
		_ = c.Error(err)
		return
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		_ = c.Error(errors.NewStorageError("Failed to rewind export file", err))
		return
	}

	name := sessionID + ".edf"
	c.Header("Content-Type", "application/edf")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(c.Writer, c.Request, name, session.Timestamp, f)
}

// queryBool reads a boolean query parameter, returning def when it is
// absent or malformed.
func queryBool(c *gin.Context, key string, def bool) bool {
	v, err := strconv.ParseBool(c.Query(key))
	if err != nil {
		return def
	}
	return v
}

// handleAnalyze godoc
// @Summary Band powers and cognitive scores of a session
// @Description Results are cached per session until its recording changes.
// @Tags eeg
// @Produce json
// @Param id path string true "Session ID"
// @Param raw query bool false "Echo the raw samples" default(true)
// @Param strict query bool false "Fail with 422 when the signal is rejected" default(false)
// @Success 200 {object} analysis.Result
// @Failure 404 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Failure 429 {object} errors.ErrorResponse
// @Router /sessions/{id}/analysis [get]
func (s *server) handleAnalyze(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.Param("id")
	start := time.Now()

	result, hit := s.results.Get(ctx, sessionID)
	if !hit {
		if _, err := s.repo.GetSession(ctx, sessionID); err != nil {
			_ = c.Error(err)
			return
		}

		var err error
		result, err = s.analyzer.AnalyzeSession(ctx, sessionID)
		if err != nil {
			_ = c.Error(err)
			return
		}

		reason := ""
		if result.Quality != nil {
			reason = string(result.Quality.Reason)
		}
		s.metrics.RecordAnalysis(string(result.Status), reason, time.Since(start))

		if err := s.results.Put(ctx, result); err != nil {
			s.logger.Warn("Failed to cache analysis result", "session_id", sessionID, "error", err)
		}
	}
	s.logger.AnalysisLogger(sessionID, string(result.Status), result.SampleCount, time.Since(start), hit)

	if queryBool(c, "strict", false) && result.Status == analysis.StatusRejected && result.Quality != nil {
		_ = c.Error(errors.NewSignalQualityError(*result.Quality))
		return
	}
	if !queryBool(c, "raw", true) {
		result = result.WithoutRaw()
	}

	if hit {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}
	c.JSON(http.StatusOK, result)
}
