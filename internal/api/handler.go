package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/careerbee/quizrank/internal/model"
	"github.com/careerbee/quizrank/pkg/common"
)

const defaultMaxSubmitBodyBytes int64 = 64 << 10 // 64KB of answers is plenty

type contestService interface {
	CurrentCompetition(ctx context.Context, now time.Time) (*model.Competition, error)
	Problems(ctx context.Context, competitionID int64) ([]model.Problem, error)
	Join(ctx context.Context, memberID, competitionID int64) error
	Submit(ctx context.Context, memberID, competitionID int64, answers []model.Answer, elapsedTimeMillis int64) (*model.GradingResult, error)
	LiveRanking(ctx context.Context, date time.Time) ([]model.LiveRankEntry, error)
	MemberLiveRank(ctx context.Context, memberID int64, date time.Time) (*model.LiveRankEntry, error)
	MemberPoints(ctx context.Context, memberID int64) (int64, error)
}

// Handler serves the competition and ranking endpoints.
type Handler struct {
	contest   contestService
	summaries summaryStore
	cache     rankingCache
	loc       *time.Location
	logger    *slog.Logger
}

// NewHandler creates a Handler. loc resolves date-only query parameters and
// "today"; cache may be nil to disable the ranking cache.
func NewHandler(contest contestService, summaries summaryStore, cache rankingCache, loc *time.Location, logger *slog.Logger) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		contest:   contest,
		summaries: summaries,
		cache:     cache,
		loc:       loc,
		logger:    logger.With("component", "api_handler"),
	}
}

// RegisterRoutes wires the public API surface.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/api/competitions/today", h.HandleCurrentCompetition)
	r.GET("/api/competitions/:id/problems", h.HandleListProblems)

	auth := r.Group("", MemberAuthMiddleware())
	auth.POST("/api/competitions/:id/join", h.HandleJoin)
	auth.POST("/api/competitions/:id/submit", h.HandleSubmit)
	auth.GET("/api/rankings/live/me", h.HandleMemberLiveRank)
	auth.GET("/api/rankings/:period/me", h.HandleMemberPeriodRank)
	auth.GET("/api/members/me/points", h.HandleMemberPoints)

	r.GET("/api/rankings/live", h.HandleLiveRanking)
	r.GET("/api/rankings/:period", h.HandleTopRanking)
}

// SubmitRequest is the submission body.
type SubmitRequest struct {
	Answers           []model.Answer `json:"answers" binding:"required"`
	ElapsedTimeMillis int64          `json:"elapsed_time_millis" binding:"required"`
}

// HandleCurrentCompetition returns the competition whose window contains now.
func (h *Handler) HandleCurrentCompetition(c *gin.Context) {
	comp, err := h.contest.CurrentCompetition(c.Request.Context(), time.Now())
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, comp)
}

// HandleListProblems returns the problem set of a competition. Correct
// choices and explanations are withheld by the model's JSON encoding.
func (h *Handler) HandleListProblems(c *gin.Context) {
	competitionID, ok := pathID(c)
	if !ok {
		return
	}
	problems, err := h.contest.Problems(c.Request.Context(), competitionID)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"problems": problems})
}

// HandleJoin registers the authenticated member for a competition.
func (h *Handler) HandleJoin(c *gin.Context) {
	memberID, ok := GetMemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated", "code": "UNAUTHORIZED"})
		return
	}
	competitionID, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.contest.Join(c.Request.Context(), memberID, competitionID); err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "joined"})
}

// HandleSubmit grades the authenticated member's submission.
func (h *Handler) HandleSubmit(c *gin.Context) {
	reqID := GetRequestID(c)
	logger := h.logger.With("request_id", reqID, "path", c.FullPath())

	memberID, ok := GetMemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated", "code": "UNAUTHORIZED"})
		return
	}
	competitionID, ok := pathID(c)
	if !ok {
		return
	}

	maxBodyBytes := getEnvInt64("SUBMIT_BODY_MAX_BYTES", defaultMaxSubmitBodyBytes)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)

	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large", "code": "BODY_TOO_LARGE"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body", "details": err.Error(), "code": "BAD_REQUEST"})
		return
	}

	result, err := h.contest.Submit(c.Request.Context(), memberID, competitionID, req.Answers, req.ElapsedTimeMillis)
	if err != nil {
		SubmissionTotal.WithLabelValues(submissionStatus(err)).Inc()
		h.respondDomainError(c, err)
		return
	}

	SubmissionTotal.WithLabelValues("graded").Inc()
	logger.Info("submission accepted",
		"member_id", memberID,
		"competition_id", competitionID,
		"solved", result.SolvedCount,
	)
	c.JSON(http.StatusOK, result)
}

// HandleMemberPoints returns the authenticated member's point balance.
func (h *Handler) HandleMemberPoints(c *gin.Context) {
	memberID, ok := GetMemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated", "code": "UNAUTHORIZED"})
		return
	}
	points, err := h.contest.MemberPoints(c.Request.Context(), memberID)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"member_id": memberID, "points": points})
}

// HandleLiveRanking returns the ranking of a day computed from raw results.
func (h *Handler) HandleLiveRanking(c *gin.Context) {
	date, ok := h.dateParam(c)
	if !ok {
		return
	}
	entries, err := h.contest.LiveRanking(c.Request.Context(), date)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date.Format("2006-01-02"), "ranking": entries})
}

// HandleMemberLiveRank returns the authenticated member's live rank.
func (h *Handler) HandleMemberLiveRank(c *gin.Context) {
	memberID, ok := GetMemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated", "code": "UNAUTHORIZED"})
		return
	}
	date, ok := h.dateParam(c)
	if !ok {
		return
	}
	entry, err := h.contest.MemberLiveRank(c.Request.Context(), memberID, date)
	if errors.Is(err, common.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not participated", "code": "NOT_PARTICIPATED"})
		return
	}
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid competition id", "code": "BAD_REQUEST"})
		return 0, false
	}
	return id, true
}

// dateParam parses an optional date query parameter, defaulting to today in
// the service zone.
func (h *Handler) dateParam(c *gin.Context) (time.Time, bool) {
	raw := c.Query("date")
	if raw == "" {
		return time.Now().In(h.loc), true
	}
	date, err := time.ParseInLocation("2006-01-02", raw, h.loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, want YYYY-MM-DD", "code": "BAD_REQUEST"})
		return time.Time{}, false
	}
	return date, true
}

func (h *Handler) respondDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found", "code": "NOT_FOUND"})
	case errors.Is(err, common.ErrAlreadyJoined):
		c.JSON(http.StatusConflict, gin.H{"error": "already joined", "code": "ALREADY_JOINED"})
	case errors.Is(err, common.ErrAlreadySubmitted):
		c.JSON(http.StatusConflict, gin.H{"error": "already submitted", "code": "ALREADY_SUBMITTED"})
	case errors.Is(err, common.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "INVALID_INPUT"})
	case errors.Is(err, common.ErrNoSummary):
		c.JSON(http.StatusNotFound, gin.H{"error": "no summary for period", "code": "NO_SUMMARY"})
	default:
		h.logger.Error("request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": "INTERNAL"})
	}
}

func submissionStatus(err error) string {
	switch {
	case errors.Is(err, common.ErrAlreadySubmitted):
		return "already_submitted"
	case errors.Is(err, common.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, common.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
