package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/careerbee/quizrank/internal/model"
	"github.com/careerbee/quizrank/pkg/common"
)

type stubContest struct {
	submitResult *model.GradingResult
	submitErr    error
	joinErr      error
	liveEntries  []model.LiveRankEntry
	points       map[int64]int64
}

func (s *stubContest) CurrentCompetition(ctx context.Context, now time.Time) (*model.Competition, error) {
	return &model.Competition{ID: 7}, nil
}

func (s *stubContest) Problems(ctx context.Context, competitionID int64) ([]model.Problem, error) {
	return nil, nil
}

func (s *stubContest) Join(ctx context.Context, memberID, competitionID int64) error {
	return s.joinErr
}

func (s *stubContest) Submit(ctx context.Context, memberID, competitionID int64, answers []model.Answer, elapsed int64) (*model.GradingResult, error) {
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	return s.submitResult, nil
}

func (s *stubContest) LiveRanking(ctx context.Context, date time.Time) ([]model.LiveRankEntry, error) {
	return s.liveEntries, nil
}

func (s *stubContest) MemberLiveRank(ctx context.Context, memberID int64, date time.Time) (*model.LiveRankEntry, error) {
	for i := range s.liveEntries {
		if s.liveEntries[i].MemberID == memberID {
			return &s.liveEntries[i], nil
		}
	}
	return nil, common.ErrNotFound
}

func (s *stubContest) MemberPoints(ctx context.Context, memberID int64) (int64, error) {
	return s.points[memberID], nil
}

type stubSummaries struct {
	top       []model.Summary
	topCalls  int
	memberRow *model.Summary
}

func (s *stubSummaries) TopSummaries(ctx context.Context, periodType model.PeriodType, asOfDate time.Time, n int) ([]model.Summary, error) {
	s.topCalls++
	return s.top, nil
}

func (s *stubSummaries) MemberSummary(ctx context.Context, memberID int64, periodType model.PeriodType, asOfDate time.Time) (*model.Summary, error) {
	if s.memberRow == nil {
		return nil, common.ErrNoSummary
	}
	return s.memberRow, nil
}

type memoryCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string]string)}
}

func (m *memoryCache) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memoryCache) Set(ctx context.Context, key, value string, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func performRequest(t *testing.T, h *Handler, memberID int64, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	_, r := gin.CreateTestContext(w)
	if memberID > 0 {
		r.Use(func(c *gin.Context) { c.Set("member_id", memberID) })
	}
	r.GET("/api/rankings/live/me", h.HandleMemberLiveRank)
	r.GET("/api/rankings/:period", h.HandleTopRanking)
	r.GET("/api/rankings/:period/me", h.HandleMemberPeriodRank)
	r.POST("/api/competitions/:id/join", h.HandleJoin)
	r.POST("/api/competitions/:id/submit", h.HandleSubmit)
	r.GET("/api/members/me/points", h.HandleMemberPoints)

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestHandleSubmitMapsDomainErrors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"already submitted", common.ErrAlreadySubmitted, http.StatusConflict, "ALREADY_SUBMITTED"},
		{"not found", common.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"invalid input", common.ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandler(&stubContest{submitErr: tc.err}, &stubSummaries{}, nil, time.UTC, nil)
			body := `{"answers":[{"problem_id":1,"chosen_choice_index":0}],"elapsed_time_millis":1000}`
			w := performRequest(t, h, 42, http.MethodPost, "/api/competitions/7/submit", body)

			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			var resp map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("bad response body: %v", err)
			}
			if resp["code"] != tc.wantCode {
				t.Fatalf("code = %v, want %s", resp["code"], tc.wantCode)
			}
		})
	}
}

func TestHandleSubmitReturnsGradingResult(t *testing.T) {
	h := NewHandler(&stubContest{submitResult: &model.GradingResult{
		CompetitionID: 7, MemberID: 42, SolvedCount: 4, TotalCount: 5,
	}}, &stubSummaries{}, nil, time.UTC, nil)
	body := `{"answers":[{"problem_id":1,"chosen_choice_index":0}],"elapsed_time_millis":1000}`
	w := performRequest(t, h, 42, http.MethodPost, "/api/competitions/7/submit", body)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var resp model.GradingResult
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.SolvedCount != 4 || resp.TotalCount != 5 {
		t.Fatalf("grading result = %d/%d, want 4/5", resp.SolvedCount, resp.TotalCount)
	}
}

func TestHandleJoinConflict(t *testing.T) {
	h := NewHandler(&stubContest{joinErr: common.ErrAlreadyJoined}, &stubSummaries{}, nil, time.UTC, nil)
	w := performRequest(t, h, 42, http.MethodPost, "/api/competitions/7/join", "")

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
}

func TestHandleTopRankingRejectsUnknownPeriod(t *testing.T) {
	h := NewHandler(&stubContest{}, &stubSummaries{}, nil, time.UTC, nil)
	w := performRequest(t, h, 0, http.MethodGet, "/api/rankings/year", "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestHandleTopRankingUsesCache(t *testing.T) {
	summaries := &stubSummaries{top: []model.Summary{{MemberID: 1, Rank: 1}}}
	cache := newMemoryCache()
	h := NewHandler(&stubContest{}, summaries, cache, time.UTC, nil)

	w := performRequest(t, h, 0, http.MethodGet, "/api/rankings/week?date=2026-08-28", "")
	if w.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", w.Code)
	}
	w = performRequest(t, h, 0, http.MethodGet, "/api/rankings/week?date=2026-08-28", "")
	if w.Code != http.StatusOK {
		t.Fatalf("second request status = %d, want 200", w.Code)
	}
	if summaries.topCalls != 1 {
		t.Fatalf("store queried %d times, want 1 (second hit served from cache)", summaries.topCalls)
	}
}

func TestHandleMemberPeriodRankNoSummary(t *testing.T) {
	h := NewHandler(&stubContest{}, &stubSummaries{}, nil, time.UTC, nil)
	w := performRequest(t, h, 42, http.MethodGet, "/api/rankings/month/me", "")

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp["code"] != "NO_SUMMARY" {
		t.Fatalf("code = %v, want NO_SUMMARY (not participated is not an error)", resp["code"])
	}
}

func TestHandleMemberPointsReturnsBalance(t *testing.T) {
	h := NewHandler(&stubContest{points: map[int64]int64{42: 30}}, &stubSummaries{}, nil, time.UTC, nil)
	w := performRequest(t, h, 42, http.MethodGet, "/api/members/me/points", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var resp struct {
		MemberID int64 `json:"member_id"`
		Points   int64 `json:"points"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.MemberID != 42 || resp.Points != 30 {
		t.Fatalf("balance = %+v, want member 42 with 30 points", resp)
	}
}

func TestHandleMemberLiveRankNotParticipated(t *testing.T) {
	h := NewHandler(&stubContest{}, &stubSummaries{}, nil, time.UTC, nil)
	w := performRequest(t, h, 42, http.MethodGet, "/api/rankings/live/me", "")

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
