package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/careerbee/quizrank/internal/model"
	"github.com/careerbee/quizrank/pkg/common"
)

const (
	defaultTopN               = 10
	maxTopN                   = 100
	defaultRankingCacheTTLSec = 30
)

type summaryStore interface {
	TopSummaries(ctx context.Context, periodType model.PeriodType, asOfDate time.Time, n int) ([]model.Summary, error)
	MemberSummary(ctx context.Context, memberID int64, periodType model.PeriodType, asOfDate time.Time) (*model.Summary, error)
}

type rankingCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, expiration time.Duration) error
}

// HandleTopRanking returns the top-N rows of a materialized period snapshot.
// Served through a short-TTL cache: snapshots only change when the
// aggregator rewrites a period, so briefly stale reads are fine.
func (h *Handler) HandleTopRanking(c *gin.Context) {
	periodType, ok := periodParam(c)
	if !ok {
		return
	}
	date, ok := h.dateParam(c)
	if !ok {
		return
	}
	n := parseTopN(c.Query("n"))

	ctx := c.Request.Context()
	cacheKey := fmt.Sprintf("%stop:%s:%s:%d",
		common.RankingCachePrefix, periodType, date.Format("2006-01-02"), n)

	if h.cache != nil {
		if cached, hit, err := h.cache.Get(ctx, cacheKey); err == nil && hit {
			rankingCacheTotal.WithLabelValues("hit").Inc()
			c.Data(http.StatusOK, "application/json", []byte(cached))
			return
		}
		rankingCacheTotal.WithLabelValues("miss").Inc()
	}

	summaries, err := h.summaries.TopSummaries(ctx, periodType, date, n)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	body, err := json.Marshal(gin.H{
		"period":  periodType,
		"date":    date.Format("2006-01-02"),
		"ranking": summaries,
	})
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	if h.cache != nil {
		ttl := time.Duration(getEnvInt("RANKING_CACHE_TTL_SEC", defaultRankingCacheTTLSec)) * time.Second
		if err := h.cache.Set(ctx, cacheKey, string(body), ttl); err != nil {
			// Cache failure degrades to uncached reads.
			h.logger.Warn("ranking cache set failed", "error", err)
		}
	}
	c.Data(http.StatusOK, "application/json", body)
}

// HandleMemberPeriodRank returns the authenticated member's summary row for
// the period containing the date. A member with no row gets NO_SUMMARY,
// distinct from an internal failure: never having participated is not an
// error.
func (h *Handler) HandleMemberPeriodRank(c *gin.Context) {
	memberID, ok := GetMemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated", "code": "UNAUTHORIZED"})
		return
	}
	periodType, ok := periodParam(c)
	if !ok {
		return
	}
	date, ok := h.dateParam(c)
	if !ok {
		return
	}

	summary, err := h.summaries.MemberSummary(c.Request.Context(), memberID, periodType, date)
	if errors.Is(err, common.ErrNoSummary) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no summary for period", "code": "NO_SUMMARY"})
		return
	}
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func periodParam(c *gin.Context) (model.PeriodType, bool) {
	period := model.PeriodType(strings.ToUpper(c.Param("period")))
	if !period.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid period, want day, week or month", "code": "BAD_REQUEST"})
		return "", false
	}
	return period, true
}

func parseTopN(raw string) int {
	if raw == "" {
		return defaultTopN
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultTopN
	}
	if n > maxTopN {
		return maxTopN
	}
	return n
}
