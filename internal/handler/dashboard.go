package handler

import (
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hai-soft/license-admin-api/internal/config"
	"github.com/hai-soft/license-admin-api/internal/domain/agent"
	"github.com/hai-soft/license-admin-api/internal/engine"
	"github.com/hai-soft/license-admin-api/internal/handler/dto"
	"github.com/hai-soft/license-admin-api/internal/snapshot"
)

type DashboardHandler struct {
	snapshot *snapshot.Provider
	cfg      config.EngineConfig
	logger   *zap.Logger
}

func NewDashboardHandler(snapshot *snapshot.Provider, cfg config.EngineConfig, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		snapshot: snapshot,
		cfg:      cfg,
		logger:   logger.Named("DashboardHandler"),
	}
}

func (h *DashboardHandler) options() engine.Options {
	return engine.Options{SoonWindow: h.cfg.SoonWindow()}
}

func (h *DashboardHandler) Summary(c *gin.Context) {
	snap := h.snapshot.Get()
	now := time.Now().UTC()

	windowDays := h.cfg.SoonWindowDays
	if windowDays <= 0 {
		windowDays = 7
	}

	c.JSON(http.StatusOK, dto.DashboardSummaryResponse{
		Summary:    engine.Summarize(snap.Licenses, now, h.options()),
		WindowDays: windowDays,
		TakenAt:    snap.TakenAt,
	})
}

func (h *DashboardHandler) TopAgents(c *gin.Context) {
	snap := h.snapshot.Get()
	now := time.Now().UTC()
	lookup := agent.BuildLookup(snap.Agents)

	top := engine.TopAgents(snap.Licenses, now, h.options(), h.cfg.TopAgents)
	responses := make([]dto.AgentStatsResponse, len(top))
	for i, stats := range top {
		resp := dto.AgentStatsResponse{
			AgentKey: stats.Key,
			Total:    stats.Total,
			Used:     stats.Used,
			Expired:  stats.Expired,
		}
		if stats.Key != engine.UnassignedKey {
			resp.AgentName = lookup.DisplayName(stats.Key)
		}
		responses[i] = resp
	}
	c.JSON(http.StatusOK, responses)
}

func (h *DashboardHandler) Batches(c *gin.Context) {
	snap := h.snapshot.Get()
	now := time.Now().UTC()

	names := make(map[string]int, len(snap.Batches))
	for i, b := range snap.Batches {
		names[b.BatchID] = i
	}

	grouped := engine.GroupByBatch(snap.Licenses, now, h.options())
	responses := make([]dto.BatchStatsResponse, 0, len(grouped))
	for _, stats := range grouped {
		resp := dto.BatchStatsResponse{
			BatchID:    stats.BatchID,
			Total:      stats.Total,
			Used:       stats.Used,
			Expired:    stats.Expired,
			Unassigned: stats.Unassigned,
			Agents:     stats.AgentList(),
		}
		if i, ok := names[stats.BatchID]; ok {
			resp.Name = snap.Batches[i].Name
			resp.CreatedAt = &snap.Batches[i].CreatedAt
		}
		responses = append(responses, resp)
	}
	sort.Slice(responses, func(i, j int) bool { return responses[i].BatchID > responses[j].BatchID })

	c.JSON(http.StatusOK, responses)
}

func (h *DashboardHandler) CreatedByDay(c *gin.Context) {
	snap := h.snapshot.Get()
	c.JSON(http.StatusOK, engine.BucketByDay(snap.Licenses))
}

func (h *DashboardHandler) RecentLogs(c *gin.Context) {
	snap := h.snapshot.Get()
	responses := make([]dto.LogResponse, len(snap.Logs))
	for i, entry := range snap.Logs {
		responses[i] = dto.LogResponse{
			Action:    entry.Action,
			Message:   entry.Message,
			CreatedAt: entry.CreatedAt,
		}
	}
	c.JSON(http.StatusOK, responses)
}
