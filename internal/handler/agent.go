package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hai-soft/license-admin-api/internal/config"
	"github.com/hai-soft/license-admin-api/internal/domain/agent"
	"github.com/hai-soft/license-admin-api/internal/engine"
	"github.com/hai-soft/license-admin-api/internal/handler/dto"
	"github.com/hai-soft/license-admin-api/internal/handler/middleware"
	"github.com/hai-soft/license-admin-api/internal/ierr"
	"github.com/hai-soft/license-admin-api/internal/snapshot"
)

// AgentHandler serves the agent self-view. An agent only ever sees the
// licenses assigned to their own email; the agent dimension is pinned
// server side, never taken from the request.
type AgentHandler struct {
	snapshot *snapshot.Provider
	cfg      config.EngineConfig
	logger   *zap.Logger
}

func NewAgentHandler(snapshot *snapshot.Provider, cfg config.EngineConfig, logger *zap.Logger) *AgentHandler {
	return &AgentHandler{
		snapshot: snapshot,
		cfg:      cfg,
		logger:   logger.Named("AgentHandler"),
	}
}

func (h *AgentHandler) ownRecords(c *gin.Context, status, keyword string) ([]*dto.LicenseResponse, engine.Summary, bool) {
	claims := middleware.GetUserClaims(c)
	if claims == nil || claims.Email == "" {
		_ = c.Error(ierr.ErrUnauthorized)
		return nil, engine.Summary{}, false
	}

	snap := h.snapshot.Get()
	now := time.Now().UTC()
	opts := engine.Options{Expiring: true, SoonWindow: h.cfg.SoonWindow()}

	filtered := engine.Apply(snap.Licenses, engine.Filter{
		Agent:   claims.Email,
		Status:  status,
		Keyword: keyword,
	}, now, opts)

	lookup := agent.BuildLookup(snap.Agents)
	responses := make([]*dto.LicenseResponse, len(filtered))
	for i, lic := range filtered {
		responses[i] = dto.NewLicenseResponse(lic, lookup, now, opts)
	}
	return responses, engine.Summarize(filtered, now, opts), true
}

func (h *AgentHandler) MyLicenses(c *gin.Context) {
	status := c.DefaultQuery("status", engine.FilterAll)
	keyword := c.Query("q")

	responses, summary, ok := h.ownRecords(c, status, keyword)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"summary":  summary,
		"licenses": responses,
	})
}

func (h *AgentHandler) ExportMyLicenses(c *gin.Context) {
	claims := middleware.GetUserClaims(c)
	if claims == nil || claims.Email == "" {
		_ = c.Error(ierr.ErrUnauthorized)
		return
	}

	snap := h.snapshot.Get()
	now := time.Now().UTC()
	opts := engine.Options{Expiring: true, SoonWindow: h.cfg.SoonWindow()}

	filtered := engine.Apply(snap.Licenses, engine.Filter{Agent: claims.Email}, now, opts)
	lookup := agent.BuildLookup(snap.Agents)

	rows := make([][]string, 0, len(filtered))
	for _, lic := range filtered {
		rows = append(rows, engine.CSVRow(lic, lookup, now, opts))
	}

	var buf bytes.Buffer
	if err := engine.WriteCSV(&buf, rows); err != nil {
		h.logger.Error("CSV encoding failed", zap.Error(err))
		_ = c.Error(err)
		return
	}

	filename := fmt.Sprintf("%s-%s.csv", engine.SanitizeFilename(claims.Email), now.Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
