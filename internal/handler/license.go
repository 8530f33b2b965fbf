package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hai-soft/license-admin-api/internal/config"
	"github.com/hai-soft/license-admin-api/internal/domain/agent"
	"github.com/hai-soft/license-admin-api/internal/engine"
	"github.com/hai-soft/license-admin-api/internal/handler/dto"
	"github.com/hai-soft/license-admin-api/internal/handler/middleware"
	"github.com/hai-soft/license-admin-api/internal/service"
	"github.com/hai-soft/license-admin-api/internal/snapshot"
)

type LicenseHandler struct {
	service  *service.LicenseService
	snapshot *snapshot.Provider
	cfg      config.EngineConfig
	logger   *zap.Logger
}

func NewLicenseHandler(service *service.LicenseService, snapshot *snapshot.Provider, cfg config.EngineConfig, logger *zap.Logger) *LicenseHandler {
	return &LicenseHandler{
		service:  service,
		snapshot: snapshot,
		cfg:      cfg,
		logger:   logger.Named("LicenseHandler"),
	}
}

// viewOptions are the derivation options for admin-facing views. The
// expiring state is always surfaced there.
func (h *LicenseHandler) viewOptions() engine.Options {
	return engine.Options{Expiring: true, SoonWindow: h.cfg.SoonWindow()}
}

// buildFilter translates validated query parameters into an engine filter.
func buildFilter(req *dto.ListLicensesRequest) engine.Filter {
	f := engine.Filter{
		Agent:     req.Agent,
		Batch:     req.Batch,
		Status:    req.Status,
		Keyword:   req.Keyword,
		DateField: engine.DateField(req.DateField),
	}
	if t, ok := engine.ParseTimestamp(req.DateFrom); ok {
		f.DateFrom = t
	}
	if t, ok := engine.ParseTimestamp(req.DateTo); ok {
		f.DateTo = t
	}
	return f
}

func (h *LicenseHandler) Create(c *gin.Context) {
	var req dto.CreateLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind or validate request body", zap.Error(err))
		_ = c.Error(err)
		return
	}

	claims := middleware.GetUserClaims(c)
	createdBy := ""
	if claims != nil {
		createdBy = claims.Username
	}

	batchID, keys, err := h.service.CreateLicenses(c.Request.Context(), service.CreateParams{
		LicenseKey:   req.LicenseKey,
		Scheme:       req.Scheme,
		Count:        req.Count,
		BatchName:    req.BatchName,
		CreatedBy:    createdBy,
		AgentEmail:   req.AgentEmail,
		ExpiresAt:    req.ExpiresAt,
		DurationDays: req.DurationDays,
	})
	if err != nil {
		h.logger.Error("Service failed to create licenses", zap.Error(err))
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, dto.CreateLicenseResponse{
		BatchID: batchID,
		Count:   len(keys),
		Keys:    keys,
	})
}

func (h *LicenseHandler) List(c *gin.Context) {
	var req dto.ListLicensesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Warn("Failed to bind or validate query parameters", zap.Error(err))
		_ = c.Error(err)
		return
	}

	snap := h.snapshot.Get()
	now := time.Now().UTC()
	opts := h.viewOptions()
	if req.Status == string(engine.StatusAssigned) {
		opts.Assigned = true
	}

	filtered := engine.Apply(snap.Licenses, buildFilter(&req), now, opts)
	total := len(filtered)

	page := filtered
	if req.Offset > 0 {
		if req.Offset >= len(page) {
			page = nil
		} else {
			page = page[req.Offset:]
		}
	}
	if req.Limit > 0 && len(page) > req.Limit {
		page = page[:req.Limit]
	}

	lookup := agent.BuildLookup(snap.Agents)
	responses := make([]*dto.LicenseResponse, len(page))
	for i, lic := range page {
		responses[i] = dto.NewLicenseResponse(lic, lookup, now, opts)
	}

	c.JSON(http.StatusOK, dto.PaginatedLicenseResponse{
		Licenses:   responses,
		TotalCount: total,
		Limit:      req.Limit,
		Offset:     req.Offset,
	})
}

func (h *LicenseHandler) Assign(c *gin.Context) {
	var req dto.AssignLicensesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind or validate request body", zap.Error(err))
		_ = c.Error(err)
		return
	}

	affected, err := h.service.AssignLicenses(c.Request.Context(), req.LicenseIDs, req.AgentEmail)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.AssignResponse{Affected: affected})
}

func (h *LicenseHandler) AssignBatch(c *gin.Context) {
	var req dto.AssignBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind or validate request body", zap.Error(err))
		_ = c.Error(err)
		return
	}

	affected, err := h.service.AssignBatch(c.Request.Context(), req.BatchID, req.AgentEmail)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.AssignResponse{Affected: affected})
}

func (h *LicenseHandler) Extend(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.logger.Warn("Invalid UUID format received", zap.String("id_param", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid license ID format"})
		return
	}

	if err := h.service.ExtendLicense(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *LicenseHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.logger.Warn("Invalid UUID format received", zap.String("id_param", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid license ID format"})
		return
	}

	if err := h.service.DeleteLicense(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *LicenseHandler) ListBatches(c *gin.Context) {
	snap := h.snapshot.Get()
	responses := make([]dto.BatchResponse, len(snap.Batches))
	for i, b := range snap.Batches {
		responses[i] = dto.BatchResponse{
			BatchID:   b.BatchID,
			Name:      b.Name,
			CreatedBy: b.CreatedBy,
			CreatedAt: b.CreatedAt,
		}
	}
	c.JSON(http.StatusOK, responses)
}

// ListAgents serves the agent directory for assignment pickers.
func (h *LicenseHandler) ListAgents(c *gin.Context) {
	snap := h.snapshot.Get()
	responses := make([]dto.AgentResponse, len(snap.Agents))
	for i, a := range snap.Agents {
		responses[i] = dto.AgentResponse{Email: a.Email, Name: a.Name}
	}
	c.JSON(http.StatusOK, responses)
}

// Redeem is called by the desktop software, authenticated by API key.
func (h *LicenseHandler) Redeem(c *gin.Context) {
	var req dto.RedeemLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind or validate request body", zap.Error(err))
		_ = c.Error(err)
		return
	}

	lic, err := h.service.RedeemLicense(c.Request.Context(), req.LicenseKey)
	if err != nil {
		_ = c.Error(err)
		return
	}

	resp := dto.RedeemLicenseResponse{
		LicenseKey: lic.LicenseKey,
		UsedAt:     lic.UsedAt.Time,
	}
	if lic.ExpiresAt.Valid {
		resp.ExpiresAt = &lic.ExpiresAt.Time
	}
	c.JSON(http.StatusOK, resp)
}
