package handler

import (
	"archive/zip"
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hai-soft/license-admin-api/internal/config"
	"github.com/hai-soft/license-admin-api/internal/domain/agent"
	"github.com/hai-soft/license-admin-api/internal/domain/license"
	"github.com/hai-soft/license-admin-api/internal/engine"
	"github.com/hai-soft/license-admin-api/internal/handler/dto"
	"github.com/hai-soft/license-admin-api/internal/snapshot"
)

const (
	ExportModeFiltered = "filtered"
	ExportModeSelected = "selected"
	ExportModeSplit    = "split"
)

type ExportHandler struct {
	snapshot *snapshot.Provider
	cfg      config.EngineConfig
	logger   *zap.Logger
}

func NewExportHandler(snapshot *snapshot.Provider, cfg config.EngineConfig, logger *zap.Logger) *ExportHandler {
	return &ExportHandler{
		snapshot: snapshot,
		cfg:      cfg,
		logger:   logger.Named("ExportHandler"),
	}
}

// Export streams the selected records as CSV, or as a zip of per-agent CSV
// files in split mode. Selection happens over the same snapshot the list
// view reads, so an export always matches what the operator saw.
func (h *ExportHandler) Export(c *gin.Context) {
	var req dto.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind or validate request body", zap.Error(err))
		_ = c.Error(err)
		return
	}
	if req.Mode == "" {
		req.Mode = ExportModeFiltered
	}

	snap := h.snapshot.Get()
	now := time.Now().UTC()
	opts := engine.Options{Expiring: true, SoonWindow: h.cfg.SoonWindow()}
	if req.Status == string(engine.StatusAssigned) {
		opts.Assigned = true
	}

	records := h.selectRecords(snap.Licenses, &req, now, opts)
	lookup := agent.BuildLookup(snap.Agents)

	baseName := engine.SanitizeFilename(req.Filename)
	stamp := now.Format("2006-01-02")

	if req.Mode == ExportModeSplit {
		h.writeZip(c, records, lookup, now, opts, fmt.Sprintf("%s-%s.zip", baseName, stamp))
		return
	}
	h.writeCSV(c, records, lookup, now, opts, fmt.Sprintf("%s-%s.csv", baseName, stamp))
}

func (h *ExportHandler) selectRecords(all []*license.License, req *dto.ExportRequest, now time.Time, opts engine.Options) []*license.License {
	if req.Mode == ExportModeSelected {
		wanted := make(map[string]struct{}, len(req.IDs))
		for _, id := range req.IDs {
			wanted[id] = struct{}{}
		}
		out := make([]*license.License, 0, len(wanted))
		for _, l := range all {
			if _, ok := wanted[l.RecordID()]; ok {
				out = append(out, l)
			}
		}
		return out
	}

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
	return engine.Apply(all, f, now, opts)
}

func (h *ExportHandler) writeCSV(c *gin.Context, records []*license.License, lookup agent.Lookup, now time.Time, opts engine.Options, filename string) {
	var buf bytes.Buffer
	if err := engine.WriteCSV(&buf, h.rows(records, lookup, now, opts)); err != nil {
		h.logger.Error("CSV encoding failed", zap.Error(err))
		_ = c.Error(err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *ExportHandler) writeZip(c *gin.Context, records []*license.License, lookup agent.Lookup, now time.Time, opts engine.Options, filename string) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for key, group := range engine.SplitByAgent(records) {
		name := key
		if key != engine.UnassignedKey {
			name = engine.SanitizeFilename(lookup.DisplayName(key))
		}
		entry, err := zw.Create(name + ".csv")
		if err != nil {
			h.logger.Error("Zip entry creation failed", zap.String("agent", key), zap.Error(err))
			_ = c.Error(err)
			return
		}
		if err := engine.WriteCSV(entry, h.rows(group, lookup, now, opts)); err != nil {
			h.logger.Error("CSV encoding failed", zap.String("agent", key), zap.Error(err))
			_ = c.Error(err)
			return
		}
	}
	if err := zw.Close(); err != nil {
		h.logger.Error("Zip finalization failed", zap.Error(err))
		_ = c.Error(err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/zip", buf.Bytes())
}

func (h *ExportHandler) rows(records []*license.License, lookup agent.Lookup, now time.Time, opts engine.Options) [][]string {
	rows := make([][]string, 0, len(records))
	for _, l := range records {
		rows = append(rows, engine.CSVRow(l, lookup, now, opts))
	}
	return rows
}
