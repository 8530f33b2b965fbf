package dto

import (
	"time"

	"github.com/hai-soft/license-admin-api/internal/engine"
)

type DashboardSummaryResponse struct {
	Summary    engine.Summary `json:"summary"`
	WindowDays int            `json:"expiringWindowDays"`
	TakenAt    time.Time      `json:"snapshotTakenAt"`
}

type AgentStatsResponse struct {
	AgentKey  string `json:"agentKey"`
	AgentName string `json:"agentName,omitempty"`
	Total     int    `json:"total"`
	Used      int    `json:"used"`
	Expired   int    `json:"expired"`
}

type BatchStatsResponse struct {
	BatchID    string     `json:"batchId"`
	Name       string     `json:"name,omitempty"`
	Total      int        `json:"total"`
	Used       int        `json:"used"`
	Expired    int        `json:"expired"`
	Unassigned int        `json:"unassigned"`
	Agents     []string   `json:"agents"`
	CreatedAt  *time.Time `json:"createdAt,omitempty"`
}

type LogResponse struct {
	Action    string    `json:"action"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
