package handler

import (
	"net/http"

	"github.com/paiban/shiftplan/pkg/logger"
	"github.com/paiban/shiftplan/pkg/stats"
)

// StatsRequest 统计请求，格式与排班校验相同
type StatsRequest = ValidateRequest

// CoverageResponse 覆盖率响应
type CoverageResponse struct {
	Success bool                   `json:"success"`
	Data    *stats.CoverageMetrics `json:"data,omitempty"`
	Report  string                 `json:"report,omitempty"`
}

// WorkloadResponse 工作量响应
type WorkloadResponse struct {
	Success bool                   `json:"success"`
	Data    *stats.FairnessMetrics `json:"data,omitempty"`
}

// GetCoverageHandler 覆盖率分析API，format=text 时附带文字报告
func GetCoverageHandler(w http.ResponseWriter, r *http.Request) {
	var body StatsRequest
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, err)
		return
	}
	req, err := body.Input.Request()
	if err != nil {
		respondError(w, err)
		return
	}

	logger.WithContext(r.Context()).Debug().
		Str("week_start", req.Week.Date(0)).
		Int("assignments", len(body.Assignments)).
		Msg("接收覆盖率分析请求")

	analyzer := stats.NewCoverageAnalyzer()
	metrics := analyzer.Analyze(req.Week, req.Required, body.Assignments)

	resp := CoverageResponse{Success: true, Data: metrics}
	if r.URL.Query().Get("format") == "text" {
		resp.Report = analyzer.GenerateCoverageReport(metrics)
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetWorkloadHandler 工作量与公平性分析API
func GetWorkloadHandler(w http.ResponseWriter, r *http.Request) {
	var body StatsRequest
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, err)
		return
	}
	req, err := body.Input.Request()
	if err != nil {
		respondError(w, err)
		return
	}

	logger.WithContext(r.Context()).Debug().
		Str("week_start", req.Week.Date(0)).
		Int("employees", len(req.Employees)).
		Msg("接收工作量统计请求")

	metrics := stats.NewFairnessAnalyzer().Analyze(req.Employees, req.Week, body.Assignments)
	respondJSON(w, http.StatusOK, WorkloadResponse{Success: true, Data: metrics})
}
