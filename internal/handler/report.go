package handler

import (
	"net/http"

	"github.com/dirigovotes/dirigo/internal/ctxkeys"
	"github.com/dirigovotes/dirigo/internal/middleware"
	"github.com/dirigovotes/dirigo/internal/service"
)

type ReportHandler struct {
	reportService *service.ReportService
}

func NewReportHandler(reportService *service.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

type reportRequest struct {
	IssueID    string `json:"issue_id"`
	PositionID string `json:"position_id"`
	Reason     string `json:"reason"`
}

func (h *ReportHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if !decode(w, r, &req) {
		return
	}

	report, err := h.reportService.ReportIssue(r.Context(), ctxkeys.UserID(r.Context()), req.IssueID, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSON(w, http.StatusCreated, report)
}

func (h *ReportHandler) Position(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if !decode(w, r, &req) {
		return
	}

	report, err := h.reportService.ReportPosition(r.Context(), ctxkeys.UserID(r.Context()), req.PositionID, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSON(w, http.StatusCreated, report)
}

func (h *ReportHandler) Site(w http.ResponseWriter, r *http.Request) {
	var req service.SiteIssueRequest
	if !decode(w, r, &req) {
		return
	}

	issue, err := h.reportService.ReportSiteIssue(r.Context(), ctxkeys.UserID(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSON(w, http.StatusCreated, issue)
}

// ClientError records a failure reported by a client. Guests may call it.
func (h *ReportHandler) ClientError(w http.ResponseWriter, r *http.Request) {
	var req service.ClientErrorRequest
	if !decode(w, r, &req) {
		return
	}

	err := h.reportService.RecordClientError(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSON(w, http.StatusCreated, map[string]bool{"success": true})
}

func (h *ReportHandler) RecentErrors(w http.ResponseWriter, r *http.Request) {
	errs, err := h.reportService.RecentErrors(r.Context(), queryInt(r, 50, "limit"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSON(w, http.StatusOK, map[string]any{"errors": errs})
}
