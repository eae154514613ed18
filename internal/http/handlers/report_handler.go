// README: Report handlers: totals, activity summary, admin exports.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sharetray/internal/report"
)

type ReportHandler struct {
	reports *report.Service
}

func NewReportHandler(svc *report.Service) *ReportHandler {
	return &ReportHandler{reports: svc}
}

func (h *ReportHandler) Summary(c *gin.Context) {
	summary, err := h.reports.DeliveredSummary(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, summary)
}

func (h *ReportHandler) Activity(c *gin.Context) {
	summary, err := h.reports.ActivitySummary(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"actions": summary})
}

func (h *ReportHandler) ExportWorkbook(c *gin.Context) {
	f, err := h.reports.ExportWorkbook(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	defer func() { _ = f.Close() }()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=sharetray_export.xlsx")
	c.Status(http.StatusOK)
	if err := f.Write(c.Writer); err != nil {
		writeError(c, http.StatusInternalServerError, "failed to write workbook")
	}
}

func (h *ReportHandler) ExportCSV(c *gin.Context) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=sharetray_transactions.csv")
	c.Status(http.StatusOK)
	if err := h.reports.ExportCSV(c.Request.Context(), c.Writer); err != nil {
		writeError(c, http.StatusInternalServerError, "failed to write csv")
	}
}
