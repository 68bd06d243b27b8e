package handlers

import (
	"context"
	"net/http"

	"testdesk/models"
	"testdesk/services"

	"github.com/gin-gonic/gin"
)

type ReportHandler struct {
	reportService *services.ReportService
}

func NewReportHandler(reportService *services.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

func (h *ReportHandler) CreateReport(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.reportService.Report(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, report)
}

func (h *ReportHandler) ListOpen(c *gin.Context) {
	h.respondList(c, h.reportService.ListOpen)
}

func (h *ReportHandler) ListClosed(c *gin.Context) {
	h.respondList(c, h.reportService.ListClosed)
}

func (h *ReportHandler) ListOpenByUser(c *gin.Context) {
	h.respondUserList(c, h.reportService.ListOpenByUser)
}

func (h *ReportHandler) ListClosedByUser(c *gin.Context) {
	h.respondUserList(c, h.reportService.ListClosedByUser)
}

func (h *ReportHandler) respondList(c *gin.Context, list func(context.Context) ([]models.QuestionReport, error)) {
	reports, err := list(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reports)
}

func (h *ReportHandler) respondUserList(c *gin.Context, list func(context.Context, string) ([]models.QuestionReport, error)) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	reports, err := list(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reports)
}

func (h *ReportHandler) Resolve(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.ResolveReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.reportService.Resolve(c.Request.Context(), c.Param("reportId"), req.Remarks, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *ReportHandler) Dismiss(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	report, err := h.reportService.Dismiss(c.Request.Context(), c.Param("reportId"), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}
