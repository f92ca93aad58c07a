// Package handler exposes the insight lifecycle over HTTP.
package handler

import (
	"io"
	"net/http"
	"strings"

	"rightsize_backend/internal/insights/domain"
	"rightsize_backend/internal/insights/service"
	"rightsize_backend/internal/insights/transport"
	"rightsize_backend/platform/httpkit"
	"rightsize_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/batches", h.ProcessBatch)
	rg.POST("/approve", h.Approve)
	rg.POST("/close", h.Close)
	rg.POST("/label-events", h.LabelEvent)
	rg.POST("/stack-events", h.StackEvent)
	rg.POST("/schedules", h.Schedule)
	rg.GET("/records", h.GetRecord)
	rg.GET("/reports/*path", h.GetReport)
}

// ProcessBatch reconciles a batch of insights for one deployment.
func (h *Handler) ProcessBatch(c *gin.Context) {
	var req transport.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	insights := make([]domain.Insight, 0, len(req.Insights))
	for _, in := range req.Insights {
		insights = append(insights, domain.Insight{
			ResourceID:      in.ResourceID,
			Name:            in.Name,
			ServiceType:     domain.ServiceType(in.ServiceType),
			Region:          in.Region,
			CurrentType:     in.CurrentType,
			RecommendedType: in.RecommendedType,
			SavingsEstimate: in.SavingsEstimate,
			StackID:         in.StackID,
			StackName:       req.StackName,
			LogicalID:       in.LogicalID,
			Attributes:      in.Attributes,
		})
	}

	result := h.svc.ProcessBatch(c.Request.Context(), req.StackName, insights)
	httpkit.OK(c, transport.BatchResponse{
		Applied:   result.Applied,
		Unchanged: result.Unchanged,
		Failed:    result.Failed,
	})
}

// Approve moves a record from Initialize to Approved.
func (h *Handler) Approve(c *gin.Context) {
	req, ok := h.bindTransition(c)
	if !ok {
		return
	}

	applied, err := h.svc.Approve(c.Request.Context(), domain.ServiceType(req.ServiceType), req.ResourceID, req.Name)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.TransitionResponse{Applied: applied})
}

// Close moves a record from Executed to Closed.
func (h *Handler) Close(c *gin.Context) {
	req, ok := h.bindTransition(c)
	if !ok {
		return
	}

	applied, err := h.svc.Close(c.Request.Context(), domain.ServiceType(req.ServiceType), req.ResourceID, req.Name)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.TransitionResponse{Applied: applied})
}

// LabelEvent handles an inbound label change notification and runs the
// side effects for the new label.
func (h *Handler) LabelEvent(c *gin.Context) {
	var req transport.LabelEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	label, err := domain.ParseLabel(req.Label)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "unknown label", req.Label)
		return
	}

	if err := h.svc.OnRecordLabeled(c.Request.Context(), req.ParameterKey, label); httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusAccepted, gin.H{"status": "processed"})
}

// StackEvent ingests a raw deployment event notification.
func (h *Handler) StackEvent(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil || len(body) == 0 {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	if err := h.svc.OnStackEvent(c.Request.Context(), string(body)); httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusAccepted, gin.H{"status": "processed"})
}

// Schedule attaches a maintenance window to a correlation item.
func (h *Handler) Schedule(c *gin.Context) {
	var req transport.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	opsItemID, err := uuid.Parse(req.OpsItemID)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	window, err := h.svc.Schedule(c.Request.Context(), service.ScheduleRequest{
		OpsItemID:      opsItemID,
		CronExpression: req.CronExpression,
		Timezone:       req.Timezone,
		DurationHours:  req.Duration,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, window)
}

// GetRecord returns the tracked record behind a parameter key.
func (h *Handler) GetRecord(c *gin.Context) {
	key := c.Query("parameterKey")
	if key == "" {
		httpkit.Error(c, http.StatusBadRequest, "parameterKey is required", nil)
		return
	}

	record, err := h.svc.GetRecord(c.Request.Context(), key)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.RecordResponse{
		ParameterKey: record.Key,
		Value:        record.Value,
		Version:      record.Version,
		Label:        record.Label.String(),
		Tags:         record.Tags,
		UpdatedAt:    record.UpdatedAt,
	})
}

// GetReport streams an archived change report.
func (h *Handler) GetReport(c *gin.Context) {
	path := strings.TrimPrefix(c.Param("path"), "/")
	if path == "" {
		httpkit.Error(c, http.StatusBadRequest, "report path is required", nil)
		return
	}

	report, err := h.svc.FetchReport(c.Request.Context(), path)
	if httpkit.HandleError(c, err) {
		return
	}
	defer func() { _ = report.Close() }()

	c.Header("Content-Type", "application/json")
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, report)
}

func (h *Handler) bindTransition(c *gin.Context) (transport.TransitionRequest, bool) {
	var req transport.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return req, false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return req, false
	}
	return req, true
}
