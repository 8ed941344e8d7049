package jobs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	domain "fieldseal/internal/domain/jobs"
	"fieldseal/internal/http/common"
	"fieldseal/internal/usecase"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Service *usecase.JobService
}

type listResponse struct {
	Items      []common.JobResponse `json:"items"`
	NextCursor string               `json:"next_cursor,omitempty"`
}

type sealResponse struct {
	Job           common.JobResponse      `json:"job"`
	AlreadySealed bool                    `json:"already_sealed"`
	Events        []usecase.ProgressEvent `json:"events"`
	Warnings      []string                `json:"warnings,omitempty"`
}

func NewHandler(service *usecase.JobService) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) HandleCreateJob(c *gin.Context) {
	if _, ok := common.PrincipalFromContext(c); !ok {
		return
	}
	var req struct {
		Reference         string `json:"reference"`
		TechnicianID      string `json:"technician_id"`
		AssignmentID      string `json:"assignment_id,omitempty"`
		TechnicianContact string `json:"technician_contact,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.WriteErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}
	if req.Reference == "" || req.TechnicianID == "" {
		common.WriteErrorCode(c, http.StatusBadRequest, "INVALID_ARGUMENT", "reference and technician_id are required")
		return
	}
	job, created, err := h.Service.CreateJob(c.Request.Context(), usecase.CreateJobInput{
		Reference:         req.Reference,
		TechnicianID:      req.TechnicianID,
		AssignmentID:      req.AssignmentID,
		TechnicianContact: req.TechnicianContact,
	})
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"job":     common.ToJobResponse(job),
		"created": created,
	})
}

func (h *Handler) HandleGetJob(c *gin.Context) {
	principal, ok := common.PrincipalFromContext(c)
	if !ok {
		return
	}
	jobID, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	job, err := h.Service.GetJob(c.Request.Context(), jobID, principal)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": common.ToJobResponse(job)})
}

func (h *Handler) HandleListJobs(c *gin.Context) {
	if _, ok := common.PrincipalFromContext(c); !ok {
		return
	}
	filter := usecase.JobListFilter{}
	filter.Status = strings.TrimSpace(c.Query("status"))
	filter.TechnicianID = strings.TrimSpace(c.Query("technician"))
	filter.Cursor = strings.TrimSpace(c.Query("cursor"))
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			filter.Limit = limit
		}
	}
	items, next, err := h.Service.ListJobs(c.Request.Context(), filter)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	resp := make([]common.JobResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, common.ToJobListResponse(item))
	}
	c.JSON(http.StatusOK, listResponse{Items: resp, NextCursor: next})
}

func (h *Handler) HandleStartJob(c *gin.Context) {
	principal, ok := common.PrincipalFromContext(c)
	if !ok {
		return
	}
	jobID, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	job, err := h.Service.StartJob(c.Request.Context(), jobID, principal)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": common.ToJobResponse(job)})
}

func (h *Handler) HandleAddPhoto(c *gin.Context) {
	principal, ok := common.PrincipalFromContext(c)
	if !ok {
		return
	}
	jobID, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Ref        string   `json:"ref"`
		Category   string   `json:"category"`
		CapturedAt string   `json:"captured_at,omitempty"`
		Latitude   *float64 `json:"latitude,omitempty"`
		Longitude  *float64 `json:"longitude,omitempty"`
		Place      string   `json:"place,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.WriteErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}
	if req.Ref == "" || req.Category == "" {
		common.WriteErrorCode(c, http.StatusBadRequest, "INVALID_ARGUMENT", "ref and category are required")
		return
	}
	var capturedAt time.Time
	if raw := strings.TrimSpace(req.CapturedAt); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			common.WriteErrorCode(c, http.StatusBadRequest, "INVALID_ARGUMENT", "captured_at must be RFC3339")
			return
		}
		capturedAt = parsed
	}
	photo, added, warnings, err := h.Service.AddPhoto(c.Request.Context(), usecase.PhotoInput{
		JobID:      jobID,
		Ref:        req.Ref,
		Category:   req.Category,
		CapturedAt: capturedAt,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		Place:      req.Place,
		Principal:  principal,
	})
	if err != nil {
		common.WriteError(c, err)
		return
	}
	payload := gin.H{
		"photo": common.PhotoResponse{
			ID:         photo.ID,
			Ref:        photo.Ref,
			Category:   string(photo.Category),
			CapturedAt: photo.CapturedAt.UTC().Format(time.RFC3339Nano),
			Latitude:   photo.Latitude,
			Longitude:  photo.Longitude,
			Place:      photo.Place,
		},
		"added": added,
	}
	if len(warnings) > 0 {
		payload["warnings"] = warnings
	}
	c.JSON(http.StatusOK, payload)
}

func (h *Handler) HandleSubmitEvidence(c *gin.Context) {
	principal, ok := common.PrincipalFromContext(c)
	if !ok {
		return
	}
	jobID, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Notes        string `json:"notes,omitempty"`
		Confirmation struct {
			SignatureRef string `json:"signature_ref"`
			Confirmed    bool   `json:"confirmed"`
			ConfirmedAt  string `json:"confirmed_at,omitempty"`
		} `json:"confirmation"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.WriteErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}
	confirmation := domain.ClientConfirmation{
		SignatureRef: req.Confirmation.SignatureRef,
		Confirmed:    req.Confirmation.Confirmed,
	}
	if raw := strings.TrimSpace(req.Confirmation.ConfirmedAt); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			common.WriteErrorCode(c, http.StatusBadRequest, "INVALID_ARGUMENT", "confirmed_at must be RFC3339")
			return
		}
		confirmation.ConfirmedAt = parsed
	}
	var events []usecase.ProgressEvent
	view, err := h.Service.SubmitEvidence(c.Request.Context(), usecase.SubmitInput{
		JobID:        jobID,
		Notes:        req.Notes,
		Confirmation: confirmation,
		Principal:    principal,
	}, func(event usecase.ProgressEvent) {
		events = append(events, event)
	})
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, sealResponse{
		Job:           common.ToJobResponse(view.Job),
		AlreadySealed: view.AlreadySealed,
		Events:        events,
		Warnings:      view.Warnings,
	})
}

func (h *Handler) HandleRetrySeal(c *gin.Context) {
	principal, ok := common.PrincipalFromContext(c)
	if !ok {
		return
	}
	jobID, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	var events []usecase.ProgressEvent
	view, err := h.Service.RetrySeal(c.Request.Context(), jobID, principal, func(event usecase.ProgressEvent) {
		events = append(events, event)
	})
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, sealResponse{
		Job:           common.ToJobResponse(view.Job),
		AlreadySealed: view.AlreadySealed,
		Events:        events,
		Warnings:      view.Warnings,
	})
}

func (h *Handler) HandleVerifySeal(c *gin.Context) {
	if _, ok := common.PrincipalFromContext(c); !ok {
		return
	}
	jobID, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	result, err := h.Service.VerifySeal(c.Request.Context(), jobID)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	payload := gin.H{
		"job_id":       result.JobID,
		"sealed":       result.Sealed,
		"local_digest": result.LocalDigest,
		"match":        result.Match,
	}
	if result.Sealed {
		payload["sealed_at"] = result.SealedAt.UTC().Format(time.RFC3339Nano)
		payload["stored_hash"] = result.StoredHash
	}
	if len(result.Warnings) > 0 {
		payload["warnings"] = result.Warnings
	}
	c.JSON(http.StatusOK, payload)
}
