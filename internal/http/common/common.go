package common

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"fieldseal/internal/domain/jobs"
	"fieldseal/internal/http/auth"
	"fieldseal/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	principalKey = "principal"
	requestIDKey = "request_id"
)

type ErrorResponse struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

type JobResponse struct {
	ID           string           `json:"id"`
	Reference    string           `json:"reference,omitempty"`
	TechnicianID string           `json:"technician_id,omitempty"`
	AssignmentID string           `json:"assignment_id,omitempty"`
	Status       string           `json:"status"`
	StatusLabel  string           `json:"status_label"`
	Notes        string           `json:"notes,omitempty"`
	Photos       []PhotoResponse  `json:"photos,omitempty"`
	Confirmation *ConfirmationRsp `json:"confirmation,omitempty"`
	Seal         *SealResponse    `json:"seal,omitempty"`
	CreatedAt    string           `json:"created_at,omitempty"`
	UpdatedAt    string           `json:"updated_at,omitempty"`
}

type PhotoResponse struct {
	ID         string   `json:"id"`
	Ref        string   `json:"ref"`
	Category   string   `json:"category"`
	CapturedAt string   `json:"captured_at"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
	Place      string   `json:"place,omitempty"`
}

type ConfirmationRsp struct {
	SignatureRef string `json:"signature_ref"`
	Confirmed    bool   `json:"confirmed"`
	ConfirmedAt  string `json:"confirmed_at"`
}

type SealResponse struct {
	SealedAt     string `json:"sealed_at"`
	EvidenceHash string `json:"evidence_hash"`
}

type Authenticator interface {
	Authenticate(*gin.Context) (jobs.Principal, error)
}

func AuthMiddleware(authenticator Authenticator, authorizer jobs.Authorizer, permission string, requireRequestID bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authenticator == nil || authorizer == nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Code: "INTERNAL", Message: "auth misconfigured"})
			return
		}
		principal, err := authenticator.Authenticate(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Code: "UNAUTHORIZED", Message: "authentication failed"})
			return
		}
		if err := authorizer.Require(principal, permission); err != nil {
			if authz, ok := auth.IsAuthzError(err); ok {
				c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Code: authz.Code, Message: "forbidden"})
				return
			}
			WriteError(c, err)
			c.Abort()
			return
		}
		c.Set(principalKey, principal)
		requestID := strings.TrimSpace(c.GetHeader("X-Request-ID"))
		if requestID != "" {
			c.Set(requestIDKey, requestID)
		}
		if requireRequestID && requestID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Code: "MISSING_REQUEST_ID", Message: "X-Request-ID required"})
			return
		}
		c.Next()
	}
}

func PrincipalFromContext(c *gin.Context) (jobs.Principal, bool) {
	value, ok := c.Get(principalKey)
	if !ok {
		WriteErrorCode(c, http.StatusInternalServerError, "INTERNAL", "principal missing")
		return jobs.Principal{}, false
	}
	principal, ok := value.(jobs.Principal)
	if !ok {
		WriteErrorCode(c, http.StatusInternalServerError, "INTERNAL", "principal invalid")
		return jobs.Principal{}, false
	}
	return principal, true
}

func RequestID(c *gin.Context) string {
	if value, ok := c.Get(requestIDKey); ok {
		if requestID, ok := value.(string); ok {
			return strings.TrimSpace(requestID)
		}
	}
	return strings.TrimSpace(c.GetHeader("X-Request-ID"))
}

func ParseUUIDParam(c *gin.Context, name string) (string, bool) {
	value := strings.TrimSpace(c.Param(name))
	if value == "" {
		WriteErrorCode(c, http.StatusBadRequest, "INVALID_ARGUMENT", name+" is required")
		return "", false
	}
	if _, err := uuid.Parse(value); err != nil {
		WriteErrorCode(c, http.StatusBadRequest, "INVALID_ARGUMENT", name+" must be a UUID")
		return "", false
	}
	return value, true
}

func ToJobResponse(job jobs.Job) JobResponse {
	resp := JobResponse{
		ID:           job.ID,
		Reference:    job.Reference,
		TechnicianID: job.TechnicianID,
		AssignmentID: job.AssignmentID,
		Status:       string(job.Status),
		StatusLabel:  job.Status.DisplayLabel(),
		Notes:        job.Notes,
		CreatedAt:    formatTime(job.CreatedAt),
		UpdatedAt:    formatTime(job.UpdatedAt),
	}
	for _, photo := range job.Photos {
		resp.Photos = append(resp.Photos, PhotoResponse{
			ID:         photo.ID,
			Ref:        photo.Ref,
			Category:   string(photo.Category),
			CapturedAt: formatTime(photo.CapturedAt),
			Latitude:   photo.Latitude,
			Longitude:  photo.Longitude,
			Place:      photo.Place,
		})
	}
	if job.Confirmation != nil {
		resp.Confirmation = &ConfirmationRsp{
			SignatureRef: job.Confirmation.SignatureRef,
			Confirmed:    job.Confirmation.Confirmed,
			ConfirmedAt:  formatTime(job.Confirmation.ConfirmedAt),
		}
	}
	if job.Seal != nil {
		resp.Seal = ToSealResponse(*job.Seal)
	}
	return resp
}

func ToSealResponse(record jobs.SealRecord) *SealResponse {
	return &SealResponse{
		SealedAt:     formatTime(record.SealedAt),
		EvidenceHash: record.EvidenceHash,
	}
}

func ToJobListResponse(item usecase.JobListItem) JobResponse {
	return JobResponse{
		ID:           item.JobID,
		Reference:    item.Reference,
		TechnicianID: item.TechnicianID,
		Status:       string(item.Status),
		StatusLabel:  item.Status.DisplayLabel(),
		CreatedAt:    formatTime(item.CreatedAt),
	}
}

func WriteError(c *gin.Context, err error) {
	var precondition *jobs.PreconditionError
	var gateway *jobs.GatewayError
	switch {
	case errors.As(err, &precondition):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, ErrorResponse{
			Code:    "PRECONDITION_NOT_MET",
			Message: precondition.Error(),
			Details: map[string]any{"missing": precondition.Missing},
		})
	case errors.As(err, &gateway):
		c.AbortWithStatusJSON(http.StatusBadGateway, ErrorResponse{
			Code:      "SEAL_GATEWAY_FAILURE",
			Message:   gateway.Message,
			Retryable: true,
			Details:   map[string]any{"error_code": gateway.Code},
		})
	case errors.Is(err, jobs.ErrNotAuthorized):
		WriteErrorCode(c, http.StatusForbidden, "NOT_AUTHORIZED", "acting identity does not own this job")
	case errors.Is(err, jobs.ErrAlreadySealed):
		WriteErrorCode(c, http.StatusConflict, "ALREADY_SEALED", "job is already sealed")
	case errors.Is(err, jobs.ErrInvalidTransition):
		WriteErrorCode(c, http.StatusConflict, "INVALID_TRANSITION", "transition not legal from current status")
	case errors.Is(err, jobs.ErrNotFound):
		WriteErrorCode(c, http.StatusNotFound, "NOT_FOUND", "not found")
	case errors.Is(err, jobs.ErrConflict):
		WriteErrorCode(c, http.StatusConflict, "CONFLICT", "conflict")
	case errors.Is(err, jobs.ErrInvalidArgument):
		WriteErrorCode(c, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid argument")
	default:
		WriteErrorCode(c, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func WriteErrorCode(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Code: code, Message: message})
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339Nano)
}
