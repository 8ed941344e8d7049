package sealgw

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"fieldseal/internal/usecase"
)

// Client calls the remote sealing gateway: one POST per seal attempt, the
// gateway performing hash+sign+store as a single unit. Transport failures and
// success:false responses are both normalized into a failed SealingResult so
// the protocol engine treats them identically.
type Client struct {
	baseURL string
	timeout time.Duration
	httpDo  func(*http.Request) (*http.Response, error)
}

const maxResponseBytes = 64 * 1024

func NewClient(baseURL string, timeout time.Duration, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("sealing gateway base url is required")
	}
	doer := http.DefaultClient.Do
	if httpClient != nil {
		doer = httpClient.Do
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		httpDo:  doer,
	}, nil
}

type sealRequest struct {
	JobID string `json:"job_id"`
}

type sealResponse struct {
	Success      bool   `json:"success"`
	SealedAt     string `json:"sealed_at,omitempty"`
	EvidenceHash string `json:"evidence_hash,omitempty"`
	Error        string `json:"error,omitempty"`
}

func (c *Client) InvokeSealing(ctx context.Context, jobID string) (usecase.SealingResult, error) {
	if c == nil {
		return usecase.SealingResult{}, errors.New("sealing gateway client is nil")
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(sealRequest{JobID: jobID})
	if err != nil {
		return usecase.SealingResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/seal", bytes.NewReader(body))
	if err != nil {
		return usecase.SealingResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpDo(req)
	if err != nil {
		return failedResult(errorToCode(ctx, err), err.Error()), nil
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return failedResult(errorToCode(ctx, err), err.Error()), nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return failedResult(statusToErrorCode(resp.StatusCode), strings.TrimSpace(string(respBody))), nil
	}

	var parsed sealResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return failedResult("provider_error", "invalid gateway response"), nil
	}
	if !parsed.Success {
		message := parsed.Error
		if message == "" {
			message = "sealing rejected by gateway"
		}
		return failedResult("provider_error", message), nil
	}
	sealedAt, err := time.Parse(time.RFC3339, parsed.SealedAt)
	if err != nil {
		return failedResult("provider_error", "invalid sealed_at in gateway response"), nil
	}
	if strings.TrimSpace(parsed.EvidenceHash) == "" {
		return failedResult("provider_error", "missing evidence_hash in gateway response"), nil
	}
	return usecase.SealingResult{
		Success:      true,
		SealedAt:     sealedAt,
		EvidenceHash: parsed.EvidenceHash,
	}, nil
}

func failedResult(code, message string) usecase.SealingResult {
	return usecase.SealingResult{
		Success:      false,
		ErrorCode:    code,
		ErrorMessage: message,
	}
}

func statusToErrorCode(code int) string {
	if code == http.StatusTooManyRequests {
		return "rate_limited"
	}
	if code >= 500 {
		return "provider_5xx"
	}
	return "provider_error"
}

func errorToCode(ctx context.Context, err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "timeout"
	}
	return "network"
}
